// Package devsim provides simulated local drivers for every hardware
// surface. The bridge daemon serves them under --simulate, and the
// integration tests run against them; none of them touch real devices.
package devsim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/devlinkhq/devlink/pkg/camera"
	"github.com/devlinkhq/devlink/pkg/canbus"
	"github.com/devlinkhq/devlink/pkg/depth"
	"github.com/devlinkhq/devlink/pkg/serial"
)

// RegisterAll registers one simulated driver per surface. Errors only when
// a surface already has a local driver.
func RegisterAll() error {
	if err := camera.RegisterLocalDriver(NewCameraDriver()); err != nil {
		return err
	}
	if err := canbus.RegisterLocalDriver(NewCANDriver()); err != nil {
		return err
	}
	if err := serial.RegisterLocalDriver(NewSerialDriver()); err != nil {
		return err
	}
	return depth.RegisterLocalDriver(NewDepthDriver())
}

// CameraDriver produces synthetic gradient frames.
type CameraDriver struct {
	Width  int
	Height int
}

func NewCameraDriver() *CameraDriver {
	return &CameraDriver{Width: 640, Height: 480}
}

func (d *CameraDriver) Open(_ context.Context, source string, _ camera.Options) (camera.Capture, error) {
	return &simCapture{source: source, width: d.Width, height: d.Height, opened: true}, nil
}

type simCapture struct {
	mu     sync.Mutex
	source string
	width  int
	height int
	seq    uint64
	held   *camera.Frame
	opened bool
}

func (c *simCapture) frame() camera.Frame {
	c.seq++
	px := make([]byte, c.width*c.height*3)
	// Horizontal gradient shifted by the sequence number, so consecutive
	// frames differ.
	for y := 0; y < c.height; y++ {
		for x := 0; x < c.width; x++ {
			i := (y*c.width + x) * 3
			px[i] = byte((x + int(c.seq)) % 256)
			px[i+1] = byte(y % 256)
			px[i+2] = byte(c.seq % 256)
		}
	}
	return camera.Frame{
		Width:     c.width,
		Height:    c.height,
		Format:    camera.FormatBGR,
		Pixels:    px,
		Seq:       c.seq,
		Timestamp: time.Now(),
	}
}

func (c *simCapture) Read(context.Context) (camera.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.opened {
		return camera.Frame{}, fmt.Errorf("devsim: capture %q released", c.source)
	}
	return c.frame(), nil
}

func (c *simCapture) Grab(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.opened {
		return fmt.Errorf("devsim: capture %q released", c.source)
	}
	f := c.frame()
	c.held = &f
	return nil
}

func (c *simCapture) Retrieve() (camera.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.held == nil {
		return camera.Frame{}, fmt.Errorf("devsim: no grabbed frame")
	}
	f := *c.held
	c.held = nil
	return f, nil
}

func (c *simCapture) IsOpened() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opened
}

func (c *simCapture) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opened = false
	return nil
}

// CANDriver is a loopback bus: every sent frame is queued for Recv.
type CANDriver struct{}

func NewCANDriver() *CANDriver { return &CANDriver{} }

func (d *CANDriver) Open(_ context.Context, channel string, _ canbus.Options) (canbus.Bus, error) {
	return &simBus{channel: channel, queue: make(chan canbus.Frame, 64)}, nil
}

func (d *CANDriver) Interfaces(context.Context) ([]canbus.InterfaceInfo, error) {
	return []canbus.InterfaceInfo{
		{Name: "vcan0", Up: true},
		{Name: "vcan1", Up: false},
	}, nil
}

type simBus struct {
	channel string
	queue   chan canbus.Frame
}

func (b *simBus) Send(ctx context.Context, f canbus.Frame) error {
	select {
	case b.queue <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *simBus) Recv(ctx context.Context) (canbus.Frame, error) {
	select {
	case f := <-b.queue:
		return f, nil
	case <-ctx.Done():
		return canbus.Frame{}, ctx.Err()
	}
}

func (b *simBus) Shutdown() error { return nil }

// SerialDriver opens echo ports: whatever is written becomes readable.
type SerialDriver struct{}

func NewSerialDriver() *SerialDriver { return &SerialDriver{} }

func (d *SerialDriver) Open(_ context.Context, port string, cfg serial.Config) (serial.Port, error) {
	return &simPort{name: port, cfg: cfg}, nil
}

func (d *SerialDriver) ListPorts(context.Context) ([]serial.PortInfo, error) {
	return []serial.PortInfo{
		{Name: "/dev/ttySIM0", Description: "simulated echo port", Type: serial.PortTypeUSB},
		{Name: "/dev/ttySIM1", Description: "simulated echo port", Type: serial.PortTypeUSB},
	}, nil
}

type simPort struct {
	mu     sync.Mutex
	name   string
	cfg    serial.Config
	buf    []byte
	closed bool
}

func (p *simPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, fmt.Errorf("devsim: port %q closed", p.name)
	}
	n := copy(b, p.buf)
	p.buf = p.buf[n:]
	return n, nil
}

func (p *simPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, fmt.Errorf("devsim: port %q closed", p.name)
	}
	p.buf = append(p.buf, b...)
	return len(b), nil
}

func (p *simPort) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buf = nil
	return nil
}

func (p *simPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// DepthDriver starts synthetic depth pipelines that emit frame sets at a
// fixed rate.
type DepthDriver struct {
	// Interval between frame sets. Zero means 33ms, roughly 30 FPS.
	Interval time.Duration
}

func NewDepthDriver() *DepthDriver { return &DepthDriver{} }

func (d *DepthDriver) Start(_ context.Context, device string, streams []depth.StreamProfile) (depth.Stream, error) {
	iv := d.Interval
	if iv <= 0 {
		iv = 33 * time.Millisecond
	}
	s := &simStream{device: device, interval: iv, width: 640, height: 480}
	for _, sp := range streams {
		if sp.Width > 0 {
			s.width, s.height = sp.Width, sp.Height
			break
		}
	}
	return s, nil
}

type simStream struct {
	mu       sync.Mutex
	device   string
	interval time.Duration
	width    int
	height   int
	seq      uint64
	last     time.Time
	stopped  bool
}

func (s *simStream) WaitForFrames(ctx context.Context) (depth.FrameSet, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return depth.FrameSet{}, fmt.Errorf("devsim: depth stream %q stopped", s.device)
	}
	wait := s.interval - time.Since(s.last)
	s.mu.Unlock()

	if wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return depth.FrameSet{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.last = time.Now()
	dpx := make([]byte, s.width*s.height*2)
	cpx := make([]byte, s.width*s.height*3)
	for i := range dpx {
		dpx[i] = byte((i + int(s.seq)) % 256)
	}
	now := time.Now()
	return depth.FrameSet{
		Depth: depth.Frame{Width: s.width, Height: s.height, Data: dpx, Seq: s.seq, Timestamp: now},
		Color: depth.Frame{Width: s.width, Height: s.height, Data: cpx, Seq: s.seq, Timestamp: now},
	}, nil
}

func (s *simStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}
