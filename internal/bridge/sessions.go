package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/devlinkhq/devlink/internal/wire"
	"github.com/devlinkhq/devlink/pkg/camera"
	"github.com/devlinkhq/devlink/pkg/canbus"
	"github.com/devlinkhq/devlink/pkg/depth"
	"github.com/devlinkhq/devlink/pkg/serial"
	"github.com/devlinkhq/devlink/pkg/telemetry"
)

var errNotOpen = errors.New("device not opened on this session")

// maxSerialRead caps the buffer one serial.read may ask the bridge to
// allocate. Peers wanting more data issue more reads.
const maxSerialRead = 1 << 20

func unknownOp(op string) error {
	return fmt.Errorf("unsupported op %q", op)
}

func reply(v any) (wire.RawMessage, error) {
	data, err := wire.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return data, nil
}

// cameraSession serves camera.read. The capture opens lazily on the first
// read so a handshake never blocks on device init.
type cameraSession struct {
	driver  camera.Driver
	device  string
	metrics *telemetry.BridgeMetrics

	cap camera.Capture
}

func (s *cameraSession) serve(ctx context.Context, req wire.Request) (wire.RawMessage, error) {
	switch req.Op {
	case wire.OpCameraRead:
		if s.cap == nil {
			c, err := s.driver.Open(ctx, s.device, camera.Options{})
			if err != nil {
				return nil, err
			}
			s.cap = c
		}
		f, err := s.cap.Read(ctx)
		if err != nil {
			return nil, err
		}
		s.metrics.FramesServed.WithLabelValues(wire.SurfaceCamera).Inc()
		return reply(wire.VideoFrame{
			Seq:         f.Seq,
			Width:       f.Width,
			Height:      f.Height,
			Format:      string(f.Format),
			Pixels:      f.Pixels,
			TimestampNS: f.Timestamp.UnixNano(),
		})
	default:
		return nil, unknownOp(req.Op)
	}
}

func (s *cameraSession) close() {
	if s.cap != nil {
		_ = s.cap.Release()
	}
}

// canSession serves can.open/send/recv against one local bus.
type canSession struct {
	driver  canbus.Driver
	channel string

	bus canbus.Bus
}

func (s *canSession) serve(ctx context.Context, req wire.Request) (wire.RawMessage, error) {
	switch req.Op {
	case wire.OpCANOpen:
		var open wire.CANOpen
		if len(req.Data) > 0 {
			if err := wire.Unmarshal(req.Data, &open); err != nil {
				return nil, err
			}
		}
		if s.bus != nil {
			return nil, nil // reopen on a live session is a no-op
		}
		bus, err := s.driver.Open(ctx, s.channel, canbus.Options{Bitrate: open.Bitrate, FD: open.FD})
		if err != nil {
			return nil, err
		}
		s.bus = bus
		return nil, nil

	case wire.OpCANSend:
		if s.bus == nil {
			return nil, errNotOpen
		}
		var f wire.CANFrame
		if err := wire.Unmarshal(req.Data, &f); err != nil {
			return nil, err
		}
		return nil, s.bus.Send(ctx, canbus.Frame{ID: f.ID, Data: f.Data, Extended: f.Extended, Remote: f.Remote, FD: f.FD})

	case wire.OpCANRecv:
		if s.bus == nil {
			return nil, errNotOpen
		}
		f, err := s.bus.Recv(ctx)
		if err != nil {
			return nil, err
		}
		return reply(wire.CANFrame{ID: f.ID, Data: f.Data, Extended: f.Extended, Remote: f.Remote, FD: f.FD})

	default:
		return nil, unknownOp(req.Op)
	}
}

func (s *canSession) close() {
	if s.bus != nil {
		_ = s.bus.Shutdown()
	}
}

// serialSession serves the byte-oriented serial ops. list_ports works
// without an open port; everything else needs serial.open first.
type serialSession struct {
	driver serial.Driver
	device string

	port serial.Port
}

func (s *serialSession) serve(ctx context.Context, req wire.Request) (wire.RawMessage, error) {
	switch req.Op {
	case wire.OpSerialOpen:
		var open wire.SerialOpen
		if len(req.Data) > 0 {
			if err := wire.Unmarshal(req.Data, &open); err != nil {
				return nil, err
			}
		}
		if s.port != nil {
			return nil, nil
		}
		cfg := serial.DefaultConfig()
		if open.BaudRate > 0 {
			cfg.BaudRate = open.BaudRate
		}
		if open.DataBits > 0 {
			cfg.DataBits = open.DataBits
		}
		if open.Parity != "" {
			cfg.Parity = serial.Parity(open.Parity)
		}
		if open.StopBits > 0 {
			cfg.StopBits = open.StopBits
		}
		port, err := s.driver.Open(ctx, s.device, cfg)
		if err != nil {
			return nil, err
		}
		s.port = port
		return nil, nil

	case wire.OpSerialRead:
		if s.port == nil {
			return nil, errNotOpen
		}
		var rr wire.SerialReadRequest
		if err := wire.Unmarshal(req.Data, &rr); err != nil {
			return nil, err
		}
		if rr.Max < 0 {
			return nil, fmt.Errorf("invalid read size %d", rr.Max)
		}
		if rr.Max > maxSerialRead {
			rr.Max = maxSerialRead
		}
		buf := make([]byte, rr.Max)
		n, err := s.port.Read(buf)
		if err != nil {
			return nil, err
		}
		return reply(wire.SerialData{Data: buf[:n]})

	case wire.OpSerialWrite:
		if s.port == nil {
			return nil, errNotOpen
		}
		var data wire.SerialData
		if err := wire.Unmarshal(req.Data, &data); err != nil {
			return nil, err
		}
		n, err := s.port.Write(data.Data)
		if err != nil {
			return nil, err
		}
		return reply(wire.SerialCount{N: n})

	case wire.OpSerialFlush:
		if s.port == nil {
			return nil, errNotOpen
		}
		return nil, s.port.Flush()

	case wire.OpSerialPorts:
		ports, err := s.driver.ListPorts(ctx)
		if err != nil {
			return nil, err
		}
		list := wire.PortList{Ports: make([]wire.PortInfo, len(ports))}
		for i, p := range ports {
			list.Ports[i] = wire.PortInfo{Name: p.Name, Description: p.Description, Type: string(p.Type)}
		}
		return reply(list)

	default:
		return nil, unknownOp(req.Op)
	}
}

func (s *serialSession) close() {
	if s.port != nil {
		_ = s.port.Close()
	}
}

// depthSession serves the depth pipeline ops.
type depthSession struct {
	driver  depth.Driver
	device  string
	metrics *telemetry.BridgeMetrics

	stream depth.Stream
}

func (s *depthSession) serve(ctx context.Context, req wire.Request) (wire.RawMessage, error) {
	switch req.Op {
	case wire.OpDepthStart:
		var start wire.DepthStart
		if len(req.Data) > 0 {
			if err := wire.Unmarshal(req.Data, &start); err != nil {
				return nil, err
			}
		}
		if s.stream != nil {
			return nil, nil
		}
		streams := make([]depth.StreamProfile, len(start.Streams))
		for i, sp := range start.Streams {
			streams[i] = depth.StreamProfile{Kind: depth.StreamKind(sp.Kind), Width: sp.Width, Height: sp.Height, FPS: sp.FPS}
		}
		stream, err := s.driver.Start(ctx, s.device, streams)
		if err != nil {
			return nil, err
		}
		s.stream = stream
		return nil, nil

	case wire.OpDepthWait:
		if s.stream == nil {
			return nil, errNotOpen
		}
		fs, err := s.stream.WaitForFrames(ctx)
		if err != nil {
			return nil, err
		}
		s.metrics.FramesServed.WithLabelValues(wire.SurfaceDepth).Inc()
		return reply(wire.DepthFrameSet{Depth: videoFrame(fs.Depth), Color: videoFrame(fs.Color)})

	case wire.OpDepthStop:
		if s.stream == nil {
			return nil, nil
		}
		err := s.stream.Stop()
		s.stream = nil
		return nil, err

	default:
		return nil, unknownOp(req.Op)
	}
}

func videoFrame(f depth.Frame) wire.VideoFrame {
	return wire.VideoFrame{
		Seq:         f.Seq,
		Width:       f.Width,
		Height:      f.Height,
		Pixels:      f.Data,
		TimestampNS: f.Timestamp.UnixNano(),
	}
}

func (s *depthSession) close() {
	if s.stream != nil {
		_ = s.stream.Stop()
	}
}
