// Package bridge implements the relay daemon: it accepts peer sessions,
// validates their handshakes, and serves local devices over the wire
// protocol. One bridge exports the drivers it was configured with; surfaces
// without a driver reject their handshakes.
package bridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/devlinkhq/devlink/internal/wire"
	"github.com/devlinkhq/devlink/pkg/camera"
	"github.com/devlinkhq/devlink/pkg/canbus"
	"github.com/devlinkhq/devlink/pkg/depth"
	"github.com/devlinkhq/devlink/pkg/serial"
	"github.com/devlinkhq/devlink/pkg/telemetry"
)

// Drivers are the local backends a bridge exports. Nil entries disable the
// surface.
type Drivers struct {
	Camera camera.Driver
	CAN    canbus.Driver
	Serial serial.Driver
	Depth  depth.Driver
}

// Server is one running bridge.
type Server struct {
	drivers Drivers
	metrics *telemetry.BridgeMetrics
	log     *slog.Logger

	// ctx ends when the server closes; blocking device calls inherit it so
	// shutdown can unstick them.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// NewServer creates a bridge exporting the given drivers.
func NewServer(drivers Drivers, metrics *telemetry.BridgeMetrics) *Server {
	if metrics == nil {
		metrics = telemetry.NewBridgeMetrics()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		drivers: drivers,
		metrics: metrics,
		log:     slog.Default().With("component", "bridge"),
		ctx:     ctx,
		cancel:  cancel,
		conns:   make(map[net.Conn]struct{}),
	}
}

// Metrics returns the server's Prometheus collectors.
func (s *Server) Metrics() *telemetry.BridgeMetrics { return s.metrics }

// Serve accepts sessions on l until Close. It always returns a non-nil
// error; after Close it returns net.ErrClosed.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return net.ErrClosed
	}
	s.listener = l
	s.mu.Unlock()

	for {
		nc, err := l.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return net.ErrClosed
			}
			return err
		}

		s.mu.Lock()
		s.conns[nc] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(nc)
			s.mu.Lock()
			delete(s.conns, nc)
			s.mu.Unlock()
		}()
	}
}

// ListenAndServe listens on addr and serves until Close.
func (s *Server) ListenAndServe(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.log.Info("bridge listening", "addr", l.Addr().String())
	return s.Serve(l)
}

// Addr returns the bound listen address, or "" before Serve.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close stops accepting, tears down live sessions, and waits for their
// handlers to drain.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cancel()
	l := s.listener
	for nc := range s.conns {
		nc.Close()
	}
	s.mu.Unlock()

	var err error
	if l != nil {
		err = l.Close()
	}
	s.wg.Wait()
	return err
}

// handle runs one session: handshake, then the request loop for whichever
// surface the hello named.
func (s *Server) handle(nc net.Conn) {
	defer nc.Close()
	conn := wire.NewConn(nc)

	var hello wire.Hello
	if err := conn.Recv(&hello); err != nil {
		s.log.Debug("handshake read failed", "error", err)
		return
	}

	sess, reject := s.sessionFor(hello)
	if reject != "" {
		_ = conn.Send(wire.HelloAck{OK: false, Error: reject})
		s.log.Info("session rejected", "surface", hello.Surface, "target", hello.Target(), "reason", reject)
		return
	}
	if err := conn.Send(wire.HelloAck{OK: true}); err != nil {
		return
	}

	s.metrics.SessionsTotal.WithLabelValues(hello.Surface).Inc()
	s.metrics.SessionsActive.Inc()
	defer s.metrics.SessionsActive.Dec()
	defer sess.close()

	log := s.log.With("surface", hello.Surface, "session", hello.Session.String())
	log.Info("session open", "target", hello.Target())

	for {
		var req wire.Request
		if err := conn.Recv(&req); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Debug("session read failed", "error", err)
			}
			return
		}
		if req.Op == wire.OpClose {
			log.Info("session closed by peer")
			return
		}

		timer := s.observe(hello.Surface, req.Op)
		data, err := sess.serve(s.ctx, req)
		timer()

		resp := wire.Response{OK: err == nil, Data: data}
		if err != nil {
			resp.Error = err.Error()
		}
		if err := conn.Send(resp); err != nil {
			log.Debug("session write failed", "error", err)
			return
		}
		if err == nil {
			s.metrics.BytesServed.WithLabelValues(hello.Surface).Add(float64(len(data)))
		}
	}
}

func (s *Server) observe(surface, op string) func() {
	start := time.Now()
	return func() {
		s.metrics.RequestDuration.WithLabelValues(surface, op).Observe(time.Since(start).Seconds())
	}
}

// session serves the requests of one surface.
type session interface {
	serve(ctx context.Context, req wire.Request) (wire.RawMessage, error)
	close()
}

// sessionFor picks the surface handler, or a rejection reason.
func (s *Server) sessionFor(hello wire.Hello) (session, string) {
	switch hello.Surface {
	case wire.SurfaceCamera:
		if s.drivers.Camera == nil {
			return nil, "camera not served by this bridge"
		}
		return &cameraSession{driver: s.drivers.Camera, device: deviceName(hello), metrics: s.metrics}, ""
	case wire.SurfaceCANBus:
		if s.drivers.CAN == nil {
			return nil, "canbus not served by this bridge"
		}
		return &canSession{driver: s.drivers.CAN, channel: deviceName(hello)}, ""
	case wire.SurfaceSerial:
		if s.drivers.Serial == nil {
			return nil, "serial not served by this bridge"
		}
		return &serialSession{driver: s.drivers.Serial, device: deviceName(hello)}, ""
	case wire.SurfaceDepth:
		if s.drivers.Depth == nil {
			return nil, "depth not served by this bridge"
		}
		return &depthSession{driver: s.drivers.Depth, device: deviceName(hello), metrics: s.metrics}, ""
	default:
		return nil, "unknown surface " + hello.Surface
	}
}

// deviceName maps the hello target onto a local device identifier. Peer
// sessions address this node, so they get the default device; relay paths
// name the device in their final segment.
func deviceName(hello wire.Hello) string {
	if hello.Path == "" {
		return ""
	}
	if i := strings.LastIndexByte(hello.Path, '/'); i >= 0 {
		return hello.Path[i+1:]
	}
	return hello.Path
}
