package serial

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/devlinkhq/devlink/pkg/backend"
	"github.com/devlinkhq/devlink/pkg/bounded"
	"github.com/devlinkhq/devlink/pkg/install"
	"github.com/devlinkhq/devlink/pkg/telemetry"
)

const surface = "serial"

// RemoteOpener is the remote backend's construction entry point. ListPorts
// is the second tier of the port listing: consulted only when no local
// driver is registered.
type RemoteOpener interface {
	OpenPort(ctx context.Context, tgt backend.Target, cfg Config) (Port, error)
	ListPorts(ctx context.Context) ([]PortInfo, error)
}

var (
	registry = backend.NewRegistry[Port, Config](surface)
	executor = bounded.NewExecutor(0)

	mu           sync.Mutex
	localDriver  Driver
	remoteLister func(ctx context.Context) ([]PortInfo, error)
)

// RegisterLocalDriver installs the hardware-facing serial driver.
func RegisterLocalDriver(d Driver) error {
	err := registry.RegisterLocal(func(ctx context.Context, tgt backend.Target, cfg Config) (Port, error) {
		return d.Open(ctx, tgt.Identifier, cfg.stripForLocal())
	})
	if err != nil {
		return fmt.Errorf("serial: %w", err)
	}
	mu.Lock()
	localDriver = d
	mu.Unlock()
	return install.Default.NotifyReady(surface)
}

// Install binds remote routing into the surface. Idempotent.
func Install(ro RemoteOpener) error {
	return install.Default.Install(surface, true, func() error {
		registry.RegisterRemote(func(ctx context.Context, tgt backend.Target, cfg Config) (Port, error) {
			return ro.OpenPort(ctx, tgt, cfg.stripForRemote())
		})
		mu.Lock()
		remoteLister = ro.ListPorts
		mu.Unlock()
		return nil
	})
}

// SetTimeout adjusts the deadline applied to remote port calls.
func SetTimeout(d time.Duration) error { return executor.SetDeadline(d) }

// Open constructs a port for the given identifier: a device path such as
// "/dev/ttyUSB0", a 64-hex peer ID, or a relay path.
func Open(ctx context.Context, port string, opts ...Option) (Port, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	tgt, err := backend.NewTarget(port, backend.Transport(cfg.Transport))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", surface, err)
	}
	h, err := registry.Resolve(ctx, tgt, cfg)
	telemetry.RecordDispatch(ctx, telemetry.DispatchMetrics{
		Surface:  surface,
		Class:    tgt.Class.String(),
		Backend:  string(h.Kind()),
		Fallback: err == nil && tgt.Remote() != (h.Kind() == backend.KindRemote),
		Err:      err,
	})
	if err != nil {
		return nil, err
	}
	return &portHandle{handle: h}, nil
}

// ListPorts enumerates available ports with an explicit two-tier lookup:
// the local driver answers when registered, else the remote relay listing.
func ListPorts(ctx context.Context) ([]PortInfo, error) {
	mu.Lock()
	d, rl := localDriver, remoteLister
	mu.Unlock()

	if d != nil {
		return d.ListPorts(ctx)
	}
	if rl != nil {
		return rl(ctx)
	}
	return nil, &backend.UnavailableError{Surface: surface, Missing: "local driver"}
}

// portHandle is the routing handle: one active backend, remote I/O bounded.
type portHandle struct {
	handle backend.Handle[Port]
}

func (p *portHandle) remote() bool { return p.handle.Kind() == backend.KindRemote }

// Read on a remote port runs bounded against a worker-owned buffer. The
// caller's slice is written only after the call succeeds, so a worker
// abandoned at the deadline can never touch memory the caller has taken
// back.
func (p *portHandle) Read(buf []byte) (int, error) {
	if p.remote() {
		data, err := bounded.Run(context.Background(), executor, "serial.read", func(ctx context.Context) ([]byte, error) {
			scratch := make([]byte, len(buf))
			n, err := readInto(ctx, p.handle.Value(), scratch)
			if err != nil {
				return nil, err
			}
			return scratch[:n], nil
		})
		if err != nil {
			return 0, err
		}
		return copy(buf, data), nil
	}
	return p.handle.Value().Read(buf)
}

func (p *portHandle) Write(buf []byte) (int, error) {
	if p.remote() {
		owned := append([]byte(nil), buf...)
		return bounded.Run(context.Background(), executor, "serial.write", func(ctx context.Context) (int, error) {
			return writeFrom(ctx, p.handle.Value(), owned)
		})
	}
	return p.handle.Value().Write(buf)
}

// readInto and writeFrom thread the bounded context through when the
// backend supports cancellation.
func readInto(ctx context.Context, port Port, p []byte) (int, error) {
	if crw, ok := port.(ContextReadWriter); ok {
		return crw.ReadContext(ctx, p)
	}
	return port.Read(p)
}

func writeFrom(ctx context.Context, port Port, p []byte) (int, error) {
	if crw, ok := port.(ContextReadWriter); ok {
		return crw.WriteContext(ctx, p)
	}
	return port.Write(p)
}

func (p *portHandle) Flush() error {
	return p.handle.Value().Flush()
}

// Close suppresses backend close errors as best-effort cleanup.
func (p *portHandle) Close() error {
	if err := p.handle.Value().Close(); err != nil {
		slog.Debug("serial close error suppressed", "error", err)
	}
	return nil
}
