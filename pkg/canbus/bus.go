package canbus

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

const surface = "canbus"

// Bus is the declared bus type, satisfied by local and remote backends and
// by the routing handle itself.
type Bus interface {
	// Send transmits one frame.
	Send(ctx context.Context, f Frame) error
	// Recv blocks for the next received frame.
	Recv(ctx context.Context) (Frame, error)
	// Shutdown releases the bus.
	Shutdown() error
}

// Options configures a construction call. Interface names the local socket
// driver flavor ("socketcan", "virtual"); it is meaningful only locally and
// is stripped before a remote construction, matching the local surface's
// convention of passing it alongside the channel.
type Options struct {
	Interface string
	Bitrate   int
	FD        bool
	Transport string
}

// Option mutates Options.
type Option func(*Options)

// WithInterface selects the local driver flavor. Local-only.
func WithInterface(name string) Option {
	return func(o *Options) { o.Interface = name }
}

// WithBitrate sets the bus bitrate.
func WithBitrate(b int) Option {
	return func(o *Options) { o.Bitrate = b }
}

// WithFD enables CAN FD framing.
func WithFD() Option {
	return func(o *Options) { o.FD = true }
}

// WithTransport forces the remote backend, skipping classification.
func WithTransport(t string) Option {
	return func(o *Options) { o.Transport = t }
}

func (o Options) stripForRemote() Options {
	o.Interface = ""
	return o
}

func (o Options) stripForLocal() Options {
	o.Transport = ""
	return o
}

// Driver is the local bus backend, registered once by the host.
type Driver interface {
	Open(ctx context.Context, channel string, opts Options) (Bus, error)
	Interfaces(ctx context.Context) ([]InterfaceInfo, error)
}

// InterfaceInfo describes one local CAN interface.
type InterfaceInfo struct {
	Name string
	Up   bool
}

// RemoteOpener is the remote backend's construction entry point.
type RemoteOpener interface {
	OpenBus(ctx context.Context, tgt backend.Target, opts Options) (Bus, error)
}

var (
	registry = backend.NewRegistry[Bus, Options](surface)
	executor = bounded.NewExecutor(0)

	mu          sync.Mutex
	localDriver Driver
)

// RegisterLocalDriver installs the hardware-facing bus driver.
func RegisterLocalDriver(d Driver) error {
	err := registry.RegisterLocal(func(ctx context.Context, tgt backend.Target, opts Options) (Bus, error) {
		return d.Open(ctx, tgt.Identifier, opts.stripForLocal())
	})
	if err != nil {
		return fmt.Errorf("canbus: %w", err)
	}
	mu.Lock()
	localDriver = d
	mu.Unlock()
	return install.Default.NotifyReady(surface)
}

// Install binds remote routing into the surface. Idempotent.
func Install(ro RemoteOpener) error {
	return install.Default.Install(surface, true, func() error {
		registry.RegisterRemote(func(ctx context.Context, tgt backend.Target, opts Options) (Bus, error) {
			return ro.OpenBus(ctx, tgt, opts.stripForRemote())
		})
		return nil
	})
}

// SetTimeout adjusts the deadline applied to remote bus calls.
func SetTimeout(d time.Duration) error { return executor.SetDeadline(d) }

// Open constructs a bus for channel: a local interface name like "can0", a
// 64-hex peer ID, or a relay path.
func Open(ctx context.Context, channel string, opts ...Option) (Bus, error) {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}

	tgt, err := backend.NewTarget(channel, backend.Transport(o.Transport))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", surface, err)
	}
	h, err := registry.Resolve(ctx, tgt, o)
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
	return &bus{handle: h}, nil
}

// Interfaces lists local CAN interfaces via the registered driver.
func Interfaces(ctx context.Context) ([]InterfaceInfo, error) {
	mu.Lock()
	d := localDriver
	mu.Unlock()
	if d == nil {
		return nil, &backend.UnavailableError{Surface: surface, Missing: "local driver"}
	}
	return d.Interfaces(ctx)
}

// bus is the routing handle: one active backend, remote receives bounded.
type bus struct {
	handle backend.Handle[Bus]
}

func (b *bus) remote() bool { return b.handle.Kind() == backend.KindRemote }

func (b *bus) Send(ctx context.Context, f Frame) error {
	if b.remote() {
		_, err := bounded.Run(ctx, executor, "can.send", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, b.handle.Value().Send(ctx, f)
		})
		return err
	}
	return b.handle.Value().Send(ctx, f)
}

func (b *bus) Recv(ctx context.Context) (Frame, error) {
	if b.remote() {
		return bounded.Run(ctx, executor, "can.recv", b.handle.Value().Recv)
	}
	return b.handle.Value().Recv(ctx)
}

// Shutdown suppresses backend close errors; releasing one backend must not
// be able to fail the caller's teardown.
func (b *bus) Shutdown() error {
	if err := b.handle.Value().Shutdown(); err != nil {
		slog.Debug("canbus shutdown error suppressed", "error", err)
	}
	return nil
}
