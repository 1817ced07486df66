package camera

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/devlinkhq/devlink/pkg/backend"
	"github.com/devlinkhq/devlink/pkg/bounded"
	"github.com/devlinkhq/devlink/pkg/install"
	"github.com/devlinkhq/devlink/pkg/telemetry"
)

const surface = "camera"

var (
	registry = backend.NewRegistry[Capture, Options](surface)
	executor = bounded.NewExecutor(0)
)

// RemoteOpener is the remote backend's construction entry point, satisfied
// by the transport connector.
type RemoteOpener interface {
	OpenCamera(ctx context.Context, tgt backend.Target, opts Options) (Capture, error)
}

// RegisterLocalDriver installs the hardware-facing capture driver. Hosts
// call this once; a second registration is rejected. Registration marks the
// surface resident, completing any deferred install.
func RegisterLocalDriver(d Driver) error {
	err := registry.RegisterLocal(func(ctx context.Context, tgt backend.Target, opts Options) (Capture, error) {
		return d.Open(ctx, tgt.Identifier, opts.stripForLocal())
	})
	if err != nil {
		return fmt.Errorf("camera: %w", err)
	}
	return install.Default.NotifyReady(surface)
}

// Install binds remote routing into the surface. Idempotent: repeat calls
// while installed are no-ops.
func Install(ro RemoteOpener) error {
	return install.Default.Install(surface, true, func() error {
		registry.RegisterRemote(func(ctx context.Context, tgt backend.Target, opts Options) (Capture, error) {
			return ro.OpenCamera(ctx, tgt, opts.stripForRemote())
		})
		return nil
	})
}

// SetTimeout adjusts the deadline applied to remote capture calls.
func SetTimeout(d time.Duration) error { return executor.SetDeadline(d) }

// Open constructs a capture for source, which may be an integer device
// index, a device path, a 64-hex peer ID, or a relay path. The backend is
// chosen once here and never revisited for the capture's lifetime.
func Open(ctx context.Context, source any, opts ...Option) (Capture, error) {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}

	id, err := sourceID(source)
	if err != nil {
		return nil, err
	}

	tgt, err := backend.NewTarget(id, backend.Transport(o.Transport))
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

	if h.Kind() == backend.KindRemote {
		slog.Debug("camera routed to remote backend", "source", id, "class", tgt.Class.String())
	}
	return &capture{handle: h}, nil
}

// sourceID normalizes the caller-supplied source. An absent source selects
// the default local device.
func sourceID(source any) (string, error) {
	switch v := source.(type) {
	case nil:
		return "", nil
	case int:
		return strconv.Itoa(v), nil
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("camera: unsupported source type %T", source)
	}
}

// capture is the routing handle handed to callers. It wraps exactly one
// active backend; remote calls run bounded.
type capture struct {
	handle backend.Handle[Capture]
}

func (c *capture) remote() bool { return c.handle.Kind() == backend.KindRemote }

func (c *capture) Read(ctx context.Context) (Frame, error) {
	if c.remote() {
		return bounded.Run(ctx, executor, "camera.read", c.handle.Value().Read)
	}
	return c.handle.Value().Read(ctx)
}

func (c *capture) Grab(ctx context.Context) error {
	if c.remote() {
		_, err := bounded.Run(ctx, executor, "camera.grab", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.handle.Value().Grab(ctx)
		})
		return err
	}
	return c.handle.Value().Grab(ctx)
}

func (c *capture) Retrieve() (Frame, error) {
	return c.handle.Value().Retrieve()
}

func (c *capture) IsOpened() bool {
	return c.handle.Value().IsOpened()
}

// Release frees the active backend. Teardown failures are suppressed:
// best-effort cleanup must not propagate backend-specific close errors.
func (c *capture) Release() error {
	if err := c.handle.Value().Release(); err != nil {
		slog.Debug("camera release error suppressed", "error", err)
	}
	return nil
}
