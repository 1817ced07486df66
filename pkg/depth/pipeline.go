package depth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/devlinkhq/devlink/pkg/backend"
	"github.com/devlinkhq/devlink/pkg/bounded"
	"github.com/devlinkhq/devlink/pkg/install"
	"github.com/devlinkhq/devlink/pkg/telemetry"
)

const surface = "depth"

var (
	registry = backend.NewRegistry[Stream, []StreamProfile](surface)
	executor = bounded.NewExecutor(0)
)

// RemoteOpener is the remote backend's construction entry point, satisfied
// by the transport connector.
type RemoteOpener interface {
	StartDepth(ctx context.Context, tgt backend.Target, streams []StreamProfile) (Stream, error)
}

// RegisterLocalDriver installs the hardware-facing pipeline driver. Hosts
// call this once; a second registration is rejected. Registration marks the
// surface resident, completing any deferred install.
func RegisterLocalDriver(d Driver) error {
	err := registry.RegisterLocal(func(ctx context.Context, tgt backend.Target, streams []StreamProfile) (Stream, error) {
		return d.Start(ctx, tgt.Identifier, streams)
	})
	if err != nil {
		return fmt.Errorf("depth: %w", err)
	}
	return install.Default.NotifyReady(surface)
}

// Install binds remote routing into the surface. Idempotent: repeat calls
// while installed are no-ops.
func Install(ro RemoteOpener) error {
	return install.Default.Install(surface, true, func() error {
		registry.RegisterRemote(func(ctx context.Context, tgt backend.Target, streams []StreamProfile) (Stream, error) {
			return ro.StartDepth(ctx, tgt, streams)
		})
		return nil
	})
}

// SetTimeout adjusts the deadline applied to remote pipeline calls.
func SetTimeout(d time.Duration) error { return executor.SetDeadline(d) }

// ErrNotStarted is returned when frames are requested from a pipeline that
// has not been started.
var ErrNotStarted = errors.New("depth: pipeline not started")

// ErrAlreadyStarted is returned by Start on a pipeline that already runs.
var ErrAlreadyStarted = errors.New("depth: pipeline already started")

// Pipeline drives one depth session: Start with a configuration, pull frame
// sets, Stop. Routing happens at Start from the configured device, not at
// construction, so one pipeline value works unchanged against local and
// remote devices.
type Pipeline interface {
	Start(ctx context.Context, cfg *Config) error
	WaitForFrames(ctx context.Context) (FrameSet, error)
	Stop() error
}

// NewPipeline creates an idle pipeline.
func NewPipeline() Pipeline { return &pipeline{} }

type pipeline struct {
	mu      sync.Mutex
	handle  backend.Handle[Stream]
	started bool
}

func (p *pipeline) Start(ctx context.Context, cfg *Config) error {
	if cfg == nil {
		cfg = NewConfig()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrAlreadyStarted
	}

	tgt, err := cfg.target()
	if err != nil {
		return fmt.Errorf("%s: %w", surface, err)
	}
	h, err := p.resolve(ctx, tgt, cfg.streams)
	telemetry.RecordDispatch(ctx, telemetry.DispatchMetrics{
		Surface:  surface,
		Class:    tgt.Class.String(),
		Backend:  string(h.Kind()),
		Fallback: err == nil && tgt.Remote() != (h.Kind() == backend.KindRemote),
		Err:      err,
	})
	if err != nil {
		return err
	}

	if h.Kind() == backend.KindRemote {
		slog.Debug("depth pipeline routed to remote backend", "device", tgt.Identifier, "class", tgt.Class.String())
	}
	p.handle = h
	p.started = true
	return nil
}

// resolve constructs the backend stream. Remote starts carry real network
// round trips, so they run under the surface deadline.
func (p *pipeline) resolve(ctx context.Context, tgt backend.Target, streams []StreamProfile) (backend.Handle[Stream], error) {
	if tgt.Remote() {
		return bounded.Run(ctx, executor, "depth.start", func(ctx context.Context) (backend.Handle[Stream], error) {
			return registry.Resolve(ctx, tgt, streams)
		})
	}
	return registry.Resolve(ctx, tgt, streams)
}

func (p *pipeline) WaitForFrames(ctx context.Context) (FrameSet, error) {
	p.mu.Lock()
	started, h := p.started, p.handle
	p.mu.Unlock()
	if !started {
		return FrameSet{}, ErrNotStarted
	}

	if h.Kind() == backend.KindRemote {
		return bounded.Run(ctx, executor, "depth.wait_for_frames", h.Value().WaitForFrames)
	}
	return h.Value().WaitForFrames(ctx)
}

// Stop shuts the active backend down. Stopping an idle pipeline is a no-op,
// and teardown failures are suppressed: best-effort cleanup must not
// propagate backend-specific stop errors.
func (p *pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return nil
	}
	p.started = false
	if err := p.handle.Value().Stop(); err != nil {
		slog.Debug("depth stop error suppressed", "error", err)
	}
	p.handle = backend.Handle[Stream]{}
	return nil
}
