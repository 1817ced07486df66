// Package bounded runs potentially-blocking backend calls under an enforced
// deadline. Remote device operations have no native timeout in the original
// call surfaces, so every remote read/recv/wait goes through an Executor:
// the call runs on its own worker, the caller waits up to the configured
// deadline, and on expiry the worker's context is cancelled and a
// TimeoutError is returned.
//
// Cancellation is best-effort. A backend that ignores its context leaves the
// worker running until the call eventually completes or the process exits;
// the result channel is buffered so an abandoned worker never leaks on send.
package bounded

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/devlinkhq/devlink/pkg/telemetry"
)

// DefaultDeadline bounds remote calls when no explicit deadline is
// configured. Overridable process-wide via the DEVLINK_TIMEOUT environment
// variable (a Go duration like "30s", or bare seconds like "7.5").
const DefaultDeadline = 15 * time.Second

// TimeoutError reports a bounded call that hit its deadline. It names the
// operation and carries the deadline that was in force so callers can tell
// the user what to adjust.
type TimeoutError struct {
	Op       string
	Deadline time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %s (set DEVLINK_TIMEOUT or the surface timeout to adjust)", e.Op, e.Deadline)
}

// Timeout reports true; TimeoutError satisfies the net.Error timeout
// convention so transport-agnostic callers can detect it.
func (e *TimeoutError) Timeout() bool { return true }

// Executor enforces one configurable deadline, typically one per API
// surface. The deadline is adjustable at runtime (config hot reload).
type Executor struct {
	mu       sync.RWMutex
	deadline time.Duration
}

// NewExecutor creates an executor. A non-positive deadline selects the
// process default (DEVLINK_TIMEOUT or DefaultDeadline).
func NewExecutor(deadline time.Duration) *Executor {
	if deadline <= 0 {
		deadline = EnvDeadline()
	}
	return &Executor{deadline: deadline}
}

// Deadline returns the currently configured deadline.
func (e *Executor) Deadline() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.deadline
}

// SetDeadline updates the deadline. Calls already in flight keep the
// deadline they started with.
func (e *Executor) SetDeadline(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("deadline must be positive, got %s", d)
	}
	e.mu.Lock()
	e.deadline = d
	e.mu.Unlock()
	return nil
}

// EnvDeadline resolves the process-wide default deadline from
// DEVLINK_TIMEOUT, accepting either a duration string or bare seconds.
func EnvDeadline() time.Duration {
	raw := os.Getenv("DEVLINK_TIMEOUT")
	if raw == "" {
		return DefaultDeadline
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	return DefaultDeadline
}

// Run executes fn under the executor's deadline. The operation name appears
// in the timeout error and in telemetry. Caller cancellation (ctx) is
// honored independently of the deadline.
func Run[T any](ctx context.Context, e *Executor, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	deadline := e.Deadline()

	callCtx, cancel := context.WithCancel(ctx)

	type outcome struct {
		v   T
		err error
	}
	done := make(chan outcome, 1)
	start := time.Now()

	go func() {
		v, err := fn(callCtx)
		done <- outcome{v: v, err: err}
	}()

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case out := <-done:
		cancel()
		telemetry.RecordBoundedCall(ctx, op, time.Since(start), false)
		return out.v, out.err
	case <-ctx.Done():
		cancel()
		return zero, ctx.Err()
	case <-timer.C:
		// Request cancellation and abandon the worker; it is reclaimed
		// whenever the backend finally returns.
		cancel()
		telemetry.RecordBoundedCall(ctx, op, time.Since(start), true)
		return zero, &TimeoutError{Op: op, Deadline: deadline}
	}
}
