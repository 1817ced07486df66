// Package install tracks which API surfaces have had routing bound into
// them. Binding happens through explicit registration at startup rather
// than by rewriting library internals, but the lifecycle the original
// interception mechanism had is preserved: a surface whose underlying
// driver is already resident is bound synchronously, one whose driver
// arrives later gets a one-shot hook that fires at registration time and
// then removes itself. Repeat installs are no-ops.
package install

import (
	"fmt"
	"sync"
)

// State is the installation lifecycle of one API surface.
type State int

const (
	// Uninstalled: routing not bound; the plain local surface is untouched.
	Uninstalled State = iota
	// Installing: a one-shot hook is registered, waiting for the surface's
	// driver to become resident.
	Installing
	// Installed: routing is bound; stays for the process lifetime.
	Installed
)

func (s State) String() string {
	switch s {
	case Installing:
		return "installing"
	case Installed:
		return "installed"
	default:
		return "uninstalled"
	}
}

// Controller holds the process-wide installation records. The zero value is
// not usable; construct with NewController. A single Default controller
// serves the package-level surface bindings, but tests can run isolated
// controllers.
type Controller struct {
	mu      sync.Mutex
	states  map[string]State
	pending map[string]func() error
}

// NewController creates an empty controller.
func NewController() *Controller {
	return &Controller{
		states:  make(map[string]State),
		pending: make(map[string]func() error),
	}
}

// Default is the process-wide controller used by the surface packages.
var Default = NewController()

// Install binds routing into the named surface. ready reports whether the
// surface's underlying implementation is already resident: when true, bind
// runs synchronously and the surface becomes Installed; when false, bind is
// recorded as a one-shot hook fired by NotifyReady.
//
// Installing an already-installed surface is a no-op, as is installing while
// a hook is pending; at most one hook exists per surface at any time.
func (c *Controller) Install(surface string, ready bool, bind func() error) error {
	c.mu.Lock()
	switch c.states[surface] {
	case Installed, Installing:
		c.mu.Unlock()
		return nil
	}

	if !ready {
		c.states[surface] = Installing
		c.pending[surface] = bind
		c.mu.Unlock()
		return nil
	}

	c.states[surface] = Installing
	c.mu.Unlock()

	if err := bind(); err != nil {
		c.mu.Lock()
		c.states[surface] = Uninstalled
		c.mu.Unlock()
		return fmt.Errorf("install %s: %w", surface, err)
	}

	c.mu.Lock()
	c.states[surface] = Installed
	c.mu.Unlock()
	return nil
}

// NotifyReady fires the surface's pending hook, if any, exactly once and
// removes it. Surfaces call this when their local driver registers. Calling
// it with no pending hook is harmless.
func (c *Controller) NotifyReady(surface string) error {
	c.mu.Lock()
	bind, ok := c.pending[surface]
	if ok {
		delete(c.pending, surface)
	}
	c.mu.Unlock()

	if !ok {
		return nil
	}

	if err := bind(); err != nil {
		c.mu.Lock()
		c.states[surface] = Uninstalled
		c.mu.Unlock()
		return fmt.Errorf("install %s: %w", surface, err)
	}

	c.mu.Lock()
	c.states[surface] = Installed
	c.mu.Unlock()
	return nil
}

// State returns the surface's installation state.
func (c *Controller) State(surface string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[surface]
}

// PendingHooks counts surfaces waiting on NotifyReady. Test observable for
// the one-hook-per-surface invariant.
func (c *Controller) PendingHooks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Reset clears all records. Test helper; never used at runtime, where
// installation records live for the process lifetime.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.states = make(map[string]State)
	c.pending = make(map[string]func() error)
	c.mu.Unlock()
}
