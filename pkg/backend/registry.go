package backend

import (
	"context"
	"sync"
)

// Factory constructs a backend object of type T for one target, using the
// surface-specific configuration C. Construction may perform device or
// network I/O; failures propagate to the caller as constructor failures.
type Factory[T, C any] func(ctx context.Context, tgt Target, cfg C) (T, error)

// Registry holds the candidate backend factories for one API surface. Zero,
// one, or both factories may be present; each is registered once its
// underlying implementation becomes available.
type Registry[T, C any] struct {
	surface string

	mu     sync.RWMutex
	local  Factory[T, C]
	remote Factory[T, C]

	// onLocal hooks fire once when the local factory registers, then are
	// dropped. Used by the installation controller's deferred path.
	onLocal []func()
}

// NewRegistry creates an empty registry for the named surface.
func NewRegistry[T, C any](surface string) *Registry[T, C] {
	return &Registry[T, C]{surface: surface}
}

// Surface returns the API surface name the registry serves.
func (r *Registry[T, C]) Surface() string { return r.surface }

// RegisterLocal installs the local driver factory. Registering twice is an
// error; the first registration wins and fires any pending hooks.
func (r *Registry[T, C]) RegisterLocal(f Factory[T, C]) error {
	r.mu.Lock()
	if r.local != nil {
		r.mu.Unlock()
		return ErrAlreadyRegistered
	}
	r.local = f
	hooks := r.onLocal
	r.onLocal = nil
	r.mu.Unlock()

	for _, h := range hooks {
		h()
	}
	return nil
}

// RegisterRemote installs the remote transport factory. Replacing an
// existing remote factory is allowed so a configuration reload can swap the
// relay without restarting the process.
func (r *Registry[T, C]) RegisterRemote(f Factory[T, C]) {
	r.mu.Lock()
	r.remote = f
	r.mu.Unlock()
}

// OnLocalRegistered runs fn as soon as a local factory exists: immediately
// when one is already registered, otherwise once at registration time.
func (r *Registry[T, C]) OnLocalRegistered(fn func()) {
	r.mu.Lock()
	if r.local != nil {
		r.mu.Unlock()
		fn()
		return
	}
	r.onLocal = append(r.onLocal, fn)
	r.mu.Unlock()
}

// Has reports whether a factory for the given kind is registered.
func (r *Registry[T, C]) Has(k Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if k == KindRemote {
		return r.remote != nil
	}
	return r.local != nil
}

// Resolve picks the factory for the target's class and constructs a backend
// handle. When the preferred factory is absent the other one serves instead
// (degraded routing beats hard failure); when neither exists the error names
// the missing dependency.
func (r *Registry[T, C]) Resolve(ctx context.Context, tgt Target, cfg C) (Handle[T], error) {
	want := kindFor(tgt.Class)

	r.mu.RLock()
	f, kind := r.pick(want)
	r.mu.RUnlock()

	if f == nil {
		return Handle[T]{}, &UnavailableError{Surface: r.surface, Missing: dependencyName(want)}
	}

	v, err := f(ctx, tgt, cfg)
	if err != nil {
		return Handle[T]{}, err
	}
	return Handle[T]{kind: kind, value: v}, nil
}

func (r *Registry[T, C]) pick(want Kind) (Factory[T, C], Kind) {
	if want == KindRemote {
		if r.remote != nil {
			return r.remote, KindRemote
		}
		return r.local, KindLocal
	}
	if r.local != nil {
		return r.local, KindLocal
	}
	return r.remote, KindRemote
}

// Reset drops both factories and pending hooks. Test helper.
func (r *Registry[T, C]) Reset() {
	r.mu.Lock()
	r.local = nil
	r.remote = nil
	r.onLocal = nil
	r.mu.Unlock()
}
