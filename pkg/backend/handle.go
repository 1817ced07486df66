package backend

// Handle is the closed tagged union over the two backend variants. A handle
// wraps exactly one active backend object, Local xor Remote, chosen at
// construction; the choice never changes for the handle's lifetime. Both
// variants satisfy the owning surface's declared interface type, so an
// object from either backend passes the surface's type-membership check.
type Handle[T any] struct {
	kind  Kind
	value T
}

// NewHandle builds a handle for tests and adapters that bypass a registry.
func NewHandle[T any](kind Kind, value T) Handle[T] {
	return Handle[T]{kind: kind, value: value}
}

// Kind reports which variant is active.
func (h Handle[T]) Kind() Kind { return h.kind }

// Value returns the active backend object.
func (h Handle[T]) Value() T { return h.value }

// Local returns the backend object when the Local variant is active.
func (h Handle[T]) Local() (T, bool) {
	var zero T
	if h.kind != KindLocal {
		return zero, false
	}
	return h.value, true
}

// Remote returns the backend object when the Remote variant is active.
func (h Handle[T]) Remote() (T, bool) {
	var zero T
	if h.kind != KindRemote {
		return zero, false
	}
	return h.value, true
}
