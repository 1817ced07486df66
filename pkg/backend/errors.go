package backend

import (
	"errors"
	"fmt"
)

// Common backend errors.
var (
	ErrBackendUnavailable = errors.New("no backend available")
	ErrAlreadyRegistered  = errors.New("factory already registered")
	ErrUnknownTransport   = errors.New("unknown transport")
)

// dependencyName maps a backend kind to the dependency a caller has to
// provide before that kind can serve.
func dependencyName(k Kind) string {
	if k == KindRemote {
		return "remote transport"
	}
	return "local driver"
}

// UnavailableError reports that neither backend factory could serve a
// construction call. Missing names the dependency that would have handled
// the requested class.
type UnavailableError struct {
	Surface string
	Missing string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %s (%s not registered)", e.Surface, ErrBackendUnavailable, e.Missing)
}

func (e *UnavailableError) Unwrap() error {
	return ErrBackendUnavailable
}
