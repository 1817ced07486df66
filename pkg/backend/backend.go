// Package backend holds the per-surface backend registries that route
// construction calls to either a local driver or the remote transport.
// Backends are injected explicitly at startup (a registry per API surface)
// rather than by rewriting anything at load time.
package backend

import (
	"fmt"

	"github.com/devlinkhq/devlink/pkg/route"
)

// Kind names which backend variant an object came from.
type Kind string

const (
	KindLocal  Kind = "local"
	KindRemote Kind = "remote"
)

// Transport selects the remote transport explicitly. When set on a
// construction call it forces the remote backend regardless of what the
// identifier looks like.
type Transport string

const (
	// TransportAuto defers to identifier classification.
	TransportAuto Transport = ""
	// TransportPeer dials a peer by node ID.
	TransportPeer Transport = "peer"
	// TransportRelay subscribes to a relay path.
	TransportRelay Transport = "relay"
)

// Target describes one construction call: the raw identifier, its routing
// class, and an optional explicit transport override.
type Target struct {
	Identifier string
	Class      route.Class
	Transport  Transport
}

// NewTarget classifies identifier and applies the transport override rule:
// an explicit transport wins unconditionally, skipping classification. A
// transport name outside the known set fails construction.
func NewTarget(identifier string, transport Transport) (Target, error) {
	switch transport {
	case TransportAuto, TransportPeer, TransportRelay:
	default:
		return Target{}, fmt.Errorf("%w %q (want %q or %q)",
			ErrUnknownTransport, string(transport), TransportPeer, TransportRelay)
	}
	t := Target{Identifier: identifier, Transport: transport}
	if transport != TransportAuto {
		if route.Classify(identifier) == route.RemotePath || transport == TransportRelay {
			t.Class = route.RemotePath
		} else {
			t.Class = route.RemotePeer
		}
		return t, nil
	}
	t.Class = route.Classify(identifier)
	return t, nil
}

// Remote reports whether the target routes to the remote backend.
func (t Target) Remote() bool {
	return t.Transport != TransportAuto || t.Class.Remote()
}

// kindFor maps a routing class to the backend kind that should serve it.
func kindFor(c route.Class) Kind {
	if c.Remote() {
		return KindRemote
	}
	return KindLocal
}
