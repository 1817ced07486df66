// Package remote implements the remote backend for every surface: one
// connector dials the relay, performs the session handshake, and wraps the
// session in an object satisfying the surface's declared type.
package remote

import (
	"context"
	"sync"

	"github.com/devlinkhq/devlink/internal/wire"
	"github.com/devlinkhq/devlink/pkg/backend"
	"github.com/devlinkhq/devlink/pkg/route"
)

// Connector opens device sessions against one relay. It satisfies the
// RemoteOpener interface of each surface package. The relay address may be
// swapped live; sessions already open keep their original relay.
type Connector struct {
	mu    sync.RWMutex
	relay string
}

// NewConnector creates a connector for the given relay address.
func NewConnector(relay string) *Connector {
	return &Connector{relay: relay}
}

// Relay returns the configured relay address.
func (c *Connector) Relay() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.relay
}

// SetRelay changes the relay address for future sessions.
func (c *Connector) SetRelay(relay string) {
	c.mu.Lock()
	c.relay = relay
	c.mu.Unlock()
}

// dial opens one surface session for the target. Peer IDs travel in the
// peer slot; everything else, including local identifiers forced remote by
// a transport override, travels as a path.
func (c *Connector) dial(ctx context.Context, surface string, tgt backend.Target) (*wire.Session, error) {
	hello := wire.Hello{Surface: surface}
	if tgt.Class == route.RemotePeer {
		hello.Peer = tgt.Identifier
	} else {
		hello.Path = tgt.Identifier
	}
	return wire.Dial(ctx, c.Relay(), hello)
}
