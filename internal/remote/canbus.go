package remote

import (
	"context"

	"github.com/devlinkhq/devlink/internal/wire"
	"github.com/devlinkhq/devlink/pkg/backend"
	"github.com/devlinkhq/devlink/pkg/canbus"
)

// OpenBus opens a session for a remote CAN bus and applies the bus
// settings before any frames flow.
func (c *Connector) OpenBus(ctx context.Context, tgt backend.Target, opts canbus.Options) (canbus.Bus, error) {
	sess, err := c.dial(ctx, wire.SurfaceCANBus, tgt)
	if err != nil {
		return nil, err
	}
	open := wire.CANOpen{Bitrate: opts.Bitrate, FD: opts.FD}
	if err := sess.Call(ctx, wire.OpCANOpen, open, nil); err != nil {
		sess.Close()
		return nil, err
	}
	return &remoteBus{sess: sess}, nil
}

type remoteBus struct {
	sess *wire.Session
}

func (b *remoteBus) Send(ctx context.Context, f canbus.Frame) error {
	req := wire.CANFrame{ID: f.ID, Data: f.Data, Extended: f.Extended, Remote: f.Remote, FD: f.FD}
	return b.sess.Call(ctx, wire.OpCANSend, req, nil)
}

func (b *remoteBus) Recv(ctx context.Context) (canbus.Frame, error) {
	var f wire.CANFrame
	if err := b.sess.Call(ctx, wire.OpCANRecv, nil, &f); err != nil {
		return canbus.Frame{}, err
	}
	return canbus.Frame{ID: f.ID, Data: f.Data, Extended: f.Extended, Remote: f.Remote, FD: f.FD}, nil
}

func (b *remoteBus) Shutdown() error {
	return b.sess.Close()
}
