package wire

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
)

// Dial connects to the relay, performs the handshake, and returns an
// established session. The relay rejects handshakes for devices it does not
// serve; that surfaces here as a construction failure.
func Dial(ctx context.Context, relayAddr string, hello Hello) (*Session, error) {
	if relayAddr == "" {
		return nil, fmt.Errorf("no relay address configured")
	}
	if hello.Session == uuid.Nil {
		hello.Session = uuid.New()
	}

	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", relayAddr)
	if err != nil {
		return nil, fmt.Errorf("dial relay %s: %w", relayAddr, err)
	}

	conn := NewConn(nc)
	if err := conn.Send(hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("handshake send: %w", err)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	var ack HelloAck
	err = conn.Recv(&ack)
	stop()
	if err != nil {
		conn.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("handshake recv: %w", err)
	}

	if !ack.OK {
		conn.Close()
		return nil, fmt.Errorf("%s %q: %s", hello.Surface, hello.Target(), ack.Error)
	}
	return NewSession(hello.Session, conn), nil
}
