package wire

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// Conn frames CBOR messages over a net.Conn. CBOR items are
// self-delimiting, so the stream needs no length prefix.
type Conn struct {
	nc net.Conn

	wmu sync.Mutex
	enc *cbor.Encoder

	rmu sync.Mutex
	dec *cbor.Decoder
}

// NewConn wraps nc.
func NewConn(nc net.Conn) *Conn {
	return &Conn{
		nc:  nc,
		enc: encMode.NewEncoder(nc),
		dec: decMode.NewDecoder(nc),
	}
}

// Send encodes one message.
func (c *Conn) Send(v any) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.enc.Encode(v)
}

// Recv decodes the next message into v.
func (c *Conn) Recv(v any) error {
	c.rmu.Lock()
	defer c.rmu.Unlock()
	return c.dec.Decode(v)
}

// SetReadDeadline forwards to the underlying connection; used to break a
// blocked Recv when a call is cancelled.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.nc.SetReadDeadline(t)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.nc.Close()
}

// Session is one established device session: the handshake succeeded and
// request/response pairs may flow. A session serves one device for one
// surface; calls are serialized.
type Session struct {
	ID   uuid.UUID
	conn *Conn

	mu sync.Mutex // one in-flight request/response pair at a time
}

// NewSession wraps an accepted or dialed connection whose handshake is done.
func NewSession(id uuid.UUID, conn *Conn) *Session {
	return &Session{ID: id, conn: conn}
}

// Call performs one request/response exchange. Cancelling ctx while the
// response is pending breaks the read; the session should be considered
// broken afterwards, which is acceptable for best-effort cancellation.
func (s *Session) Call(ctx context.Context, op string, in, out any) error {
	var payload RawMessage
	if in != nil {
		data, err := Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		payload = data
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Clear any deadline a previously cancelled call left behind.
	_ = s.conn.SetReadDeadline(time.Time{})

	if err := s.conn.Send(Request{Op: op, Data: payload}); err != nil {
		return fmt.Errorf("%s: send: %w", op, err)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	var resp Response
	if err := s.conn.Recv(&resp); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: recv: %w", op, err)
	}

	if !resp.OK {
		return &RemoteError{Op: op, Message: resp.Error}
	}
	if out != nil && len(resp.Data) > 0 {
		if err := Unmarshal(resp.Data, out); err != nil {
			return fmt.Errorf("%s: decode response: %w", op, err)
		}
	}
	return nil
}

// Close sends a best-effort close op and tears the connection down.
func (s *Session) Close() error {
	_ = s.conn.Send(Request{Op: OpClose})
	return s.conn.Close()
}
