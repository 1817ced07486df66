package remote

import (
	"context"

	"github.com/devlinkhq/devlink/internal/wire"
	"github.com/devlinkhq/devlink/pkg/backend"
	"github.com/devlinkhq/devlink/pkg/serial"
)

// OpenPort opens a session for a remote serial port and applies the port
// settings before any bytes flow.
func (c *Connector) OpenPort(ctx context.Context, tgt backend.Target, cfg serial.Config) (serial.Port, error) {
	sess, err := c.dial(ctx, wire.SurfaceSerial, tgt)
	if err != nil {
		return nil, err
	}
	open := wire.SerialOpen{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		Parity:   string(cfg.Parity),
		StopBits: cfg.StopBits,
	}
	if err := sess.Call(ctx, wire.OpSerialOpen, open, nil); err != nil {
		sess.Close()
		return nil, err
	}
	return &remotePort{sess: sess}, nil
}

// ListPorts asks the relay for its serial port listing. The session targets
// the relay itself rather than a device, so the hello carries no path.
func (c *Connector) ListPorts(ctx context.Context) ([]serial.PortInfo, error) {
	sess, err := c.dial(ctx, wire.SurfaceSerial, backend.Target{})
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	var list wire.PortList
	if err := sess.Call(ctx, wire.OpSerialPorts, nil, &list); err != nil {
		return nil, err
	}
	ports := make([]serial.PortInfo, len(list.Ports))
	for i, p := range list.Ports {
		ports[i] = serial.PortInfo{Name: p.Name, Description: p.Description, Type: serial.PortType(p.Type)}
	}
	return ports, nil
}

// remotePort serves the byte-oriented port interface over request/response
// pairs. It implements serial.ContextReadWriter: the surface's bounded
// executor threads its deadline context into the session call, so a timed
// out read or write unsticks the session instead of holding it forever.
type remotePort struct {
	sess *wire.Session
}

func (p *remotePort) ReadContext(ctx context.Context, b []byte) (int, error) {
	var data wire.SerialData
	req := wire.SerialReadRequest{Max: len(b)}
	if err := p.sess.Call(ctx, wire.OpSerialRead, req, &data); err != nil {
		return 0, err
	}
	return copy(b, data.Data), nil
}

func (p *remotePort) WriteContext(ctx context.Context, b []byte) (int, error) {
	var n wire.SerialCount
	if err := p.sess.Call(ctx, wire.OpSerialWrite, wire.SerialData{Data: b}, &n); err != nil {
		return 0, err
	}
	return n.N, nil
}

func (p *remotePort) Read(b []byte) (int, error) {
	return p.ReadContext(context.Background(), b)
}

func (p *remotePort) Write(b []byte) (int, error) {
	return p.WriteContext(context.Background(), b)
}

func (p *remotePort) Flush() error {
	return p.sess.Call(context.Background(), wire.OpSerialFlush, nil, nil)
}

func (p *remotePort) Close() error {
	return p.sess.Close()
}
