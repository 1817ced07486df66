package wire

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_Roundtrip(t *testing.T) {
	in := CANFrame{ID: 0x123, Data: []byte{0xde, 0xad, 0xbe, 0xef}, Extended: true}
	data, err := Marshal(in)
	require.NoError(t, err)

	var out CANFrame
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestCodec_Deterministic(t *testing.T) {
	frame := VideoFrame{Seq: 7, Width: 640, Height: 480, Format: "bgr", Pixels: []byte{1, 2, 3}}
	a, err := Marshal(frame)
	require.NoError(t, err)
	b, err := Marshal(frame)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

// pipeSession builds a client session and a raw server conn over net.Pipe.
func pipeSession(t *testing.T) (*Session, *Conn) {
	t.Helper()
	clientNC, serverNC := net.Pipe()
	t.Cleanup(func() {
		clientNC.Close()
		serverNC.Close()
	})
	return NewSession(uuid.New(), NewConn(clientNC)), NewConn(serverNC)
}

func TestSession_Call(t *testing.T) {
	sess, server := pipeSession(t)

	go func() {
		var req Request
		if err := server.Recv(&req); err != nil {
			return
		}
		var in SerialData
		if err := Unmarshal(req.Data, &in); err != nil {
			return
		}
		data, _ := Marshal(SerialCount{N: len(in.Data)})
		_ = server.Send(Response{OK: true, Data: data})
	}()

	var count SerialCount
	err := sess.Call(context.Background(), OpSerialWrite, SerialData{Data: []byte("hello")}, &count)
	require.NoError(t, err)
	assert.Equal(t, 5, count.N)
}

func TestSession_CallRemoteError(t *testing.T) {
	sess, server := pipeSession(t)

	go func() {
		var req Request
		if err := server.Recv(&req); err != nil {
			return
		}
		_ = server.Send(Response{OK: false, Error: "device busy"})
	}()

	err := sess.Call(context.Background(), OpCANSend, CANFrame{ID: 1}, nil)
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, OpCANSend, re.Op)
	assert.Contains(t, re.Message, "device busy")
}

func TestSession_CallCancellation(t *testing.T) {
	sess, server := pipeSession(t)

	// Server reads the request and then never answers.
	go func() {
		var req Request
		_ = server.Recv(&req)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	err := sess.Call(ctx, OpCameraRead, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDial_HandshakeReject(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		nc, err := ln.Accept()
		if err != nil {
			return
		}
		conn := NewConn(nc)
		var hello Hello
		if err := conn.Recv(&hello); err != nil {
			return
		}
		_ = conn.Send(HelloAck{OK: false, Error: "no such device"})
		conn.Close()
	}()

	_, err = Dial(context.Background(), ln.Addr().String(), Hello{
		Surface: SurfaceCamera,
		Path:    "anon/camera-0",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such device")
	assert.Contains(t, err.Error(), "anon/camera-0")
}

func TestDial_NoRelayConfigured(t *testing.T) {
	_, err := Dial(context.Background(), "", Hello{Surface: SurfaceSerial})
	assert.Error(t, err)
}

func TestHello_Target(t *testing.T) {
	assert.Equal(t, "abc", Hello{Peer: "abc"}.Target())
	assert.Equal(t, "anon/x", Hello{Path: "anon/x"}.Target())
}
