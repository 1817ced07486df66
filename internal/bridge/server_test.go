package bridge

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devlinkhq/devlink/internal/devsim"
	"github.com/devlinkhq/devlink/internal/remote"
	"github.com/devlinkhq/devlink/pkg/backend"
	"github.com/devlinkhq/devlink/pkg/camera"
	"github.com/devlinkhq/devlink/pkg/canbus"
	"github.com/devlinkhq/devlink/pkg/depth"
	"github.com/devlinkhq/devlink/pkg/route"
	"github.com/devlinkhq/devlink/pkg/serial"
)

func startBridge(t *testing.T, drivers Drivers) *remote.Connector {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServer(drivers, nil)
	go func() { _ = srv.Serve(l) }()
	t.Cleanup(func() { _ = srv.Close() })

	return remote.NewConnector(l.Addr().String())
}

func simDrivers() Drivers {
	return Drivers{
		Camera: devsim.NewCameraDriver(),
		CAN:    devsim.NewCANDriver(),
		Serial: devsim.NewSerialDriver(),
		Depth:  devsim.NewDepthDriver(),
	}
}

func peerTarget(c byte) backend.Target {
	return backend.Target{Identifier: strings.Repeat(string(c), 64), Class: route.RemotePeer}
}

func TestBridge_CameraFrames(t *testing.T) {
	conn := startBridge(t, simDrivers())

	cap, err := conn.OpenCamera(context.Background(), peerTarget('a'), camera.Options{})
	require.NoError(t, err)
	defer cap.Release()

	f1, err := cap.Read(context.Background())
	require.NoError(t, err)
	f2, err := cap.Read(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 640, f1.Width)
	assert.Equal(t, 480, f1.Height)
	assert.Equal(t, camera.FormatBGR, f1.Format)
	assert.Len(t, f1.Pixels, 640*480*3)
	assert.Greater(t, f2.Seq, f1.Seq)
}

func TestBridge_CameraGrabRetrieve(t *testing.T) {
	conn := startBridge(t, simDrivers())

	cap, err := conn.OpenCamera(context.Background(), peerTarget('b'), camera.Options{})
	require.NoError(t, err)
	defer cap.Release()

	require.NoError(t, cap.Grab(context.Background()))
	f, err := cap.Retrieve()
	require.NoError(t, err)
	assert.NotZero(t, f.Seq)

	// A second retrieve without a grab has nothing to return.
	_, err = cap.Retrieve()
	assert.Error(t, err)
}

func TestBridge_CANLoopback(t *testing.T) {
	conn := startBridge(t, simDrivers())

	bus, err := conn.OpenBus(context.Background(), backend.Target{Identifier: "anon/vcan0", Class: route.RemotePath}, canbus.Options{Bitrate: 500000})
	require.NoError(t, err)
	defer bus.Shutdown()

	out, err := canbus.NewFrame(0x123, []byte{0xDE, 0xAD})
	require.NoError(t, err)
	require.NoError(t, bus.Send(context.Background(), out))

	in, err := bus.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, out.ID, in.ID)
	assert.Equal(t, out.Data, in.Data)
}

func TestBridge_SerialEchoAndPorts(t *testing.T) {
	conn := startBridge(t, simDrivers())

	port, err := conn.OpenPort(context.Background(), backend.Target{Identifier: "anon/tty-0", Class: route.RemotePath}, serial.DefaultConfig())
	require.NoError(t, err)
	defer port.Close()

	n, err := port.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 16)
	n, err = port.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	require.NoError(t, port.Flush())
	n, err = port.Read(buf)
	require.NoError(t, err)
	assert.Zero(t, n)

	ports, err := conn.ListPorts(context.Background())
	require.NoError(t, err)
	require.Len(t, ports, 2)
	assert.Equal(t, "/dev/ttySIM0", ports[0].Name)
}

func TestBridge_DepthPipeline(t *testing.T) {
	drivers := simDrivers()
	drivers.Depth = &devsim.DepthDriver{Interval: time.Millisecond}
	conn := startBridge(t, drivers)

	stream, err := conn.StartDepth(context.Background(), peerTarget('c'), []depth.StreamProfile{
		{Kind: depth.StreamDepth, Width: 320, Height: 240, FPS: 30},
	})
	require.NoError(t, err)

	fs, err := stream.WaitForFrames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 320, fs.Depth.Width)
	assert.Equal(t, fs.Depth.Seq, fs.Color.Seq)

	require.NoError(t, stream.Stop())
}

func TestBridge_RejectsUnservedSurface(t *testing.T) {
	conn := startBridge(t, Drivers{Serial: devsim.NewSerialDriver()})

	_, err := conn.OpenCamera(context.Background(), peerTarget('d'), camera.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "camera not served")
}

func TestBridge_RemoteErrorPropagates(t *testing.T) {
	conn := startBridge(t, simDrivers())

	bus, err := conn.OpenBus(context.Background(), backend.Target{Identifier: "anon/vcan0", Class: route.RemotePath}, canbus.Options{})
	require.NoError(t, err)
	defer bus.Shutdown()

	// Recv with nothing queued blocks; cancel breaks it on the caller side.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = bus.Recv(ctx)
	assert.Error(t, err)
}

func TestBridge_CloseTearsDownSessions(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := NewServer(simDrivers(), nil)
	go func() { _ = srv.Serve(l) }()

	conn := remote.NewConnector(l.Addr().String())
	cap, err := conn.OpenCamera(context.Background(), peerTarget('e'), camera.Options{})
	require.NoError(t, err)
	_, err = cap.Read(context.Background())
	require.NoError(t, err)

	require.NoError(t, srv.Close())

	_, err = cap.Read(context.Background())
	assert.Error(t, err, "session must be dead after bridge shutdown")
}
