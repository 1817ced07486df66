package integration

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devlinkhq/devlink"
	"github.com/devlinkhq/devlink/internal/bridge"
	"github.com/devlinkhq/devlink/internal/devsim"
	"github.com/devlinkhq/devlink/pkg/camera"
	"github.com/devlinkhq/devlink/pkg/canbus"
	"github.com/devlinkhq/devlink/pkg/config"
	"github.com/devlinkhq/devlink/pkg/depth"
	"github.com/devlinkhq/devlink/pkg/serial"
)

// The whole package shares one bridge and one installed routing layer:
// installation is process-wide, so per-test reinstallation would be a
// different system than the one shipped.
var (
	setupOnce sync.Once
	setupErr  error
	relayAddr string
)

func setup(t *testing.T) {
	t.Helper()
	setupOnce.Do(func() {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			setupErr = err
			return
		}
		srv := bridge.NewServer(bridge.Drivers{
			Camera: devsim.NewCameraDriver(),
			CAN:    devsim.NewCANDriver(),
			Serial: devsim.NewSerialDriver(),
			Depth:  &devsim.DepthDriver{Interval: time.Millisecond},
		}, nil)
		go func() { _ = srv.Serve(l) }()

		if err := devsim.RegisterAll(); err != nil {
			setupErr = err
			return
		}

		relayAddr = l.Addr().String()
		cfg := config.Default()
		cfg.Relay.Address = relayAddr
		cfg.Timeouts.Default = config.Duration(5 * time.Second)
		setupErr = devlink.Install(cfg)
	})
	require.NoError(t, setupErr)
}

func peerID(c byte) string { return strings.Repeat(string(c), 64) }

func TestCamera_RemoteByPeerID(t *testing.T) {
	setup(t)

	cap, err := camera.Open(context.Background(), peerID('a'))
	require.NoError(t, err)
	defer cap.Release()

	f1, err := cap.Read(context.Background())
	require.NoError(t, err)
	f2, err := cap.Read(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 640, f1.Width)
	assert.Len(t, f1.Pixels, 640*480*3)
	assert.Greater(t, f2.Seq, f1.Seq)
	assert.True(t, cap.IsOpened())
}

func TestCamera_LocalByIndex(t *testing.T) {
	setup(t)

	cap, err := camera.Open(context.Background(), 0)
	require.NoError(t, err)
	defer cap.Release()

	f, err := cap.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, camera.FormatBGR, f.Format)
}

func TestCamera_RemoteByRelayPath(t *testing.T) {
	setup(t)

	cap, err := camera.Open(context.Background(), "anon/camera-0")
	require.NoError(t, err)
	defer cap.Release()

	require.NoError(t, cap.Grab(context.Background()))
	f, err := cap.Retrieve()
	require.NoError(t, err)
	assert.NotZero(t, f.Seq)
}

func TestCANBus_RemoteLoopback(t *testing.T) {
	setup(t)

	bus, err := canbus.Open(context.Background(), peerID('b'), canbus.WithBitrate(500000))
	require.NoError(t, err)
	defer bus.Shutdown()

	out, err := canbus.NewFrame(0x321, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	require.NoError(t, bus.Send(context.Background(), out))

	in, err := bus.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, out.ID, in.ID)
	assert.Equal(t, out.Data, in.Data)
}

func TestCANBus_LocalChannel(t *testing.T) {
	setup(t)

	bus, err := canbus.Open(context.Background(), "vcan0", canbus.WithInterface("virtual"))
	require.NoError(t, err)
	defer bus.Shutdown()

	out, err := canbus.NewFrame(0x042, []byte{9})
	require.NoError(t, err)
	require.NoError(t, bus.Send(context.Background(), out))
	in, err := bus.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, out.ID, in.ID)
}

func TestSerial_RemoteEcho(t *testing.T) {
	setup(t)

	port, err := serial.Open(context.Background(), "anon/tty-7", serial.WithBaudRate(115200))
	require.NoError(t, err)
	defer port.Close()

	n, err := port.Write([]byte("probe"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 32)
	n, err = port.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "probe", string(buf[:n]))
}

func TestSerial_LocalDevicePath(t *testing.T) {
	setup(t)

	port, err := serial.Open(context.Background(), "/dev/ttySIM0")
	require.NoError(t, err)
	defer port.Close()

	_, err = port.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, port.Flush())
}

func TestSerial_ListPorts(t *testing.T) {
	setup(t)

	ports, err := serial.ListPorts(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, ports)
	assert.Equal(t, "/dev/ttySIM0", ports[0].Name)
}

func TestDepth_RemotePipeline(t *testing.T) {
	setup(t)

	cfg := depth.NewConfig()
	cfg.EnableDevice(peerID('c'))
	cfg.EnableStream(depth.StreamDepth, 320, 240, 30)
	require.True(t, cfg.Remote())

	p := depth.NewPipeline()
	require.NoError(t, p.Start(context.Background(), cfg))

	fs, err := p.WaitForFrames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 320, fs.Depth.Width)
	assert.Equal(t, fs.Depth.Seq, fs.Color.Seq)

	require.NoError(t, p.Stop())
}

func TestDepth_LocalPipeline(t *testing.T) {
	setup(t)

	p := depth.NewPipeline()
	require.NoError(t, p.Start(context.Background(), nil))
	defer p.Stop()

	fs, err := p.WaitForFrames(context.Background())
	require.NoError(t, err)
	assert.NotZero(t, fs.Depth.Seq)
}

func TestInstall_Idempotent(t *testing.T) {
	setup(t)

	cfg := config.Default()
	cfg.Relay.Address = relayAddr
	cfg.Timeouts.Default = config.Duration(5 * time.Second)
	assert.NoError(t, devlink.Install(cfg))
	assert.NoError(t, devlink.Install(cfg))
}
