package depth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devlinkhq/devlink/pkg/backend"
	"github.com/devlinkhq/devlink/pkg/bounded"
	"github.com/devlinkhq/devlink/pkg/install"
	"github.com/devlinkhq/devlink/pkg/route"
)

type fakeStream struct {
	kind    backend.Kind
	device  string
	streams []StreamProfile
	stopped bool
	stopErr error
	waitErr error
	delay   time.Duration
	seq     uint64
}

func (s *fakeStream) WaitForFrames(ctx context.Context) (FrameSet, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return FrameSet{}, ctx.Err()
		}
	}
	if s.waitErr != nil {
		return FrameSet{}, s.waitErr
	}
	s.seq++
	return FrameSet{
		Depth: Frame{Width: 640, Height: 480, Seq: s.seq},
		Color: Frame{Width: 640, Height: 480, Seq: s.seq},
	}, nil
}

func (s *fakeStream) Stop() error {
	s.stopped = true
	return s.stopErr
}

type fakeDriver struct {
	started []*fakeStream
	err     error
}

func (d *fakeDriver) Start(_ context.Context, device string, streams []StreamProfile) (Stream, error) {
	if d.err != nil {
		return nil, d.err
	}
	s := &fakeStream{kind: backend.KindLocal, device: device, streams: streams}
	d.started = append(d.started, s)
	return s, nil
}

type fakeRemote struct {
	started []*fakeStream
	err     error
}

func (r *fakeRemote) StartDepth(_ context.Context, tgt backend.Target, streams []StreamProfile) (Stream, error) {
	if r.err != nil {
		return nil, r.err
	}
	s := &fakeStream{kind: backend.KindRemote, device: tgt.Identifier, streams: streams}
	r.started = append(r.started, s)
	return s, nil
}

func resetSurface(t *testing.T) {
	t.Helper()
	registry.Reset()
	install.Default.Reset()
}

func TestStart_PeerDeviceRoutesRemote(t *testing.T) {
	resetSurface(t)
	remote := &fakeRemote{}
	local := &fakeDriver{}
	require.NoError(t, RegisterLocalDriver(local))
	require.NoError(t, Install(remote))

	cfg := NewConfig()
	cfg.EnableDevice(strings.Repeat("c", 64))
	cfg.EnableStream(StreamDepth, 640, 480, 30)
	cfg.EnableStream(StreamColor, 640, 480, 30)
	require.True(t, cfg.Remote())

	p := NewPipeline()
	require.NoError(t, p.Start(context.Background(), cfg))

	require.Len(t, remote.started, 1)
	assert.Empty(t, local.started)
	assert.Equal(t, strings.Repeat("c", 64), remote.started[0].device)
	assert.Len(t, remote.started[0].streams, 2)
}

func TestStart_SerialRoutesLocal(t *testing.T) {
	resetSurface(t)
	local := &fakeDriver{}
	require.NoError(t, RegisterLocalDriver(local))
	require.NoError(t, Install(&fakeRemote{}))

	cfg := NewConfig()
	cfg.EnableDevice("843112071234")
	assert.Equal(t, route.Local, cfg.Class())

	p := NewPipeline()
	require.NoError(t, p.Start(context.Background(), cfg))
	require.Len(t, local.started, 1)
	assert.Equal(t, "843112071234", local.started[0].device)
}

func TestStart_NilConfigSelectsDefaultLocalDevice(t *testing.T) {
	resetSurface(t)
	local := &fakeDriver{}
	require.NoError(t, RegisterLocalDriver(local))

	p := NewPipeline()
	require.NoError(t, p.Start(context.Background(), nil))
	require.Len(t, local.started, 1)
	assert.Empty(t, local.started[0].device)
}

func TestStart_RejectsUnknownTransport(t *testing.T) {
	resetSurface(t)
	require.NoError(t, RegisterLocalDriver(&fakeDriver{}))
	require.NoError(t, Install(&fakeRemote{}))

	cfg := NewConfig()
	cfg.EnableDevice("843112071234")
	cfg.SetTransport("iroh")

	p := NewPipeline()
	err := p.Start(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.ErrUnknownTransport)
}

func TestStart_TransportOverrideForcesRemote(t *testing.T) {
	resetSurface(t)
	remote := &fakeRemote{}
	local := &fakeDriver{}
	require.NoError(t, RegisterLocalDriver(local))
	require.NoError(t, Install(remote))

	cfg := NewConfig()
	cfg.EnableDevice("843112071234")
	cfg.SetTransport("peer")
	require.True(t, cfg.Remote())

	p := NewPipeline()
	require.NoError(t, p.Start(context.Background(), cfg))
	assert.Len(t, remote.started, 1)
	assert.Empty(t, local.started)
}

func TestStart_Twice(t *testing.T) {
	resetSurface(t)
	require.NoError(t, RegisterLocalDriver(&fakeDriver{}))

	p := NewPipeline()
	require.NoError(t, p.Start(context.Background(), nil))
	assert.ErrorIs(t, p.Start(context.Background(), nil), ErrAlreadyStarted)
}

func TestStart_NoBackend(t *testing.T) {
	resetSurface(t)
	p := NewPipeline()
	err := p.Start(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.ErrBackendUnavailable)
	assert.Contains(t, err.Error(), "local driver")
}

func TestStart_FallbackToRemoteWhenLocalAbsent(t *testing.T) {
	resetSurface(t)
	remote := &fakeRemote{}
	require.NoError(t, Install(remote))

	p := NewPipeline()
	require.NoError(t, p.Start(context.Background(), nil))
	assert.Len(t, remote.started, 1)
}

func TestStart_ConstructionFailurePropagates(t *testing.T) {
	resetSurface(t)
	boom := errors.New("device enumeration failed")
	require.NoError(t, RegisterLocalDriver(&fakeDriver{err: boom}))

	p := NewPipeline()
	assert.ErrorIs(t, p.Start(context.Background(), nil), boom)
}

func TestWaitForFrames_BeforeStart(t *testing.T) {
	resetSurface(t)
	p := NewPipeline()
	_, err := p.WaitForFrames(context.Background())
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestWaitForFrames_LocalAndRemote(t *testing.T) {
	resetSurface(t)
	local := &fakeDriver{}
	remote := &fakeRemote{}
	require.NoError(t, RegisterLocalDriver(local))
	require.NoError(t, Install(remote))

	lp := NewPipeline()
	require.NoError(t, lp.Start(context.Background(), nil))
	fs, err := lp.WaitForFrames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), fs.Depth.Seq)
	assert.Equal(t, fs.Depth.Seq, fs.Color.Seq)

	cfg := NewConfig()
	cfg.EnableDevice("anon/depth-0")
	rp := NewPipeline()
	require.NoError(t, rp.Start(context.Background(), cfg))
	fs, err = rp.WaitForFrames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 640, fs.Depth.Width)
}

func TestWaitForFrames_RemoteDeadline(t *testing.T) {
	resetSurface(t)
	remote := &fakeRemote{}
	require.NoError(t, Install(remote))
	require.NoError(t, SetTimeout(50*time.Millisecond))
	t.Cleanup(func() { _ = SetTimeout(15 * time.Second) })

	cfg := NewConfig()
	cfg.EnableDevice(strings.Repeat("d", 64))
	p := NewPipeline()
	require.NoError(t, p.Start(context.Background(), cfg))
	remote.started[0].delay = 5 * time.Second

	begin := time.Now()
	_, err := p.WaitForFrames(context.Background())
	require.Error(t, err)

	var te *bounded.TimeoutError
	assert.ErrorAs(t, err, &te)
	assert.Less(t, time.Since(begin), 2*time.Second)
}

func TestStop_SuppressesBackendError(t *testing.T) {
	resetSurface(t)
	local := &fakeDriver{}
	require.NoError(t, RegisterLocalDriver(local))

	p := NewPipeline()
	require.NoError(t, p.Start(context.Background(), nil))
	local.started[0].stopErr = errors.New("stop failed")

	assert.NoError(t, p.Stop())
	assert.True(t, local.started[0].stopped)
}

func TestStop_IdleAndRepeat(t *testing.T) {
	resetSurface(t)
	local := &fakeDriver{}
	require.NoError(t, RegisterLocalDriver(local))

	p := NewPipeline()
	assert.NoError(t, p.Stop(), "stopping an idle pipeline is a no-op")

	require.NoError(t, p.Start(context.Background(), nil))
	require.NoError(t, p.Stop())
	require.NoError(t, p.Stop())
	assert.True(t, local.started[0].stopped)

	_, err := p.WaitForFrames(context.Background())
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestDualMembership(t *testing.T) {
	for _, s := range []any{&fakeStream{kind: backend.KindLocal}, &fakeStream{kind: backend.KindRemote}} {
		_, ok := s.(Stream)
		assert.True(t, ok)
	}
}
