package remote

import (
	"context"
	"time"

	"github.com/devlinkhq/devlink/internal/wire"
	"github.com/devlinkhq/devlink/pkg/backend"
	"github.com/devlinkhq/devlink/pkg/depth"
)

// StartDepth opens a session for a remote depth camera and starts its
// pipeline with the requested stream profiles.
func (c *Connector) StartDepth(ctx context.Context, tgt backend.Target, streams []depth.StreamProfile) (depth.Stream, error) {
	sess, err := c.dial(ctx, wire.SurfaceDepth, tgt)
	if err != nil {
		return nil, err
	}

	start := wire.DepthStart{Streams: make([]wire.DepthStream, len(streams))}
	for i, s := range streams {
		start.Streams[i] = wire.DepthStream{Kind: string(s.Kind), Width: s.Width, Height: s.Height, FPS: s.FPS}
	}
	if err := sess.Call(ctx, wire.OpDepthStart, start, nil); err != nil {
		sess.Close()
		return nil, err
	}
	return &remoteStream{sess: sess}, nil
}

type remoteStream struct {
	sess *wire.Session
}

func depthFrame(f wire.VideoFrame) depth.Frame {
	return depth.Frame{
		Width:     f.Width,
		Height:    f.Height,
		Data:      f.Pixels,
		Seq:       f.Seq,
		Timestamp: time.Unix(0, f.TimestampNS),
	}
}

func (s *remoteStream) WaitForFrames(ctx context.Context) (depth.FrameSet, error) {
	var fs wire.DepthFrameSet
	if err := s.sess.Call(ctx, wire.OpDepthWait, nil, &fs); err != nil {
		return depth.FrameSet{}, err
	}
	return depth.FrameSet{Depth: depthFrame(fs.Depth), Color: depthFrame(fs.Color)}, nil
}

// Stop ends the pipeline on the far side, then tears the session down. The
// stop op is best-effort; the session close is what actually frees the
// relay's resources.
func (s *remoteStream) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.sess.Call(ctx, wire.OpDepthStop, nil, nil)
	return s.sess.Close()
}
