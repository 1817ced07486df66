// Package depth exposes the depth-camera pipeline surface: configure
// streams, start, wait for synchronized frame sets, stop. A config enabled
// with a relay path or peer ID routes the pipeline to a remote camera; the
// remote start and every remote wait run under the surface deadline, since
// the pipeline call surface has no native timeout and a dead relay would
// otherwise block forever.
package depth

import (
	"context"
	"time"

	"github.com/devlinkhq/devlink/pkg/backend"
	"github.com/devlinkhq/devlink/pkg/route"
)

// StreamKind names a stream within the pipeline.
type StreamKind string

const (
	StreamDepth StreamKind = "depth"
	StreamColor StreamKind = "color"
)

// StreamProfile is one enabled stream.
type StreamProfile struct {
	Kind   StreamKind
	Width  int
	Height int
	FPS    int
}

// Frame is one image out of a frame set. Depth frames carry 16-bit depth
// values; color frames carry interleaved 8-bit channels.
type Frame struct {
	Width     int
	Height    int
	Data      []byte
	Seq       uint64
	Timestamp time.Time
}

// FrameSet is one synchronized depth+color capture.
type FrameSet struct {
	Depth Frame
	Color Frame
}

// Config selects the device and streams a pipeline starts with. The zero
// Config targets the default local device.
type Config struct {
	serial    string
	transport string
	streams   []StreamProfile
}

// NewConfig creates an empty configuration.
func NewConfig() *Config { return &Config{} }

// EnableDevice selects the device by serial number, peer ID, or relay
// path. The routing class is fixed here, when the identifier's shape is
// inspected, and carried into Start.
func (c *Config) EnableDevice(serial string) {
	c.serial = serial
}

// EnableStream adds a stream profile.
func (c *Config) EnableStream(kind StreamKind, width, height, fps int) {
	c.streams = append(c.streams, StreamProfile{Kind: kind, Width: width, Height: height, FPS: fps})
}

// SetTransport forces the remote backend, skipping classification.
func (c *Config) SetTransport(t string) {
	c.transport = t
}

// Remote reports whether the config routes to the remote backend. Any
// explicit transport forces remote; whether it names a known transport is
// checked when the pipeline starts.
func (c *Config) Remote() bool {
	return c.transport != "" || route.Classify(c.serial).Remote()
}

// Streams returns the enabled profiles.
func (c *Config) Streams() []StreamProfile { return c.streams }

func (c *Config) target() (backend.Target, error) {
	return backend.NewTarget(c.serial, backend.Transport(c.transport))
}

// Class returns the routing class of the configured device.
func (c *Config) Class() route.Class {
	if tgt, err := c.target(); err == nil {
		return tgt.Class
	}
	return route.Classify(c.serial)
}

// Stream is an active backend pipeline: frames until Stop.
type Stream interface {
	WaitForFrames(ctx context.Context) (FrameSet, error)
	Stop() error
}

// Driver is the local depth backend, registered once by the host.
type Driver interface {
	Start(ctx context.Context, serial string, streams []StreamProfile) (Stream, error)
}
