// Package camera exposes the video-capture surface. Open routes each call
// to a local capture driver or to a remote camera served by a peer, based
// on the shape of the source identifier; call sites written against a local
// capture keep working unchanged when handed a peer ID or relay path.
package camera

import (
	"context"
	"time"
)

// PixelFormat names the pixel layout of a frame.
type PixelFormat string

const (
	FormatBGR   PixelFormat = "bgr"
	FormatRGB   PixelFormat = "rgb"
	FormatGray  PixelFormat = "gray"
	FormatMJPEG PixelFormat = "mjpeg"
)

// Frame is one captured image.
type Frame struct {
	Width     int
	Height    int
	Format    PixelFormat
	Pixels    []byte
	Seq       uint64
	Timestamp time.Time
}

// Capture is the declared capture type. Objects from the local driver, from
// the remote backend, and the routing handle itself all satisfy it, so a
// type-membership check against Capture holds no matter which backend served
// the construction call.
type Capture interface {
	// Read grabs and returns the next frame.
	Read(ctx context.Context) (Frame, error)
	// Grab advances to the next frame without decoding it.
	Grab(ctx context.Context) error
	// Retrieve decodes the last grabbed frame.
	Retrieve() (Frame, error)
	// IsOpened reports whether the capture is usable.
	IsOpened() bool
	// Release frees the device or session.
	Release() error
}

// Options configures a construction call. BufferSize is meaningful only to
// the local driver and never reaches the remote backend; Transport is
// meaningful only to the remote backend.
type Options struct {
	Transport  Transport
	BufferSize int
}

// Transport is re-exported so call sites don't import pkg/backend.
type Transport = string

// Option mutates Options.
type Option func(*Options)

// WithTransport forces the remote backend with the given transport
// ("peer" or "relay"), skipping identifier classification.
func WithTransport(t Transport) Option {
	return func(o *Options) { o.Transport = t }
}

// WithBufferSize sets the local driver's frame buffer depth.
func WithBufferSize(n int) Option {
	return func(o *Options) { o.BufferSize = n }
}

// stripForRemote drops fields only the local driver understands.
func (o Options) stripForRemote() Options {
	o.BufferSize = 0
	return o
}

// stripForLocal drops fields only the remote backend understands.
func (o Options) stripForLocal() Options {
	o.Transport = ""
	return o
}

// Driver is the local capture backend: the hardware-facing implementation a
// host registers once. It is opaque to the routing layer.
type Driver interface {
	Open(ctx context.Context, source string, opts Options) (Capture, error)
}
