// Package serial exposes the serial-port surface. Open routes device paths
// to the local driver and peer IDs or relay paths to a remote port; the
// returned Port reads and writes like a local one either way.
package serial

import (
	"context"
	"time"
)

// Parity is the parity bit mode.
type Parity string

const (
	ParityNone Parity = "none"
	ParityOdd  Parity = "odd"
	ParityEven Parity = "even"
)

// Config holds the port settings applied by whichever backend serves the
// open. Exclusive is meaningful only to the local driver.
type Config struct {
	BaudRate    int
	DataBits    int
	Parity      Parity
	StopBits    int
	ReadTimeout time.Duration
	Exclusive   bool
	Transport   string
}

// DefaultConfig matches the common 8N1 setup.
func DefaultConfig() Config {
	return Config{BaudRate: 9600, DataBits: 8, Parity: ParityNone, StopBits: 1}
}

// Option mutates Config.
type Option func(*Config)

// WithBaudRate sets the line rate.
func WithBaudRate(b int) Option {
	return func(c *Config) { c.BaudRate = b }
}

// WithDataBits sets the word size.
func WithDataBits(n int) Option {
	return func(c *Config) { c.DataBits = n }
}

// WithParity sets the parity mode.
func WithParity(p Parity) Option {
	return func(c *Config) { c.Parity = p }
}

// WithStopBits sets the stop bit count.
func WithStopBits(n int) Option {
	return func(c *Config) { c.StopBits = n }
}

// WithReadTimeout bounds individual reads.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Config) { c.ReadTimeout = d }
}

// WithExclusive requests exclusive device access. Local-only.
func WithExclusive() Option {
	return func(c *Config) { c.Exclusive = true }
}

// WithTransport forces the remote backend, skipping classification.
func WithTransport(t string) Option {
	return func(c *Config) { c.Transport = t }
}

func (c Config) stripForRemote() Config {
	c.Exclusive = false
	return c
}

func (c Config) stripForLocal() Config {
	c.Transport = ""
	return c
}

// Port is the declared port type: io.Reader/io.Writer semantics plus flush
// and close. Satisfied by both backends and the routing handle.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Flush() error
	Close() error
}

// ContextReadWriter is an optional Port extension for cancellable I/O. The
// remote transport implements it; the surface's bounded calls use it so an
// expired deadline interrupts the in-flight request instead of leaving it
// stuck behind a session that will never answer.
type ContextReadWriter interface {
	ReadContext(ctx context.Context, p []byte) (int, error)
	WriteContext(ctx context.Context, p []byte) (int, error)
}

// PortType classifies a listed port.
type PortType string

const (
	PortTypeUSB     PortType = "usb"
	PortTypeNative  PortType = "native"
	PortTypeVirtual PortType = "virtual"
	PortTypeRemote  PortType = "remote"
)

// PortInfo describes one available port.
type PortInfo struct {
	Name        string
	Description string
	Type        PortType
}

// Driver is the local serial backend, registered once by the host.
type Driver interface {
	Open(ctx context.Context, port string, cfg Config) (Port, error)
	ListPorts(ctx context.Context) ([]PortInfo, error)
}
