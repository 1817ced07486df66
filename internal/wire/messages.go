package wire

import (
	"fmt"

	"github.com/google/uuid"
)

// Surface names carried in the handshake.
const (
	SurfaceCamera = "camera"
	SurfaceCANBus = "canbus"
	SurfaceSerial = "serial"
	SurfaceDepth  = "depth"
)

// Hello opens a session: which surface is wanted and which device the
// session targets. Exactly one of Peer or Path is set; Peer is a 64-hex
// node ID, Path a relay path like "anon/camera-0".
type Hello struct {
	Session uuid.UUID `cbor:"session"`
	Surface string    `cbor:"surface"`
	Peer    string    `cbor:"peer,omitempty"`
	Path    string    `cbor:"path,omitempty"`
}

// Target returns whichever of Peer or Path is set.
func (h Hello) Target() string {
	if h.Peer != "" {
		return h.Peer
	}
	return h.Path
}

// HelloAck accepts or rejects a session.
type HelloAck struct {
	OK    bool   `cbor:"ok"`
	Error string `cbor:"error,omitempty"`
}

// Request is one device operation. Op is a surface-qualified name like
// "camera.read"; Data is the op-specific payload.
type Request struct {
	Op   string     `cbor:"op"`
	Data RawMessage `cbor:"data,omitempty"`
}

// Response answers one Request.
type Response struct {
	OK    bool       `cbor:"ok"`
	Error string     `cbor:"error,omitempty"`
	Data  RawMessage `cbor:"data,omitempty"`
}

// RemoteError is a failure reported by the far end of a session.
type RemoteError struct {
	Op      string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %s", e.Op, e.Message)
}

// Operation names.
const (
	OpCameraRead = "camera.read"

	OpCANOpen = "can.open"
	OpCANSend = "can.send"
	OpCANRecv = "can.recv"

	OpSerialOpen  = "serial.open"
	OpSerialRead  = "serial.read"
	OpSerialWrite = "serial.write"
	OpSerialFlush = "serial.flush"
	OpSerialPorts = "serial.list_ports"

	OpDepthStart = "depth.start"
	OpDepthWait  = "depth.wait_for_frames"
	OpDepthStop  = "depth.stop"

	OpClose = "close"
)

// VideoFrame is one camera or depth image.
type VideoFrame struct {
	Seq         uint64 `cbor:"seq"`
	Width       int    `cbor:"w"`
	Height      int    `cbor:"h"`
	Format      string `cbor:"fmt"`
	Pixels      []byte `cbor:"px"`
	TimestampNS int64  `cbor:"ts"`
}

// CANFrame is one classical or FD CAN frame.
type CANFrame struct {
	ID       uint32 `cbor:"id"`
	Data     []byte `cbor:"data"`
	Extended bool   `cbor:"ext,omitempty"`
	Remote   bool   `cbor:"rtr,omitempty"`
	FD       bool   `cbor:"fd,omitempty"`
}

// CANOpen carries the bus settings the far end applies before serving
// frames.
type CANOpen struct {
	Bitrate int  `cbor:"bitrate,omitempty"`
	FD      bool `cbor:"fd,omitempty"`
}

// SerialOpen carries the port settings the far end applies before serving
// reads and writes.
type SerialOpen struct {
	BaudRate int    `cbor:"baud"`
	DataBits int    `cbor:"data_bits,omitempty"`
	Parity   string `cbor:"parity,omitempty"`
	StopBits int    `cbor:"stop_bits,omitempty"`
}

// SerialReadRequest asks for up to Max bytes.
type SerialReadRequest struct {
	Max int `cbor:"max"`
}

// SerialData carries serial payload bytes in either direction.
type SerialData struct {
	Data []byte `cbor:"data"`
}

// SerialCount acknowledges a write.
type SerialCount struct {
	N int `cbor:"n"`
}

// PortInfo describes one serial port in a listing.
type PortInfo struct {
	Name        string `cbor:"name"`
	Description string `cbor:"desc,omitempty"`
	Type        string `cbor:"type,omitempty"`
}

// PortList answers serial.list_ports.
type PortList struct {
	Ports []PortInfo `cbor:"ports"`
}

// DepthStart carries the stream profiles to enable.
type DepthStart struct {
	Streams []DepthStream `cbor:"streams"`
}

// DepthStream is one enabled stream profile.
type DepthStream struct {
	Kind   string `cbor:"kind"`
	Width  int    `cbor:"w"`
	Height int    `cbor:"h"`
	FPS    int    `cbor:"fps"`
}

// DepthFrameSet is one synchronized depth+color capture.
type DepthFrameSet struct {
	Depth VideoFrame `cbor:"depth"`
	Color VideoFrame `cbor:"color"`
}
