// Package canbus exposes the CAN bus surface. Open routes the channel
// identifier to the local socket driver or to a remote bus served by a
// peer; frames flow through the same Bus interface either way.
package canbus

import (
	"errors"
	"fmt"
)

const (
	// MaxDataLen is the classical CAN payload limit.
	MaxDataLen = 8
	// MaxFDDataLen is the CAN FD payload limit.
	MaxFDDataLen = 64

	standardIDMask = 0x7FF
	extendedIDMask = 0x1FFFFFFF
)

var (
	// ErrDataTooLong reports a payload over the frame's limit.
	ErrDataTooLong = errors.New("frame data too long")
	// ErrIDOutOfRange reports an arbitration ID over the format's limit.
	ErrIDOutOfRange = errors.New("arbitration id out of range")
)

// Frame is one CAN frame, classical or FD.
type Frame struct {
	ID       uint32
	Data     []byte
	Extended bool
	Remote   bool
	FD       bool
}

// NewFrame builds a standard-ID classical frame.
func NewFrame(id uint32, data []byte) (Frame, error) {
	if id > standardIDMask {
		return Frame{}, fmt.Errorf("%w: 0x%X > 0x%X", ErrIDOutOfRange, id, standardIDMask)
	}
	if len(data) > MaxDataLen {
		return Frame{}, fmt.Errorf("%w: %d > %d", ErrDataTooLong, len(data), MaxDataLen)
	}
	return Frame{ID: id, Data: data}, nil
}

// NewExtendedFrame builds an extended-ID classical frame.
func NewExtendedFrame(id uint32, data []byte) (Frame, error) {
	if id > extendedIDMask {
		return Frame{}, fmt.Errorf("%w: 0x%X > 0x%X", ErrIDOutOfRange, id, extendedIDMask)
	}
	if len(data) > MaxDataLen {
		return Frame{}, fmt.Errorf("%w: %d > %d", ErrDataTooLong, len(data), MaxDataLen)
	}
	return Frame{ID: id, Data: data, Extended: true}, nil
}

// NewFDFrame builds a CAN FD frame.
func NewFDFrame(id uint32, data []byte) (Frame, error) {
	if id > extendedIDMask {
		return Frame{}, fmt.Errorf("%w: 0x%X > 0x%X", ErrIDOutOfRange, id, extendedIDMask)
	}
	if len(data) > MaxFDDataLen {
		return Frame{}, fmt.Errorf("%w: %d > %d", ErrDataTooLong, len(data), MaxFDDataLen)
	}
	return Frame{ID: id, Data: data, Extended: id > standardIDMask, FD: true}, nil
}

// DLC returns the data length code.
func (f Frame) DLC() int { return len(f.Data) }
