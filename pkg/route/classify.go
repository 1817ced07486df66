// Package route classifies caller-supplied device identifiers into routing
// classes. Classification is total: every identifier maps to exactly one
// class, and unrecognized shapes fall back to Local so the local driver can
// report its own not-found error.
package route

import "strings"

// Class identifies which backend an identifier routes to.
type Class int

const (
	// Local targets a physically attached or natively reachable resource:
	// an empty identifier, a device index, a filesystem device path, or
	// anything that matches neither remote shape.
	Local Class = iota
	// RemotePeer targets a named peer: a 64-character lowercase hex string
	// (a hex-encoded ed25519 public key).
	RemotePeer
	// RemotePath targets a named relay path such as "anon/camera-0".
	RemotePath
)

func (c Class) String() string {
	switch c {
	case RemotePeer:
		return "remote-peer"
	case RemotePath:
		return "remote-path"
	default:
		return "local"
	}
}

// Remote reports whether the class routes to the remote backend.
func (c Class) Remote() bool {
	return c == RemotePeer || c == RemotePath
}

const peerIDLength = 64

// IsPeerID reports whether s is a well-formed peer identifier: exactly 64
// characters, all in [0-9a-f]. Uppercase hex does not qualify.
func IsPeerID(s string) bool {
	if len(s) != peerIDLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Classify maps an identifier to its routing class.
//
// Filesystem device paths ("/dev/ttyUSB0", "/dev/video2") are local even
// though they contain a separator; only rootless paths ("anon/camera-0")
// name a relay path.
func Classify(identifier string) Class {
	if identifier == "" {
		return Local
	}
	if IsPeerID(identifier) {
		return RemotePeer
	}
	if !strings.HasPrefix(identifier, "/") && strings.ContainsRune(identifier, '/') {
		return RemotePath
	}
	return Local
}
