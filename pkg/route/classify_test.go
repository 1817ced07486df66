package route

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestClassify_Table(t *testing.T) {
	cases := []struct {
		name string
		id   string
		want Class
	}{
		{"empty", "", Local},
		{"device index as string", "0", Local},
		{"serial device path", "/dev/ttyUSB0", Local},
		{"video device path", "/dev/video2", Local},
		{"peer id", strings.Repeat("a", 64), RemotePeer},
		{"mixed hex peer id", "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef", RemotePeer},
		{"uppercase disqualifies", strings.Repeat("A", 64), Local},
		{"63 chars", strings.Repeat("a", 63), Local},
		{"65 chars", strings.Repeat("a", 65), Local},
		{"non-hex at 64", strings.Repeat("g", 64), Local},
		{"relay path", "anon/camera-0", RemotePath},
		{"nested relay path", "lab/arm/serial", RemotePath},
		{"plain name", "can0", Local},
		{"hostname-ish", "somehost.local", Local},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.id), "Classify(%q)", tc.id)
		})
	}
}

func TestClassify_PeerIDProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		id := rapid.StringOfN(rapid.RuneFrom([]rune("0123456789abcdef")), 64, 64, 64).Draw(t, "id")

		if got := Classify(id); got != RemotePeer {
			t.Fatalf("Classify(%q) = %v, want RemotePeer", id, got)
		}

		// The same identifier uppercased, truncated, or extended must
		// fall back to Local.
		if got := Classify(strings.ToUpper(id)); got != RemotePeer {
			// All-digit identifiers are unchanged by ToUpper.
			if strings.ToUpper(id) != id && got != Local {
				t.Fatalf("Classify(upper %q) = %v, want Local", id, got)
			}
		}
		if got := Classify(id[:63]); got != Local {
			t.Fatalf("Classify(%q[:63]) = %v, want Local", id, got)
		}
		if got := Classify(id + "0"); got != Local {
			t.Fatalf("Classify(%q+\"0\") = %v, want Local", id, got)
		}
	})
}

func TestClassify_RelayPathProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		// Rootless strings containing a separator that cannot be peer IDs.
		head := rapid.StringMatching(`[a-z][a-z0-9-]{0,15}`).Draw(t, "head")
		tail := rapid.StringMatching(`[a-z0-9-]{1,16}(/[a-z0-9-]{1,16})?`).Draw(t, "tail")
		path := head + "/" + tail

		if IsPeerID(path) {
			t.Skip("collided with peer id shape")
		}
		if got := Classify(path); got != RemotePath {
			t.Fatalf("Classify(%q) = %v, want RemotePath", path, got)
		}
	})
}

func TestClassify_Deterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		id := rapid.String().Draw(t, "id")
		first := Classify(id)
		for i := 0; i < 3; i++ {
			assert.Equal(t, first, Classify(id))
		}
	})
}

func TestClassRemote(t *testing.T) {
	assert.False(t, Local.Remote())
	assert.True(t, RemotePeer.Remote())
	assert.True(t, RemotePath.Remote())
}
