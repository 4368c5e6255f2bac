package tarpit_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dobrevit/tarpitd/pkg/tarpit"
)

func TestVerseBannerCyclesCRLFLines(t *testing.T) {
	b := tarpit.VerseBanner{}

	first := b.Line(0)
	for n := uint64(0); n < 32; n++ {
		line := b.Line(n)
		if !bytes.HasSuffix(line, []byte("\r\n")) {
			t.Errorf("line %d is not CRLF terminated: %q", n, line)
		}
		if bytes.HasPrefix(line, []byte("SSH-")) {
			t.Errorf("line %d starts with the reserved version prefix: %q", n, line)
		}
	}

	// Sessions each cycle from the top of the verse.
	cycles := false
	for n := uint64(1); n <= 64; n++ {
		if bytes.Equal(b.Line(n), first) {
			cycles = true
			break
		}
	}
	if !cycles {
		t.Error("verse does not cycle")
	}
}

func TestRandomBannerShape(t *testing.T) {
	b := tarpit.RandomBanner{MaxLen: 48}

	for i := 0; i < 1000; i++ {
		line := string(b.Line(uint64(i)))
		if !strings.HasSuffix(line, "\r\n") {
			t.Fatalf("line not CRLF terminated: %q", line)
		}
		if strings.HasPrefix(line, "SSH-") {
			t.Fatalf("line starts with the reserved version prefix: %q", line)
		}
		payload := len(line) - 2
		if payload < 2 || payload > 48 {
			t.Fatalf("payload length %d out of range [2,48]: %q", payload, line)
		}
		for _, c := range line[:payload] {
			if c < 0x20 || c > 0x7e {
				t.Fatalf("non-printable byte %#x in %q", c, line)
			}
		}
	}
}
