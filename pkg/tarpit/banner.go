package tarpit

import (
	"bytes"
	"math/rand"
)

// versionPrefix is the reserved SSH version-exchange prefix. RFC 4253 allows
// arbitrary CRLF-terminated lines before the version string as long as they
// do not start with it, which is the loophole the whole daemon lives in.
const versionPrefix = "SSH-"

// Banner produces the filler line for the nth write of a session. Lines must
// be CRLF-terminated and must never begin with versionPrefix. Implementations
// are shared across sessions and must be safe for concurrent use.
type Banner interface {
	Line(n uint64) []byte
}

var verseLines = [][]byte{
	[]byte("My name is Yon Yonson\r\n"),
	[]byte("I live in Wisconsin.\r\n"),
	[]byte("There, the people I meet\r\n"),
	[]byte("As I walk down the street\r\n"),
	[]byte("Say \"Hey, what's your name?\"\r\n"),
	[]byte("And I say:\r\n"),
}

// VerseBanner cycles through a fixed verse, one line per write. Each session
// starts at the top and loops forever, which is exactly as much variety as a
// scanner deserves.
type VerseBanner struct{}

func (VerseBanner) Line(n uint64) []byte {
	return verseLines[n%uint64(len(verseLines))]
}

// randAlphabet is the printable ASCII range used for random lines.
const randAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 .,-"

// RandomBanner emits lines of random printable junk. MaxLen bounds the
// payload length excluding the CRLF; values below 2 fall back to 32.
type RandomBanner struct {
	MaxLen int
}

func (b RandomBanner) Line(uint64) []byte {
	max := b.MaxLen
	if max < 2 {
		max = 32
	}
	n := 2 + rand.Intn(max-1)
	line := make([]byte, n+2)
	for i := 0; i < n; i++ {
		line[i] = randAlphabet[rand.Intn(len(randAlphabet))]
	}
	// An all-printable line could still open with the reserved prefix.
	if bytes.HasPrefix(line, []byte(versionPrefix)) {
		line[0] = 's'
	}
	line[n] = '\r'
	line[n+1] = '\n'
	return line
}
