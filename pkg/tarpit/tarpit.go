// Package tarpit implements the connection admission and tarpit engine: it
// binds listeners, admits connections against a best-effort ceiling, and
// trickles banner noise to each trapped peer until the peer gives up, a write
// times out, or the daemon shuts down.
package tarpit

import (
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// Defaults mirror the daemon's documented flag defaults.
const (
	DefaultDelay      = 10 * time.Second
	DefaultTimeout    = 30 * time.Second
	DefaultMaxClients = 4096
)

// Cause is the terminal state of a session, reported in disconnect events.
type Cause string

const (
	// CauseDisconnected means a write failed, normally because the peer
	// reset or closed the connection. This is the expected way for a
	// tarpit session to end.
	CauseDisconnected Cause = "disconnected"
	// CauseTimedOut means a write did not complete within the configured
	// timeout, typically a half-open or stalled peer.
	CauseTimedOut Cause = "timeout"
	// CauseCancelled means the daemon shut down while the session was
	// still running.
	CauseCancelled Cause = "cancelled"
)

// PeerInfo optionally contributes extra log fields for a peer address,
// such as GeoIP country data.
type PeerInfo interface {
	Fields(peer net.Addr) logrus.Fields
}

// Config controls the engine. The zero value is usable after applying
// defaults; see NewServer.
type Config struct {
	// Delay is the sleep between banner writes.
	Delay time.Duration
	// Timeout bounds each individual write.
	Timeout time.Duration
	// MaxClients is the best-effort admission ceiling.
	MaxClients int64
	// Banner supplies the noise payload. Defaults to the verse banner.
	Banner Banner
	// Drain, when set, lets running sessions terminate naturally on
	// shutdown instead of cancelling them.
	Drain bool
	// PeerInfo, when non-nil, annotates connect/disconnect events.
	PeerInfo PeerInfo
}

func (c Config) withDefaults() Config {
	if c.Delay <= 0 {
		c.Delay = DefaultDelay
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxClients <= 0 {
		c.MaxClients = DefaultMaxClients
	}
	if c.Banner == nil {
		c.Banner = VerseBanner{}
	}
	return c
}
