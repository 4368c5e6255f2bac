package tarpit

import (
	"errors"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dobrevit/tarpitd/pkg/stats"
)

// session owns one accepted connection. Nothing else touches the socket; the
// shared state it mutates is limited to the stats registry.
type session struct {
	conn        net.Conn
	peer        net.Addr
	delay       time.Duration
	timeout     time.Duration
	banner      Banner
	registry    *stats.Registry
	log         *logrus.Entry
	connectedAt time.Time
	bytes       uint64
}

func newSession(conn net.Conn, cfg Config, registry *stats.Registry, log *logrus.Entry) *session {
	return &session{
		conn:        conn,
		peer:        conn.RemoteAddr(),
		delay:       cfg.Delay,
		timeout:     cfg.Timeout,
		banner:      cfg.Banner,
		registry:    registry,
		log:         log,
		connectedAt: time.Now(),
	}
}

// run drives the write loop until a terminal cause is reached. Cancellation
// is observed at the delay sleep; a session mid-write takes up to one write
// timeout to notice. run always recovers locally and never returns an error
// to its caller.
func (s *session) run(cancel <-chan struct{}) {
	cause := s.loop(cancel)
	s.finish(cause)
}

func (s *session) loop(cancel <-chan struct{}) Cause {
	timer := time.NewTimer(s.delay)
	defer timer.Stop()

	for n := uint64(0); ; n++ {
		timer.Reset(s.delay)
		select {
		case <-cancel:
			return CauseCancelled
		case <-timer.C:
		}

		line := s.banner.Line(n)
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
			return CauseDisconnected
		}
		written, err := s.conn.Write(line)
		if written > 0 {
			s.bytes += uint64(written)
			s.registry.AddBytes(written)
		}
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return CauseTimedOut
			}
			return CauseDisconnected
		}
	}
}

// finish releases the session's admission slot, logs the disconnect event
// and closes the socket. Called exactly once per session.
func (s *session) finish(cause Cause) {
	remaining := s.registry.Release()
	s.log.WithFields(logrus.Fields{
		"peer":     s.peer.String(),
		"duration": time.Since(s.connectedAt).Round(10 * time.Millisecond).String(),
		"bytes":    s.bytes,
		"cause":    string(cause),
		"clients":  remaining,
	}).Info("disconnect")
	s.conn.Close()
}
