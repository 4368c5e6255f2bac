package tarpit

import (
	"errors"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// acceptBackoff is how long an accept loop pauses after a transient error,
// typically fd exhaustion under an aggressive scan.
const acceptBackoff = 100 * time.Millisecond

// listener runs the accept loop for one bound address. A broken listening
// socket stops this listener only; the rest of the daemon keeps serving.
type listener struct {
	ln  net.Listener
	srv *Server
}

func (l *listener) run() error {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if !l.handleAcceptError(err) {
				return nil
			}
			continue
		}
		l.srv.handleConn(conn)
	}
}

// handleAcceptError reports whether the accept loop should continue.
func (l *listener) handleAcceptError(err error) bool {
	select {
	case <-l.srv.listeners.Dying():
		return false
	default:
	}

	if errors.Is(err, net.ErrClosed) {
		return false
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Temporary() {
		l.srv.log.WithFields(logrus.Fields{
			"addr":  l.ln.Addr().String(),
			"error": err.Error(),
			"wait":  acceptBackoff.String(),
		}).Warn("accept")
		select {
		case <-l.srv.listeners.Dying():
			return false
		case <-time.After(acceptBackoff):
		}
		return true
	}

	l.srv.log.WithFields(logrus.Fields{
		"addr":  l.ln.Addr().String(),
		"error": err.Error(),
	}).Error("accept failed, stopping listener")
	return false
}
