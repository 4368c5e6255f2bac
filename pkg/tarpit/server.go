package tarpit

import (
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/tomb.v2"

	"github.com/dobrevit/tarpitd/pkg/stats"
)

// Server owns the engine: bound sockets, the accept loops and every running
// session. Bind, Start and Stop must be called in that order, from one
// goroutine; the spawned work is what runs concurrently.
type Server struct {
	cfg      Config
	registry *stats.Registry
	log      *logrus.Logger

	bound []net.Listener

	// Accept loops live in the tomb; sessions use a broadcast channel plus
	// WaitGroup so shutdown can either cancel them or drain them without
	// killing the broadcast.
	listeners tomb.Tomb
	sessions  sync.WaitGroup
	cancel    chan struct{}

	stopOnce sync.Once
}

// NewServer creates an engine with cfg's zero fields replaced by defaults.
func NewServer(cfg Config, registry *stats.Registry, log *logrus.Logger) *Server {
	return &Server{
		cfg:      cfg.withDefaults(),
		registry: registry,
		log:      log,
		cancel:   make(chan struct{}),
	}
}

// Bind opens every listening socket. Any failure closes the sockets bound so
// far and aborts; listeners are not optional. Bind happens before privilege
// drop, so it must be called before Start.
func (s *Server) Bind(addrs []string) error {
	if len(addrs) == 0 {
		return fmt.Errorf("no listen addresses configured")
	}
	for _, addr := range addrs {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			s.closeBound()
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		s.log.WithField("addr", ln.Addr().String()).Info("listen")
		s.bound = append(s.bound, ln)
	}
	return nil
}

// Addrs returns the bound listener addresses, useful when binding port 0.
func (s *Server) Addrs() []net.Addr {
	addrs := make([]net.Addr, 0, len(s.bound))
	for _, ln := range s.bound {
		addrs = append(addrs, ln.Addr())
	}
	return addrs
}

// Start launches one accept loop per bound socket.
func (s *Server) Start() {
	s.log.WithFields(logrus.Fields{
		"listeners":   len(s.bound),
		"max_clients": s.cfg.MaxClients,
		"delay":       s.cfg.Delay.String(),
		"timeout":     s.cfg.Timeout.String(),
	}).Info("start")

	for _, ln := range s.bound {
		l := &listener{ln: ln, srv: s}
		s.listeners.Go(l.run)
	}
}

// Stop shuts the engine down: accept loops first, then sessions, which are
// cancelled immediately unless the drain policy is configured. Safe to call
// more than once; it blocks until every session has reached a terminal state.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.listeners.Kill(nil)
		s.closeBound()
		s.listeners.Wait()

		if !s.cfg.Drain {
			close(s.cancel)
		}
		s.sessions.Wait()
	})
}

func (s *Server) closeBound() {
	for _, ln := range s.bound {
		ln.Close()
	}
}

// handleConn runs the admission check for a freshly accepted socket and
// spawns a session on admission. The check-then-confirm is deliberately not
// transactional: a burst of concurrent accepts may overshoot the ceiling
// briefly, and the overshoot converges as soon as the losers retract.
func (s *Server) handleConn(conn net.Conn) {
	peer := conn.RemoteAddr()

	current := s.registry.Admit()
	if current > s.cfg.MaxClients {
		s.registry.Retract()
		s.log.WithFields(logrus.Fields{
			"peer":    peer.String(),
			"clients": current,
		}).Info("reject")
		conn.Close()
		return
	}
	s.registry.Confirm()

	entry := s.log.WithFields(s.peerFields(peer))
	entry.WithFields(logrus.Fields{
		"peer":    peer.String(),
		"clients": current,
	}).Info("connect")

	tuneConn(conn, s.log)

	sess := newSession(conn, s.cfg, s.registry, entry)
	s.sessions.Add(1)
	go func() {
		defer s.sessions.Done()
		sess.run(s.cancel)
	}()
}

func (s *Server) peerFields(peer net.Addr) logrus.Fields {
	if s.cfg.PeerInfo == nil {
		return nil
	}
	return s.cfg.PeerInfo.Fields(peer)
}

// tuneConn shrinks the socket buffers so each trapped peer costs as little
// kernel memory as possible. Failures are harmless.
func tuneConn(conn net.Conn, log *logrus.Logger) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	if err := tc.SetReadBuffer(1); err != nil {
		log.WithField("error", err.Error()).Warn("set read buffer")
	}
	if err := tc.SetWriteBuffer(16); err != nil {
		log.WithField("error", err.Error()).Warn("set write buffer")
	}
}
