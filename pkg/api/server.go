// Package api serves the optional HTTP status surface: a JSON snapshot of
// the live counters and the Prometheus metrics endpoint. The listener is
// bound during bootstrap, before privileges are dropped, like every other
// socket the daemon owns.
package api

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/carbocation/interpose"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/dobrevit/tarpitd/pkg/stats"
)

// StatusServer exposes /status and /metrics.
type StatusServer struct {
	registry *stats.Registry
	log      *logrus.Logger
	ln       net.Listener
	srv      *http.Server
}

// NewStatusServer wires the router and middleware chain.
func NewStatusServer(registry *stats.Registry, promReg *prometheus.Registry, log *logrus.Logger) *StatusServer {
	s := &StatusServer{
		registry: registry,
		log:      log,
	}

	router := mux.NewRouter()
	router.HandleFunc("/status", s.handleStatus).Methods("GET")
	router.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})).Methods("GET")

	middle := interpose.New()
	middle.Use(requestLogging(log))
	middle.Use(recovery(log))
	middle.UseHandler(router)

	s.srv = &http.Server{
		Handler:      middle,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Bind opens the status listener. Separate from Serve so bootstrap can bind
// everything before dropping privileges.
func (s *StatusServer) Bind(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.log.WithField("addr", ln.Addr().String()).Info("status listen")
	return nil
}

// Addr returns the bound address, or nil before Bind.
func (s *StatusServer) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve runs the HTTP server until Close.
func (s *StatusServer) Serve() {
	go func() {
		if err := s.srv.Serve(s.ln); err != nil && err != http.ErrServerClosed {
			s.log.WithField("error", err.Error()).Error("status server")
		}
	}()
}

// Close stops the status server.
func (s *StatusServer) Close() error {
	return s.srv.Close()
}

// StatusResponse is the JSON shape of /status.
type StatusResponse struct {
	CurrentClients int64  `json:"current_clients"`
	TotalClients   uint64 `json:"total_clients"`
	TotalBytes     uint64 `json:"total_bytes"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
}

func (s *StatusServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.registry.Snapshot()
	resp := StatusResponse{
		CurrentClients: snap.CurrentClients,
		TotalClients:   snap.TotalClients,
		TotalBytes:     snap.TotalBytes,
		UptimeSeconds:  int64(snap.Uptime.Seconds()),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.WithField("error", err.Error()).Error("encode status")
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func requestLogging(log *logrus.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			log.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   wrapped.statusCode,
				"duration": time.Since(start).String(),
				"remote":   r.RemoteAddr,
			}).Debug("status request")
		})
	}
}

func recovery(log *logrus.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(logrus.Fields{
						"error": err,
						"path":  r.URL.Path,
					}).Error("panic in status handler")
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
