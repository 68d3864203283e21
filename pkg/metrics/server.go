package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/logger"
)

// Server exposes a gatherer on its own port so scrapes never compete with
// ad traffic for the main server's rate limit and timeouts.
type Server struct {
	router   chi.Router
	server   *http.Server
	listener net.Listener
	logger   *slog.Logger
}

// NewServer serves g at /metrics on addr. Use ":0" to pick a free port.
func NewServer(addr string, g prometheus.Gatherer) *Server {
	r := chi.NewRouter()
	r.Handle("/metrics", Handler(g))
	return &Server{
		router: r,
		server: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		logger: logger.WithComponent("metrics-server"),
	}
}

// Mount adds an extra GET route, such as a readiness probe. Call it before
// Start.
func (s *Server) Mount(pattern string, h http.Handler) {
	s.router.Method(http.MethodGet, pattern, h)
}

// Start binds the listener and serves in the background. A bind failure is
// returned; later serve errors are logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("metrics listener on %s: %w", s.server.Addr, err)
	}
	s.listener = ln
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server error", "error", err)
		}
	}()
	s.logger.Info("metrics server listening", "addr", ln.Addr().String())
	return nil
}

// Addr is the bound address once Start has returned.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.server.Addr
	}
	return s.listener.Addr().String()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
