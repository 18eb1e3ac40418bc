// Package server provides HTTP server wiring and lifecycle management for
// ledger-sandbox.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/net/netutil"

	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/config"
	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/logutil"
	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/metrics"
	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/ratelimit"
)

var ErrMissingMetrics = errors.New("server metrics not initialized")

// Mounter registers routes on a router. The ledger API handler implements it.
type Mounter interface {
	Mount(r chi.Router)
}

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg        *config.SandboxConfig
	httpServer *http.Server
	logger     *slog.Logger
	api        Mounter
	metrics    *metrics.ServerMetrics
	gatherer   prometheus.Gatherer

	// rnd drives fault injection. Nil uses math/rand.
	rnd func() float64

	limiter *ratelimit.Limiter

	mu       sync.Mutex
	listener net.Listener
}

// Option configures a Server.
type Option func(*Server)

// WithFaultRand replaces the random source used for fault injection.
func WithFaultRand(rnd func() float64) Option {
	return func(s *Server) { s.rnd = rnd }
}

// WithRateLimiter caps requests per client on the ledger routes.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// New creates a new Server. gatherer backs /metrics; nil disables the endpoint.
func New(cfg *config.SandboxConfig, logger *slog.Logger, api Mounter, m *metrics.ServerMetrics, gatherer prometheus.Gatherer, opts ...Option) (*Server, error) {
	logger = logutil.NoopIfNil(logger)
	if m == nil {
		return nil, ErrMissingMetrics
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		api:      api,
		metrics:  m,
		gatherer: gatherer,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30*time.Second + cfg.Faults.Latency(),
		IdleTimeout:       60 * time.Second,
	}

	return s, nil
}

// Handler returns the root handler, for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens on the configured address and serves until Shutdown. It
// blocks and returns http.ErrServerClosed after a graceful shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.ListenAddr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln, capping concurrent connections when
// max_connections is set.
func (s *Server) Serve(ln net.Listener) error {
	if s.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("starting server",
		"addr", ln.Addr().String(),
		"max_connections", s.cfg.MaxConnections,
		"store", s.cfg.Store.Driver,
		"latency_ms", s.cfg.Faults.LatencyMS,
		"fail_rate", s.cfg.Faults.FailRate,
		"rate_limit", s.limiter != nil,
	)
	return s.httpServer.Serve(ln)
}

// Addr returns the bound address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.httpServer.Shutdown(ctx)
}
