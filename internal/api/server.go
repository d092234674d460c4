// Package api is the HTTP serving boundary: a thin JSON layer over the
// search engine plus health, stats, and Prometheus endpoints.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/searchworks/partfuse/internal/config"
	"github.com/searchworks/partfuse/internal/search"
	"github.com/searchworks/partfuse/internal/store"
	"github.com/searchworks/partfuse/internal/telemetry"
)

// ShutdownGracePeriod is how long in-flight requests get to finish.
const ShutdownGracePeriod = 10 * time.Second

// Server serves the search API.
type Server struct {
	engine  *search.Engine
	cfg     config.ServerConfig
	metrics *telemetry.QueryMetrics
	prom    *telemetry.PrometheusMetrics

	// stats reports snapshot state for /healthz. Optional.
	stats func() store.Stats

	httpServer *http.Server
}

// Option configures optional server collaborators.
type Option func(*Server)

// WithQueryMetrics wires the /api/stats snapshot source.
func WithQueryMetrics(m *telemetry.QueryMetrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithPrometheus wires /metrics and the HTTP instrumentation middleware.
func WithPrometheus(p *telemetry.PrometheusMetrics) Option {
	return func(s *Server) { s.prom = p }
}

// WithSnapshotStats wires the snapshot readiness probe for /healthz.
func WithSnapshotStats(fn func() store.Stats) Option {
	return func(s *Server) { s.stats = fn }
}

// NewServer builds the server around the engine.
func NewServer(engine *search.Engine, cfg config.ServerConfig, opts ...Option) (*Server, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}

	s := &Server{engine: engine, cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port)),
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s, nil
}

// routes assembles the handler chain.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/query", s.handleQuery)
	mux.HandleFunc("GET /api/dense", s.handleDense)
	mux.HandleFunc("GET /api/sparse", s.handleSparse)
	mux.HandleFunc("GET /api/hybrid", s.handleHybrid)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	if s.prom != nil && s.cfg.Metrics {
		mux.Handle("GET /metrics", s.prom.Handler())
	}

	var handler http.Handler = mux
	if s.prom != nil {
		handler = s.prom.Middleware(handler)
	}
	handler = withRateLimit(s.cfg.RateLimit, s.cfg.RateBurst, handler)
	handler = withAccessLog(handler)
	handler = withRequestID(handler)
	handler = withRecover(handler)
	return handler
}

// Handler exposes the assembled handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests for up to ShutdownGracePeriod.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}

	slog.Info("server_listening", slog.String("addr", listener.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(listener)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownGracePeriod)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	slog.Info("server_stopped")
	return ctx.Err()
}

// Close shuts the server down immediately.
func (s *Server) Close() error {
	return s.httpServer.Close()
}
