// Package metricsserver exposes the Prometheus scrape endpoint and a
// liveness endpoint over HTTP, adapted from the teacher's
// internal/infrastructure/metrics/server.go (which served only /metrics)
// to also answer /health from an internal/health.Manager.
package metricsserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tommy-ca/gridbot/internal/health"
	"github.com/tommy-ca/gridbot/internal/strategy"
)

// Server serves /metrics (Prometheus exposition format) and /health (JSON
// status per registered check) on one listener.
type Server struct {
	addr   string
	health *health.Manager
	logger strategy.Logger
	srv    *http.Server
}

// New builds a Server bound to addr (":<port>"), backed by health for the
// /health endpoint.
func New(addr string, health *health.Manager, logger strategy.Logger) *Server {
	return &Server{addr: addr, health: health, logger: logger}
}

// Start launches the HTTP listener in a background goroutine. Errors after
// startup are logged; call Stop to shut down cleanly.
func (s *Server) Start() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", s.handleHealth)

	s.srv = &http.Server{Addr: s.addr, Handler: mux}

	go func() {
		s.logger.Info("starting metrics server", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server failed", "err", err.Error())
		}
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.health.Status()
	w.Header().Set("Content-Type", "application/json")
	if !s.health.Healthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

// Stop gracefully shuts down the HTTP listener.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	s.logger.Info("stopping metrics server")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("metricsserver: shutdown: %w", err)
	}
	return nil
}
