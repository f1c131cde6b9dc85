// Package server is the thin HTTP surface over the search pipeline:
// request decoding and validation, error mapping, health and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tooldex/tooldex/pkg/config"
	"github.com/tooldex/tooldex/pkg/observability"
	"github.com/tooldex/tooldex/pkg/pipeline"
)

// Server hosts the search API.
type Server struct {
	orchestrator *pipeline.Orchestrator
	metrics      *observability.Metrics
	cfg          config.ServerConfig
	logger       *slog.Logger
	httpServer   *http.Server
}

func New(orchestrator *pipeline.Orchestrator, metrics *observability.Metrics, cfg config.ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.SetDefaults()
	s := &Server{
		orchestrator: orchestrator,
		metrics:      metrics,
		cfg:          cfg,
		logger:       logger,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Post("/api/search", s.handleSearch)
	router.Get("/health", s.handleHealth)
	if metrics != nil {
		router.Handle("/metrics", metrics.Handler())
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.httpServer.Handler
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
