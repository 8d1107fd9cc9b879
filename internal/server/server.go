package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tellerline/tellerline/internal/config"
	"github.com/tellerline/tellerline/internal/engine"
	"github.com/tellerline/tellerline/internal/idempotency"
	"github.com/tellerline/tellerline/internal/metrics"
)

// Server is the HTTP boundary of the engine: turn ingress, session control
// and metrics reads.
type Server struct {
	httpServer *http.Server
	handler    *Handler
}

func New(cfg config.ServerConfig, orch *engine.Orchestrator, agg *metrics.Aggregator, ledger *idempotency.Ledger, dedupeTTL string) (*Server, error) {
	readTimeout, err := config.DurationOrDefault(cfg.ReadTimeout, config.DefaultServerReadTimeout)
	if err != nil {
		return nil, err
	}
	writeTimeout, err := config.DurationOrDefault(cfg.WriteTimeout, config.DefaultServerWriteTimeout)
	if err != nil {
		return nil, err
	}
	idleTimeout, err := config.DurationOrDefault(cfg.IdleTimeout, config.DefaultServerIdleTimeout)
	if err != nil {
		return nil, err
	}
	ttl, err := config.DurationOrDefault(dedupeTTL, config.DefaultIngressIdempotencyTTL)
	if err != nil {
		return nil, err
	}

	h := &Handler{
		orchestrator: orch,
		aggregator:   agg,
		ledger:       ledger,
		dedupeTTL:    ttl,
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Health)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/turns", h.ProcessTurn)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Post("/end", h.EndSession)
		})
		r.Get("/metrics/daily", h.DailyMetrics)
	})

	port := cfg.Port
	if port <= 0 {
		port = config.DefaultServerPort
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      r,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  idleTimeout,
		},
		handler: h,
	}, nil
}

// Router exposes the mux for tests.
func (s *Server) Router() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	slog.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
