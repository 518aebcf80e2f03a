// Package server is the synchronous HTTP surface of the job pipeline.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wraps the HTTP listener with routing and graceful shutdown.
type Server struct {
	httpServer      *http.Server
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

func New(addr string, shutdownTimeout time.Duration, h *Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	router := chi.NewRouter()
	router.Use(RequestLogger(logger))
	router.Use(Metrics())

	router.Get("/health", h.Health)
	router.Handle("/metrics", promhttp.Handler())
	router.Route("/jobs", func(r chi.Router) {
		r.Post("/", h.CreateJob)
		r.Get("/", h.ListJobs)
		r.Get("/{job_id}", h.GetJob)
		r.Put("/{job_id}/results", h.UpdateResults)
	})

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger:          logger,
		shutdownTimeout: shutdownTimeout,
	}
}

// Router exposes the handler tree for httptest-based tests.
func (s *Server) Router() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http.server.started", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	s.logger.Info("http.server.stopping")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("http.server.stopped")
	return nil
}
