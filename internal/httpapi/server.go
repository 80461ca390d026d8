// Package httpapi exposes the feedback engine's HTTP surface: the
// hard-path ingest endpoint, plus thin supporting endpoints for listing,
// resolving, reviewing, and bulk-loading records.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/Mahirobot/aegis-feedback-engine/internal/ingestion"
	"github.com/Mahirobot/aegis-feedback-engine/internal/metrics"
	"github.com/Mahirobot/aegis-feedback-engine/internal/reconciliation"
	"github.com/Mahirobot/aegis-feedback-engine/internal/store"
)

// Server holds the HTTP listener and its router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
}

// New builds a Server wired to the ingestion pipeline, store, and
// reconciliation worker, listening on port, serving Prometheus metrics off
// reg.
func New(port int, pipeline *ingestion.Pipeline, st *store.Store, reconcileWorker *reconciliation.Worker, reg *prometheus.Registry, log *logrus.Logger) *Server {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		CorrelationIDMiddleware,
		middleware.Recoverer,
		metrics.HTTPMiddleware,
		AccessLogMiddleware(log),
		cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch},
			AllowedHeaders: []string{"Content-Type", "X-Correlation-ID"},
		}),
	)

	h := &handlers{pipeline: pipeline, store: st, reconcileWorker: reconcileWorker, log: log}

	r.Get("/healthz", h.health)
	r.Handle("/metrics", metrics.Handler(reg))

	r.Route("/feedback", func(r chi.Router) {
		r.Post("/", h.ingest)
		r.Get("/", h.list)
		r.Patch("/{id}/resolve", h.resolve)
		r.Post("/batch_csv", h.bulkUploadCSV)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Get("/stats", h.stats)
		r.Post("/reconcile", h.forceReconcile)
		r.Get("/reviews", h.reviewQueue)
		r.Get("/reviews/csv", h.reviewQueueCSV)
	})

	return &Server{
		router: r,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      r,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  15 * time.Second,
		},
	}
}

// Router exposes the underlying handler for tests that want to drive the
// routes directly via httptest without binding a real port.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, log *logrus.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", s.httpServer.Addr).Info("http server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	log.Info("http server shutting down")
	return s.httpServer.Shutdown(shutdownCtx)
}
