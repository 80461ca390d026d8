// Package metrics registers the engine's Prometheus collectors: HTTP
// request counts/latency, race-orchestrator outcomes, and reconciliation
// throughput, alongside the standard Go runtime collectors.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_http_requests_total",
			Help: "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedback_http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// RaceOutcomesTotal counts how the race orchestrator resolved each
	// classification: ai (LLM won), fallback_timeout, fallback_error.
	RaceOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_race_outcomes_total",
			Help: "Outcomes of the race orchestrator's LLM-vs-deadline race.",
		},
		[]string{"outcome"},
	)

	// ReconciliationUpgradesTotal counts fallback-to-AI upgrades performed
	// by the reconciliation worker, and whether they flagged needs_review.
	ReconciliationUpgradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_reconciliation_upgrades_total",
			Help: "Fallback-to-AI reconciliation upgrades performed.",
		},
		[]string{"needs_review"},
	)

	// AlertDeliveryTotal counts urgent-alert delivery attempts by outcome.
	AlertDeliveryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_alert_delivery_total",
			Help: "Urgent alert delivery attempts.",
		},
		[]string{"outcome"},
	)
)

var (
	initOnce sync.Once
	registry *prometheus.Registry
)

// Init registers all collectors exactly once and returns the shared
// registry.
func Init() *prometheus.Registry {
	initOnce.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			httpRequestsTotal,
			httpRequestDurationSeconds,
			RaceOutcomesTotal,
			ReconciliationUpgradesTotal,
			AlertDeliveryTotal,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
	return registry
}

// Handler serves the registry in the Prometheus text exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// HTTPMiddleware records request counts and latency by method, path, and
// status code.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lw := &statusCapturingWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(lw.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpRequestDurationSeconds.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
	})
}

type statusCapturingWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusCapturingWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
