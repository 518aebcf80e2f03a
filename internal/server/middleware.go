package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ftd_http_requests_total",
			Help: "HTTP requests to the job API",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ftd_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// statusWriter captures the response status for logging and metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func newStatusWriter(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w, status: http.StatusOK}
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

// RequestLogger logs one line per request; server errors at Error level,
// client errors at Warn.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"elapsed_ms", time.Since(start).Milliseconds(),
				"remote", r.RemoteAddr,
			}
			switch {
			case sw.status >= 500:
				logger.Error("http.request", attrs...)
			case sw.status >= 400:
				logger.Warn("http.request", attrs...)
			default:
				logger.Info("http.request", attrs...)
			}
		})
	}
}

// Metrics records request counts and latency. Paths are normalized so job
// ids do not blow up label cardinality.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)

			path := normalizePath(r.URL.Path)
			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(sw.status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// normalizePath replaces job-id path segments with {id}.
// /jobs/a1b2... → /jobs/{id}; /jobs/a1b2.../results → /jobs/{id}/results
func normalizePath(path string) string {
	switch path {
	case "/jobs", "/health", "/metrics":
		return path
	}

	const prefix = "/jobs/"
	if strings.HasPrefix(path, prefix) {
		if strings.HasSuffix(path, "/results") {
			return "/jobs/{id}/results"
		}
		return "/jobs/{id}"
	}
	return path
}
