// Package metrics registers the Prometheus instruments for the job
// pipeline. HTTP-level metrics live in the server middleware.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ftd_jobs_created_total",
			Help: "Jobs accepted by the API, by mode",
		},
		[]string{"mode"},
	)

	jobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ftd_jobs_completed_total",
			Help: "Jobs that reached COMPLETED, by mode",
		},
		[]string{"mode"},
	)

	jobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ftd_jobs_failed_total",
			Help: "Jobs that reached FAILED, by mode",
		},
		[]string{"mode"},
	)

	maskedEntities = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ftd_masked_entities_total",
			Help: "Sensitive values replaced by tokens, by entity type",
		},
		[]string{"type"},
	)

	pipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ftd_pipeline_duration_seconds",
			Help:    "End-to-end processing time per job in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"mode"},
	)
)

func JobCreated(mode string)   { jobsCreated.WithLabelValues(mode).Inc() }
func JobCompleted(mode string) { jobsCompleted.WithLabelValues(mode).Inc() }
func JobFailed(mode string)    { jobsFailed.WithLabelValues(mode).Inc() }

func MaskedEntity(entityType string, n int) {
	maskedEntities.WithLabelValues(entityType).Add(float64(n))
}

func ObservePipeline(mode string, d time.Duration) {
	pipelineDuration.WithLabelValues(mode).Observe(d.Seconds())
}
