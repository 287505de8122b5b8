// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

var (
	UpsellMetadataBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "upsell_metadata_build_duration_seconds",
			Help:    "Time spent loading signals and building ranking metadata",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	UpsellMetadataCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upsell_metadata_cache_total",
			Help: "Ranking metadata cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	UpsellRecommendationsReturned = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upsell_recommendations_returned",
			Help:    "Number of recommendations returned per call",
			Buckets: []float64{0, 1, 2, 3, 4, 6, 8, 12, 20, 50},
		},
		[]string{"operation"},
	)

	UpsellHistoryAppendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upsell_history_append_failures_total",
			Help: "Simulations returned without being recorded in history",
		},
	)

	UpsellEventPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upsell_event_publish_failures_total",
			Help: "Simulation recorded events that could not be published",
		},
	)
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served by route and status",
		},
		[]string{"route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "HTTP request latency by route",
		},
		[]string{"route"},
	)
)
