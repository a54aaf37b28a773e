package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BatchesTotal counts completed batches.
	BatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mender_batches_total",
			Help: "Total number of batches processed",
		},
	)

	// ItemsTotal counts terminal item outcomes by category.
	ItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mender_items_total",
			Help: "Total number of work items with a terminal result",
		},
		[]string{"outcome"},
	)

	// GenerateAttempts counts generate+validate cycles across all items.
	GenerateAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mender_generate_attempts_total",
			Help: "Total number of candidate generation attempts",
		},
	)

	// InFlight tracks currently executing pipelines.
	InFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mender_pipelines_in_flight",
			Help: "Number of pipelines currently executing",
		},
	)

	// PipelineDuration tracks per-item pipeline latency.
	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mender_pipeline_duration_seconds",
			Help:    "Pipeline execution time per work item",
			Buckets: prometheus.DefBuckets,
		},
	)

	// QueuePending tracks pending work items in the queue.
	QueuePending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mender_queue_pending",
			Help: "Number of pending work items in the queue",
		},
	)

	// DBConnectionPoolUsage tracks database pool utilization percentage.
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mender_db_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)

	// CollaboratorCalls counts outbound collaborator calls by target and result.
	CollaboratorCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mender_collaborator_calls_total",
			Help: "Total calls to external collaborators",
		},
		[]string{"target", "result"},
	)
)
