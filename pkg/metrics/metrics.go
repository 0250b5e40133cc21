package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncRuns records finished sync runs by outcome (completed|failed|canceled).
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oktamirror_sync_runs_total",
			Help: "Total number of finished synchronization runs",
		},
		[]string{"outcome"},
	)

	// RecordsSynced counts upserted records per entity type.
	RecordsSynced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oktamirror_records_synced_total",
			Help: "Total number of records upserted during synchronization",
		},
		[]string{"entity"},
	)

	// ActiveSyncs tracks sync runs currently in flight.
	ActiveSyncs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "oktamirror_active_syncs",
			Help: "Number of synchronization runs in progress",
		},
	)

	// BatchDuration measures per-batch persistence latency.
	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oktamirror_batch_duration_seconds",
			Help:    "Time spent persisting one adapter batch",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"entity"},
	)

	// APIAuthFailures counts authentication failures reported by the Okta API.
	APIAuthFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oktamirror_api_auth_failures_total",
			Help: "Total number of authentication failures from the Okta API",
		},
	)
)
