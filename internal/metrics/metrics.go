// Package metrics exposes Prometheus collectors for the delivery tasks.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal counts finished runs by task and outcome (ok, fetch_error, error).
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtgbot_runs_total",
			Help: "Delivery runs by task and outcome.",
		},
		[]string{"task", "outcome"},
	)

	// SkippedRunsTotal counts triggers dropped because a run was still active.
	SkippedRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtgbot_skipped_runs_total",
			Help: "Triggers skipped because the task was already running.",
		},
		[]string{"task"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mtgbot_run_duration_seconds",
			Help:    "Wall time of a delivery run.",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"task"},
	)

	// DeliveriesTotal counts per-item send outcomes (delivered, failed, uncommitted).
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtgbot_deliveries_total",
			Help: "Per-item delivery outcomes by task and category.",
		},
		[]string{"task", "category", "outcome"},
	)

	LastSuccessTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mtgbot_last_success_timestamp_seconds",
			Help: "Unix time of the last run that completed finalization.",
		},
		[]string{"task"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mtgbot_circuit_breaker_state",
			Help: "Upstream breaker state (0 closed, 1 half-open, 2 open).",
		},
		[]string{"name"},
	)

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtgbot_upstream_requests_total",
			Help: "Upstream HTTP requests by breaker name and result (success, failure, rejected).",
		},
		[]string{"name", "result"},
	)
)
