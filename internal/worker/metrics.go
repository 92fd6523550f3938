package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus collectors for worker invocations, labelled by worker type.
// These complement the per-runtime cumulative metrics, which remain the
// source of truth for health reports.
var (
	invocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sage",
		Subsystem: "worker",
		Name:      "invocations_total",
		Help:      "Worker invocations by worker type and outcome.",
	}, []string{"worker_type", "outcome"})

	executionSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sage",
		Subsystem: "worker",
		Name:      "execution_seconds",
		Help:      "Successful worker execution time in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"worker_type"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sage",
		Subsystem: "worker",
		Name:      "retries_total",
		Help:      "Retry attempts by worker type.",
	}, []string{"worker_type"})
)
