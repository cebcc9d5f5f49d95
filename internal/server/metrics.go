package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geoopt_runs_total",
		Help: "Optimization runs by terminal state.",
	}, []string{"state"})

	evaluationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geoopt_evaluations_total",
		Help: "Candidate evaluations across all runs.",
	})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "geoopt_run_duration_seconds",
		Help:    "Wall-clock duration of optimization runs.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)
