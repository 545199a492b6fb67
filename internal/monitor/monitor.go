package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reconciler Metrics
var (
	ReconcilerSweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "devspace",
		Subsystem: "reconciler",
		Name:      "sweeps_total",
		Help:      "Total number of periodic reconciliation sweeps",
	})

	ReconcilerCorrectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "devspace",
		Subsystem: "reconciler",
		Name:      "corrections_total",
		Help:      "Total number of session status corrections written by the reconciler",
	})
)

// Drift Poller Metrics
var (
	PollerCyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "devspace",
		Subsystem: "poller",
		Name:      "cycles_total",
		Help:      "Total number of provider drift poll cycles",
	})

	PollerDriftCorrectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "devspace",
		Subsystem: "poller",
		Name:      "drift_corrections_total",
		Help:      "Total number of workspace records corrected from provider state",
	})

	PollerProviderErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "devspace",
		Subsystem: "poller",
		Name:      "provider_errors_total",
		Help:      "Total number of failed provider status queries",
	})

	PollerCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "devspace",
		Subsystem: "poller",
		Name:      "cycle_duration_seconds",
		Help:      "Duration of a full drift poll cycle",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	})
)

// Orchestrator Metrics
var (
	LifecycleTasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "devspace",
		Subsystem: "orchestrator",
		Name:      "lifecycle_tasks_total",
		Help:      "Total number of processed workspace lifecycle tasks by verb and outcome",
	}, []string{"verb", "outcome"})

	ProviderCallLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "devspace",
		Subsystem: "orchestrator",
		Name:      "provider_call_latency_seconds",
		Help:      "Latency of provider gateway lifecycle calls",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
)

// Session Metrics
var (
	SessionActiveCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "devspace",
		Subsystem: "session",
		Name:      "active_count",
		Help:      "Number of sessions currently in active status",
	})
)
