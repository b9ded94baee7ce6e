package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Control cycle and background task collectors.

var (
	// Control cycle
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "drivectl",
		Subsystem: "cycle",
		Name:      "duration_seconds",
		Help:      "Control cycle processing duration",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
	})

	CycleErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "drivectl",
		Subsystem: "cycle",
		Name:      "errors_total",
		Help:      "Control cycles skipped because derivation failed",
	}, []string{"reason"})

	PlansPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "drivectl",
		Subsystem: "cycle",
		Name:      "plans_published_total",
		Help:      "Total plan records published",
	})

	PlannerResets = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "drivectl",
		Subsystem: "cycle",
		Name:      "planner_resets_total",
		Help:      "Planner rebuilt on a started/stopped transition",
	})

	// Task scheduler
	TaskDispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "drivectl",
		Subsystem: "tasks",
		Name:      "dispatches_total",
		Help:      "Task dispatch attempts by outcome (launched, running, locked)",
	}, []string{"task", "outcome"})

	TasksRunning = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "drivectl",
		Subsystem: "tasks",
		Name:      "running",
		Help:      "Background task executions in flight",
	}, []string{"task"})

	TaskPanics = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "drivectl",
		Subsystem: "tasks",
		Name:      "panics_total",
		Help:      "Background task executions that panicked",
	}, []string{"task"})

	// MQTT
	MQTTDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "drivectl",
		Subsystem: "mqtt",
		Name:      "dropped_total",
		Help:      "Outgoing messages dropped because the sender queue was full",
	}, []string{"topic"})

	// Maintenance
	ReachabilityFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "drivectl",
		Subsystem: "maintenance",
		Name:      "reachability_failures_total",
		Help:      "Reachability checks abandoned after retry exhaustion",
	})
)
