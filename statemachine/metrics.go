package statemachine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric definitions with appropriate labels. Machine IDs are deliberately
// not labels; a herd may hold thousands of machines.
var (
	// stepsTotal counts steps by graph, source state and outcome (transition, stay or error).
	stepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tickfsm_steps_total",
		Help: "Total number of machine steps by graph, state and outcome",
	}, []string{"graph", "state", "outcome"})

	// transitionsTotal counts fired transitions.
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tickfsm_transitions_total",
		Help: "Total number of fired transitions by graph, from_state and to_state",
	}, []string{"graph", "from_state", "to_state"})

	// diagnosticsTotal counts steps that produced condition or fact-store diagnostics.
	diagnosticsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tickfsm_step_diagnostics_total",
		Help: "Total number of steps that reported diagnostics by graph and state",
	}, []string{"graph", "state"})

	// stepDuration tracks how long a single step takes.
	stepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tickfsm_step_duration_seconds",
		Help:    "Duration of a single machine step by graph",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	}, []string{"graph"})
)

func sanitizeGraph(name string) string {
	if name == "" {
		return "unnamed"
	}

	return name
}
