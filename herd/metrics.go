package herd

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// membersGauge tracks the current member count of each herd.
	membersGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tickfsm_herd_members",
		Help: "Current number of machines in the herd",
	}, []string{"herd"})

	// ticksTotal counts herd-wide ticks.
	ticksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tickfsm_herd_ticks_total",
		Help: "Total number of herd ticks",
	}, []string{"herd"})

	// tickDuration tracks how long stepping every member takes.
	tickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tickfsm_herd_tick_duration_seconds",
		Help:    "Duration of a herd tick across all members",
		Buckets: prometheus.DefBuckets,
	}, []string{"herd"})

	// graphReplacements counts graph swaps.
	graphReplacements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tickfsm_herd_graph_replacements_total",
		Help: "Total number of graph replacements by herd",
	}, []string{"herd"})
)
