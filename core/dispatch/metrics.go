package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	proposalsIngested *prometheus.CounterVec
	orchestrations    *prometheus.CounterVec
	staleWrites       *prometheus.CounterVec
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec, *prometheus.CounterVec) {
	ing := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proposals_ingested_total",
			Help: "Number of proposals received, by outcome",
		},
		[]string{"outcome"},
	)
	orc := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrations_total",
			Help: "Number of coordinator operations executed",
		},
		[]string{"operation"},
	)
	stale := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stale_writes_total",
			Help: "Number of guarded status updates that matched no row",
		},
		[]string{"entity"},
	)
	return ing, orc, stale
}

func init() {
	proposalsIngested, orchestrations, staleWrites = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers coordinator metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(proposalsIngested, orchestrations, staleWrites)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	proposalsIngested, orchestrations, staleWrites = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
