package notify

import "github.com/prometheus/client_golang/prometheus"

var (
	broadcasts  *prometheus.CounterVec
	subscribers prometheus.Gauge
	evictions   prometheus.Counter
)

func newCollectors() (*prometheus.CounterVec, prometheus.Gauge, prometheus.Counter) {
	b := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_broadcast_total",
			Help: "Number of snapshot broadcasts per topic",
		},
		[]string{"topic"},
	)
	s := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_subscribers",
			Help: "Number of live notification subscribers",
		},
	)
	e := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_evictions_total",
			Help: "Number of subscribers dropped because they could not keep up",
		},
	)
	return b, s, e
}

func init() {
	broadcasts, subscribers, evictions = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers fan-out metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(broadcasts, subscribers, evictions)
}

// ResetMetrics reinitializes collectors for tests and registers them on reg
// when not nil.
func ResetMetrics(reg prometheus.Registerer) {
	broadcasts, subscribers, evictions = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
