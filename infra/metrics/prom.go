package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	coremetrics "github.com/kilianp07/responder/core/metrics"
	"github.com/kilianp07/responder/infra/logger"
)

// PromSink records coordinator transitions in Prometheus metrics.
type PromSink struct {
	transitions   *prometheus.CounterVec
	orchestration *prometheus.HistogramVec
	vehicleStates *prometheus.CounterVec
}

// NewPromSink registers transition metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_transitions_total",
		Help: "Guarded status transitions attempted by the coordinator",
	}, []string{"operation", "kind", "to", "applied"})
	orchestration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orchestration_duration_seconds",
		Help:    "Duration of coordinator operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	vehicleStates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vehicle_state_broadcasts_total",
		Help: "Vehicle snapshots broadcast to live subscribers, by status",
	}, []string{"status"})

	var err error
	if transitions, err = register(reg, transitions); err != nil {
		return nil, err
	}
	if orchestration, err = register(reg, orchestration); err != nil {
		return nil, err
	}
	if vehicleStates, err = register(reg, vehicleStates); err != nil {
		return nil, err
	}
	return &PromSink{transitions: transitions, orchestration: orchestration, vehicleStates: vehicleStates}, nil
}

// register adds c to reg, reusing an identical collector registered earlier.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordTransition increments the transition counter.
func (s *PromSink) RecordTransition(ev coremetrics.TransitionEvent) error {
	s.transitions.WithLabelValues(ev.Operation, string(ev.Kind), ev.To, strconv.FormatBool(ev.Applied)).Inc()
	return nil
}

// RecordOrchestration observes the duration of one coordinator call.
func (s *PromSink) RecordOrchestration(ev coremetrics.OrchestrationEvent) error {
	s.orchestration.WithLabelValues(ev.Operation).Observe(ev.Duration.Seconds())
	return nil
}

// RecordVehicleState counts a broadcast vehicle snapshot.
func (s *PromSink) RecordVehicleState(ev coremetrics.VehicleStateEvent) error {
	s.vehicleStates.WithLabelValues(ev.Vehicle.Status).Inc()
	return nil
}

// StartPromServer exposes the default registry on addr under /metrics and
// shuts the server down when ctx is cancelled.
func StartPromServer(ctx context.Context, addr string) *http.Server {
	log := logger.New("prometheus")
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Infof("serving metrics on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics server: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return srv
}

var (
	_ coremetrics.MetricsSink           = (*PromSink)(nil)
	_ coremetrics.OrchestrationRecorder = (*PromSink)(nil)
	_ coremetrics.VehicleStateRecorder  = (*PromSink)(nil)
)
