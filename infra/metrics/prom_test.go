package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/responder/core/factory"
	coremetrics "github.com/kilianp07/responder/core/metrics"
	"github.com/kilianp07/responder/core/model"
)

func TestPromSink_RecordTransition(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	ev := coremetrics.TransitionEvent{Operation: "validate", Kind: model.KindVehicle, VehicleID: "A", To: "EnRoute", Applied: true}
	require.NoError(t, sink.RecordTransition(ev))
	require.NoError(t, sink.RecordTransition(ev))
	ev.Applied = false
	require.NoError(t, sink.RecordTransition(ev))

	assert.Equal(t, 2.0, testutil.ToFloat64(sink.transitions.WithLabelValues("validate", "vehicle", "EnRoute", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.transitions.WithLabelValues("validate", "vehicle", "EnRoute", "false")))
}

func TestPromSink_RecordOrchestrationAndVehicleState(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordOrchestration(coremetrics.OrchestrationEvent{Operation: "close", Duration: 20 * time.Millisecond}))
	require.NoError(t, sink.RecordVehicleState(coremetrics.VehicleStateEvent{Vehicle: model.VehicleSnapshot{ID: "A", Status: "OnScene"}}))

	n, err := testutil.GatherAndCount(reg, "orchestration_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.vehicleStates.WithLabelValues("OnScene")))
}

func TestPromSink_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	second, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, second.RecordTransition(coremetrics.TransitionEvent{Operation: "ingest", Kind: model.KindIntervention, To: "Pending", Applied: true}))
	assert.Equal(t, 1.0, testutil.ToFloat64(first.transitions.WithLabelValues("ingest", "intervention", "Pending", "true")))
}

func TestPromSink_ConflictingCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGauge(prometheus.GaugeOpts{Name: "dispatch_transitions_total", Help: "conflict"}))
	_, err := NewPromSinkWithRegistry(reg)
	assert.Error(t, err)
}

func TestRegisteredSinkTypes(t *testing.T) {
	types := coremetrics.SinkTypes()
	assert.Contains(t, types, "nop")
	assert.Contains(t, types, "prometheus")
	assert.Contains(t, types, "influx")

	sink, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "prometheus"}})
	require.NoError(t, err)
	assert.IsType(t, &PromSink{}, sink)
}

func TestStartPromServer(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartPromServer(ctx, addr)

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		body = string(data)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)
	assert.True(t, strings.Contains(body, "go_goroutines"))
}
