package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/responder/core/metrics"
	"github.com/kilianp07/responder/core/model"
)

type lineRecorder struct {
	mu     sync.Mutex
	bodies []string
}

func (l *lineRecorder) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		l.mu.Lock()
		l.bodies = append(l.bodies, strings.TrimSpace(string(data)))
		l.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (l *lineRecorder) lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.bodies...)
}

func line(p *write.Point) string {
	return strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
}

func TestInfluxSink_RecordTransition(t *testing.T) {
	rec := &lineRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()
	now := time.Now()

	ev := coremetrics.TransitionEvent{
		Operation: "validate",
		Kind:      model.KindIntervention,
		EventID:   "E",
		VehicleID: "A",
		To:        "Committed",
		Applied:   true,
		Time:      now,
	}
	if err := sink.RecordTransition(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("transition").
		AddTag("operation", "validate").
		AddTag("kind", "intervention").
		AddTag("to", "Committed").
		AddTag("applied", "true").
		AddTag("event_id", "E").
		AddTag("vehicle_id", "A").
		AddField("count", 1).
		SetTime(now)
	if got := rec.lines(); len(got) != 1 || got[0] != line(p) {
		t.Errorf("unexpected body: %#v", got)
	}
}

func TestInfluxSink_RecordTransitionWithoutVehicle(t *testing.T) {
	rec := &lineRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()
	now := time.Now()

	if err := sink.RecordTransition(coremetrics.TransitionEvent{
		Operation: "close", Kind: model.KindEvent, EventID: "E", To: "Resolved", Applied: false, Time: now,
	}); err != nil {
		t.Fatalf("record error: %v", err)
	}
	got := rec.lines()
	if len(got) != 1 || strings.Contains(got[0], "vehicle_id") {
		t.Errorf("unexpected body: %#v", got)
	}
}

func TestInfluxSink_RecordOrchestration(t *testing.T) {
	rec := &lineRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()
	now := time.Now()

	ev := coremetrics.OrchestrationEvent{
		Operation: "validate",
		EventID:   "E",
		Committed: 2,
		Cancelled: 1,
		Reverted:  1,
		Duration:  1500 * time.Microsecond,
		Err:       "store down",
		Time:      now,
	}
	if err := sink.RecordOrchestration(ev); err != nil {
		t.Fatalf("record: %v", err)
	}
	p := write.NewPointWithMeasurement("orchestration").
		AddTag("operation", "validate").
		AddTag("event_id", "E").
		AddField("committed", 2).
		AddField("cancelled", 1).
		AddField("reverted", 1).
		AddField("duration_ms", 1.5).
		AddField("error", "store down").
		SetTime(now)
	if got := rec.lines(); len(got) != 1 || got[0] != line(p) {
		t.Errorf("bodies: %#v", got)
	}
}

func TestInfluxSink_RecordVehicleState(t *testing.T) {
	rec := &lineRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()
	now := time.Now()

	ev := coremetrics.VehicleStateEvent{
		Vehicle: model.VehicleSnapshot{
			ID:       "V1",
			Status:   "EnRoute",
			Station:  "North",
			Location: model.Location{Latitude: 45.75, Longitude: 4.85},
		},
		Time: now,
	}
	if err := sink.RecordVehicleState(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("vehicle_state").
		AddTag("vehicle_id", "V1").
		AddTag("station", "North").
		AddField("status", "EnRoute").
		AddField("latitude", 45.75).
		AddField("longitude", 4.85).
		SetTime(now)
	if got := rec.lines(); len(got) != 1 || got[0] != line(p) {
		t.Errorf("unexpected bodies: %#v", got)
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
