package metrics

import (
	"time"

	"github.com/kilianp07/responder/core/model"
)

// TransitionEvent records one guarded status change attempted by the
// coordinator. Applied is false for a stale write.
type TransitionEvent struct {
	Operation string
	Kind      model.Kind
	EventID   string
	VehicleID string
	To        string
	Applied   bool
	Time      time.Time
}

// MetricsSink records coordinator transitions for observability purposes.
type MetricsSink interface {
	RecordTransition(ev TransitionEvent) error
}

// OrchestrationEvent summarizes one coordinator call.
type OrchestrationEvent struct {
	Operation string
	EventID   string
	Committed int
	Cancelled int
	Reverted  int
	Duration  time.Duration
	Err       string
	Time      time.Time
}

// OrchestrationRecorder records orchestration summaries.
type OrchestrationRecorder interface {
	RecordOrchestration(ev OrchestrationEvent) error
}

// VehicleStateEvent is a broadcast vehicle snapshot.
type VehicleStateEvent struct {
	Vehicle model.VehicleSnapshot
	Time    time.Time
}

// VehicleStateRecorder records vehicle state snapshots.
type VehicleStateRecorder interface {
	RecordVehicleState(ev VehicleStateEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordTransition(TransitionEvent) error       { return nil }
func (NopSink) RecordOrchestration(OrchestrationEvent) error { return nil }
func (NopSink) RecordVehicleState(VehicleStateEvent) error   { return nil }
