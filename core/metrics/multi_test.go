package metrics

import "testing"

type recordSink struct {
	count int
}

func (r *recordSink) RecordTransition(TransitionEvent) error {
	r.count++
	return nil
}

func (r *recordSink) RecordOrchestration(OrchestrationEvent) error {
	r.count++
	return nil
}

type transitionOnly struct{ count int }

func (r *transitionOnly) RecordTransition(TransitionEvent) error {
	r.count++
	return nil
}

// TestMultiSink ensures events are forwarded to all sinks.
func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{}
	s3 := &transitionOnly{}
	m := NewMultiSink(s1, s2, s3)
	if err := m.RecordTransition(TransitionEvent{}); err != nil {
		t.Fatalf("record transition: %v", err)
	}
	if err := m.RecordOrchestration(OrchestrationEvent{}); err != nil {
		t.Fatalf("record orchestration: %v", err)
	}
	if err := m.RecordVehicleState(VehicleStateEvent{}); err != nil {
		t.Fatalf("record vehicle: %v", err)
	}
	if s1.count != 2 || s2.count != 2 {
		t.Fatalf("records not forwarded")
	}
	if s3.count != 1 {
		t.Fatalf("expected transition only, got %d", s3.count)
	}
}
