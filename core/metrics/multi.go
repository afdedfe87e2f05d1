package metrics

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordTransition forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordTransition(ev TransitionEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordTransition(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordOrchestration forwards summaries to sinks that support them.
func (m *MultiSink) RecordOrchestration(ev OrchestrationEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(OrchestrationRecorder); ok {
			if err := rec.RecordOrchestration(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordVehicleState forwards vehicle snapshots.
func (m *MultiSink) RecordVehicleState(ev VehicleStateEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(VehicleStateRecorder); ok {
			if err := rec.RecordVehicleState(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
