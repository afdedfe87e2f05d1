// Package metrics defines the sinks that record coordinator activity for
// observability. Sinks like PromSink and InfluxSink (see infra/metrics) record
// guarded status transitions and orchestration outcomes, and can be combined
// with NewMultiSink. The factory helpers return a MultiSink automatically when
// multiple sinks are configured.
package metrics
