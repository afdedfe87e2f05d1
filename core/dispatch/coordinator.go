// Package dispatch coordinates the Event, Intervention and Vehicle state
// machines. Every operation is a fixed sequence of single-row guarded store
// updates; there is no in-process locking and no transaction spanning a whole
// call. Correctness under concurrent calls comes from the store's per-row
// atomicity and from each step being an idempotent no-op when replayed.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/responder/core/audit"
	"github.com/kilianp07/responder/core/logger"
	"github.com/kilianp07/responder/core/metrics"
	"github.com/kilianp07/responder/core/model"
	"github.com/kilianp07/responder/core/monitoring"
	"github.com/kilianp07/responder/core/mqtt"
	"github.com/kilianp07/responder/core/notify"
	"github.com/kilianp07/responder/core/store"
)

// Operation names used for metrics labels and audit records.
const (
	OpIngest   = "ingest"
	OpValidate = "validate"
	OpClose    = "close"
	OpArrive   = "arrive"
	OpDeclare  = "declare"
	OpAmend    = "amend"
)

// Coordinator runs the dispatch orchestrations against a Store.
type Coordinator struct {
	store     store.Store
	publisher mqtt.Publisher
	notifier  notify.Broadcaster
	logger    logger.Logger

	mu      sync.RWMutex
	metrics metrics.MetricsSink
	audit   audit.Store
	now     func() time.Time
	newID   func() string
}

// NewCoordinator creates a coordinator. The publisher and broadcaster may be
// nil, in which case declarations and notifications are dropped.
func NewCoordinator(st store.Store, pub mqtt.Publisher, notifier notify.Broadcaster, log logger.Logger) (*Coordinator, error) {
	if st == nil {
		return nil, fmt.Errorf("dispatch: nil store provided to NewCoordinator")
	}
	if pub == nil {
		pub = mqtt.NopPublisher{}
	}
	if notifier == nil {
		notifier = notify.NopBroadcaster{}
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Coordinator{
		store:     st,
		publisher: pub,
		notifier:  notifier,
		logger:    log,
		metrics:   metrics.NopSink{},
		audit:     audit.NopStore{},
		now:       time.Now,
		newID:     uuid.NewString,
	}, nil
}

// SetMetrics configures the sink receiving transition records.
func (c *Coordinator) SetMetrics(sink metrics.MetricsSink) {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	c.mu.Lock()
	c.metrics = sink
	c.mu.Unlock()
}

// SetAuditStore configures the store used to persist one record per call.
func (c *Coordinator) SetAuditStore(s audit.Store) {
	if s == nil {
		s = audit.NopStore{}
	}
	c.mu.Lock()
	c.audit = s
	c.mu.Unlock()
}

// SetClock overrides the time source used for intervention stamps.
func (c *Coordinator) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// SetIDGenerator overrides the generator used for new event identifiers.
func (c *Coordinator) SetIDGenerator(gen func() string) {
	c.mu.Lock()
	c.newID = gen
	c.mu.Unlock()
}

func (c *Coordinator) clock() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now().UTC()
}

func (c *Coordinator) sink() metrics.MetricsSink {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.metrics
}

// record forwards one guarded transition attempt to the metrics sink.
func (c *Coordinator) record(op string, kind model.Kind, eventID, vehicleID string, to fmt.Stringer, applied bool) {
	err := c.sink().RecordTransition(metrics.TransitionEvent{
		Operation: op,
		Kind:      kind,
		EventID:   eventID,
		VehicleID: vehicleID,
		To:        to.String(),
		Applied:   applied,
		Time:      c.clock(),
	})
	if err != nil {
		c.logger.Errorf("metrics error: %v", err)
	}
}

// stale logs an update that matched no row. The batch continues.
func (c *Coordinator) stale(op string, kind model.Kind, eventID, vehicleID string, to fmt.Stringer) {
	staleWrites.WithLabelValues(string(kind)).Inc()
	c.logger.Warnf("%s: stale write on %s (event=%s vehicle=%s) -> %s", op, kind, eventID, vehicleID, to)
}

// setVehicle moves a vehicle to status to when it holds one of from.
func (c *Coordinator) setVehicle(ctx context.Context, op, eventID, vehicleID string, from []model.VehicleStatus, to model.VehicleStatus) (bool, error) {
	ok, err := c.store.SetVehicleStatus(ctx, vehicleID, from, to)
	if err != nil {
		return false, fmt.Errorf("%s: set vehicle %s %s: %w", op, vehicleID, to, err)
	}
	c.record(op, model.KindVehicle, eventID, vehicleID, to, ok)
	if !ok {
		c.stale(op, model.KindVehicle, eventID, vehicleID, to)
	}
	return ok, nil
}

// cancelPending cancels the still-Pending interventions of an event and
// reverts each cancelled vehicle to Available unless another Pending
// intervention keeps it Proposed.
func (c *Coordinator) cancelPending(ctx context.Context, op, eventID string, at time.Time) (cancelled, reverted []string, err error) {
	pending, err := c.store.FindPendingVehiclesForEvent(ctx, eventID)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: find pending vehicles for %s: %w", op, eventID, err)
	}
	for _, v := range pending {
		ok, err := c.store.SetInterventionStatus(ctx, eventID, v,
			[]model.InterventionStatus{model.InterventionPending}, model.InterventionCancelled, model.StampNone, at)
		if err != nil {
			return cancelled, reverted, fmt.Errorf("%s: cancel intervention %s/%s: %w", op, eventID, v, err)
		}
		c.record(op, model.KindIntervention, eventID, v, model.InterventionCancelled, ok)
		if !ok {
			c.stale(op, model.KindIntervention, eventID, v, model.InterventionCancelled)
			continue
		}
		cancelled = append(cancelled, v)
	}
	for _, v := range cancelled {
		still, err := c.store.VehicleHasInterventionWithStatus(ctx, v, model.InterventionPending)
		if err != nil {
			return cancelled, reverted, fmt.Errorf("%s: pending lookup for %s: %w", op, v, err)
		}
		if still {
			c.logger.Debugf("%s: vehicle %s still proposed elsewhere", op, v)
			continue
		}
		ok, err := c.setVehicle(ctx, op, eventID, v, []model.VehicleStatus{model.VehicleProposed}, model.VehicleAvailable)
		if err != nil {
			return cancelled, reverted, err
		}
		if ok {
			reverted = append(reverted, v)
		}
	}
	return cancelled, reverted, nil
}

// broadcastInterventions sends the snapshots of (eventID, vehicle) pairs.
// Snapshot read failures are logged and skipped.
func (c *Coordinator) broadcastInterventions(ctx context.Context, eventID string, vehicleIDs []string) {
	var out []any
	for _, v := range vehicleIDs {
		snap, err := c.store.InterventionSnapshot(ctx, eventID, v)
		if err != nil {
			c.logger.Warnf("intervention snapshot %s/%s: %v", eventID, v, err)
			continue
		}
		out = append(out, snap)
	}
	if len(out) > 0 {
		c.notifier.Broadcast(notify.TopicInterventions, out)
	}
}

func (c *Coordinator) broadcastVehicles(ctx context.Context, vehicleIDs []string) {
	var out []any
	for _, v := range vehicleIDs {
		snap, err := c.store.VehicleSnapshot(ctx, v)
		if err != nil {
			c.logger.Warnf("vehicle snapshot %s: %v", v, err)
			continue
		}
		out = append(out, snap)
	}
	if len(out) > 0 {
		c.notifier.Broadcast(notify.TopicVehicles, out)
	}
}

func (c *Coordinator) broadcastEvent(ctx context.Context, eventID string) {
	snap, err := c.store.EventSnapshot(ctx, eventID)
	if err != nil {
		c.logger.Warnf("event snapshot %s: %v", eventID, err)
		return
	}
	c.notifier.Broadcast(notify.TopicEvents, []any{snap})
}

// publish sends the event's proposal request. Failures are reported, never
// returned: the declaration already happened.
func (c *Coordinator) publish(ctx context.Context, op, eventID string) {
	decl, err := c.store.EventDeclaration(ctx, eventID)
	if err != nil {
		c.logger.Errorf("%s: load declaration %s: %v", op, eventID, err)
		return
	}
	if err := c.publisher.PublishEvent(ctx, decl); err != nil {
		c.logger.Errorf("%s: publish proposal request %s: %v", op, eventID, err)
		monitoring.CaptureException(err, map[string]string{"module": "dispatch", "event_id": eventID, "operation": op})
	}
}

// finish records the orchestration summary and appends the audit record.
func (c *Coordinator) finish(ctx context.Context, start time.Time, rec audit.Record, err error) {
	orchestrations.WithLabelValues(rec.Operation).Inc()
	rec.Timestamp = start
	if err != nil {
		rec.Outcome = audit.OutcomeFailed
		rec.Error = err.Error()
	}
	c.mu.RLock()
	sink, st := c.metrics, c.audit
	c.mu.RUnlock()
	if orc, ok := sink.(metrics.OrchestrationRecorder); ok {
		ev := metrics.OrchestrationEvent{
			Operation: rec.Operation,
			EventID:   rec.EventID,
			Committed: len(rec.Committed),
			Cancelled: len(rec.Cancelled),
			Reverted:  len(rec.Reverted),
			Duration:  c.clock().Sub(start),
			Err:       rec.Error,
			Time:      start,
		}
		if rerr := orc.RecordOrchestration(ev); rerr != nil {
			c.logger.Errorf("metrics error: %v", rerr)
		}
	}
	if aerr := st.Append(ctx, rec); aerr != nil {
		c.logger.Errorf("audit append %s %s: %v", rec.Operation, rec.EventID, aerr)
	}
}

// dedupe keeps the first occurrence of every non-empty id.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
