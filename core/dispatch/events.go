package dispatch

import (
	"context"
	"fmt"

	"github.com/kilianp07/responder/core/audit"
	"github.com/kilianp07/responder/core/model"
)

// Declare records a new event and asks the decision process for vehicles.
// Unknown types or severities are hard failures.
func (c *Coordinator) Declare(ctx context.Context, in model.EventInput) (ev model.Event, err error) {
	start := c.clock()
	rec := audit.Record{Operation: OpDeclare, Outcome: audit.OutcomeApplied}
	defer func() { c.finish(ctx, start, rec, err) }()

	if err := in.Validate(); err != nil {
		return model.Event{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	c.mu.RLock()
	id := c.newID()
	c.mu.RUnlock()
	ev = model.Event{
		ID:          id,
		Description: in.Description,
		Location:    in.Location,
		Type:        in.Type,
		Severity:    in.Severity,
		Status:      model.EventDeclared,
		DeclaredAt:  start,
	}
	rec.EventID = id
	if err := c.store.InsertEvent(ctx, ev); err != nil {
		return model.Event{}, fmt.Errorf("%s: insert event: %w", OpDeclare, err)
	}
	c.record(OpDeclare, model.KindEvent, id, "", model.EventDeclared, true)
	rec.EventStatus = model.EventDeclared.String()

	c.publish(ctx, OpDeclare, id)
	c.broadcastEvent(ctx, id)
	c.logger.Infof("declared event %s (%s, %s)", id, in.Type, in.Severity)

	if stored, gerr := c.store.GetEvent(ctx, id); gerr == nil {
		ev = stored
	}
	return ev, nil
}

// Amend edits an event without touching its status. When location, type or
// severity change, the pending proposals are stale: they are cancelled, their
// vehicles released, and a new proposal request is published.
func (c *Coordinator) Amend(ctx context.Context, eventID string, in model.EventInput) (ev model.Event, err error) {
	start := c.clock()
	rec := audit.Record{Operation: OpAmend, EventID: eventID, Outcome: audit.OutcomeApplied}
	defer func() { c.finish(ctx, start, rec, err) }()

	if err := in.Validate(); err != nil {
		return model.Event{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	cur, err := c.store.GetEvent(ctx, eventID)
	if err != nil {
		return model.Event{}, fmt.Errorf("%s: load event %s: %w", OpAmend, eventID, err)
	}
	if cur.Status == model.EventResolved {
		return model.Event{}, fmt.Errorf("%s: %s: %w", OpAmend, eventID, ErrEventClosed)
	}
	changed := cur.DispatchChanged(in)
	if err := c.store.UpdateEventDetails(ctx, eventID, in); err != nil {
		return model.Event{}, fmt.Errorf("%s: update event %s: %w", OpAmend, eventID, err)
	}

	if changed {
		cancelled, reverted, err := c.cancelPending(ctx, OpAmend, eventID, start)
		rec.Cancelled, rec.Reverted = cancelled, reverted
		if err != nil {
			return model.Event{}, err
		}
		c.broadcastInterventions(ctx, eventID, cancelled)
		c.broadcastVehicles(ctx, reverted)
		c.publish(ctx, OpAmend, eventID)
		c.logger.Infof("amended event %s: dispatch fields changed, cancelled=%v", eventID, cancelled)
	}
	c.broadcastEvent(ctx, eventID)

	ev, err = c.store.GetEvent(ctx, eventID)
	if err != nil {
		return model.Event{}, fmt.Errorf("%s: reload event %s: %w", OpAmend, eventID, err)
	}
	rec.EventStatus = ev.Status.String()
	return ev, nil
}
