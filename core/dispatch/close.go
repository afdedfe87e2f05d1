package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/responder/core/audit"
	"github.com/kilianp07/responder/core/model"
	"github.com/kilianp07/responder/core/store"
)

// CloseIntervention ends a vehicle's participation in an event and resolves
// the event when its last active intervention closes. Closing a pair that has
// no Committed or Closed intervention is a no-op returning nil, so callers
// can retry freely.
func (c *Coordinator) CloseIntervention(ctx context.Context, eventID, vehicleID string) (err error) {
	start := c.clock()
	rec := audit.Record{Operation: OpClose, EventID: eventID, VehicleID: vehicleID, Outcome: audit.OutcomeNoop}
	defer func() { c.finish(ctx, start, rec, err) }()

	closed, err := c.store.SetInterventionStatus(ctx, eventID, vehicleID,
		[]model.InterventionStatus{model.InterventionCommitted}, model.InterventionClosed, model.StampEndedAt, start)
	if err != nil {
		return fmt.Errorf("%s: close intervention %s/%s: %w", OpClose, eventID, vehicleID, err)
	}
	c.record(OpClose, model.KindIntervention, eventID, vehicleID, model.InterventionClosed, closed)

	retry := false
	if !closed {
		i, err := c.store.GetIntervention(ctx, eventID, vehicleID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.logger.Debugf("close %s/%s: no intervention", eventID, vehicleID)
			return nil
		case err != nil:
			return fmt.Errorf("%s: load intervention %s/%s: %w", OpClose, eventID, vehicleID, err)
		case i.Status != model.InterventionClosed:
			c.logger.Debugf("close %s/%s: intervention is %s, nothing to close", eventID, vehicleID, i.Status)
			return nil
		}
		retry = true
	}
	rec.Outcome = audit.OutcomeApplied
	rec.Closed = []string{vehicleID}

	released, err := c.releaseVehicle(ctx, eventID, vehicleID, retry)
	if err != nil {
		return err
	}

	resolved, err := c.resolveIfDone(ctx, eventID)
	if err != nil {
		return err
	}
	if resolved {
		rec.EventStatus = model.EventResolved.String()
	}

	if retry && !released && !resolved {
		rec.Outcome = audit.OutcomeNoop
		return nil
	}
	c.logger.Infof("closed intervention event=%s vehicle=%s resolved=%t", eventID, vehicleID, resolved)
	c.broadcastVehicles(ctx, []string{vehicleID})
	if resolved {
		c.broadcastEvent(ctx, eventID)
	}
	c.broadcastInterventions(ctx, eventID, []string{vehicleID})
	return nil
}

// releaseVehicle returns a closing vehicle to Available, then back to
// Proposed when it still holds Pending proposals. On a retried close the
// vehicle may already serve another event, so it is only released when it
// holds no other Committed intervention.
func (c *Coordinator) releaseVehicle(ctx context.Context, eventID, vehicleID string, retry bool) (bool, error) {
	from := model.VehicleTransitions.Sources(model.VehicleAvailable)
	if retry {
		busy, err := c.store.VehicleHasInterventionWithStatus(ctx, vehicleID, model.InterventionCommitted)
		if err != nil {
			return false, fmt.Errorf("%s: committed lookup for %s: %w", OpClose, vehicleID, err)
		}
		if busy {
			return false, nil
		}
		from = []model.VehicleStatus{model.VehicleEnRoute, model.VehicleOnScene}
	}
	released, err := c.store.SetVehicleStatus(ctx, vehicleID, from, model.VehicleAvailable)
	if err != nil {
		return false, fmt.Errorf("%s: set vehicle %s %s: %w", OpClose, vehicleID, model.VehicleAvailable, err)
	}
	c.record(OpClose, model.KindVehicle, eventID, vehicleID, model.VehicleAvailable, released)
	if !released && !retry {
		c.stale(OpClose, model.KindVehicle, eventID, vehicleID, model.VehicleAvailable)
	}

	pending, err := c.store.VehicleHasInterventionWithStatus(ctx, vehicleID, model.InterventionPending)
	if err != nil {
		return released, fmt.Errorf("%s: pending lookup for %s: %w", OpClose, vehicleID, err)
	}
	if !pending {
		return released, nil
	}
	proposed, err := c.store.SetVehicleStatus(ctx, vehicleID,
		[]model.VehicleStatus{model.VehicleAvailable}, model.VehicleProposed)
	if err != nil {
		return released, fmt.Errorf("%s: set vehicle %s %s: %w", OpClose, vehicleID, model.VehicleProposed, err)
	}
	c.record(OpClose, model.KindVehicle, eventID, vehicleID, model.VehicleProposed, proposed)
	return released || proposed, nil
}

// resolveIfDone moves an InIntervention event to Resolved when no active
// intervention remains.
func (c *Coordinator) resolveIfDone(ctx context.Context, eventID string) (bool, error) {
	active, err := c.store.HasActiveInterventionForEvent(ctx, eventID)
	if err != nil {
		return false, fmt.Errorf("%s: active interventions for %s: %w", OpClose, eventID, err)
	}
	if active {
		return false, nil
	}
	ok, err := c.store.SetEventStatus(ctx, eventID,
		model.EventTransitions.Sources(model.EventResolved), model.EventResolved)
	if err != nil {
		return false, fmt.Errorf("%s: set event %s %s: %w", OpClose, eventID, model.EventResolved, err)
	}
	c.record(OpClose, model.KindEvent, eventID, "", model.EventResolved, ok)
	return ok, nil
}
