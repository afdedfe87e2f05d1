package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/responder/core/audit"
	"github.com/kilianp07/responder/core/model"
	"github.com/kilianp07/responder/core/store"
)

// Validate commits the chosen vehicles to the event and declines every other
// proposal still pending for it. It may run concurrently with Ingest for the
// same event. Per-vehicle stale writes are logged and skipped, as are vehicles
// already committed to another event; store failures abort the call.
//
// An empty vehicle set cancels all pending proposals and commits nothing.
func (c *Coordinator) Validate(ctx context.Context, eventID string, vehicleIDs []string) (err error) {
	start := c.clock()
	rec := audit.Record{Operation: OpValidate, EventID: eventID, Outcome: audit.OutcomeApplied}
	defer func() { c.finish(ctx, start, rec, err) }()

	ev, err := c.store.GetEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("%s: load event %s: %w", OpValidate, eventID, err)
	}
	if ev.Status == model.EventResolved {
		return fmt.Errorf("%s: %s: %w", OpValidate, eventID, ErrEventClosed)
	}

	for _, name := range []model.InterventionStatus{model.InterventionCommitted, model.InterventionCancelled, model.InterventionPending} {
		if _, err := c.store.FindStatusIDByName(ctx, model.KindIntervention, name.String()); err != nil {
			return fmt.Errorf("%s: resolve status: %w", OpValidate, err)
		}
	}

	ids, revalidated, err := c.claimable(ctx, eventID, dedupe(vehicleIDs))
	if err != nil {
		return err
	}
	committed, err := c.commit(ctx, eventID, ids, start)
	if err != nil {
		return err
	}
	rec.Committed = committed

	for _, v := range committed {
		if revalidated[v] {
			if err := c.rerouteVehicle(ctx, eventID, v); err != nil {
				return err
			}
			continue
		}
		if _, err := c.setVehicle(ctx, OpValidate, eventID, v,
			model.VehicleTransitions.Sources(model.VehicleEnRoute), model.VehicleEnRoute); err != nil {
			return err
		}
	}

	cancelled, reverted, err := c.cancelPending(ctx, OpValidate, eventID, start)
	rec.Cancelled, rec.Reverted = cancelled, reverted
	if err != nil {
		return err
	}

	moved, err := c.enterIntervention(ctx, eventID)
	if err != nil {
		return err
	}
	if moved {
		rec.EventStatus = model.EventInIntervention.String()
	}

	c.logger.Infof("validated event %s: committed=%v cancelled=%v reverted=%v", eventID, committed, cancelled, reverted)
	c.broadcastVehicles(ctx, committed)
	c.broadcastVehicles(ctx, reverted)
	if moved {
		c.broadcastEvent(ctx, eventID)
	}
	c.broadcastInterventions(ctx, eventID, committed)
	return nil
}

// claimable drops the vehicles already committed to another event. Vehicles
// already committed to this event are kept and reported as revalidated.
func (c *Coordinator) claimable(ctx context.Context, eventID string, ids []string) ([]string, map[string]bool, error) {
	out := make([]string, 0, len(ids))
	revalidated := make(map[string]bool)
	for _, v := range ids {
		busy, err := c.store.VehicleHasInterventionWithStatus(ctx, v, model.InterventionCommitted)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: committed lookup for %s: %w", OpValidate, v, err)
		}
		if !busy {
			out = append(out, v)
			continue
		}
		own, err := c.store.GetIntervention(ctx, eventID, v)
		switch {
		case err == nil && own.Status == model.InterventionCommitted:
			revalidated[v] = true
			out = append(out, v)
		case err == nil || errors.Is(err, store.ErrNotFound):
			c.record(OpValidate, model.KindIntervention, eventID, v, model.InterventionCommitted, false)
			c.stale(OpValidate, model.KindIntervention, eventID, v, model.InterventionCommitted)
			c.logger.Warnf("%s: vehicle %s is committed to another event, skipped for %s", OpValidate, v, eventID)
		default:
			return nil, nil, fmt.Errorf("%s: load intervention %s/%s: %w", OpValidate, eventID, v, err)
		}
	}
	return out, revalidated, nil
}

// rerouteVehicle repairs a revalidated vehicle left short of EnRoute. A
// vehicle already EnRoute or OnScene keeps its status.
func (c *Coordinator) rerouteVehicle(ctx context.Context, eventID, vehicleID string) error {
	ok, err := c.store.SetVehicleStatus(ctx, vehicleID,
		model.VehicleTransitions.Sources(model.VehicleEnRoute), model.VehicleEnRoute)
	if err != nil {
		return fmt.Errorf("%s: set vehicle %s %s: %w", OpValidate, vehicleID, model.VehicleEnRoute, err)
	}
	if ok {
		c.record(OpValidate, model.KindVehicle, eventID, vehicleID, model.VehicleEnRoute, true)
	}
	return nil
}

// commit moves each vehicle's intervention to Committed, creating the row
// when no proposal was ingested yet. It returns the vehicles that ended up
// with a Committed intervention, in request order.
func (c *Coordinator) commit(ctx context.Context, eventID string, ids []string, at time.Time) ([]string, error) {
	sources := model.InterventionTransitions.Sources(model.InterventionCommitted)
	done := make(map[string]bool, len(ids))
	var missing []string
	for _, v := range ids {
		ok, err := c.store.SetInterventionStatus(ctx, eventID, v, sources, model.InterventionCommitted, model.StampStartedAt, at)
		if err != nil {
			return nil, fmt.Errorf("%s: commit intervention %s/%s: %w", OpValidate, eventID, v, err)
		}
		if ok {
			c.record(OpValidate, model.KindIntervention, eventID, v, model.InterventionCommitted, true)
			done[v] = true
			continue
		}
		missing = append(missing, v)
	}

	for _, v := range missing {
		ok, err := c.store.InsertCommittedIntervention(ctx, eventID, v, at)
		if err != nil {
			return nil, fmt.Errorf("%s: insert committed intervention %s/%s: %w", OpValidate, eventID, v, err)
		}
		if !ok {
			// a proposal landed between the update and the insert
			ok, err = c.store.SetInterventionStatus(ctx, eventID, v, sources, model.InterventionCommitted, model.StampStartedAt, at)
			if err != nil {
				return nil, fmt.Errorf("%s: commit intervention %s/%s: %w", OpValidate, eventID, v, err)
			}
		}
		c.record(OpValidate, model.KindIntervention, eventID, v, model.InterventionCommitted, ok)
		if !ok {
			c.stale(OpValidate, model.KindIntervention, eventID, v, model.InterventionCommitted)
			continue
		}
		done[v] = true
	}

	committed := make([]string, 0, len(done))
	for _, v := range ids {
		if done[v] {
			committed = append(committed, v)
		}
	}
	return committed, nil
}

// enterIntervention moves a Declared event to InIntervention once it holds an
// active intervention. It reports whether the status changed.
func (c *Coordinator) enterIntervention(ctx context.Context, eventID string) (bool, error) {
	active, err := c.store.HasActiveInterventionForEvent(ctx, eventID)
	if err != nil {
		return false, fmt.Errorf("%s: active interventions for %s: %w", OpValidate, eventID, err)
	}
	if !active {
		c.logger.Infof("event %s has no committed vehicle, status unchanged", eventID)
		return false, nil
	}
	ok, err := c.store.SetEventStatus(ctx, eventID,
		[]model.EventStatus{model.EventDeclared}, model.EventInIntervention)
	if err != nil {
		return false, fmt.Errorf("%s: set event %s %s: %w", OpValidate, eventID, model.EventInIntervention, err)
	}
	c.record(OpValidate, model.KindEvent, eventID, "", model.EventInIntervention, ok)
	return ok, nil
}
