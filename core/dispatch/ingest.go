package dispatch

import (
	"context"
	"fmt"

	"github.com/kilianp07/responder/core/audit"
	"github.com/kilianp07/responder/core/model"
)

// Ingest applies one proposal delivered by the inbound channel. Redelivery of
// the same (event, vehicle) pair is a no-op that neither transitions the
// vehicle again nor broadcasts. Persistence errors are returned so the
// consumer can leave the message unacknowledged; Ingest itself never retries.
func (c *Coordinator) Ingest(ctx context.Context, p model.Proposal) (err error) {
	start := c.clock()
	rec := audit.Record{Operation: OpIngest, EventID: p.EventID, VehicleID: p.VehicleID, Outcome: audit.OutcomeNoop}
	defer func() { c.finish(ctx, start, rec, err) }()

	if !p.Actionable() {
		proposalsIngested.WithLabelValues("declined").Inc()
		c.logger.Infof("no vehicle proposed for event %s: %s", p.EventID, p.Reason)
		return nil
	}

	created, err := c.store.UpsertPendingIntervention(ctx, p.EventID, p.VehicleID)
	if err != nil {
		proposalsIngested.WithLabelValues("failed").Inc()
		return fmt.Errorf("%s: upsert pending intervention %s/%s: %w", OpIngest, p.EventID, p.VehicleID, err)
	}
	if !created {
		proposalsIngested.WithLabelValues("duplicate").Inc()
		c.logger.Debugf("duplicate proposal for event %s vehicle %s", p.EventID, p.VehicleID)
		return c.repairProposed(ctx, p)
	}
	c.record(OpIngest, model.KindIntervention, p.EventID, p.VehicleID, model.InterventionPending, true)

	proposed, err := c.setVehicle(ctx, OpIngest, p.EventID, p.VehicleID,
		model.VehicleTransitions.Sources(model.VehicleProposed), model.VehicleProposed)
	if err != nil {
		proposalsIngested.WithLabelValues("failed").Inc()
		return err
	}
	if proposed {
		if err := c.settleProposed(ctx, p); err != nil {
			proposalsIngested.WithLabelValues("failed").Inc()
			return err
		}
	}
	proposalsIngested.WithLabelValues("created").Inc()
	rec.Outcome = audit.OutcomeApplied

	c.broadcastInterventions(ctx, p.EventID, []string{p.VehicleID})
	c.broadcastVehicles(ctx, []string{p.VehicleID})
	return nil
}

// repairProposed finishes a delivery whose vehicle update failed after the
// Pending row was written: the row exists, so only an Available vehicle is
// moved. A vehicle already Proposed is left alone and nothing is broadcast.
func (c *Coordinator) repairProposed(ctx context.Context, p model.Proposal) error {
	i, err := c.store.GetIntervention(ctx, p.EventID, p.VehicleID)
	if err != nil {
		return fmt.Errorf("%s: load intervention %s/%s: %w", OpIngest, p.EventID, p.VehicleID, err)
	}
	if i.Status != model.InterventionPending {
		return nil
	}
	ok, err := c.store.SetVehicleStatus(ctx, p.VehicleID, []model.VehicleStatus{model.VehicleAvailable}, model.VehicleProposed)
	if err != nil {
		return fmt.Errorf("%s: set vehicle %s %s: %w", OpIngest, p.VehicleID, model.VehicleProposed, err)
	}
	if ok {
		c.record(OpIngest, model.KindVehicle, p.EventID, p.VehicleID, model.VehicleProposed, true)
		c.logger.Infof("vehicle %s moved to %s on redelivery", p.VehicleID, model.VehicleProposed)
		c.broadcastVehicles(ctx, []string{p.VehicleID})
	}
	return nil
}

// settleProposed undoes the Proposed transition when a concurrent validate
// cancelled or committed the row between the upsert and the vehicle update.
// The vehicle is released only when no other Pending intervention holds it.
func (c *Coordinator) settleProposed(ctx context.Context, p model.Proposal) error {
	i, err := c.store.GetIntervention(ctx, p.EventID, p.VehicleID)
	if err != nil {
		return fmt.Errorf("%s: reload intervention %s/%s: %w", OpIngest, p.EventID, p.VehicleID, err)
	}
	if i.Status == model.InterventionPending {
		return nil
	}
	pending, err := c.store.VehicleHasInterventionWithStatus(ctx, p.VehicleID, model.InterventionPending)
	if err != nil {
		return fmt.Errorf("%s: pending lookup for %s: %w", OpIngest, p.VehicleID, err)
	}
	if pending {
		return nil
	}
	c.logger.Infof("proposal %s/%s became %s while ingesting, releasing vehicle", p.EventID, p.VehicleID, i.Status)
	_, err = c.setVehicle(ctx, OpIngest, p.EventID, p.VehicleID,
		[]model.VehicleStatus{model.VehicleProposed}, model.VehicleAvailable)
	return err
}
