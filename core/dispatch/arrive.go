package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/responder/core/audit"
	"github.com/kilianp07/responder/core/model"
	"github.com/kilianp07/responder/core/store"
)

// Arrive marks an EnRoute vehicle as OnScene. It is a no-op unless the
// vehicle holds an active intervention for the event.
func (c *Coordinator) Arrive(ctx context.Context, eventID, vehicleID string) (err error) {
	start := c.clock()
	rec := audit.Record{Operation: OpArrive, EventID: eventID, VehicleID: vehicleID, Outcome: audit.OutcomeNoop}
	defer func() { c.finish(ctx, start, rec, err) }()

	i, err := c.store.GetIntervention(ctx, eventID, vehicleID)
	if errors.Is(err, store.ErrNotFound) {
		c.logger.Debugf("arrive %s/%s: no intervention", eventID, vehicleID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: load intervention %s/%s: %w", OpArrive, eventID, vehicleID, err)
	}
	if !i.Active() {
		c.logger.Debugf("arrive %s/%s: intervention is %s", eventID, vehicleID, i.Status)
		return nil
	}

	ok, err := c.setVehicle(ctx, OpArrive, eventID, vehicleID,
		model.VehicleTransitions.Sources(model.VehicleOnScene), model.VehicleOnScene)
	if err != nil || !ok {
		return err
	}
	rec.Outcome = audit.OutcomeApplied
	c.logger.Infof("vehicle %s on scene for event %s", vehicleID, eventID)
	c.broadcastVehicles(ctx, []string{vehicleID})
	return nil
}
