package metrics

import (
	"context"
	"time"

	coremetrics "github.com/kilianp07/responder/core/metrics"
	"github.com/kilianp07/responder/core/model"
	"github.com/kilianp07/responder/core/monitoring"
	"github.com/kilianp07/responder/core/notify"
	"github.com/kilianp07/responder/infra/logger"
)

// StartVehicleStateCollector subscribes to the hub and records every broadcast
// vehicle snapshot. It stops when the context is canceled or the hub closes.
// Sinks that do not record vehicle state are ignored.
func StartVehicleStateCollector(ctx context.Context, hub *notify.Hub, sink coremetrics.MetricsSink) {
	if hub == nil || sink == nil {
		return
	}
	rec, ok := sink.(coremetrics.VehicleStateRecorder)
	if !ok {
		return
	}
	log := logger.New("vehicle-collector")
	sub := hub.Subscribe()
	go func() {
		defer monitoring.Recover()
		defer hub.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-sub:
				if !ok {
					return
				}
				if n.Topic != notify.TopicVehicles {
					continue
				}
				for _, e := range n.Entities {
					v, ok := e.(model.VehicleSnapshot)
					if !ok {
						continue
					}
					if err := rec.RecordVehicleState(coremetrics.VehicleStateEvent{Vehicle: v, Time: time.Now()}); err != nil {
						log.Errorf("record vehicle %s: %v", v.ID, err)
					}
				}
			}
		}
	}()
}
