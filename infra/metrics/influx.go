package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/responder/core/metrics"
	"github.com/kilianp07/responder/infra/logger"
)

// InfluxSink writes coordinator records to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordTransition writes one guarded transition attempt.
func (s *InfluxSink) RecordTransition(ev coremetrics.TransitionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("transition").
		AddTag("operation", ev.Operation).
		AddTag("kind", string(ev.Kind)).
		AddTag("to", ev.To).
		AddTag("applied", strconv.FormatBool(ev.Applied)).
		AddTag("event_id", ev.EventID)
	if ev.VehicleID != "" {
		p = p.AddTag("vehicle_id", ev.VehicleID)
	}
	p = p.AddField("count", 1).SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordOrchestration writes the summary of one coordinator call.
func (s *InfluxSink) RecordOrchestration(ev coremetrics.OrchestrationEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("orchestration").
		AddTag("operation", ev.Operation).
		AddTag("event_id", ev.EventID).
		AddField("committed", ev.Committed).
		AddField("cancelled", ev.Cancelled).
		AddField("reverted", ev.Reverted).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000))
	if ev.Err != "" {
		p = p.AddField("error", ev.Err)
	}
	return s.writeAPI.WritePoint(ctx, p.SetTime(ev.Time))
}

// RecordVehicleState writes a broadcast vehicle snapshot.
func (s *InfluxSink) RecordVehicleState(ev coremetrics.VehicleStateEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v := ev.Vehicle
	p := write.NewPointWithMeasurement("vehicle_state").
		AddTag("vehicle_id", v.ID)
	if v.Station != "" {
		p = p.AddTag("station", v.Station)
	}
	p = p.AddField("status", v.Status).
		AddField("latitude", v.Location.Latitude).
		AddField("longitude", v.Location.Longitude).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

var (
	_ coremetrics.OrchestrationRecorder = (*InfluxSink)(nil)
	_ coremetrics.VehicleStateRecorder  = (*InfluxSink)(nil)
)
