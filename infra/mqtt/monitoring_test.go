package mqtt

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kilianp07/responder/core/model"
	coremon "github.com/kilianp07/responder/core/monitoring"
	coremqtt "github.com/kilianp07/responder/core/mqtt"
)

type recordMonitor struct {
	err  error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.err = err
	r.tags = tags
}
func (r *recordMonitor) CapturePanic(any)     {}
func (r *recordMonitor) Flush(time.Duration) {}

func TestPublishErrorCaptured(t *testing.T) {
	mc := &mockClient{publishErrs: []error{fmt.Errorf("net fail"), fmt.Errorf("net fail")}}
	withMockClient(t, mc)
	mon := &recordMonitor{}
	coremon.Init(mon)
	defer coremon.Init(coremon.NopMonitor{})

	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", EventTopic: "events", MaxRetries: 1, BackoffMS: 1}
	cli, err := NewPahoClient(cfg)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if err := cli.PublishEvent(context.Background(), model.EventDeclaration{EventID: "E"}); err == nil {
		t.Fatalf("expected error")
	}
	if mon.err == nil {
		t.Fatalf("error not captured")
	}
	if mon.tags["event_id"] != "E" || mon.tags["module"] != "mqtt" {
		t.Fatalf("tags not set")
	}
}

func TestIngestErrorCaptured(t *testing.T) {
	mc := &mockClient{}
	withMockClient(t, mc)
	mon := &recordMonitor{}
	coremon.Init(mon)
	defer coremon.Init(coremon.NopMonitor{})

	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "id", ProposalTopic: "proposals"})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	_ = cli.SubscribeProposals(coremqtt.ProposalHandlerFunc(func(context.Context, model.Proposal) error {
		return fmt.Errorf("store down")
	}))
	cli.onProposal(nil, &mockMessage{p: []byte(`{"event_id":"E","vehicle_id":"A","accepted":true}`)})

	if mon.err == nil {
		t.Fatalf("error not captured")
	}
	if mon.tags["vehicle_id"] != "A" || mon.tags["event_id"] != "E" {
		t.Fatalf("tags not set: %v", mon.tags)
	}
}
