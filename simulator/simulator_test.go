package main

import (
	"context"
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/responder/core/logger"
	"github.com/kilianp07/responder/core/model"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type recordPublisher struct {
	mu       sync.Mutex
	topic    string
	messages []model.Proposal
}

func (r *recordPublisher) Publish(topic string, _ byte, _ bool, payload interface{}) paho.Token {
	var p model.Proposal
	_ = json.Unmarshal(payload.([]byte), &p)
	r.mu.Lock()
	r.topic = topic
	r.messages = append(r.messages, p)
	r.mu.Unlock()
	return doneToken{}
}

func (r *recordPublisher) sent() []model.Proposal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Proposal(nil), r.messages...)
}

func TestGenerateFleet(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	vs := GenerateFleet(rng, 3, model.Location{Latitude: 45, Longitude: 4})
	require.Len(t, vs, 3)
	assert.Equal(t, "veh0001", vs[0].ID)
	assert.Equal(t, "veh0003", vs[2].ID)
	for _, v := range vs {
		assert.InDelta(t, 45, v.Location.Latitude, 0.1)
		assert.InDelta(t, 4, v.Location.Longitude, 0.1)
		assert.NotEmpty(t, v.Station)
	}
	assert.Nil(t, GenerateFleet(rng, 0, model.Location{}))
}

func TestWriteFleet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.json")
	vs := GenerateFleet(rand.New(rand.NewSource(1)), 2, model.Location{})
	require.NoError(t, WriteFleet(path, vs))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var back []model.Vehicle
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Len(t, back, 2)
	assert.Equal(t, vs[1].ID, back[1].ID)
}

func TestCandidatesScaleWithSeverity(t *testing.T) {
	fleet := []string{"A", "B", "C", "D"}
	rng := rand.New(rand.NewSource(7))

	got := Candidates(rng, fleet, model.EventDeclaration{EventID: "E", SeverityID: 2})
	assert.Len(t, got, 2)
	got = Candidates(rng, fleet, model.EventDeclaration{EventID: "E", SeverityID: 5})
	assert.ElementsMatch(t, fleet, got)
	got = Candidates(rng, fleet, model.EventDeclaration{EventID: "E", SeverityID: 99})
	assert.Len(t, got, 1)
}

func TestRandomProposal(t *testing.T) {
	pub := &recordPublisher{}
	ctx := context.Background()

	accept := NewRandomProposal(0, 1, 0, 1)
	require.NoError(t, accept.Propose(ctx, pub, "props", model.Proposal{EventID: "E", VehicleID: "A"}))
	decline := NewRandomProposal(0, 0, 0, 1)
	require.NoError(t, decline.Propose(ctx, pub, "props", model.Proposal{EventID: "E", VehicleID: "B"}))
	drop := NewRandomProposal(0, 1, 1, 1)
	require.NoError(t, drop.Propose(ctx, pub, "props", model.Proposal{EventID: "E", VehicleID: "C"}))

	sent := pub.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "props", pub.topic)
	assert.True(t, sent[0].Accepted)
	assert.False(t, sent[1].Accepted)
	assert.False(t, sent[0].IssuedAt.IsZero())
}

func TestRandomProposalHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewRandomProposal(time.Hour, 1, 0, 1)
	err := r.Propose(ctx, &recordPublisher{}, "props", model.Proposal{EventID: "E", VehicleID: "A"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecisionProcessAnswersDeclaration(t *testing.T) {
	pub := &recordPublisher{}
	dp := NewDecisionProcess([]string{"A", "B", "C"}, "props", NewRandomProposal(0, 1, 0, 1), 3, logger.NopLogger{})
	dp.pub = pub
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dp.worker(ctx)

	dp.enqueue(model.EventDeclaration{EventID: "E", SeverityID: 2})
	require.Eventually(t, func() bool { return len(pub.sent()) == 2 }, time.Second, 10*time.Millisecond)
	for _, p := range pub.sent() {
		assert.Equal(t, "E", p.EventID)
		assert.True(t, p.Accepted)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{Broker: "tcp://x", FleetSize: 1, AcceptRate: 0.5}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5, cfg.Workers)

	bad := cfg
	bad.DropRate = 2
	assert.Error(t, bad.Validate())
	bad = cfg
	bad.FleetSize = 0
	assert.Error(t, bad.Validate())
}
