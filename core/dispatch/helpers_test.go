package dispatch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/responder/core/audit"
	"github.com/kilianp07/responder/core/logger"
	"github.com/kilianp07/responder/core/metrics"
	"github.com/kilianp07/responder/core/model"
	"github.com/kilianp07/responder/core/notify"
	"github.com/kilianp07/responder/core/store"
)

// recordBroadcaster keeps every broadcast in order.
type recordBroadcaster struct {
	mu    sync.Mutex
	calls []notify.Notification
}

func (r *recordBroadcaster) Broadcast(topic notify.Topic, entities []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, notify.Notification{Topic: topic, Entities: entities})
}

func (r *recordBroadcaster) count(topic notify.Topic) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Topic == topic {
			n++
		}
	}
	return n
}

func (r *recordBroadcaster) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recordBroadcaster) reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}

// vehicleIDs returns the vehicle ids carried by every vehicles broadcast.
func (r *recordBroadcaster) vehicleIDs() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out [][]string
	for _, c := range r.calls {
		if c.Topic != notify.TopicVehicles {
			continue
		}
		var ids []string
		for _, e := range c.Entities {
			ids = append(ids, e.(model.VehicleSnapshot).ID)
		}
		out = append(out, ids)
	}
	return out
}

type recordPublisher struct {
	mu    sync.Mutex
	decls []model.EventDeclaration
	err   error
}

func (p *recordPublisher) PublishEvent(_ context.Context, d model.EventDeclaration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decls = append(p.decls, d)
	return p.err
}

type recordSink struct {
	mu            sync.Mutex
	transitions   []metrics.TransitionEvent
	orchestration []metrics.OrchestrationEvent
}

func (s *recordSink) RecordTransition(ev metrics.TransitionEvent) error {
	s.mu.Lock()
	s.transitions = append(s.transitions, ev)
	s.mu.Unlock()
	return nil
}

func (s *recordSink) RecordOrchestration(ev metrics.OrchestrationEvent) error {
	s.mu.Lock()
	s.orchestration = append(s.orchestration, ev)
	s.mu.Unlock()
	return nil
}

type memoryAudit struct {
	mu   sync.Mutex
	recs []audit.Record
}

func (m *memoryAudit) Append(_ context.Context, r audit.Record) error {
	m.mu.Lock()
	m.recs = append(m.recs, r)
	m.mu.Unlock()
	return nil
}

func (m *memoryAudit) Query(_ context.Context, q audit.Query) ([]audit.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []audit.Record
	for _, r := range m.recs {
		if q.Match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryAudit) Close() error { return nil }

type harness struct {
	t     *testing.T
	store *store.MemoryStore
	bc    *recordBroadcaster
	pub   *recordPublisher
	sink  *recordSink
	audit *memoryAudit
	c     *Coordinator
	now   time.Time
}

func newHarness(t *testing.T, vehicles ...string) *harness {
	t.Helper()
	ResetMetrics(prometheus.NewRegistry())
	t.Cleanup(func() { ResetMetrics(nil) })

	st := store.NewMemoryStore(model.DefaultReference())
	for i, v := range vehicles {
		st.PutVehicle(model.Vehicle{ID: v, Plate: fmt.Sprintf("AA-%03d-ZZ", i)})
	}
	h := &harness{
		t:     t,
		store: st,
		bc:    &recordBroadcaster{},
		pub:   &recordPublisher{},
		sink:  &recordSink{},
		audit: &memoryAudit{},
		now:   time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
	}
	c, err := NewCoordinator(st, h.pub, h.bc, logger.NopLogger{})
	require.NoError(t, err)
	c.SetMetrics(h.sink)
	c.SetAuditStore(h.audit)
	c.SetClock(func() time.Time { return h.now })
	seq := 0
	c.SetIDGenerator(func() string { seq++; return fmt.Sprintf("evt-%d", seq) })
	h.c = c
	return h
}

// declare inserts a Declared event directly, bypassing the publisher.
func (h *harness) declare(id string) {
	h.t.Helper()
	require.NoError(h.t, h.store.InsertEvent(context.Background(), model.Event{
		ID: id, Type: "Fire", Severity: "High", Status: model.EventDeclared,
		Location: model.Location{Latitude: 45.76, Longitude: 4.83},
	}))
}

func (h *harness) propose(eventID, vehicleID string) {
	h.t.Helper()
	require.NoError(h.t, h.c.Ingest(context.Background(), model.Proposal{EventID: eventID, VehicleID: vehicleID, Accepted: true}))
}

func (h *harness) vehicle(id string) model.VehicleStatus {
	h.t.Helper()
	v, ok := h.store.Vehicle(id)
	require.True(h.t, ok, "vehicle %s", id)
	return v.Status
}

func (h *harness) intervention(eventID, vehicleID string) model.Intervention {
	h.t.Helper()
	i, err := h.store.GetIntervention(context.Background(), eventID, vehicleID)
	require.NoError(h.t, err)
	return i
}

func (h *harness) event(id string) model.EventStatus {
	h.t.Helper()
	e, err := h.store.GetEvent(context.Background(), id)
	require.NoError(h.t, err)
	return e.Status
}

// checkInvariants asserts the cross-entity invariants over the whole store.
func (h *harness) checkInvariants(eventIDs, vehicleIDs []string) {
	h.t.Helper()
	ctx := context.Background()
	for _, v := range vehicleIDs {
		pending, err := h.store.VehicleHasInterventionWithStatus(ctx, v, model.InterventionPending)
		require.NoError(h.t, err)
		committed := 0
		for _, e := range eventIDs {
			if i, err := h.store.GetIntervention(ctx, e, v); err == nil && i.Active() {
				committed++
			}
		}
		st := h.vehicle(v)
		if st == model.VehicleEnRoute {
			require.Equalf(h.t, 1, committed, "I2: vehicle %s en route with %d active interventions", v, committed)
		}
		if st == model.VehicleProposed {
			require.Truef(h.t, pending, "I1: vehicle %s proposed without pending intervention", v)
		}
	}
	for _, e := range eventIDs {
		active, err := h.store.HasActiveInterventionForEvent(ctx, e)
		require.NoError(h.t, err)
		if h.event(e) == model.EventInIntervention {
			require.Truef(h.t, active, "I4: event %s in intervention without active intervention", e)
		}
		if h.event(e) == model.EventResolved {
			require.Falsef(h.t, active, "I4: event %s resolved with active intervention", e)
		}
	}
}
