package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/responder/core/logger"
	"github.com/kilianp07/responder/core/model"
	"github.com/kilianp07/responder/core/store"
)

// hookStore runs beforeProposed once, right before the first vehicle update
// to Proposed reaches the store.
type hookStore struct {
	*store.MemoryStore
	beforeProposed func()
}

func (s *hookStore) SetVehicleStatus(ctx context.Context, vehicleID string, from []model.VehicleStatus, to model.VehicleStatus) (bool, error) {
	if to == model.VehicleProposed && s.beforeProposed != nil {
		hook := s.beforeProposed
		s.beforeProposed = nil
		hook()
	}
	return s.MemoryStore.SetVehicleStatus(ctx, vehicleID, from, to)
}

func TestIngest_ValidateBetweenUpsertAndVehicleUpdate(t *testing.T) {
	h := newHarness(t, "A", "B")
	h.declare("E")
	ctx := context.Background()
	hs := &hookStore{MemoryStore: h.store}
	c, err := NewCoordinator(hs, h.pub, h.bc, logger.NopLogger{})
	require.NoError(t, err)

	hs.beforeProposed = func() {
		// B's Pending row exists but B is still Available
		require.NoError(t, c.Validate(ctx, "E", []string{"A"}))
	}
	require.NoError(t, c.Ingest(ctx, model.Proposal{EventID: "E", VehicleID: "B", Accepted: true}))

	assert.Equal(t, model.InterventionCancelled, h.intervention("E", "B").Status)
	assert.Equal(t, model.VehicleAvailable, h.vehicle("B"))
	assert.Equal(t, model.VehicleEnRoute, h.vehicle("A"))
	h.checkInvariants([]string{"E"}, []string{"A", "B"})
}

func TestIngest_ValidateInterleavedKeepsOtherPendingProposal(t *testing.T) {
	h := newHarness(t, "A", "B")
	h.declare("E")
	h.declare("F")
	ctx := context.Background()
	hs := &hookStore{MemoryStore: h.store}
	c, err := NewCoordinator(hs, h.pub, h.bc, logger.NopLogger{})
	require.NoError(t, err)

	require.NoError(t, c.Ingest(ctx, model.Proposal{EventID: "F", VehicleID: "B", Accepted: true}))
	hs.beforeProposed = func() {
		require.NoError(t, c.Validate(ctx, "E", []string{"A"}))
	}
	require.NoError(t, c.Ingest(ctx, model.Proposal{EventID: "E", VehicleID: "B", Accepted: true}))

	assert.Equal(t, model.InterventionCancelled, h.intervention("E", "B").Status)
	assert.Equal(t, model.VehicleProposed, h.vehicle("B"), "still proposed for F")
	h.checkInvariants([]string{"E", "F"}, []string{"A", "B"})
}

func TestIngest_ValidateCommitsDuringIngest(t *testing.T) {
	h := newHarness(t, "A")
	h.declare("E")
	ctx := context.Background()
	hs := &hookStore{MemoryStore: h.store}
	c, err := NewCoordinator(hs, h.pub, h.bc, logger.NopLogger{})
	require.NoError(t, err)

	hs.beforeProposed = func() {
		require.NoError(t, c.Validate(ctx, "E", []string{"A"}))
	}
	require.NoError(t, c.Ingest(ctx, model.Proposal{EventID: "E", VehicleID: "A", Accepted: true}))

	assert.Equal(t, model.InterventionCommitted, h.intervention("E", "A").Status)
	assert.Equal(t, model.VehicleEnRoute, h.vehicle("A"))
	h.checkInvariants([]string{"E"}, []string{"A"})
}
