package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/responder/core/model"
)

func newTestStore() *MemoryStore {
	s := NewMemoryStore(model.DefaultReference())
	s.PutVehicle(model.Vehicle{ID: "v1", Plate: "AB-123-CD"})
	return s
}

func TestMemoryStore_UpsertPendingReopensCancelled(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	ok, err := s.UpsertPendingIntervention(ctx, "e1", "v1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.UpsertPendingIntervention(ctx, "e1", "v1")
	require.NoError(t, err)
	assert.False(t, ok, "pending row must not be duplicated")

	ok, err = s.SetInterventionStatus(ctx, "e1", "v1", []model.InterventionStatus{model.InterventionPending}, model.InterventionCancelled, model.StampNone, time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.UpsertPendingIntervention(ctx, "e1", "v1")
	require.NoError(t, err)
	assert.True(t, ok)
	i, err := s.GetIntervention(ctx, "e1", "v1")
	require.NoError(t, err)
	assert.Equal(t, model.InterventionPending, i.Status)
}

func TestMemoryStore_StampsAreSetOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	first := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	ok, err := s.InsertCommittedIntervention(ctx, "e1", "v1", first)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.SetInterventionStatus(ctx, "e1", "v1", []model.InterventionStatus{model.InterventionCommitted}, model.InterventionCommitted, model.StampStartedAt, first.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	end := first.Add(2 * time.Hour)
	for i := 0; i < 2; i++ {
		ok, err = s.SetInterventionStatus(ctx, "e1", "v1", []model.InterventionStatus{model.InterventionCommitted, model.InterventionClosed}, model.InterventionClosed, model.StampEndedAt, end.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
		require.True(t, ok)
	}

	got, err := s.GetIntervention(ctx, "e1", "v1")
	require.NoError(t, err)
	assert.Equal(t, first, *got.StartedAt)
	assert.Equal(t, end, *got.EndedAt)
	assert.False(t, got.Active())
}

func TestMemoryStore_InsertCommittedConflicts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	_, _ = s.UpsertPendingIntervention(ctx, "e1", "v1")
	ok, err := s.InsertCommittedIntervention(ctx, "e1", "v1", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_GuardedVehicleStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	ok, err := s.SetVehicleStatus(ctx, "v1", []model.VehicleStatus{model.VehicleEnRoute}, model.VehicleOnScene)
	require.NoError(t, err)
	assert.False(t, ok, "available vehicle cannot arrive")

	ok, err = s.SetVehicleStatus(ctx, "missing", model.VehicleStatuses(), model.VehicleAvailable)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.SetVehicleStatus(ctx, "v1", []model.VehicleStatus{model.VehicleAvailable}, model.VehicleProposed)
	require.NoError(t, err)
	assert.True(t, ok)
	v, _ := s.Vehicle("v1")
	assert.Equal(t, model.VehicleProposed, v.Status)
}

func TestMemoryStore_FindStatusIDByName(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	id, err := s.FindStatusIDByName(ctx, model.KindIntervention, "Committed")
	require.NoError(t, err)
	assert.Equal(t, int64(model.InterventionCommitted), id)

	s.RemoveStatus(model.KindIntervention, "Committed")
	_, err = s.FindStatusIDByName(ctx, model.KindIntervention, "Committed")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStore_EventsAndSnapshots(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	err := s.InsertEvent(ctx, model.Event{ID: "e1", Type: "fire", Severity: "high", Status: model.EventDeclared})
	require.NoError(t, err)
	assert.Error(t, s.InsertEvent(ctx, model.Event{ID: "e2", Type: "Volcano", Severity: "High"}))

	snap, err := s.EventSnapshot(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "Fire", snap.Type)
	assert.Equal(t, "Declared", snap.Status)
	assert.Equal(t, 3, snap.VehiclesRequired)

	decl, err := s.EventDeclaration(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), decl.TypeID)
	assert.Equal(t, int64(3), decl.SeverityID)

	ok, err := s.SetEventStatus(ctx, "e1", []model.EventStatus{model.EventInIntervention}, model.EventResolved)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _ = s.UpsertPendingIntervention(ctx, "e1", "v1")
	is, err := s.InterventionSnapshot(ctx, "e1", "v1")
	require.NoError(t, err)
	assert.Equal(t, "AB-123-CD", is.Plate)
	assert.Equal(t, "Pending", is.Status)
}

func TestMemoryStore_Failure(t *testing.T) {
	s := newTestStore()
	boom := errors.New("connection refused")
	s.SetFailure(boom)
	_, err := s.UpsertPendingIntervention(context.Background(), "e1", "v1")
	assert.ErrorIs(t, err, boom)
	s.SetFailure(nil)
	_, err = s.UpsertPendingIntervention(context.Background(), "e1", "v1")
	assert.NoError(t, err)
}

func TestMemoryStore_UpsertVehicleKeepsStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	ok, err := s.SetVehicleStatus(ctx, "v1", []model.VehicleStatus{model.VehicleAvailable}, model.VehicleEnRoute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.UpsertVehicle(ctx, model.Vehicle{ID: "v1", Plate: "ZZ-999-ZZ", Status: model.VehicleAvailable}))
	v, _ := s.Vehicle("v1")
	assert.Equal(t, model.VehicleEnRoute, v.Status)
	assert.Equal(t, "ZZ-999-ZZ", v.Plate)

	require.NoError(t, s.UpsertVehicle(ctx, model.Vehicle{ID: "v2"}))
	v, _ = s.Vehicle("v2")
	assert.Equal(t, model.VehicleAvailable, v.Status)
}
