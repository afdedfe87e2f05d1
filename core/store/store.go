// Package store defines the persistence contract the dispatch coordinator
// consumes. Every method is a single atomic store operation; no method spans
// a transaction over several rows of different entities.
//
// Status-changing methods take the guard set of statuses the row must
// currently hold and report whether a row matched. A false result without an
// error is a stale write: the row is gone or already moved elsewhere.
package store

import (
	"context"
	"time"

	"github.com/kilianp07/responder/core/model"
)

// StatusResolver maps reference-data status names to store identifiers.
type StatusResolver interface {
	FindStatusIDByName(ctx context.Context, kind model.Kind, name string) (int64, error)
}

// EventStore persists Events.
type EventStore interface {
	InsertEvent(ctx context.Context, e model.Event) error
	GetEvent(ctx context.Context, eventID string) (model.Event, error)
	UpdateEventDetails(ctx context.Context, eventID string, in model.EventInput) error
	SetEventStatus(ctx context.Context, eventID string, from []model.EventStatus, to model.EventStatus) (bool, error)
	EventDeclaration(ctx context.Context, eventID string) (model.EventDeclaration, error)
}

// InterventionStore persists Interventions keyed by (eventID, vehicleID).
type InterventionStore interface {
	// UpsertPendingIntervention creates a Pending row, or re-opens a Cancelled
	// one. It reports false when a Pending, Committed or Closed row exists.
	UpsertPendingIntervention(ctx context.Context, eventID, vehicleID string) (bool, error)
	// SetInterventionStatus moves the row to status to when it currently holds
	// one of from. The stamp field is written with at only if still unset.
	SetInterventionStatus(ctx context.Context, eventID, vehicleID string, from []model.InterventionStatus, to model.InterventionStatus, stamp model.Stamp, at time.Time) (bool, error)
	// InsertCommittedIntervention creates a Committed row and reports false when
	// any row already exists for the pair.
	InsertCommittedIntervention(ctx context.Context, eventID, vehicleID string, startedAt time.Time) (bool, error)
	GetIntervention(ctx context.Context, eventID, vehicleID string) (model.Intervention, error)
	FindPendingVehiclesForEvent(ctx context.Context, eventID string) ([]string, error)
	VehicleHasInterventionWithStatus(ctx context.Context, vehicleID string, status model.InterventionStatus) (bool, error)
	// HasActiveInterventionForEvent reports whether a Committed, non-closed row exists.
	HasActiveInterventionForEvent(ctx context.Context, eventID string) (bool, error)
}

// VehicleStore changes vehicle dispatch status.
type VehicleStore interface {
	SetVehicleStatus(ctx context.Context, vehicleID string, from []model.VehicleStatus, to model.VehicleStatus) (bool, error)
}

// VehicleRegistry records vehicles reported by the fleet. The dispatch status
// of an existing vehicle is left untouched.
type VehicleRegistry interface {
	UpsertVehicle(ctx context.Context, v model.Vehicle) error
}

// SnapshotReader returns the dashboard views broadcast after a transition.
type SnapshotReader interface {
	InterventionSnapshot(ctx context.Context, eventID, vehicleID string) (model.InterventionSnapshot, error)
	VehicleSnapshot(ctx context.Context, vehicleID string) (model.VehicleSnapshot, error)
	EventSnapshot(ctx context.Context, eventID string) (model.EventSnapshot, error)
}

// Store is the full Entity Store Adapter.
type Store interface {
	StatusResolver
	EventStore
	InterventionStore
	VehicleStore
	SnapshotReader
}
