package sqlstore

import (
	"context"
	"fmt"

	"github.com/kilianp07/responder/core/model"
)

// Status rows are seeded with the enum value as id, so guarded updates can
// bind the enum directly.
var statusTables = map[model.Kind]string{
	model.KindEvent:        "event_status",
	model.KindIntervention: "intervention_status",
	model.KindVehicle:      "vehicle_status",
}

// Timestamps are stored as Unix nanoseconds to keep one column type across
// both dialects.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS event_status (
        id INTEGER PRIMARY KEY,
        name TEXT NOT NULL UNIQUE
    )`,
	`CREATE TABLE IF NOT EXISTS intervention_status (
        id INTEGER PRIMARY KEY,
        name TEXT NOT NULL UNIQUE
    )`,
	`CREATE TABLE IF NOT EXISTS vehicle_status (
        id INTEGER PRIMARY KEY,
        name TEXT NOT NULL UNIQUE
    )`,
	`CREATE TABLE IF NOT EXISTS event_type (
        id INTEGER PRIMARY KEY,
        name TEXT NOT NULL UNIQUE
    )`,
	`CREATE TABLE IF NOT EXISTS severity (
        id INTEGER PRIMARY KEY,
        name TEXT NOT NULL UNIQUE,
        scale INTEGER NOT NULL,
        vehicles_required INTEGER NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS event (
        id TEXT PRIMARY KEY,
        description TEXT NOT NULL DEFAULT '',
        latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
        longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
        type_id INTEGER NOT NULL REFERENCES event_type(id),
        severity_id INTEGER NOT NULL REFERENCES severity(id),
        status_id INTEGER NOT NULL REFERENCES event_status(id),
        declared_at BIGINT NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS vehicle (
        id TEXT PRIMARY KEY,
        plate TEXT NOT NULL DEFAULT '',
        latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
        longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
        station TEXT,
        status_id INTEGER NOT NULL REFERENCES vehicle_status(id),
        last_position_at BIGINT
    )`,
	`CREATE TABLE IF NOT EXISTS vehicle_equipment (
        vehicle_id TEXT NOT NULL,
        name TEXT NOT NULL,
        level DOUBLE PRECISION NOT NULL DEFAULT 0,
        capacity DOUBLE PRECISION NOT NULL DEFAULT 0,
        PRIMARY KEY (vehicle_id, name)
    )`,
	// no foreign keys: a validation may name a vehicle the telemetry feed
	// has not reported yet
	`CREATE TABLE IF NOT EXISTS intervention (
        event_id TEXT NOT NULL,
        vehicle_id TEXT NOT NULL,
        status_id INTEGER NOT NULL,
        started_at BIGINT,
        ended_at BIGINT,
        PRIMARY KEY (event_id, vehicle_id)
    )`,
	`CREATE INDEX IF NOT EXISTS intervention_vehicle_idx ON intervention (vehicle_id, status_id)`,
}

// Migrate creates the tables and seeds status names and reference data.
// It is idempotent.
func (s *Store) Migrate(ctx context.Context, ref model.Reference) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlstore: migrate: %w", err)
		}
	}

	seeds := map[model.Kind][]fmt.Stringer{}
	for _, st := range model.EventStatuses() {
		seeds[model.KindEvent] = append(seeds[model.KindEvent], st)
	}
	for _, st := range model.InterventionStatuses() {
		seeds[model.KindIntervention] = append(seeds[model.KindIntervention], st)
	}
	for _, st := range model.VehicleStatuses() {
		seeds[model.KindVehicle] = append(seeds[model.KindVehicle], st)
	}
	for _, kind := range []model.Kind{model.KindEvent, model.KindIntervention, model.KindVehicle} {
		statuses := seeds[kind]
		q := s.rebind(fmt.Sprintf("INSERT INTO %s (id, name) VALUES (?, ?) ON CONFLICT (id) DO NOTHING", statusTables[kind]))
		for _, st := range statuses {
			if _, err := s.db.ExecContext(ctx, q, statusID(st), st.String()); err != nil {
				return fmt.Errorf("sqlstore: seed %s status %s: %w", kind, st, err)
			}
		}
	}

	q := s.rebind("INSERT INTO event_type (id, name) VALUES (?, ?) ON CONFLICT (id) DO NOTHING")
	for i, t := range ref.Types {
		if _, err := s.db.ExecContext(ctx, q, int64(i+1), t); err != nil {
			return fmt.Errorf("sqlstore: seed event type %s: %w", t, err)
		}
	}
	q = s.rebind("INSERT INTO severity (id, name, scale, vehicles_required) VALUES (?, ?, ?, ?) ON CONFLICT (id) DO NOTHING")
	for i, sv := range ref.Severities {
		if _, err := s.db.ExecContext(ctx, q, int64(i+1), sv.Name, sv.Scale, sv.VehiclesRequired); err != nil {
			return fmt.Errorf("sqlstore: seed severity %s: %w", sv.Name, err)
		}
	}
	if err := s.VerifyStatusIDs(ctx); err != nil {
		return err
	}
	s.logger.Infof("schema migrated (%s): %d event types, %d severities", s.dialect, len(ref.Types), len(ref.Severities))
	return nil
}

// VerifyStatusIDs checks that every status name resolves to the id the
// guarded updates bind, so a database seeded by another tool fails at
// startup instead of turning every transition into a stale write.
func (s *Store) VerifyStatusIDs(ctx context.Context) error {
	check := func(kind model.Kind, st fmt.Stringer) error {
		id, err := s.FindStatusIDByName(ctx, kind, st.String())
		if err != nil {
			return fmt.Errorf("sqlstore: verify status ids: %w", err)
		}
		if want := statusID(st); id != want {
			return fmt.Errorf("sqlstore: %s status %q has id %d, expected %d", kind, st, id, want)
		}
		return nil
	}
	for _, st := range model.EventStatuses() {
		if err := check(model.KindEvent, st); err != nil {
			return err
		}
	}
	for _, st := range model.InterventionStatuses() {
		if err := check(model.KindIntervention, st); err != nil {
			return err
		}
	}
	for _, st := range model.VehicleStatuses() {
		if err := check(model.KindVehicle, st); err != nil {
			return err
		}
	}
	return nil
}

// statusID returns the id of any of the three status enums. Status rows are
// seeded with the enum value as id and every guarded update binds these ids
// directly; VerifyStatusIDs enforces the match.
func statusID(st fmt.Stringer) int64 {
	switch v := st.(type) {
	case model.EventStatus:
		return int64(v)
	case model.InterventionStatus:
		return int64(v)
	case model.VehicleStatus:
		return int64(v)
	}
	return 0
}
