// Package sqlstore implements the dispatch store on PostgreSQL (lib/pq) or
// SQLite (modernc.org/sqlite). Every method runs one statement, or a short
// sequence of independently atomic ones, and never opens a transaction.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/kilianp07/responder/core/logger"
	"github.com/kilianp07/responder/core/model"
	"github.com/kilianp07/responder/core/store"
)

// Store is a database/sql backed store.Store.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  logger.Logger
}

// Open connects to the database described by driver and dsn.
func Open(driver, dsn string, log logger.Logger) (*Store, error) {
	d, err := ParseDialect(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(d.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", d, err)
	}
	if d == DialectSQLite {
		// sqlite serialises writers; one connection avoids SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping %s: %w", d, err)
	}
	return New(db, d, log), nil
}

// New wraps an existing connection pool.
func New(db *sql.DB, d Dialect, log logger.Logger) *Store {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Store{db: db, dialect: d, logger: log}
}

// Close closes the underlying pool.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) rebind(q string) string { return rebind(s.dialect, q) }

func (s *Store) exec(ctx context.Context, q string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(q), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) count(ctx context.Context, q string, args ...any) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, s.rebind(q), args...).Scan(&n)
	return n, err
}

func (s *Store) FindStatusIDByName(ctx context.Context, kind model.Kind, name string) (int64, error) {
	table, ok := statusTables[kind]
	if !ok {
		return 0, store.StatusNotFound(kind, name)
	}
	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind(fmt.Sprintf(queryStatusIDByName, table)), name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, store.StatusNotFound(kind, name)
	}
	if err != nil {
		return 0, fmt.Errorf("find %s status %q: %w", kind, name, err)
	}
	return id, nil
}

// reference resolves an event type or severity by name.
func (s *Store) reference(ctx context.Context, q, what, name string) (int64, string, error) {
	var (
		id        int64
		canonical string
	)
	err := s.db.QueryRowContext(ctx, s.rebind(q), name).Scan(&id, &canonical)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", store.ReferenceNotFound(what, name)
	}
	if err != nil {
		return 0, "", fmt.Errorf("find %s %q: %w", what, name, err)
	}
	return id, canonical, nil
}

func (s *Store) InsertEvent(ctx context.Context, e model.Event) error {
	typeID, _, err := s.reference(ctx, queryTypeIDByName, "event type", e.Type)
	if err != nil {
		return err
	}
	sevID, _, err := s.reference(ctx, querySeverityIDByName, "severity", e.Severity)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, queryInsertEvent,
		e.ID, e.Description, e.Location.Latitude, e.Location.Longitude,
		typeID, sevID, statusID(e.Status), e.DeclaredAt.UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("insert event %s: %w", e.ID, err)
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, eventID string) (model.Event, error) {
	var (
		e        model.Event
		status   int64
		declared int64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(queryGetEvent), eventID).Scan(
		&e.ID, &e.Description, &e.Location.Latitude, &e.Location.Longitude,
		&e.Type, &e.Severity, &status, &declared)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, store.ErrNotFound
	}
	if err != nil {
		return model.Event{}, fmt.Errorf("get event %s: %w", eventID, err)
	}
	e.Status = model.EventStatus(status)
	e.DeclaredAt = fromNanos(declared)
	return e, nil
}

func (s *Store) UpdateEventDetails(ctx context.Context, eventID string, in model.EventInput) error {
	typeID, _, err := s.reference(ctx, queryTypeIDByName, "event type", in.Type)
	if err != nil {
		return err
	}
	sevID, _, err := s.reference(ctx, querySeverityIDByName, "severity", in.Severity)
	if err != nil {
		return err
	}
	n, err := s.exec(ctx, queryUpdateEventDetails,
		in.Description, in.Location.Latitude, in.Location.Longitude, typeID, sevID, eventID)
	if err != nil {
		return fmt.Errorf("update event %s: %w", eventID, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SetEventStatus(ctx context.Context, eventID string, from []model.EventStatus, to model.EventStatus) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	args := []any{statusID(to), eventID}
	for _, st := range from {
		args = append(args, statusID(st))
	}
	n, err := s.exec(ctx, fmt.Sprintf(querySetEventStatus, placeholders(len(from))), args...)
	if err != nil {
		return false, fmt.Errorf("set event %s status %s: %w", eventID, to, err)
	}
	return n > 0, nil
}

func (s *Store) EventDeclaration(ctx context.Context, eventID string) (model.EventDeclaration, error) {
	var d model.EventDeclaration
	err := s.db.QueryRowContext(ctx, s.rebind(queryEventDeclaration), eventID).Scan(
		&d.EventID, &d.Description, &d.Location.Latitude, &d.Location.Longitude,
		&d.TypeID, &d.StatusID, &d.SeverityID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.EventDeclaration{}, store.ErrNotFound
	}
	if err != nil {
		return model.EventDeclaration{}, fmt.Errorf("event declaration %s: %w", eventID, err)
	}
	return d, nil
}

func (s *Store) UpsertPendingIntervention(ctx context.Context, eventID, vehicleID string) (bool, error) {
	pending := statusID(model.InterventionPending)
	n, err := s.exec(ctx, queryInsertPending, eventID, vehicleID, pending)
	if err != nil {
		return false, fmt.Errorf("insert pending intervention %s/%s: %w", eventID, vehicleID, err)
	}
	if n > 0 {
		return true, nil
	}
	n, err = s.exec(ctx, queryReopenCancelled, pending, eventID, vehicleID, statusID(model.InterventionCancelled))
	if err != nil {
		return false, fmt.Errorf("reopen intervention %s/%s: %w", eventID, vehicleID, err)
	}
	return n > 0, nil
}

func (s *Store) SetInterventionStatus(ctx context.Context, eventID, vehicleID string, from []model.InterventionStatus, to model.InterventionStatus, stamp model.Stamp, at time.Time) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	args := []any{statusID(to)}
	set := ""
	switch stamp {
	case model.StampStartedAt:
		set = ", started_at = COALESCE(started_at, ?)"
		args = append(args, at.UTC().UnixNano())
	case model.StampEndedAt:
		set = ", ended_at = COALESCE(ended_at, ?)"
		args = append(args, at.UTC().UnixNano())
	}
	args = append(args, eventID, vehicleID)
	for _, st := range from {
		args = append(args, statusID(st))
	}
	n, err := s.exec(ctx, fmt.Sprintf(querySetInterventionStatus, set, placeholders(len(from))), args...)
	if err != nil {
		return false, fmt.Errorf("set intervention %s/%s status %s: %w", eventID, vehicleID, to, err)
	}
	return n > 0, nil
}

func (s *Store) InsertCommittedIntervention(ctx context.Context, eventID, vehicleID string, startedAt time.Time) (bool, error) {
	n, err := s.exec(ctx, queryInsertCommitted, eventID, vehicleID,
		statusID(model.InterventionCommitted), startedAt.UTC().UnixNano())
	if err != nil {
		return false, fmt.Errorf("insert committed intervention %s/%s: %w", eventID, vehicleID, err)
	}
	return n > 0, nil
}

func (s *Store) GetIntervention(ctx context.Context, eventID, vehicleID string) (model.Intervention, error) {
	var (
		status         int64
		started, ended sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(queryGetIntervention), eventID, vehicleID).Scan(&status, &started, &ended)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Intervention{}, store.ErrNotFound
	}
	if err != nil {
		return model.Intervention{}, fmt.Errorf("get intervention %s/%s: %w", eventID, vehicleID, err)
	}
	return model.Intervention{
		EventID:   eventID,
		VehicleID: vehicleID,
		Status:    model.InterventionStatus(status),
		StartedAt: nullTime(started),
		EndedAt:   nullTime(ended),
	}, nil
}

func (s *Store) FindPendingVehiclesForEvent(ctx context.Context, eventID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(queryPendingVehicles), eventID, statusID(model.InterventionPending))
	if err != nil {
		return nil, fmt.Errorf("pending vehicles for %s: %w", eventID, err)
	}
	defer func() { _ = rows.Close() }()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) VehicleHasInterventionWithStatus(ctx context.Context, vehicleID string, status model.InterventionStatus) (bool, error) {
	n, err := s.count(ctx, queryVehicleHasStatus, vehicleID, statusID(status))
	if err != nil {
		return false, fmt.Errorf("interventions of %s with status %s: %w", vehicleID, status, err)
	}
	return n > 0, nil
}

func (s *Store) HasActiveInterventionForEvent(ctx context.Context, eventID string) (bool, error) {
	n, err := s.count(ctx, queryActiveForEvent, eventID, statusID(model.InterventionCommitted))
	if err != nil {
		return false, fmt.Errorf("active interventions for %s: %w", eventID, err)
	}
	return n > 0, nil
}

func (s *Store) SetVehicleStatus(ctx context.Context, vehicleID string, from []model.VehicleStatus, to model.VehicleStatus) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	args := []any{statusID(to), vehicleID}
	for _, st := range from {
		args = append(args, statusID(st))
	}
	n, err := s.exec(ctx, fmt.Sprintf(querySetVehicleStatus, placeholders(len(from))), args...)
	if err != nil {
		return false, fmt.Errorf("set vehicle %s status %s: %w", vehicleID, to, err)
	}
	return n > 0, nil
}

// UpsertVehicle writes a vehicle's telemetry fields and equipment. The
// dispatch status is only set when the row is created.
func (s *Store) UpsertVehicle(ctx context.Context, v model.Vehicle) error {
	status := v.Status
	if status == 0 {
		status = model.VehicleAvailable
	}
	var last sql.NullInt64
	if !v.LastPosition.IsZero() {
		last = sql.NullInt64{Int64: v.LastPosition.UTC().UnixNano(), Valid: true}
	}
	var station sql.NullString
	if v.Station != "" {
		station = sql.NullString{String: v.Station, Valid: true}
	}
	if _, err := s.exec(ctx, queryUpsertVehicle,
		v.ID, v.Plate, v.Location.Latitude, v.Location.Longitude, station, statusID(status), last); err != nil {
		return fmt.Errorf("upsert vehicle %s: %w", v.ID, err)
	}
	if _, err := s.exec(ctx, queryDeleteEquipment, v.ID); err != nil {
		return fmt.Errorf("clear equipment of %s: %w", v.ID, err)
	}
	for _, eq := range v.Equipment {
		if _, err := s.exec(ctx, queryInsertEquipment, v.ID, eq.Name, eq.Level, eq.Capacity); err != nil {
			return fmt.Errorf("insert equipment %s of %s: %w", eq.Name, v.ID, err)
		}
	}
	return nil
}

func (s *Store) InterventionSnapshot(ctx context.Context, eventID, vehicleID string) (model.InterventionSnapshot, error) {
	var (
		snap           model.InterventionSnapshot
		status         int64
		started, ended sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(queryInterventionSnapshot), eventID, vehicleID).Scan(
		&snap.EventID, &snap.VehicleID, &snap.Plate, &status, &started, &ended)
	if errors.Is(err, sql.ErrNoRows) {
		return model.InterventionSnapshot{}, store.ErrNotFound
	}
	if err != nil {
		return model.InterventionSnapshot{}, fmt.Errorf("intervention snapshot %s/%s: %w", eventID, vehicleID, err)
	}
	snap.Status = model.InterventionStatus(status).String()
	snap.StartedAt = nullTime(started)
	snap.EndedAt = nullTime(ended)
	return snap, nil
}

func (s *Store) VehicleSnapshot(ctx context.Context, vehicleID string) (model.VehicleSnapshot, error) {
	var (
		snap   model.VehicleSnapshot
		status int64
		last   sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(queryVehicleSnapshot), vehicleID).Scan(
		&snap.ID, &snap.Plate, &snap.Location.Latitude, &snap.Location.Longitude, &snap.Station, &status, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return model.VehicleSnapshot{}, store.ErrNotFound
	}
	if err != nil {
		return model.VehicleSnapshot{}, fmt.Errorf("vehicle snapshot %s: %w", vehicleID, err)
	}
	snap.Status = model.VehicleStatus(status).String()
	snap.LastPosition = nullTime(last)

	rows, err := s.db.QueryContext(ctx, s.rebind(queryVehicleEquipment), vehicleID)
	if err != nil {
		return model.VehicleSnapshot{}, fmt.Errorf("equipment of %s: %w", vehicleID, err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var eq model.Equipment
		if err := rows.Scan(&eq.Name, &eq.Level, &eq.Capacity); err != nil {
			return model.VehicleSnapshot{}, err
		}
		snap.Equipment = append(snap.Equipment, eq)
	}
	if err := rows.Err(); err != nil {
		return model.VehicleSnapshot{}, err
	}
	return snap, nil
}

func (s *Store) EventSnapshot(ctx context.Context, eventID string) (model.EventSnapshot, error) {
	var (
		snap   model.EventSnapshot
		status int64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(queryEventSnapshot), eventID).Scan(
		&snap.ID, &snap.Description, &snap.Location.Latitude, &snap.Location.Longitude, &status,
		&snap.Type, &snap.Severity, &snap.SeverityScale, &snap.VehiclesRequired)
	if errors.Is(err, sql.ErrNoRows) {
		return model.EventSnapshot{}, store.ErrNotFound
	}
	if err != nil {
		return model.EventSnapshot{}, fmt.Errorf("event snapshot %s: %w", eventID, err)
	}
	snap.Status = model.EventStatus(status).String()
	return snap, nil
}

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func nullTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

var (
	_ store.Store           = (*Store)(nil)
	_ store.VehicleRegistry = (*Store)(nil)
)
