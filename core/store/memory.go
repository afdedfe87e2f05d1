package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kilianp07/responder/core/model"
)

type pairKey struct {
	eventID   string
	vehicleID string
}

// MemoryStore is an in-process Store. Each method holds the lock for its whole
// read-modify-write, which gives the same per-row atomicity as a SQL UPDATE.
type MemoryStore struct {
	mu            sync.RWMutex
	ref           model.Reference
	events        map[string]model.Event
	vehicles      map[string]model.Vehicle
	interventions map[pairKey]model.Intervention
	missing       map[model.Kind]map[string]bool
	failure       error
}

// NewMemoryStore returns an empty store seeded with the given reference data.
func NewMemoryStore(ref model.Reference) *MemoryStore {
	return &MemoryStore{
		ref:           ref,
		events:        map[string]model.Event{},
		vehicles:      map[string]model.Vehicle{},
		interventions: map[pairKey]model.Intervention{},
		missing:       map[model.Kind]map[string]bool{},
	}
}

// SetFailure makes every subsequent call return err until reset with nil.
func (s *MemoryStore) SetFailure(err error) {
	s.mu.Lock()
	s.failure = err
	s.mu.Unlock()
}

// RemoveStatus drops a status name from the reference data.
func (s *MemoryStore) RemoveStatus(kind model.Kind, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.missing[kind] == nil {
		s.missing[kind] = map[string]bool{}
	}
	s.missing[kind][strings.ToLower(name)] = true
}

// PutVehicle inserts or replaces a vehicle. It is the telemetry upsert path.
func (s *MemoryStore) PutVehicle(v model.Vehicle) {
	s.mu.Lock()
	if v.Status == 0 {
		v.Status = model.VehicleAvailable
	}
	s.vehicles[v.ID] = v
	s.mu.Unlock()
}

// UpsertVehicle records telemetry fields and keeps the dispatch status of a
// known vehicle.
func (s *MemoryStore) UpsertVehicle(_ context.Context, v model.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	if cur, ok := s.vehicles[v.ID]; ok {
		v.Status = cur.Status
	} else if v.Status == 0 {
		v.Status = model.VehicleAvailable
	}
	s.vehicles[v.ID] = v
	return nil
}

// Vehicle returns the stored vehicle.
func (s *MemoryStore) Vehicle(id string) (model.Vehicle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vehicles[id]
	return v, ok
}

// Interventions lists every intervention of an event ordered by vehicle.
func (s *MemoryStore) Interventions(eventID string) []model.Intervention {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []model.Intervention
	for k, i := range s.interventions {
		if k.eventID == eventID {
			res = append(res, i)
		}
	}
	sort.Slice(res, func(a, b int) bool { return res[a].VehicleID < res[b].VehicleID })
	return res
}

func (s *MemoryStore) FindStatusIDByName(_ context.Context, kind model.Kind, name string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return 0, s.failure
	}
	if s.missing[kind][strings.ToLower(name)] {
		return 0, StatusNotFound(kind, name)
	}
	var (
		id  int
		err error
	)
	switch kind {
	case model.KindEvent:
		var st model.EventStatus
		st, err = model.ParseEventStatus(name)
		id = int(st)
	case model.KindIntervention:
		var st model.InterventionStatus
		st, err = model.ParseInterventionStatus(name)
		id = int(st)
	case model.KindVehicle:
		var st model.VehicleStatus
		st, err = model.ParseVehicleStatus(name)
		id = int(st)
	default:
		return 0, StatusNotFound(kind, name)
	}
	if err != nil {
		return 0, StatusNotFound(kind, name)
	}
	return int64(id), nil
}

func (s *MemoryStore) typeID(name string) (int64, string, bool) {
	for i, t := range s.ref.Types {
		if strings.EqualFold(t, name) {
			return int64(i + 1), t, true
		}
	}
	return 0, "", false
}

func (s *MemoryStore) severity(name string) (int64, model.Severity, bool) {
	for i, sv := range s.ref.Severities {
		if strings.EqualFold(sv.Name, name) {
			return int64(i + 1), sv, true
		}
	}
	return 0, model.Severity{}, false
}

func (s *MemoryStore) InsertEvent(_ context.Context, e model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	_, typ, ok := s.typeID(e.Type)
	if !ok {
		return ReferenceNotFound("event type", e.Type)
	}
	_, sev, ok := s.severity(e.Severity)
	if !ok {
		return ReferenceNotFound("severity", e.Severity)
	}
	e.Type, e.Severity = typ, sev.Name
	s.events[e.ID] = e
	return nil
}

func (s *MemoryStore) GetEvent(_ context.Context, eventID string) (model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return model.Event{}, s.failure
	}
	e, ok := s.events[eventID]
	if !ok {
		return model.Event{}, ErrNotFound
	}
	return e, nil
}

func (s *MemoryStore) UpdateEventDetails(_ context.Context, eventID string, in model.EventInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	e, ok := s.events[eventID]
	if !ok {
		return ErrNotFound
	}
	_, typ, ok := s.typeID(in.Type)
	if !ok {
		return ReferenceNotFound("event type", in.Type)
	}
	_, sev, ok := s.severity(in.Severity)
	if !ok {
		return ReferenceNotFound("severity", in.Severity)
	}
	e.Description, e.Location, e.Type, e.Severity = in.Description, in.Location, typ, sev.Name
	s.events[eventID] = e
	return nil
}

func (s *MemoryStore) SetEventStatus(_ context.Context, eventID string, from []model.EventStatus, to model.EventStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return false, s.failure
	}
	e, ok := s.events[eventID]
	if !ok || !model.Contains(from, e.Status) {
		return false, nil
	}
	e.Status = to
	s.events[eventID] = e
	return true, nil
}

func (s *MemoryStore) EventDeclaration(_ context.Context, eventID string) (model.EventDeclaration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return model.EventDeclaration{}, s.failure
	}
	e, ok := s.events[eventID]
	if !ok {
		return model.EventDeclaration{}, ErrNotFound
	}
	typeID, _, _ := s.typeID(e.Type)
	sevID, _, _ := s.severity(e.Severity)
	return model.EventDeclaration{
		EventID:     e.ID,
		Description: e.Description,
		Location:    e.Location,
		TypeID:      typeID,
		StatusID:    int64(e.Status),
		SeverityID:  sevID,
	}, nil
}

func (s *MemoryStore) UpsertPendingIntervention(_ context.Context, eventID, vehicleID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return false, s.failure
	}
	k := pairKey{eventID, vehicleID}
	cur, ok := s.interventions[k]
	switch {
	case !ok:
		s.interventions[k] = model.Intervention{EventID: eventID, VehicleID: vehicleID, Status: model.InterventionPending}
		return true, nil
	case cur.Status == model.InterventionCancelled:
		cur.Status = model.InterventionPending
		s.interventions[k] = cur
		return true, nil
	default:
		return false, nil
	}
}

func (s *MemoryStore) SetInterventionStatus(_ context.Context, eventID, vehicleID string, from []model.InterventionStatus, to model.InterventionStatus, stamp model.Stamp, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return false, s.failure
	}
	k := pairKey{eventID, vehicleID}
	cur, ok := s.interventions[k]
	if !ok || !model.Contains(from, cur.Status) {
		return false, nil
	}
	cur.Status = to
	at = at.UTC()
	switch stamp {
	case model.StampStartedAt:
		if cur.StartedAt == nil {
			cur.StartedAt = &at
		}
	case model.StampEndedAt:
		if cur.EndedAt == nil {
			cur.EndedAt = &at
		}
	}
	s.interventions[k] = cur
	return true, nil
}

func (s *MemoryStore) InsertCommittedIntervention(_ context.Context, eventID, vehicleID string, startedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return false, s.failure
	}
	k := pairKey{eventID, vehicleID}
	if _, ok := s.interventions[k]; ok {
		return false, nil
	}
	at := startedAt.UTC()
	s.interventions[k] = model.Intervention{EventID: eventID, VehicleID: vehicleID, Status: model.InterventionCommitted, StartedAt: &at}
	return true, nil
}

func (s *MemoryStore) GetIntervention(_ context.Context, eventID, vehicleID string) (model.Intervention, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return model.Intervention{}, s.failure
	}
	i, ok := s.interventions[pairKey{eventID, vehicleID}]
	if !ok {
		return model.Intervention{}, ErrNotFound
	}
	return i, nil
}

func (s *MemoryStore) FindPendingVehiclesForEvent(_ context.Context, eventID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return nil, s.failure
	}
	var ids []string
	for k, i := range s.interventions {
		if k.eventID == eventID && i.Status == model.InterventionPending {
			ids = append(ids, k.vehicleID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) VehicleHasInterventionWithStatus(_ context.Context, vehicleID string, status model.InterventionStatus) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return false, s.failure
	}
	for k, i := range s.interventions {
		if k.vehicleID == vehicleID && i.Status == status {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) HasActiveInterventionForEvent(_ context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return false, s.failure
	}
	for k, i := range s.interventions {
		if k.eventID == eventID && i.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) SetVehicleStatus(_ context.Context, vehicleID string, from []model.VehicleStatus, to model.VehicleStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return false, s.failure
	}
	v, ok := s.vehicles[vehicleID]
	if !ok || !model.Contains(from, v.Status) {
		return false, nil
	}
	v.Status = to
	s.vehicles[vehicleID] = v
	return true, nil
}

func (s *MemoryStore) InterventionSnapshot(_ context.Context, eventID, vehicleID string) (model.InterventionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return model.InterventionSnapshot{}, s.failure
	}
	i, ok := s.interventions[pairKey{eventID, vehicleID}]
	if !ok {
		return model.InterventionSnapshot{}, ErrNotFound
	}
	return model.InterventionSnapshot{
		EventID:   i.EventID,
		VehicleID: i.VehicleID,
		Plate:     s.vehicles[vehicleID].Plate,
		Status:    i.Status.String(),
		StartedAt: i.StartedAt,
		EndedAt:   i.EndedAt,
	}, nil
}

func (s *MemoryStore) VehicleSnapshot(_ context.Context, vehicleID string) (model.VehicleSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return model.VehicleSnapshot{}, s.failure
	}
	v, ok := s.vehicles[vehicleID]
	if !ok {
		return model.VehicleSnapshot{}, ErrNotFound
	}
	snap := model.VehicleSnapshot{
		ID:        v.ID,
		Plate:     v.Plate,
		Location:  v.Location,
		Status:    v.Status.String(),
		Station:   v.Station,
		Equipment: append([]model.Equipment(nil), v.Equipment...),
	}
	if !v.LastPosition.IsZero() {
		lp := v.LastPosition
		snap.LastPosition = &lp
	}
	return snap, nil
}

func (s *MemoryStore) EventSnapshot(_ context.Context, eventID string) (model.EventSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return model.EventSnapshot{}, s.failure
	}
	e, ok := s.events[eventID]
	if !ok {
		return model.EventSnapshot{}, ErrNotFound
	}
	_, sev, _ := s.severity(e.Severity)
	return model.EventSnapshot{
		ID:               e.ID,
		Description:      e.Description,
		Location:         e.Location,
		Status:           e.Status.String(),
		Type:             e.Type,
		Severity:         sev.Name,
		SeverityScale:    sev.Scale,
		VehiclesRequired: sev.VehiclesRequired,
	}, nil
}

var (
	_ Store           = (*MemoryStore)(nil)
	_ VehicleRegistry = (*MemoryStore)(nil)
)
