// Package audit records one entry per coordinator call so operators can
// reconstruct who was committed, cancelled or closed and when. Appending is
// best-effort: callers log failures and never propagate them.
package audit

import (
	"context"
	"time"

	"github.com/kilianp07/responder/core/factory"
	"github.com/kilianp07/responder/core/model"
)

// Outcome of an audited call.
const (
	OutcomeApplied = "applied"
	OutcomeNoop    = "noop"
	OutcomeFailed  = "failed"
)

// Record captures the effect of one coordinator call.
type Record struct {
	Timestamp   time.Time `json:"timestamp"`
	Operation   string    `json:"operation"`
	EventID     string    `json:"event_id"`
	VehicleID   string    `json:"vehicle_id,omitempty"`
	Committed   []string  `json:"committed,omitempty"`
	Cancelled   []string  `json:"cancelled,omitempty"`
	Reverted    []string  `json:"reverted,omitempty"`
	Closed      []string  `json:"closed,omitempty"`
	EventStatus string    `json:"event_status,omitempty"`
	Outcome     string    `json:"outcome"`
	Error       string    `json:"error,omitempty"`
}

// Involves reports whether the record mentions the vehicle.
func (r Record) Involves(vehicleID string) bool {
	if r.VehicleID == vehicleID {
		return true
	}
	for _, ids := range [][]string{r.Committed, r.Cancelled, r.Reverted, r.Closed} {
		if model.Contains(ids, vehicleID) {
			return true
		}
	}
	return false
}

// Query defines filters for retrieving records. Zero values match everything.
type Query struct {
	Start     time.Time
	End       time.Time
	EventID   string
	VehicleID string
	Operation string
}

// Match reports whether r satisfies every filter of q.
func (q Query) Match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.EventID != "" && r.EventID != q.EventID {
		return false
	}
	if q.Operation != "" && r.Operation != q.Operation {
		return false
	}
	if q.VehicleID != "" && !r.Involves(q.VehicleID) {
		return false
	}
	return true
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// NopStore discards records.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error          { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }

var storeRegistry = factory.NewRegistry[Store]()

func init() {
	_ = RegisterStore("none", func(map[string]any) (Store, error) { return NopStore{}, nil })
}

// RegisterStore adds an audit backend factory identified by name.
func RegisterStore(name string, f factory.Factory[Store]) error {
	return storeRegistry.Register(name, f)
}

// NewStore creates the configured backend. An empty type yields a NopStore.
func NewStore(cfg factory.ModuleConfig) (Store, error) {
	if cfg.Type == "" {
		return NopStore{}, nil
	}
	return storeRegistry.Create(cfg)
}
