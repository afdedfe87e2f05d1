package model

import (
	"fmt"
	"strings"
	"time"
)

// InterventionStatus is the lifecycle position of one vehicle's assignment to one event.
type InterventionStatus int

const (
	InterventionPending InterventionStatus = iota + 1
	InterventionCommitted
	InterventionCancelled
	InterventionClosed
)

var interventionStatusNames = map[InterventionStatus]string{
	InterventionPending:   "Pending",
	InterventionCommitted: "Committed",
	InterventionCancelled: "Cancelled",
	InterventionClosed:    "Closed",
}

func (s InterventionStatus) String() string {
	if n, ok := interventionStatusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("InterventionStatus(%d)", int(s))
}

// Terminal reports whether the status ends the assignment.
func (s InterventionStatus) Terminal() bool {
	return s == InterventionCancelled || s == InterventionClosed
}

// InterventionStatuses lists every intervention status.
func InterventionStatuses() []InterventionStatus {
	return []InterventionStatus{InterventionPending, InterventionCommitted, InterventionCancelled, InterventionClosed}
}

// ParseInterventionStatus maps a reference-table name back to the enum.
func ParseInterventionStatus(name string) (InterventionStatus, error) {
	for s, n := range interventionStatusNames {
		if strings.EqualFold(n, name) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown intervention status %q", name)
}

// InterventionTransitions is the Intervention state machine. Row creation
// (into Pending or Committed) is not a transition and is handled by inserts.
// Cancelled -> Pending covers a re-proposal after an event amendment;
// Cancelled -> Committed lets an explicit operator validation win over a stale cancel.
var InterventionTransitions = Transitions[InterventionStatus]{
	InterventionPending:   {InterventionCancelled},
	InterventionCommitted: {InterventionPending, InterventionCommitted, InterventionCancelled},
	InterventionCancelled: {InterventionPending},
	InterventionClosed:    {InterventionCommitted, InterventionClosed},
}

// Stamp names the set-once timestamp written alongside a status change.
type Stamp int

const (
	StampNone Stamp = iota
	StampStartedAt
	StampEndedAt
)

// Intervention is the record of one vehicle's assignment to one event.
type Intervention struct {
	EventID   string             `json:"event_id"`
	VehicleID string             `json:"vehicle_id"`
	Status    InterventionStatus `json:"status"`
	StartedAt *time.Time         `json:"started_at,omitempty"`
	EndedAt   *time.Time         `json:"ended_at,omitempty"`
}

// Active reports whether the intervention is committed and not yet closed.
func (i Intervention) Active() bool {
	return i.Status == InterventionCommitted && i.EndedAt == nil
}

// InterventionSnapshot is the dashboard view of an Intervention.
type InterventionSnapshot struct {
	EventID   string     `json:"event_id"`
	VehicleID string     `json:"vehicle_id"`
	Plate     string     `json:"plate,omitempty"`
	Status    string     `json:"status"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}
