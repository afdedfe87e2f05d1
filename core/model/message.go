package model

import "time"

// Proposal is the decision process's answer to a proposal request. Delivery is at-least-once.
type Proposal struct {
	EventID   string    `json:"event_id"`
	VehicleID string    `json:"vehicle_id,omitempty"`
	Accepted  bool      `json:"accepted"`
	Reason    string    `json:"reason,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
}

// Actionable reports whether the proposal names a vehicle to hold for the event.
func (p Proposal) Actionable() bool {
	return p.Accepted && p.VehicleID != ""
}

// EventDeclaration is the outbound proposal request sent to the decision process.
type EventDeclaration struct {
	EventID     string   `json:"event_id"`
	Description string   `json:"description"`
	Location    Location `json:"location"`
	TypeID      int64    `json:"type_id"`
	StatusID    int64    `json:"status_id"`
	SeverityID  int64    `json:"severity_id"`
}
