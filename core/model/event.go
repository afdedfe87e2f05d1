package model

import (
	"fmt"
	"strings"
	"time"
)

// EventStatus is the lifecycle position of an Event. It only moves forward.
type EventStatus int

const (
	EventDeclared EventStatus = iota + 1
	EventInIntervention
	EventResolved
)

var eventStatusNames = map[EventStatus]string{
	EventDeclared:       "Declared",
	EventInIntervention: "In intervention",
	EventResolved:       "Resolved",
}

func (s EventStatus) String() string {
	if n, ok := eventStatusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("EventStatus(%d)", int(s))
}

// EventStatuses lists every event status in lifecycle order.
func EventStatuses() []EventStatus {
	return []EventStatus{EventDeclared, EventInIntervention, EventResolved}
}

// ParseEventStatus maps a reference-table name back to the enum.
func ParseEventStatus(name string) (EventStatus, error) {
	for s, n := range eventStatusNames {
		if strings.EqualFold(n, name) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown event status %q", name)
}

// EventTransitions is the Event state machine.
var EventTransitions = Transitions[EventStatus]{
	EventInIntervention: {EventDeclared},
	EventResolved:       {EventInIntervention},
}

// Location is a WGS84 position.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Event is a reported incident requiring response.
type Event struct {
	ID          string      `json:"id"`
	Description string      `json:"description"`
	Location    Location    `json:"location"`
	Type        string      `json:"type"`
	Severity    string      `json:"severity"`
	Status      EventStatus `json:"status"`
	DeclaredAt  time.Time   `json:"declared_at"`
}

// EventInput carries the operator-editable fields of an Event.
type EventInput struct {
	Description string   `json:"description"`
	Location    Location `json:"location"`
	Type        string   `json:"type"`
	Severity    string   `json:"severity"`
}

// Validate checks mandatory fields and coordinate ranges.
func (in EventInput) Validate() error {
	if strings.TrimSpace(in.Type) == "" {
		return fmt.Errorf("event type is required")
	}
	if strings.TrimSpace(in.Severity) == "" {
		return fmt.Errorf("event severity is required")
	}
	if len(in.Description) > 255 {
		return fmt.Errorf("description exceeds 255 characters")
	}
	if in.Location.Latitude < -90 || in.Location.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range", in.Location.Latitude)
	}
	if in.Location.Longitude < -180 || in.Location.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range", in.Location.Longitude)
	}
	return nil
}

// DispatchChanged reports whether applying in to e changes a field the
// decision process uses to pick vehicles.
func (e Event) DispatchChanged(in EventInput) bool {
	return e.Location != in.Location ||
		!strings.EqualFold(e.Type, in.Type) ||
		!strings.EqualFold(e.Severity, in.Severity)
}

// EventSnapshot is the dashboard view of an Event.
type EventSnapshot struct {
	ID               string   `json:"id"`
	Description      string   `json:"description"`
	Location         Location `json:"location"`
	Status           string   `json:"status"`
	Type             string   `json:"type"`
	Severity         string   `json:"severity"`
	SeverityScale    int      `json:"severity_scale"`
	VehiclesRequired int      `json:"vehicles_required"`
}
