package model

import (
	"fmt"
	"strings"
	"time"
)

// VehicleStatus is the dispatch state of a vehicle. Only the coordinator changes it.
type VehicleStatus int

const (
	VehicleAvailable VehicleStatus = iota + 1
	VehicleProposed
	VehicleEnRoute
	VehicleOnScene
)

var vehicleStatusNames = map[VehicleStatus]string{
	VehicleAvailable: "Available",
	VehicleProposed:  "Proposed",
	VehicleEnRoute:   "En route",
	VehicleOnScene:   "On scene",
}

func (s VehicleStatus) String() string {
	if n, ok := vehicleStatusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("VehicleStatus(%d)", int(s))
}

// VehicleStatuses lists every vehicle status.
func VehicleStatuses() []VehicleStatus {
	return []VehicleStatus{VehicleAvailable, VehicleProposed, VehicleEnRoute, VehicleOnScene}
}

// ParseVehicleStatus maps a reference-table name back to the enum.
func ParseVehicleStatus(name string) (VehicleStatus, error) {
	for s, n := range vehicleStatusNames {
		if strings.EqualFold(n, name) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown vehicle status %q", name)
}

// VehicleTransitions is the Vehicle state machine. Proposed -> Proposed keeps a
// vehicle proposed for a second event; Available is reachable from everywhere
// because closing an assignment releases the vehicle unconditionally. A
// vehicle already en route cannot be routed again.
var VehicleTransitions = Transitions[VehicleStatus]{
	VehicleProposed:  {VehicleAvailable, VehicleProposed},
	VehicleEnRoute:   {VehicleAvailable, VehicleProposed},
	VehicleOnScene:   {VehicleEnRoute},
	VehicleAvailable: {VehicleAvailable, VehicleProposed, VehicleEnRoute, VehicleOnScene},
}

// Equipment is a resource level carried by a vehicle. It is not part of the state machine.
type Equipment struct {
	Name     string  `json:"name"`
	Level    float64 `json:"level"`
	Capacity float64 `json:"capacity"`
}

// Vehicle is an emergency-response vehicle.
type Vehicle struct {
	ID           string        `json:"id"`
	Plate        string        `json:"plate"`
	Location     Location      `json:"location"`
	Status       VehicleStatus `json:"status"`
	Station      string        `json:"station,omitempty"`
	LastPosition time.Time     `json:"last_position"`
	Equipment    []Equipment   `json:"equipment,omitempty"`
}

// VehicleSnapshot is the dashboard view of a Vehicle.
type VehicleSnapshot struct {
	ID           string      `json:"id"`
	Plate        string      `json:"plate"`
	Location     Location    `json:"location"`
	LastPosition *time.Time  `json:"last_position,omitempty"`
	Status       string      `json:"status"`
	Station      string      `json:"station,omitempty"`
	Equipment    []Equipment `json:"equipment,omitempty"`
}
