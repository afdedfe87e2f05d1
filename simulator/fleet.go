package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/kilianp07/responder/core/model"
)

var stations = []string{"North", "South", "East", "West", "Central"}

// GenerateFleet creates size vehicles with IDs veh0001..vehNNNN spread around
// the given centre. The output can be fed to "responder fleet import".
func GenerateFleet(rng *rand.Rand, size int, centre model.Location) []model.Vehicle {
	if size <= 0 {
		return nil
	}
	now := time.Now().UTC()
	vs := make([]model.Vehicle, size)
	for i := range vs {
		vs[i] = model.Vehicle{
			ID:    fmt.Sprintf("veh%04d", i+1),
			Plate: fmt.Sprintf("SIM-%03d", i+1),
			Location: model.Location{
				Latitude:  centre.Latitude + (rng.Float64()-0.5)*0.2,
				Longitude: centre.Longitude + (rng.Float64()-0.5)*0.2,
			},
			Station:      stations[i%len(stations)],
			LastPosition: now,
		}
	}
	return vs
}

// WriteFleet stores the fleet as a JSON array.
func WriteFleet(path string, vs []model.Vehicle) error {
	data, err := json.MarshalIndent(vs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// vehiclesRequired looks the severity up in the default reference data,
// whose ids follow seeding order.
func vehiclesRequired(severityID int64) int {
	sev := model.DefaultReference().Severities
	if severityID < 1 || int(severityID) > len(sev) {
		return 1
	}
	return sev[severityID-1].VehiclesRequired
}

// Candidates picks the vehicles that answer a declaration, as many as the
// severity requires and never more than the fleet.
func Candidates(rng *rand.Rand, fleet []string, decl model.EventDeclaration) []string {
	n := vehiclesRequired(decl.SeverityID)
	if n > len(fleet) {
		n = len(fleet)
	}
	perm := rng.Perm(len(fleet))[:n]
	out := make([]string, n)
	for i, idx := range perm {
		out[i] = fleet[idx]
	}
	return out
}
