package model

// Severity is reference data describing how serious an event is.
type Severity struct {
	Name             string `json:"name"`
	Scale            int    `json:"scale"`
	VehiclesRequired int    `json:"vehicles_required"`
}

// Reference is the non-status reference data an Event points to.
type Reference struct {
	Types      []string   `json:"types"`
	Severities []Severity `json:"severities"`
}

// DefaultReference is seeded by migrations when no reference data is configured.
func DefaultReference() Reference {
	return Reference{
		Types: []string{"Fire", "Road accident", "Flood", "Medical", "Hazardous materials"},
		Severities: []Severity{
			{Name: "Low", Scale: 1, VehiclesRequired: 1},
			{Name: "Moderate", Scale: 2, VehiclesRequired: 2},
			{Name: "High", Scale: 3, VehiclesRequired: 3},
			{Name: "Critical", Scale: 4, VehiclesRequired: 4},
			{Name: "Major", Scale: 5, VehiclesRequired: 6},
		},
	}
}
