package model

import "fmt"

// Kind identifies the entity whose status table is being addressed.
type Kind string

const (
	KindEvent        Kind = "event"
	KindIntervention Kind = "intervention"
	KindVehicle      Kind = "vehicle"
)

// Status is implemented by the three status enums.
type Status interface {
	comparable
	fmt.Stringer
}

// Transitions lists, for every target status, the statuses it may be entered from.
// A target mapped to itself is an idempotent self-transition.
type Transitions[S Status] map[S][]S

// Sources returns the statuses from which to can be entered.
func (t Transitions[S]) Sources(to S) []S {
	return append([]S(nil), t[to]...)
}

// Allowed reports whether from -> to is part of the table.
func (t Transitions[S]) Allowed(from, to S) bool {
	for _, s := range t[to] {
		if s == from {
			return true
		}
	}
	return false
}

// ErrTransition describes a transition outside the allowed table.
type ErrTransition struct {
	Kind Kind
	From string
	To   string
}

func (e ErrTransition) Error() string {
	return fmt.Sprintf("%s: transition %s -> %s not allowed", e.Kind, e.From, e.To)
}

// Check returns an ErrTransition when from -> to is not allowed.
func (t Transitions[S]) Check(kind Kind, from, to S) error {
	if t.Allowed(from, to) {
		return nil
	}
	return ErrTransition{Kind: kind, From: from.String(), To: to.String()}
}

// Contains reports whether s is part of set.
func Contains[S comparable](set []S, s S) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
