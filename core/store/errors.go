package store

import (
	"errors"
	"fmt"

	"github.com/kilianp07/responder/core/model"
)

// ErrNotFound is returned when a referenced entity or reference row is missing.
var ErrNotFound = errors.New("not found")

// StatusNotFound builds the error returned when a status name has no row.
func StatusNotFound(kind model.Kind, name string) error {
	return fmt.Errorf("%w: %s status %q", ErrNotFound, kind, name)
}

// ReferenceNotFound builds the error returned for a missing event type or severity.
func ReferenceNotFound(what, name string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, what, name)
}
