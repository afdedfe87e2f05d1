package dispatch

import "errors"

var (
	// ErrInvalidEvent wraps input validation failures on declare and amend.
	ErrInvalidEvent = errors.New("invalid event")
	// ErrEventClosed is returned when validating or amending a Resolved event.
	ErrEventClosed = errors.New("event already resolved")
)
