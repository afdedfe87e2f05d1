package mqtt

import "errors"

var (
	// ErrNotConnected is returned when publishing without a broker session.
	ErrNotConnected = errors.New("mqtt: not connected")
	// ErrMalformedProposal is returned for payloads that cannot be decoded.
	ErrMalformedProposal = errors.New("mqtt: malformed proposal")
)
