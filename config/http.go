package config

import (
	"fmt"
	"time"
)

// HTTPConfig configures the operator API and the live notification stream.
type HTTPConfig struct {
	Addr string `json:"addr"`
	// StreamBuffer is the number of notifications a subscriber may lag
	// behind before it is evicted.
	StreamBuffer     int `json:"stream_buffer"`
	HeartbeatSeconds int `json:"heartbeat_seconds"`
	// AuditToken protects the transition log endpoint when set.
	AuditToken string `json:"audit_token"`
}

// SetDefaults applies sane defaults.
func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.StreamBuffer == 0 {
		c.StreamBuffer = 64
	}
	if c.HeartbeatSeconds == 0 {
		c.HeartbeatSeconds = 15
	}
}

// Validate checks value ranges.
func (c HTTPConfig) Validate() error {
	if c.StreamBuffer < 0 {
		return fmt.Errorf("stream_buffer must be positive")
	}
	if c.HeartbeatSeconds < 0 {
		return fmt.Errorf("heartbeat_seconds must be positive")
	}
	return nil
}

// Heartbeat returns the stream heartbeat interval.
func (c HTTPConfig) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatSeconds) * time.Second
}
