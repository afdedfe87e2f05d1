package main

import (
	"fmt"
	"time"
)

// Config holds parameters for the simulator.
type Config struct {
	Broker        string
	EventTopic    string
	ProposalTopic string
	FleetSize     int
	AcceptRate    float64
	DropRate      float64
	Latency       time.Duration
	Workers       int
	FleetOut      string
	Seed          int64
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("broker is required")
	}
	if c.FleetSize <= 0 {
		return fmt.Errorf("fleet-size must be positive")
	}
	for name, r := range map[string]float64{"accept-rate": c.AcceptRate, "drop-rate": c.DropRate} {
		if r < 0 || r > 1 {
			return fmt.Errorf("%s must be within [0,1]", name)
		}
	}
	if c.Workers <= 0 {
		c.Workers = 5
	}
	return nil
}
