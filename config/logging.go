package config

import "github.com/rs/zerolog"

// LoggingConfig defines the application log level.
type LoggingConfig struct {
	Level string `json:"level"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

// Validate checks the level name.
func (c LoggingConfig) Validate() error {
	_, err := zerolog.ParseLevel(c.Level)
	return err
}
