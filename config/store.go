package config

import "fmt"

// StoreConfig selects the entity store backend.
type StoreConfig struct {
	// Driver is one of "memory", "sqlite" or "postgres".
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
	// AutoMigrate creates the schema and seeds reference data on startup.
	AutoMigrate bool `json:"auto_migrate"`
}

// SetDefaults applies sane defaults.
func (c *StoreConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "memory"
	}
}

// Validate checks mandatory fields.
func (c StoreConfig) Validate() error {
	switch c.Driver {
	case "memory":
		return nil
	case "sqlite", "sqlite3", "postgres", "postgresql", "pq":
		if c.DSN == "" {
			return fmt.Errorf("dsn is required for driver %s", c.Driver)
		}
		return nil
	default:
		return fmt.Errorf("unknown driver %s", c.Driver)
	}
}
