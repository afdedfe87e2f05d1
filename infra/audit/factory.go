package audit

import (
	coreaudit "github.com/kilianp07/responder/core/audit"
	"github.com/kilianp07/responder/core/factory"
)

// init registers the built-in audit backends.
func init() {
	_ = coreaudit.RegisterStore("jsonl", func(conf map[string]any) (coreaudit.Store, error) {
		var c struct {
			Path       string `json:"path"`
			MaxSizeMB  int    `json:"max_size_mb"`
			MaxBackups int    `json:"max_backups"`
			MaxAgeDays int    `json:"max_age_days"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			c.Path = "audit.jsonl"
		}
		return NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	})

	_ = coreaudit.RegisterStore("sqlite", func(conf map[string]any) (coreaudit.Store, error) {
		var c struct {
			Path string `json:"path"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			c.Path = "audit.db"
		}
		return NewSQLiteStore(c.Path)
	})
}
