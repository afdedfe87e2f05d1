package app

import (
	"context"
	"fmt"

	"github.com/kilianp07/responder/config"
	"github.com/kilianp07/responder/core/logger"
	"github.com/kilianp07/responder/core/model"
	"github.com/kilianp07/responder/core/store"
	"github.com/kilianp07/responder/infra/sqlstore"
)

// StoreBackend is the entity store with the fleet registry it exposes.
type StoreBackend interface {
	store.Store
	store.VehicleRegistry
}

// OpenStore opens the configured entity store. SQL stores are migrated when
// auto_migrate is set. The returned function releases the store.
func OpenStore(ctx context.Context, cfg config.StoreConfig, log logger.Logger) (StoreBackend, func() error, error) {
	if cfg.Driver == "memory" {
		log.Warnf("using in-memory store, state is lost on exit")
		return store.NewMemoryStore(model.DefaultReference()), func() error { return nil }, nil
	}
	s, err := sqlstore.Open(cfg.Driver, cfg.DSN, log)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	if cfg.AutoMigrate {
		if err := s.Migrate(ctx, model.DefaultReference()); err != nil {
			_ = s.Close()
			return nil, nil, fmt.Errorf("migrate store: %w", err)
		}
	} else if err := s.VerifyStatusIDs(ctx); err != nil {
		_ = s.Close()
		return nil, nil, fmt.Errorf("check store (run migrate first?): %w", err)
	}
	return s, s.Close, nil
}
