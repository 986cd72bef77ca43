package storage

import (
	"errors"
	"fmt"

	"mercator-hq/adjudicator/pkg/audit"
	"mercator-hq/adjudicator/pkg/config"
)

var errClosed = errors.New("storage closed")

func errDuplicate(id string) error {
	return fmt.Errorf("record %s already exists", id)
}

// New creates the backend selected by cfg.Backend.
func New(cfg config.AuditConfig) (audit.Storage, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStorage(), nil
	case "", "sqlite":
		return NewSQLiteStorage(cfg.SQLite)
	default:
		return nil, audit.NewStorageError(cfg.Backend, "open", fmt.Errorf("unknown backend %q", cfg.Backend))
	}
}
