// Package postgres implements the storage.Backend interface on PostgreSQL, falling back to a
// local SQLite file when the server cannot be reached.
package postgres

import (
	"fmt"
	"log/slog"

	"github.com/rs/zerolog"

	"github.com/skyops/dronectl/internal/database"
	gormstorage "github.com/skyops/dronectl/internal/storage/gorm"
)

// Config holds configuration for the Postgres storage backend.
type Config struct {
	DSN string
	// FallbackPath is the SQLite file used when Postgres is down. Empty disables the fallback.
	FallbackPath string
}

// Backend wraps the GORM backend with the connection manager.
type Backend struct {
	*gormstorage.Backend
	manager *database.Manager
}

// New connects to Postgres, or the fallback file, and returns an uninitialized backend.
func New(cfg Config, dbLog zerolog.Logger, logger *slog.Logger) (*Backend, error) {
	manager := database.NewManager(dbLog)
	if err := manager.Connect(cfg.DSN, cfg.FallbackPath); err != nil {
		return nil, fmt.Errorf("postgres backend: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if manager.SavingLocal {
		logger.Warn("Recording to local SQLite file", "path", cfg.FallbackPath)
	}

	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{DB: manager.DB, Logger: logger}),
		manager: manager,
	}, nil
}

// SavingLocal reports whether the backend fell back to SQLite.
func (b *Backend) SavingLocal() bool {
	return b.manager.SavingLocal
}

// Close drains the queues and closes the connection pool.
func (b *Backend) Close() error {
	if err := b.Backend.Close(); err != nil {
		return err
	}
	return b.manager.SqlDB.Close()
}
