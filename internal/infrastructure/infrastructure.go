// Package infrastructure assembles the shared systems that domain systems
// depend on: lifecycle coordination, logging, and the optional database
// and blob storage.
package infrastructure

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/JaimeStill/tally/internal/config"
	"github.com/JaimeStill/tally/pkg/database"
	"github.com/JaimeStill/tally/pkg/lifecycle"
	"github.com/JaimeStill/tally/pkg/storage"
)

// Infrastructure holds the systems shared by every module. Database and
// Storage are nil when not configured.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
}

// New creates an Infrastructure from the configuration without starting
// any system; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	return NewWithLogger(cfg, slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

// NewWithLogger is New with a caller-supplied logger.
func NewWithLogger(cfg *config.Config, logger *slog.Logger) (*Infrastructure, error) {
	infra := &Infrastructure{
		Lifecycle: lifecycle.New(),
		Logger:    logger,
	}

	if cfg.Database.Enabled() {
		db, err := database.New(&cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("database init failed: %w", err)
		}
		infra.Database = db
	} else {
		logger.Info("database not configured, persistence disabled")
	}

	if cfg.Storage.Enabled() {
		store, err := storage.New(&cfg.Storage, logger)
		if err != nil {
			return nil, fmt.Errorf("storage init failed: %w", err)
		}
		infra.Storage = store
	} else {
		logger.Info("storage not configured, blob rate source disabled")
	}

	return infra, nil
}

// Start registers the configured systems with the lifecycle coordinator.
// Each contributes a readiness check.
func (i *Infrastructure) Start() error {
	if i.Database != nil {
		if err := i.Database.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("database start failed: %w", err)
		}
		i.Lifecycle.AddCheck("database", i.Database.Ready)
	}
	if i.Storage != nil {
		if err := i.Storage.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("storage start failed: %w", err)
		}
		i.Lifecycle.AddCheck("storage", i.Storage.Ready)
	}
	return nil
}
