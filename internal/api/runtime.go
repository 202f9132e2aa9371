package api

import (
	"database/sql"

	"github.com/JaimeStill/tally/internal/config"
	"github.com/JaimeStill/tally/internal/infrastructure"
	"github.com/JaimeStill/tally/pkg/pagination"
)

// Runtime extends Infrastructure with API-specific configuration.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination pagination.Config
	Rates      config.RatesConfig
	Pipeline   config.PipelineConfig
}

// NewRuntime creates an API runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    infra.Logger.With("module", "api"),
			Database:  infra.Database,
			Storage:   infra.Storage,
		},
		Pagination: cfg.API.Pagination,
		Rates:      cfg.Rates,
		Pipeline:   cfg.Pipeline,
	}
}

// Connection returns the database pool, or nil when persistence is not
// configured.
func (r *Runtime) Connection() *sql.DB {
	if r.Database == nil {
		return nil
	}
	return r.Database.Connection()
}
