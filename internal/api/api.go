// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"fmt"
	"net/http"

	"github.com/JaimeStill/tally/internal/config"
	"github.com/JaimeStill/tally/internal/infrastructure"
	"github.com/JaimeStill/tally/pkg/middleware"
	"github.com/JaimeStill/tally/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware.
// The rate system is registered with the lifecycle so its table loads at
// startup.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)
	domain := NewDomain(runtime)

	if err := domain.Rates.Start(runtime.Lifecycle); err != nil {
		return nil, fmt.Errorf("rates start failed: %w", err)
	}

	mux := http.NewServeMux()
	if err := registerRoutes(mux, domain, cfg); err != nil {
		return nil, err
	}

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.Recover(runtime.Logger))
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Logger))
	m.Use(middleware.BodyLimit(cfg.API.MaxUploadSizeBytes()))

	return m, nil
}
