package api

import (
	"net/http"

	"github.com/JaimeStill/tally/internal/config"
	"github.com/JaimeStill/tally/pkg/openapi"
	"github.com/JaimeStill/tally/pkg/routes"
)

// registerRoutes mounts every domain group and serves the OpenAPI document
// describing them at /openapi.json.
func registerRoutes(mux *http.ServeMux, domain *Domain, cfg *config.Config) error {
	groups := []routes.Group{
		domain.Rates.Handler().Routes(),
		domain.Invoices.Handler().Routes(),
	}
	routes.Register(mux, groups...)

	spec := openapi.New(&cfg.API.OpenAPI, cfg.Version, cfg.API.BasePath)
	routes.Describe(spec, groups...)

	serve, err := spec.Handler()
	if err != nil {
		return err
	}
	mux.HandleFunc("GET /openapi.json", serve)
	return nil
}
