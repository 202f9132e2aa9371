package main

import (
	"context"
	"fmt"

	"github.com/JaimeStill/tally/internal/api"
	"github.com/JaimeStill/tally/internal/config"
	"github.com/JaimeStill/tally/internal/infrastructure"
)

// Server wires infrastructure, the API module and the HTTP listener.
type Server struct {
	cfg   *config.Config
	infra *infrastructure.Infrastructure
	http  *httpServer
}

func NewServer(cfg *config.Config) (*Server, error) {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}

	apiModule, err := api.NewModule(cfg, infra)
	if err != nil {
		return nil, fmt.Errorf("api module: %w", err)
	}

	router := buildRouter(infra, cfg.Version)
	router.Mount(apiModule)

	infra.Logger.Info("server configured",
		"addr", cfg.Server.Addr(),
		"version", cfg.Version,
		"env", cfg.Env(),
		"modules", router.Prefixes(),
	)

	return &Server{
		cfg:   cfg,
		infra: infra,
		http:  newHTTPServer(&cfg.Server, router, infra.Logger),
	}, nil
}

// Run starts every system, serves until ctx is cancelled, then shuts
// down within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	if err := s.infra.Start(); err != nil {
		return err
	}
	if err := s.http.Start(s.infra.Lifecycle); err != nil {
		s.shutdown()
		return err
	}

	go func() {
		s.infra.Lifecycle.WaitForStartup()
		s.infra.Logger.Info("startup complete")
	}()

	<-ctx.Done()
	return s.shutdown()
}

func (s *Server) shutdown() error {
	s.infra.Logger.Info("shutting down")
	return s.infra.Lifecycle.Shutdown(s.cfg.ShutdownTimeoutDuration())
}
