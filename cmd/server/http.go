package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/JaimeStill/tally/internal/config"
	"github.com/JaimeStill/tally/pkg/lifecycle"
)

// httpServer owns the listener. Binding happens in Start so that an
// occupied port fails startup instead of surfacing in a log line.
type httpServer struct {
	srv      *http.Server
	logger   *slog.Logger
	timeouts config.ServerTimeouts
}

func newHTTPServer(cfg *config.ServerConfig, handler http.Handler, logger *slog.Logger) *httpServer {
	t := cfg.Timeouts()
	return &httpServer{
		srv: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           handler,
			ReadTimeout:       t.Read,
			ReadHeaderTimeout: t.ReadHeader,
			WriteTimeout:      t.Write,
			IdleTimeout:       t.Idle,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
		logger:   logger.With("system", "http"),
		timeouts: t,
	}
}

func (s *httpServer) Start(lc *lifecycle.Coordinator) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.srv.Addr, err)
	}
	s.logger.Info("listening", "addr", ln.Addr().String())

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("serve failed", "error", err)
		}
	}()

	lc.OnShutdown(func() {
		<-lc.Context().Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeouts.Shutdown)
		defer cancel()

		if err := s.srv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown failed", "error", err)
			return
		}
		s.logger.Info("stopped")
	})

	return nil
}
