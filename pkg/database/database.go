// Package database manages an optional PostgreSQL connection pool whose
// readiness is established by a lifecycle startup hook.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/JaimeStill/tally/pkg/lifecycle"
)

const (
	firstRetry = 250 * time.Millisecond
	maxRetry   = 5 * time.Second
)

// System owns the pool and reports whether it is usable.
type System interface {
	Connection() *sql.DB
	// Start registers the connect and close hooks with the coordinator.
	Start(lc *lifecycle.Coordinator) error
	// Ready returns ErrNotReady until a ping has succeeded.
	Ready() error
}

type pool struct {
	db          *sql.DB
	logger      *slog.Logger
	connTimeout time.Duration
	ready       atomic.Bool
}

// New opens a pool for cfg without dialing.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}

	db, err := sql.Open("pgx", cfg.Dsn())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	return &pool{
		db:          db,
		logger:      logger.With("system", "database", "host", cfg.Host, "name", cfg.Name),
		connTimeout: cfg.ConnTimeoutDuration(),
	}, nil
}

func (p *pool) Connection() *sql.DB { return p.db }

func (p *pool) Ready() error {
	if p.ready.Load() {
		return nil
	}
	return ErrNotReady
}

func (p *pool) Start(lc *lifecycle.Coordinator) error {
	lc.OnStartup(func() {
		if err := p.connect(lc.Context()); err != nil {
			p.logger.Error("database unavailable", "error", err)
			return
		}
		p.ready.Store(true)
		p.logger.Info("database connected")
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		p.ready.Store(false)
		if err := p.db.Close(); err != nil {
			p.logger.Error("database close failed", "error", err)
			return
		}
		p.logger.Info("database closed")
	})

	return nil
}

// connect pings until one succeeds or connTimeout elapses, doubling the
// pause between attempts.
func (p *pool) connect(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, p.connTimeout)
	defer cancel()

	wait := firstRetry
	for attempt := 1; ; attempt++ {
		err := p.db.PingContext(ctx)
		if err == nil {
			return nil
		}
		p.logger.Warn("database ping failed", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("ping after %d attempts: %w", attempt, err)
		case <-time.After(wait):
		}
		wait = min(wait*2, maxRetry)
	}
}
