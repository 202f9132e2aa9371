package rates

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JaimeStill/tally/hsn"
	"github.com/JaimeStill/tally/invoice"
	"github.com/JaimeStill/tally/pkg/lifecycle"
	"github.com/JaimeStill/tally/pkg/pagination"
	"github.com/JaimeStill/tally/pkg/repository"
	"github.com/JaimeStill/tally/pkg/storage"
)

// Sources configures where the table is loaded from. Every source is
// optional; later sources override earlier ones code by code.
type Sources struct {
	CSVPath         string
	DB              *sql.DB
	Storage         storage.System
	BlobKey         string
	RefreshInterval time.Duration
}

type repo struct {
	sources    Sources
	logger     *slog.Logger
	pagination pagination.Config

	table     atomic.Pointer[hsn.Table]
	refreshMu sync.Mutex
}

// New creates a rate system with an empty table. The table is populated
// by Refresh, which Start schedules at startup.
func New(sources Sources, logger *slog.Logger, pagination pagination.Config) System {
	r := &repo{
		sources:    sources,
		logger:     logger.With("system", "rates"),
		pagination: pagination,
	}
	r.table.Store(hsn.NewTable())
	return r
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) Table() *hsn.Table {
	return r.table.Load()
}

func (r *repo) Lookup(code string) (Rate, error) {
	clean, ok := invoice.CleanClassificationCode(code)
	if !ok {
		return Rate{}, ErrInvalidCode
	}
	pct, ok := r.Table().Lookup(clean)
	if !ok {
		return Rate{}, fmt.Errorf("%w: %s", ErrNotFound, clean)
	}
	return Rate{Code: clean, Percentage: pct}, nil
}

func (r *repo) Start(lc *lifecycle.Coordinator) error {
	lc.OnStartup(func() {
		if _, err := r.Refresh(lc.Context()); err != nil {
			r.logger.Warn("initial rate load failed, lookups disabled", "error", err)
		}
	})

	// The refresh loop joins the shutdown group so Shutdown waits for it.
	if r.sources.RefreshInterval > 0 {
		lc.OnShutdown(func() {
			ticker := time.NewTicker(r.sources.RefreshInterval)
			defer ticker.Stop()
			for {
				select {
				case <-lc.Context().Done():
					return
				case <-ticker.C:
					if _, err := r.Refresh(lc.Context()); err != nil {
						r.logger.Warn("scheduled rate refresh failed", "error", err)
					}
				}
			}
		})
	}
	return nil
}

// Refresh loads the configured sources in order and swaps in their merge.
// A failing source is logged and skipped. When sources are configured but
// none loads, the current table is kept and ErrNoSourceLoaded returned.
func (r *repo) Refresh(ctx context.Context) (*Summary, error) {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	summary := &Summary{Sources: []SourceReport{}, LoadedAt: time.Now().UTC()}

	var (
		merged     = hsn.NewTable()
		configured int
		loaded     int
	)
	for _, src := range r.sourceList() {
		configured++
		t, err := src.load(ctx)
		report := SourceReport{Name: src.name}
		if err != nil {
			report.Error = err.Error()
			r.logger.Warn("rate source failed", "source", src.name, "error", err)
		} else {
			loaded++
			report.Entries = t.Len()
			merged = merged.Merge(t)
		}
		summary.Sources = append(summary.Sources, report)
	}

	if configured > 0 && loaded == 0 {
		summary.Entries = r.Table().Len()
		summary.Preserved = true
		return summary, ErrNoSourceLoaded
	}

	r.table.Store(merged)
	summary.Entries = merged.Len()
	r.logger.Info("rate table loaded", "entries", summary.Entries, "sources", loaded)
	return summary, nil
}

func (r *repo) Upsert(ctx context.Context, entries []hsn.Entry) (*Summary, error) {
	if r.sources.DB == nil {
		return nil, ErrNoDatabase
	}
	if err := validateEntries(entries); err != nil {
		return nil, err
	}

	const q = `
		INSERT INTO hsn_rates (code, percentage, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (code) DO UPDATE
		SET percentage = EXCLUDED.percentage, updated_at = now()`

	batch := make([][]any, 0, len(entries))
	for _, e := range entries {
		code, _ := invoice.CleanClassificationCode(e.Code)
		batch = append(batch, []any{code, e.Percentage})
	}

	n, err := repository.WithTx(ctx, r.sources.DB, func(tx *sql.Tx) (int64, error) {
		return repository.ExecBatch(ctx, tx, q, batch)
	})
	if err != nil {
		return nil, fmt.Errorf("upsert rates: %w", repository.MapError(err, ErrNotFound, ErrInvalidEntries))
	}
	r.logger.Info("rates upserted", "rows", n)

	return r.refreshAfterWrite(ctx)
}

func (r *repo) Publish(ctx context.Context, data []byte) (*Summary, error) {
	if r.sources.Storage == nil || r.sources.BlobKey == "" {
		return nil, ErrNoBlobSource
	}

	table, err := hsn.ParseCSV(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if table.Len() == 0 {
		return nil, hsn.ErrEmptyTable
	}

	if err := r.sources.Storage.Put(ctx, r.sources.BlobKey, data, "text/csv"); err != nil {
		return nil, fmt.Errorf("publish rates: %w", err)
	}
	r.logger.Info("rate csv published", "key", r.sources.BlobKey, "entries", table.Len())

	return r.refreshAfterWrite(ctx)
}

func (r *repo) refreshAfterWrite(ctx context.Context) (*Summary, error) {
	summary, err := r.Refresh(ctx)
	if errors.Is(err, ErrNoSourceLoaded) {
		return summary, nil
	}
	return summary, err
}

func validateEntries(entries []hsn.Entry) error {
	if len(entries) == 0 {
		return fmt.Errorf("%w: no entries", ErrInvalidEntries)
	}
	for _, e := range entries {
		if _, ok := invoice.CleanClassificationCode(e.Code); !ok {
			return fmt.Errorf("%w: code %q", ErrInvalidEntries, e.Code)
		}
		if e.Percentage.IsNegative() || e.Percentage.GreaterThan(maxPercentage) {
			return fmt.Errorf("%w: percentage %s for %s", ErrInvalidEntries, e.Percentage, e.Code)
		}
	}
	return nil
}
