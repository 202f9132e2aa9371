// Package pipeline runs extraction and reconciliation for single
// transcripts and for bounded concurrent batches.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/tally/hsn"
	"github.com/JaimeStill/tally/invoice"
	"github.com/JaimeStill/tally/reconcile"
)

// TableSource supplies the current rate table. Each run snapshots it once.
type TableSource interface {
	Table() *hsn.Table
}

// TableFunc adapts a function to TableSource.
type TableFunc func() *hsn.Table

// Table returns f().
func (f TableFunc) Table() *hsn.Table { return f() }

// Static returns a TableSource that always supplies t.
func Static(t *hsn.Table) TableSource {
	return TableFunc(func() *hsn.Table { return t })
}

// Request is one transcript to process.
type Request struct {
	ID         string               `json:"id"`
	Transcript invoice.Transcript   `json:"transcript"`
	Guesses    invoice.FieldGuesses `json:"guesses,omitempty"`
}

// Outcome is the result of one request in a batch. Exactly one of Result
// and Error is set.
type Outcome struct {
	ID     string            `json:"id"`
	Result *reconcile.Result `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// Runner executes the extraction and reconciliation pipeline.
type Runner struct {
	tables    TableSource
	extract   invoice.Options
	reconcile reconcile.Options
	workers   int
	logger    *slog.Logger
}

// New creates a Runner. workers bounds batch concurrency and is clamped
// to at least one.
func New(
	tables TableSource,
	extract invoice.Options,
	rec reconcile.Options,
	workers int,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		tables:    tables,
		extract:   extract,
		reconcile: rec,
		workers:   max(workers, 1),
		logger:    logger.With("system", "pipeline"),
	}
}

// Extract runs extraction only.
func (r *Runner) Extract(t invoice.Transcript, guesses invoice.FieldGuesses) (*invoice.Document, error) {
	return invoice.Extract(t, guesses, r.extract)
}

// Reconcile runs reconciliation only, against the current rate table.
func (r *Runner) Reconcile(doc *invoice.Document) *reconcile.Result {
	return reconcile.Reconcile(doc, r.tables.Table(), r.reconcile)
}

// Process runs extraction then reconciliation for one request.
func (r *Runner) Process(ctx context.Context, req Request) (*reconcile.Result, error) {
	start := time.Now()

	doc, err := r.Extract(req.Transcript, req.Guesses)
	if err != nil {
		r.logger.WarnContext(ctx, "extraction failed", "id", req.ID, "error", err)
		return nil, fmt.Errorf("extract %s: %w", req.ID, err)
	}

	result := r.Reconcile(doc)

	r.logger.InfoContext(
		ctx,
		"invoice processed",
		"id", req.ID,
		"invoice_number", result.Document.InvoiceNumber,
		"status", result.Status,
		"flags", result.FlagKinds(),
		"items", len(result.Document.Items),
		"duration", time.Since(start),
	)
	return result, nil
}

// Batch processes requests concurrently, at most workers at a time. A
// failed request records its error without affecting the others. Requests
// not yet started when ctx is cancelled record the context error.
// Outcomes are returned in request order.
func (r *Runner) Batch(ctx context.Context, reqs []Request) []Outcome {
	run := uuid.New()
	logger := r.logger.With("run", run)
	logger.InfoContext(ctx, "batch started", "documents", len(reqs), "workers", r.workers)

	outcomes := make([]Outcome, len(reqs))

	var g errgroup.Group
	g.SetLimit(r.workers)

	for i, req := range reqs {
		g.Go(func() error {
			outcomes[i] = r.outcome(ctx, req)
			return nil
		})
	}
	g.Wait()

	failed := 0
	for _, o := range outcomes {
		if o.Error != "" {
			failed++
		}
	}
	logger.InfoContext(ctx, "batch finished", "documents", len(reqs), "failed", failed)

	return outcomes
}

func (r *Runner) outcome(ctx context.Context, req Request) Outcome {
	out := Outcome{ID: req.ID}
	if err := ctx.Err(); err != nil {
		out.Error = err.Error()
		return out
	}

	result, err := r.Process(ctx, req)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Result = result
	return out
}
