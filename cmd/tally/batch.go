package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/JaimeStill/tally/internal/config"
	"github.com/JaimeStill/tally/internal/infrastructure"
	"github.com/JaimeStill/tally/internal/invoices"
	"github.com/JaimeStill/tally/internal/pipeline"
	"github.com/JaimeStill/tally/internal/rates"
	"github.com/JaimeStill/tally/invoice"
	"github.com/JaimeStill/tally/reconcile"
)

var errNoInputs = errors.New("no transcripts found")

type summary struct {
	Documents int
	Flagged   int
	Failed    int
}

// run loads the rate table, processes every transcript under opts.in and
// encodes the ordered outcomes to w. Per-document failures are recorded
// in the output, not returned.
func run(ctx context.Context, cfg *config.Config, opts options, w io.Writer, logger *slog.Logger) (summary, error) {
	if opts.rates != "" {
		cfg.Rates.CSVPath = opts.rates
	}
	if opts.workers > 0 {
		cfg.Pipeline.Workers = opts.workers
	}

	reqs, err := loadRequests(opts.in, opts.guessesSuffix)
	if err != nil {
		return summary{}, err
	}

	infra, err := infrastructure.NewWithLogger(cfg, logger)
	if err != nil {
		return summary{}, err
	}
	if err := infra.Start(); err != nil {
		return summary{}, err
	}
	infra.Lifecycle.WaitForStartup()
	defer infra.Lifecycle.Shutdown(cfg.ShutdownTimeoutDuration())

	var rateDB *sql.DB
	if cfg.Rates.UseDatabase && infra.Database != nil {
		rateDB = infra.Database.Connection()
	}

	table := rates.New(
		rates.Sources{
			CSVPath: cfg.Rates.CSVPath,
			DB:      rateDB,
			Storage: infra.Storage,
			BlobKey: cfg.Rates.BlobKey,
		},
		logger,
		cfg.API.Pagination,
	)
	if _, err := table.Refresh(ctx); err != nil {
		logger.Warn("rate table unavailable, rate checks limited", "error", err)
	}

	runner := pipeline.New(
		table,
		cfg.Pipeline.InvoiceOptions(),
		cfg.Pipeline.ReconcileOptions(),
		cfg.Pipeline.Workers,
		logger,
	)

	outcomes := runner.Batch(ctx, reqs)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(outcomes); err != nil {
		return summary{}, fmt.Errorf("write results: %w", err)
	}

	s := summary{Documents: len(outcomes)}
	for _, o := range outcomes {
		switch {
		case o.Error != "":
			s.Failed++
		case o.Result.Status == reconcile.StatusFlagged:
			s.Flagged++
		}
	}
	return s, nil
}

// loadRequests reads one transcript file, or every *.json transcript in a
// directory in name order, pairing each with its guesses file if present.
func loadRequests(in, guessesSuffix string) ([]pipeline.Request, error) {
	info, err := os.Stat(in)
	if err != nil {
		return nil, err
	}

	var paths []string
	if info.IsDir() {
		err := filepath.WalkDir(in, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() && path != in {
				return filepath.SkipDir
			}
			if isTranscript(d.Name(), guessesSuffix) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		paths = []string{in}
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s", errNoInputs, in)
	}
	slices.Sort(paths)

	reqs := make([]pipeline.Request, 0, len(paths))
	for _, path := range paths {
		req, err := loadRequest(path, guessesSuffix)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func isTranscript(name, guessesSuffix string) bool {
	if guessesSuffix != "" && strings.HasSuffix(name, guessesSuffix) {
		return false
	}
	return strings.EqualFold(filepath.Ext(name), ".json")
}

func loadRequest(path, guessesSuffix string) (pipeline.Request, error) {
	req := pipeline.Request{ID: filepath.Base(path)}

	data, err := os.ReadFile(path)
	if err != nil {
		return req, err
	}
	if req.Transcript, err = decodeTranscript(data); err != nil {
		return req, fmt.Errorf("%s: %w", path, err)
	}

	if guessesSuffix == "" {
		return req, nil
	}
	guessPath := strings.TrimSuffix(path, filepath.Ext(path)) + guessesSuffix
	raw, err := os.ReadFile(guessPath)
	if errors.Is(err, fs.ErrNotExist) {
		return req, nil
	}
	if err != nil {
		return req, err
	}

	quoted, err := json.Marshal(string(raw))
	if err != nil {
		return req, err
	}
	if req.Guesses, err = invoices.ParseGuesses(quoted); err != nil {
		return req, fmt.Errorf("%s: %w", guessPath, err)
	}
	return req, nil
}

func decodeTranscript(data []byte) (invoice.Transcript, error) {
	var t invoice.Transcript
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		t.Text = text
		return t, nil
	}
	if err := json.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("decode transcript: %w", err)
	}
	return t, nil
}
