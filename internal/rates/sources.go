package rates

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/JaimeStill/tally/hsn"
	"github.com/JaimeStill/tally/pkg/repository"
)

var maxPercentage = decimal.NewFromInt(100)

type source struct {
	name string
	load func(ctx context.Context) (*hsn.Table, error)
}

// sourceList returns the configured sources in override order.
func (r *repo) sourceList() []source {
	var out []source
	if r.sources.CSVPath != "" {
		out = append(out, source{name: "file", load: r.loadFile})
	}
	if r.sources.DB != nil {
		out = append(out, source{name: "database", load: r.loadDatabase})
	}
	if r.sources.Storage != nil && r.sources.BlobKey != "" {
		out = append(out, source{name: "blob", load: r.loadBlob})
	}
	return out
}

func (r *repo) loadFile(context.Context) (*hsn.Table, error) {
	return hsn.LoadFile(r.sources.CSVPath)
}

func (r *repo) loadDatabase(ctx context.Context) (*hsn.Table, error) {
	entries, err := repository.QueryMany(
		ctx, r.sources.DB,
		"SELECT code, percentage FROM hsn_rates ORDER BY code",
		nil,
		scanEntry,
	)
	if err != nil {
		return nil, fmt.Errorf("query hsn_rates: %w", err)
	}
	return hsn.NewTable(entries...), nil
}

func (r *repo) loadBlob(ctx context.Context) (*hsn.Table, error) {
	body, err := r.sources.Storage.Open(ctx, r.sources.BlobKey)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	table, err := hsn.ParseCSV(body)
	if err != nil {
		return nil, fmt.Errorf("parse blob %s: %w", r.sources.BlobKey, err)
	}
	return table, nil
}

func scanEntry(s repository.Scanner) (hsn.Entry, error) {
	var e hsn.Entry
	err := s.Scan(&e.Code, &e.Percentage)
	return e, err
}
