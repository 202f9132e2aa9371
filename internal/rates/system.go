package rates

import (
	"context"

	"github.com/JaimeStill/tally/hsn"
	"github.com/JaimeStill/tally/pkg/lifecycle"
)

// System defines the public contract for the HSN rate table.
type System interface {
	Handler() *Handler

	// Table returns the current table snapshot. Never nil.
	Table() *hsn.Table
	// Lookup resolves a classification code against the current table.
	Lookup(code string) (Rate, error)
	// Refresh reloads every configured source and swaps in the result.
	Refresh(ctx context.Context) (*Summary, error)
	// Upsert writes entries to the hsn_rates table, then refreshes.
	Upsert(ctx context.Context, entries []hsn.Entry) (*Summary, error)
	// Publish replaces the blob-hosted CSV, then refreshes.
	Publish(ctx context.Context, csv []byte) (*Summary, error)
	// Start loads the table at startup and schedules periodic refresh.
	Start(lc *lifecycle.Coordinator) error
}
