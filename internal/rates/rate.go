// Package rates supplies the HSN rate table to the pipeline. The table is
// layered from a CSV file, the hsn_rates database table and a CSV blob,
// and is swapped atomically on refresh so in-flight runs keep their
// snapshot.
package rates

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rate is the result of a single lookup.
type Rate struct {
	Code       string          `json:"code"`
	Percentage decimal.Decimal `json:"percentage"`
}

// SourceReport describes one source during a refresh.
type SourceReport struct {
	Name    string `json:"name"`
	Entries int    `json:"entries"`
	Error   string `json:"error,omitempty"`
}

// Summary describes the table produced by a refresh.
type Summary struct {
	Entries   int            `json:"entries"`
	Sources   []SourceReport `json:"sources"`
	LoadedAt  time.Time      `json:"loaded_at"`
	Preserved bool           `json:"preserved,omitempty"`
}
