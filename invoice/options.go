package invoice

import "github.com/shopspring/decimal"

// Options tunes extraction. The zero value is not usable; start from
// DefaultOptions and override individual fields.
type Options struct {
	// ItemWindow is the number of characters searched after each HSN label.
	ItemWindow int
	// GSTINWindow is the number of characters scanned on each side of a
	// GSTIN occurrence for seller or buyer keywords.
	GSTINWindow int
	// HeaderFragments is how many of the topmost fragments form the header surface.
	HeaderFragments int
	// MaxItems caps the candidate line-item list.
	MaxItems int
	// NoTotalItems is how many of the largest candidates are kept when no
	// grand total is known.
	NoTotalItems int
	// MinItemValue is the smallest amount treated as a line item.
	MinItemValue decimal.Decimal
	// TotalMatchTolerance discards candidates this close to the grand total.
	TotalMatchTolerance decimal.Decimal
	// RowBuckets is the number of vertical buckets a page is divided into
	// when clustering positioned amounts into rows.
	RowBuckets int
}

// DefaultOptions returns the canonical extraction tunables.
func DefaultOptions() Options {
	return Options{
		ItemWindow:          500,
		GSTINWindow:         60,
		HeaderFragments:     8,
		MaxItems:            20,
		NoTotalItems:        6,
		MinItemValue:        decimal.NewFromInt(2),
		TotalMatchTolerance: decimal.RequireFromString("0.01"),
		RowBuckets:          1000,
	}
}
