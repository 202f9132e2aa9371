package reconcile

import (
	"time"

	"github.com/shopspring/decimal"
)

// Options tunes reconciliation and anomaly detection.
type Options struct {
	// Slabs are the standard combined GST percentages.
	Slabs []decimal.Decimal
	// SlabTolerance is how far a percentage may sit from a slab and still match it.
	SlabTolerance decimal.Decimal
	// TaxTolerance bounds tax component disagreements.
	TaxTolerance decimal.Decimal
	// TotalTolerance bounds grand total disagreements.
	TotalTolerance decimal.Decimal
	// MinTextLength is the transcript length, in characters, below which
	// the OCR is considered unreliable.
	MinTextLength int
	// PaymentWindow is how many characters on either side of a payment
	// identifier are searched for its transaction reference and amount.
	PaymentWindow int
	// Now supplies the current time for date checks.
	Now func() time.Time
}

// DefaultOptions returns the canonical tolerances and the system clock.
func DefaultOptions() Options {
	return Options{
		Slabs: []decimal.Decimal{
			decimal.NewFromInt(0),
			decimal.NewFromInt(5),
			decimal.NewFromInt(12),
			decimal.NewFromInt(18),
			decimal.NewFromInt(28),
		},
		SlabTolerance:  decimal.RequireFromString("0.5"),
		TaxTolerance:   decimal.RequireFromString("0.5"),
		TotalTolerance: decimal.RequireFromString("1.0"),
		MinTextLength:  100,
		PaymentWindow:  200,
		Now:            time.Now,
	}
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// matchSlab returns the slab nearest pct when it lies within tolerance.
func (o Options) matchSlab(pct decimal.Decimal) (decimal.Decimal, bool) {
	var (
		best  decimal.Decimal
		found bool
	)
	for _, s := range o.Slabs {
		d := pct.Sub(s).Abs()
		if d.GreaterThan(o.SlabTolerance) {
			continue
		}
		if !found || d.LessThan(pct.Sub(best).Abs()) {
			best, found = s, true
		}
	}
	return best, found
}
