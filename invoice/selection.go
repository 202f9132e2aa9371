package invoice

import (
	"slices"

	"github.com/shopspring/decimal"
)

var (
	selectUpper = decimal.RequireFromString("1.05")
	selectStop  = decimal.RequireFromString("0.9")
	selectFloor = decimal.RequireFromString("0.5")
)

// SelectItems chooses the candidates that best reconstruct total.
//
// Candidates below the minimum item value are dropped. With a positive
// total the rest are taken largest first while the running sum stays
// within 105% of the total, stopping once it reaches 90%. If the sum
// never reaches half the total, the single candidate closest to the
// total is returned instead. Without a total the largest few are kept.
func SelectItems(candidates []LineItem, total decimal.NullDecimal, opts Options) []LineItem {
	var pool []LineItem
	for _, c := range candidates {
		if c.TaxableValue.GreaterThanOrEqual(opts.MinItemValue) {
			pool = append(pool, c)
		}
	}
	if len(pool) == 0 {
		return nil
	}

	slices.SortStableFunc(pool, func(a, b LineItem) int {
		return b.TaxableValue.Cmp(a.TaxableValue)
	})

	if !total.Valid || !total.Decimal.IsPositive() {
		return pool[:min(opts.NoTotalItems, len(pool))]
	}

	t := total.Decimal
	upper := t.Mul(selectUpper)
	stop := t.Mul(selectStop)

	var chosen []LineItem
	sum := decimal.Zero
	for _, c := range pool {
		if next := sum.Add(c.TaxableValue); next.LessThanOrEqual(upper) {
			chosen = append(chosen, c)
			sum = next
		}
		if sum.GreaterThanOrEqual(stop) {
			break
		}
	}

	if sum.LessThan(t.Mul(selectFloor)) {
		closest := pool[0]
		for _, c := range pool[1:] {
			if c.TaxableValue.Sub(t).Abs().LessThan(closest.TaxableValue.Sub(t).Abs()) {
				closest = c
			}
		}
		return []LineItem{closest}
	}
	return chosen
}
