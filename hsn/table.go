// Package hsn maps HSN/SAC classification codes to combined GST rates.
package hsn

import (
	"maps"
	"slices"

	"github.com/JaimeStill/tally/invoice"
	"github.com/shopspring/decimal"
)

// minPrefix is the shortest code prefix consulted on lookup.
const minPrefix = 4

// Entry is one code and its combined GST percentage.
type Entry struct {
	Code       string          `json:"code"`
	Percentage decimal.Decimal `json:"percentage"`
}

// Table is an immutable code to rate mapping. A nil *Table behaves as an
// empty table.
type Table struct {
	rates map[string]decimal.Decimal
}

// NewTable builds a table from entries. Codes are cleaned to digits and
// entries with an unusable code are skipped. A later entry for the same
// code replaces an earlier one.
func NewTable(entries ...Entry) *Table {
	t := &Table{rates: make(map[string]decimal.Decimal, len(entries))}
	for _, e := range entries {
		code, ok := invoice.CleanClassificationCode(e.Code)
		if !ok {
			continue
		}
		t.rates[code] = e.Percentage
	}
	return t
}

// Merge returns a new table holding t's entries overridden by overlay's.
func (t *Table) Merge(overlay *Table) *Table {
	out := &Table{rates: make(map[string]decimal.Decimal, t.Len()+overlay.Len())}
	if t != nil {
		maps.Copy(out.rates, t.rates)
	}
	if overlay != nil {
		maps.Copy(out.rates, overlay.rates)
	}
	return out
}

// Lookup returns the rate for code. The exact code is tried first, then
// successively shorter prefixes down to four digits.
func (t *Table) Lookup(code string) (decimal.Decimal, bool) {
	if t == nil {
		return decimal.Decimal{}, false
	}
	key, ok := invoice.CleanClassificationCode(code)
	if !ok {
		return decimal.Decimal{}, false
	}
	for n := len(key); n >= minPrefix; n-- {
		if rate, ok := t.rates[key[:n]]; ok {
			return rate, true
		}
	}
	return decimal.Decimal{}, false
}

// Len reports the number of codes in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rates)
}

// Entries returns every entry ordered by code.
func (t *Table) Entries() []Entry {
	if t == nil {
		return []Entry{}
	}
	codes := slices.Sorted(maps.Keys(t.rates))
	out := make([]Entry, 0, len(codes))
	for _, c := range codes {
		out = append(out, Entry{Code: c, Percentage: t.rates[c]})
	}
	return out
}
