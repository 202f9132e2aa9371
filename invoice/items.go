package invoice

import (
	"cmp"
	"math"
	"regexp"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

type component int

const (
	componentCGST component = iota
	componentSGST
	componentIGST
)

var componentLabels = map[component]string{
	componentCGST: `CGST`,
	componentSGST: `(?:SGST|UTGST)`,
	componentIGST: `IGST`,
}

// taxPatterns are tried in order per component; the first match wins.
// Patterns with two groups capture a percentage and an amount, patterns
// with one capture only the amount.
var taxPatterns = map[component][]*regexp.Regexp{}

var (
	hsnLabel  = regexp.MustCompile(`(?i)\b(?:HSN(?:\s*/\s*SAC)?|SAC)\b\s*(?:Code)?\s*[:\-]?\s*(\d{4,8})\b`)
	bareCodes = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{8}\b`),
		regexp.MustCompile(`\b\d{6}\b`),
		regexp.MustCompile(`\b\d{4}\b`),
	}
)

func init() {
	for c, label := range componentLabels {
		taxPatterns[c] = []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b` + label + `\b\s*(?:@\s*)?` + percentPattern + `\s*(?:Amt\.?|Amount)?\s*[:\-]?\s*` + currencyMark + moneyPattern),
			regexp.MustCompile(`(?i)\b` + label + `\b\s*[:\-]\s*` + currencyMark + moneyPattern),
			regexp.MustCompile(`(?is)\b` + label + `\b.*?` + percentPattern + `.*?` + currencyMark + moneyPattern),
		}
	}
}

// setComponent stores a percentage and amount pair on the item.
func (li *LineItem) setComponent(c component, pct, amt decimal.NullDecimal) {
	switch c {
	case componentCGST:
		li.CGSTPercentage, li.CGSTAmount = pct, amt
	case componentSGST:
		li.SGSTPercentage, li.SGSTAmount = pct, amt
	case componentIGST:
		li.IGSTPercentage, li.IGSTAmount = pct, amt
	}
}

// applyTaxes fills each tax component from the first matching pattern.
// maxPatterns limits how many of the per-component patterns are tried.
func applyTaxes(li *LineItem, text string, maxPatterns int) {
	for _, c := range []component{componentCGST, componentSGST, componentIGST} {
		patterns := taxPatterns[c]
		for _, re := range patterns[:min(maxPatterns, len(patterns))] {
			m := re.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			var pct, amt decimal.NullDecimal
			if len(m) == 3 {
				pct = nullAmount(m[1])
				amt = nullAmount(m[2])
			} else {
				amt = nullAmount(m[1])
			}
			li.setComponent(c, pct, amt)
			break
		}
	}
}

// windowItems opens a forward window after every HSN label and takes the
// first money token in it as the taxable value. Tax pairs are searched in
// the rest of the window.
func windowItems(text string, opts Options) []LineItem {
	var items []LineItem
	for _, loc := range hsnLabel.FindAllStringSubmatchIndex(text, -1) {
		code, ok := CleanClassificationCode(text[loc[2]:loc[3]])
		if !ok {
			continue
		}

		win := window(text, loc[1], opts.ItemWindow)
		money := findMoney(win)
		if len(money) == 0 || money[0].value.LessThan(opts.MinItemValue) {
			continue
		}

		li := LineItem{HSN: code, TaxableValue: money[0].value}
		applyTaxes(&li, win[money[0].end:], 3)
		items = append(items, li)
	}
	return items
}

type rowKey struct {
	fragment int
	bucket   int
}

// rowAmount is the largest amount of a row. line is the text line it was
// found on, used only to look for a code next to it.
type rowAmount struct {
	key   rowKey
	line  string
	value decimal.Decimal
}

// positionalItems clusters money tokens by fragment and vertical row,
// keeping the largest per row, and pairs each with the nearest
// classification code in the same or an adjacent fragment. A fragment
// holds a single row, so its tax and subtotal lines never become items.
func positionalItems(frags []Fragment, opts Options) []LineItem {
	rows := make(map[rowKey]rowAmount)
	for fi, f := range frags {
		k := rowKey{fragment: fi, bucket: int(math.Round(f.Top * float64(opts.RowBuckets)))}
		for _, l := range strings.Split(f.Text, "\n") {
			for _, m := range findMoney(l) {
				if m.value.LessThan(opts.MinItemValue) {
					continue
				}
				if prev, ok := rows[k]; !ok || m.value.GreaterThan(prev.value) {
					rows[k] = rowAmount{key: k, line: l, value: m.value}
				}
			}
		}
	}

	picked := make([]rowAmount, 0, len(rows))
	for _, r := range rows {
		picked = append(picked, r)
	}
	slices.SortFunc(picked, func(a, b rowAmount) int {
		return cmp.Or(
			cmp.Compare(a.key.fragment, b.key.fragment),
			cmp.Compare(a.key.bucket, b.key.bucket),
		)
	})

	items := make([]LineItem, 0, len(picked))
	for _, r := range picked {
		li := LineItem{TaxableValue: r.value}
		li.HSN = nearestCode(r.line, frags, r.key.fragment)
		applyTaxes(&li, frags[r.key.fragment].Text, 2)
		items = append(items, li)
	}
	return items
}

// nearestCode looks for a classification code on the amount's own line,
// then in its fragment, then the previous and next fragments.
func nearestCode(line string, frags []Fragment, idx int) string {
	if code := findCode(line); code != "" {
		return code
	}
	for _, i := range []int{idx, idx - 1, idx + 1} {
		if i < 0 || i >= len(frags) {
			continue
		}
		if code := findCode(frags[i].Text); code != "" {
			return code
		}
	}
	return ""
}

// findCode returns a labeled HSN code, else the first bare 8, 6 or 4
// digit number that is not part of a date or a decimal amount.
func findCode(text string) string {
	if m := hsnLabel.FindStringSubmatch(text); m != nil {
		if code, ok := CleanClassificationCode(m[1]); ok {
			return code
		}
	}
	for _, re := range bareCodes {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			if adjacentToSeparator(text, loc[0], loc[1]) {
				continue
			}
			return text[loc[0]:loc[1]]
		}
	}
	return ""
}

func adjacentToSeparator(text string, start, end int) bool {
	isSep := func(b byte) bool { return b == '/' || b == '-' || b == '.' || b == ',' }
	if start > 0 && isSep(text[start-1]) {
		return true
	}
	return end < len(text) && isSep(text[end])
}

// loneAmountItems turns every distinct money token into an item without
// a classification code.
func loneAmountItems(text string, opts Options) []LineItem {
	var items []LineItem
	seen := make(map[string]bool)
	for _, m := range findMoney(text) {
		if m.value.LessThan(opts.MinItemValue) {
			continue
		}
		k := m.value.String()
		if seen[k] {
			continue
		}
		seen[k] = true
		items = append(items, LineItem{TaxableValue: m.value})
	}
	return items
}

// extractItems runs the windowed, positional and lone-amount strategies
// in turn, stopping at the first that yields anything. The result is
// deduplicated by code and value, capped, and stripped of items that
// merely repeat the grand total.
func extractItems(text string, frags []Fragment, total decimal.NullDecimal, opts Options) ([]LineItem, Source) {
	items, source := windowItems(text, opts), SourcePattern
	if len(items) == 0 && len(frags) > 0 {
		items, source = positionalItems(frags, opts), SourceLayout
	}
	if len(items) == 0 {
		items, source = loneAmountItems(text, opts), SourceLayout
	}

	type itemKey struct {
		hsn   string
		value string
	}
	seen := make(map[itemKey]bool)
	unique := make([]LineItem, 0, len(items))
	for _, li := range items {
		k := itemKey{li.HSN, li.TaxableValue.String()}
		if seen[k] {
			continue
		}
		seen[k] = true
		unique = append(unique, li)
		if len(unique) >= opts.MaxItems {
			break
		}
	}

	if !total.Valid {
		return unique, source
	}
	kept := unique[:0]
	for _, li := range unique {
		if li.TaxableValue.Sub(total.Decimal).Abs().LessThan(opts.TotalMatchTolerance) {
			continue
		}
		kept = append(kept, li)
	}
	return kept, source
}

func nullAmount(s string) decimal.NullDecimal {
	if d, ok := NormalizeAmount(s); ok {
		return decimal.NewNullDecimal(d)
	}
	return decimal.NullDecimal{}
}
