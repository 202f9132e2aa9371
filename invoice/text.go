package invoice

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Regex fragments shared by field and item patterns.
const (
	currencyMark   = `(?:₹|â‚¹|Rs\.?|INR)?\s*`
	moneyPattern   = `(\d+(?:,\d{2,3})*\.\d{2})`
	loosePattern   = `(\d+(?:,\d{2,3})*(?:\.\d{1,2})?)`
	percentPattern = `(\d{1,2}(?:\.\d{1,2})?)\s*%`
	datePattern    = `(\d{1,2}[-/ ][A-Za-z]{3,9}[-/ ,]+\d{2,4}|\d{4}[-/]\d{1,2}[-/]\d{1,2}|\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4})`
)

var (
	moneyToken      = regexp.MustCompile(`(?i)` + currencyMark + moneyPattern)
	whitespaceRun   = regexp.MustCompile(`\s+`)
	hasLetterRegexp = regexp.MustCompile(`[A-Za-z]`)

	hundred = decimal.NewFromInt(100)
)

// moneyMatch is one money-shaped token located in a text.
type moneyMatch struct {
	start int
	end   int
	value decimal.Decimal
}

// findMoney returns every money-shaped token with exactly two decimals.
// Tokens followed by a percent sign or continuing into a longer dotted
// number (dates such as 12.03.2024) are skipped.
func findMoney(text string) []moneyMatch {
	var out []moneyMatch
	for _, loc := range moneyToken.FindAllStringSubmatchIndex(text, -1) {
		numStart, numEnd := loc[2], loc[3]
		rest := text[numEnd:]
		if strings.HasPrefix(strings.TrimLeft(rest, " \t"), "%") {
			continue
		}
		if len(rest) > 1 && rest[0] == '.' && isDigit(rest[1]) {
			continue
		}
		if len(rest) > 0 && isDigit(rest[0]) {
			continue
		}
		v, ok := NormalizeAmount(text[numStart:numEnd])
		if !ok {
			continue
		}
		out = append(out, moneyMatch{start: loc[0], end: loc[1], value: v})
	}
	return out
}

// window returns up to n runes of text starting at byte offset from.
func window(text string, from, n int) string {
	if from >= len(text) {
		return ""
	}
	end := from
	for i := 0; i < n && end < len(text); i++ {
		_, size := utf8.DecodeRuneInString(text[end:])
		end += size
	}
	return text[from:end]
}

// windowBefore returns up to n runes of text ending at byte offset to.
func windowBefore(text string, to, n int) string {
	start := to
	for i := 0; i < n && start > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(text[:start])
		start -= size
	}
	return text[start:to]
}

// headerSurface joins the n topmost fragments, ordered by vertical then
// horizontal anchor, one fragment per line.
func headerSurface(frags []Fragment, n int) string {
	if len(frags) == 0 || n <= 0 {
		return ""
	}
	sorted := slices.Clone(frags)
	slices.SortStableFunc(sorted, func(a, b Fragment) int {
		return cmp.Or(cmp.Compare(a.Top, b.Top), cmp.Compare(a.Left, b.Left))
	})

	texts := make([]string, 0, n)
	for _, f := range sorted[:min(n, len(sorted))] {
		texts = append(texts, f.Text)
	}
	return strings.Join(texts, "\n")
}

// fullSurface is the transcript text, falling back to the fragments in
// reading order when no raw text was supplied.
func fullSurface(t Transcript) string {
	if !isBlank(t.Text) {
		return t.Text
	}
	texts := make([]string, 0, len(t.Fragments))
	for _, f := range t.Fragments {
		texts = append(texts, f.Text)
	}
	return strings.Join(texts, "\n")
}

func collapseSpace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

func lines(text string) []string {
	raw := strings.Split(text, "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
