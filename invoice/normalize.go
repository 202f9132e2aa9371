package invoice

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

var (
	currencyReplacer = strings.NewReplacer("â‚¹", "", "₹", "", ",", "")
	currencyPrefix   = regexp.MustCompile(`(?i)^(?:INR|Rs\.?)`)
	amountShape      = regexp.MustCompile(`^-?\d+(?:\.\d+)?$`)
	gstinShape       = regexp.MustCompile(`^\d{2}[A-Z]{5}\d{4}[A-Z0-9]{3}$`)
	nonDigit         = regexp.MustCompile(`\D`)

	dateMonthName = regexp.MustCompile(`(?i)\b(\d{1,2})[-/ ](JAN|FEB|MAR|APR|MAY|JUN|JUL|AUG|SEP|OCT|NOV|DEC)[A-Z]*[-/ ,]+(\d{2,4})\b`)
	dateISO       = regexp.MustCompile(`\b(\d{4})[-/](\d{1,2})[-/](\d{1,2})\b`)
	dateDMYLong   = regexp.MustCompile(`\b(\d{1,2})[-/.](\d{1,2})[-/.](\d{4})\b`)
	dateDMYShort  = regexp.MustCompile(`\b(\d{1,2})[-/.](\d{1,2})[-/.](\d{2})\b`)
)

// gstinDigitPositions are the GSTIN offsets that must hold digits: the
// state code and the numeric run of the embedded PAN.
var gstinDigitPositions = []int{0, 1, 7, 8, 9, 10}

var months = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March,
	"APR": time.April, "MAY": time.May, "JUN": time.June,
	"JUL": time.July, "AUG": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

// NormalizeAmount parses a money-shaped token into a decimal rounded
// half-up to two places. Currency markers, thousands separators,
// whitespace and a trailing "/-" are stripped first.
func NormalizeAmount(token string) (decimal.Decimal, bool) {
	s := currencyReplacer.Replace(norm.NFKC.String(token))
	s = strings.Join(strings.Fields(s), "")
	s = currencyPrefix.ReplaceAllString(s, "")
	s = strings.TrimSuffix(s, "/-")

	if !amountShape.MatchString(s) {
		return decimal.Decimal{}, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d.Round(2), true
}

// NormalizeIdentifier uppercases a token, drops separators and maps
// glyphs OCR commonly confuses with digits (O, I, L, S, Z) to those
// digits. It is idempotent.
func NormalizeIdentifier(token string) string {
	return strings.Map(func(r rune) rune {
		if isSeparator(r) {
			return -1
		}
		return unconfuse(r)
	}, strings.ToUpper(norm.NFKC.String(token)))
}

// CanonicalGSTIN returns the canonical uppercase 15-character form of a
// GSTIN-shaped token. Confusable glyphs are corrected only where the
// GSTIN layout requires a digit, leaving the alphabetic PAN body intact.
func CanonicalGSTIN(token string) (string, bool) {
	s := strings.Map(func(r rune) rune {
		if isSeparator(r) {
			return -1
		}
		return r
	}, strings.ToUpper(norm.NFKC.String(token)))

	if len(s) != 15 {
		return "", false
	}

	b := []byte(s)
	for _, i := range gstinDigitPositions {
		b[i] = byte(unconfuse(rune(b[i])))
	}

	s = string(b)
	if !gstinShape.MatchString(s) {
		return "", false
	}
	return s, true
}

// NormalizeDate converts the first recognized date in token to ISO
// YYYY-MM-DD. Recognized forms, tried in order: dd-MON-yy(yy),
// yyyy-mm-dd, dd/mm/yyyy, dd/mm/yy. Two-digit years are read as 20yy.
func NormalizeDate(token string) (string, bool) {
	if m := dateMonthName.FindStringSubmatch(token); m != nil {
		if year, ok := expandYear(m[3]); ok {
			return isoDate(year, int(months[strings.ToUpper(m[2])]), atoi(m[1]))
		}
	}
	if m := dateISO.FindStringSubmatch(token); m != nil {
		if d, ok := isoDate(atoi(m[1]), atoi(m[2]), atoi(m[3])); ok {
			return d, true
		}
	}
	if m := dateDMYLong.FindStringSubmatch(token); m != nil {
		if d, ok := isoDate(atoi(m[3]), atoi(m[2]), atoi(m[1])); ok {
			return d, true
		}
	}
	if m := dateDMYShort.FindStringSubmatch(token); m != nil {
		return isoDate(2000+atoi(m[3]), atoi(m[2]), atoi(m[1]))
	}
	return "", false
}

// CleanClassificationCode strips non-digits and accepts only 4 to 8 digit
// HSN/SAC codes.
func CleanClassificationCode(token string) (string, bool) {
	s := nonDigit.ReplaceAllString(token, "")
	if len(s) < 4 || len(s) > 8 {
		return "", false
	}
	return s, true
}

func unconfuse(r rune) rune {
	switch r {
	case 'O':
		return '0'
	case 'I', 'L':
		return '1'
	case 'S':
		return '5'
	case 'Z':
		return '2'
	}
	return r
}

func isSeparator(r rune) bool {
	switch r {
	case '-', '.', '/', '_':
		return true
	}
	return unicode.IsSpace(r)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func expandYear(s string) (int, bool) {
	switch len(s) {
	case 2:
		return 2000 + atoi(s), true
	case 4:
		return atoi(s), true
	}
	return 0, false
}

func isoDate(year, month, day int) (string, bool) {
	if month < 1 || month > 12 || day < 1 {
		return "", false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return "", false
	}
	return t.Format(time.DateOnly), true
}

func atoi(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}
