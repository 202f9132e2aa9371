package hsn

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/JaimeStill/tally/invoice"
)

// ParseCSV reads a rate table from CSV. When the first row is a header,
// the code column is the first whose name mentions hsn, sac or code and
// the rate column the first other one mentioning gst, rate, tax or
// percent. Without a header the first two columns are used. Rows with an
// unusable code or rate are skipped.
func ParseCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var (
		entries []Entry
		codeCol = 0
		rateCol = 1
		first   = true
	)

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read rate csv: %w", err)
		}

		if first {
			first = false
			if isHeader(rec) {
				codeCol, rateCol = headerColumns(rec)
				if rateCol < 0 {
					return nil, ErrNoRateColumn
				}
				continue
			}
		}

		if e, ok := parseRow(rec, codeCol, rateCol); ok {
			entries = append(entries, e)
		}
	}

	return NewTable(entries...), nil
}

// LoadFile reads a rate table from a CSV file. A file with no usable rows
// is an error.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rate csv: %w", err)
	}
	defer f.Close()

	t, err := ParseCSV(f)
	if err != nil {
		return nil, err
	}
	if t.Len() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyTable, path)
	}
	return t, nil
}

func isHeader(rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	_, ok := invoice.CleanClassificationCode(rec[0])
	return !ok || strings.ContainsFunc(rec[0], isLetter)
}

func headerColumns(rec []string) (code, rate int) {
	code, rate = -1, -1
	for i, h := range rec {
		h = strings.ToLower(h)
		if code < 0 && containsAny(h, "hsn", "sac", "code") {
			code = i
			continue
		}
		if rate < 0 && containsAny(h, "gst", "rate", "tax", "percent") {
			rate = i
		}
	}
	if code < 0 {
		code = 0
	}
	if rate < 0 && len(rec) > 1 {
		rate = 1
		if code == 1 {
			rate = 0
		}
	}
	return code, rate
}

func parseRow(rec []string, codeCol, rateCol int) (Entry, bool) {
	if codeCol >= len(rec) || rateCol >= len(rec) {
		return Entry{}, false
	}
	code, ok := invoice.CleanClassificationCode(rec[codeCol])
	if !ok {
		return Entry{}, false
	}
	raw := strings.TrimSuffix(strings.TrimSpace(rec[rateCol]), "%")
	rate, ok := invoice.NormalizeAmount(raw)
	if !ok || rate.IsNegative() {
		return Entry{}, false
	}
	return Entry{Code: code, Percentage: rate}, true
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
