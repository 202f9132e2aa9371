// Package formatting parses loosely formatted values: byte sizes from
// configuration and JSON embedded in model output.
package formatting

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// byteUnits are base-1024 multipliers. SI and IEC spellings are the same
// size here since configuration writers use them interchangeably.
var byteUnits = map[string]float64{
	"":    1,
	"B":   1,
	"K":   1 << 10,
	"KB":  1 << 10,
	"KIB": 1 << 10,
	"M":   1 << 20,
	"MB":  1 << 20,
	"MIB": 1 << 20,
	"G":   1 << 30,
	"GB":  1 << 30,
	"GIB": 1 << 30,
	"T":   1 << 40,
	"TB":  1 << 40,
	"TIB": 1 << 40,
}

// ParseBytes reads a size such as "512", "10MB", "10 mb" or "4MiB".
// Fractions are allowed and truncated to whole bytes.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	split := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.'
	})
	if split < 0 {
		split = len(s)
	}

	num, unit := s[:split], strings.ToUpper(strings.TrimSpace(s[split:]))
	if num == "" {
		return 0, fmt.Errorf("invalid byte size %q: missing number", s)
	}

	value, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}

	mult, ok := byteUnits[unit]
	if !ok {
		return 0, fmt.Errorf("invalid byte size %q: unknown unit %q", s, unit)
	}
	return int64(value * mult), nil
}
