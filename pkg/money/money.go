// Package money holds integer minor-unit helpers. Amounts never touch floating point.
package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidAmount = errors.New("invalid_amount")

// Decimal renders cents as a two-place decimal string, e.g. 12345 -> "123.45".
func Decimal(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// Number renders cents as a JSON number literal for gateways that expect decimal values.
func Number(cents int64) json.Number {
	return json.Number(Decimal(cents))
}

// ParseDecimal converts "123.45" or "123" into cents. More than two fractional digits is rejected.
func ParseDecimal(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrInvalidAmount
	}
	negative := strings.HasPrefix(raw, "-")
	raw = strings.TrimPrefix(raw, "-")

	whole, frac, hasFrac := strings.Cut(raw, ".")
	if whole == "" || (hasFrac && (frac == "" || len(frac) > 2)) {
		return 0, ErrInvalidAmount
	}
	for len(frac) < 2 {
		frac += "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	minor, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	cents := units*100 + minor
	if negative {
		cents = -cents
	}
	return cents, nil
}

// NonNegative clamps v at zero.
func NonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
