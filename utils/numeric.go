package utils

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Round2 rounds half-up to two decimal places. All persisted money amounts
// go through this, at every intermediate computation step, because rounding
// order is observable in totals.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// CoerceDecimal converts arbitrary input into a decimal, falling back to def
// for nil, empty, or non-numeric values. It never returns an error: malformed
// numeric input is absorbed here instead of being thrown later, so NaN-like
// garbage can never reach persisted totals.
//
// Strings are trimmed and may carry thousands separators ("1,234.50").
func CoerceDecimal(v any, def decimal.Decimal) decimal.Decimal {
	switch value := v.(type) {
	case nil:
		return def
	case decimal.Decimal:
		return value
	case *decimal.Decimal:
		if value == nil {
			return def
		}
		return *value
	case float64:
		return decimal.NewFromFloat(value)
	case float32:
		return decimal.NewFromFloat32(value)
	case int:
		return decimal.NewFromInt(int64(value))
	case int64:
		return decimal.NewFromInt(value)
	case json.Number:
		d, err := decimal.NewFromString(value.String())
		if err != nil {
			return def
		}
		return d
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(value), ",", "")
		if s == "" {
			return def
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return def
		}
		return d
	default:
		return def
	}
}

// ParseDecimal parses a formatted amount string strictly (unlike CoerceDecimal
// it surfaces the error). Tolerates thousands separators.
func ParseDecimal(value string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	return decimal.NewFromString(s)
}
