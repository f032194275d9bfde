package models

import (
	"bitbucket.org/taralabs/invoicing_backend/utils"
	"github.com/shopspring/decimal"
)

// SafeDecimal is a JSON-forgiving decimal for input structs: null, "",
// and non-numeric values decode as zero instead of failing the whole
// request. Persisted models use decimal.Decimal directly; SafeDecimal is
// an input-boundary type only.
type SafeDecimal struct {
	decimal.Decimal
}

func NewSafeDecimal(d decimal.Decimal) SafeDecimal {
	return SafeDecimal{Decimal: d}
}

func (s *SafeDecimal) UnmarshalJSON(data []byte) error {
	raw := string(data)
	if raw == "null" {
		s.Decimal = decimal.Zero
		return nil
	}
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = raw[1 : len(raw)-1]
	}
	s.Decimal = utils.CoerceDecimal(raw, decimal.Zero)
	return nil
}

func (s SafeDecimal) MarshalJSON() ([]byte, error) {
	return s.Decimal.MarshalJSON()
}
