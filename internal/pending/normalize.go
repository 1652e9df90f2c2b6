package pending

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Normalize converts the endpoint's bread value into an amount. A JSON number
// or a numeric string yields a value; anything else yields absent.
func Normalize(raw json.RawMessage) decimal.NullDecimal {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return decimal.NullDecimal{}
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.NullDecimal{}
		}
		d, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return decimal.NullDecimal{}
		}
		return decimal.NullDecimal{Decimal: d, Valid: true}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return decimal.NullDecimal{}
		}
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.NullDecimal{}
		}
		return decimal.NullDecimal{Decimal: d, Valid: true}
	default:
		return decimal.NullDecimal{}
	}
}
