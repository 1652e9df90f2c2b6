package domain

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultDecimals is the token precision (wei-equivalent minor units).
const DefaultDecimals = 18

// ParseUnits converts a human decimal amount into minor units.
// Fractional digits beyond the token precision are rejected.
func ParseUnits(amount string, decimals int32) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, ErrInvalidAmount
	}
	if d.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, ErrInvalidAmount
	}
	return scaled.BigInt(), nil
}

// FormatUnits renders minor units as a decimal string without trailing zeros.
func FormatUnits(value *big.Int, decimals int32) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -decimals).String()
}
