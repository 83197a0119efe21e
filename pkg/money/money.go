// Package money holds minor-unit amounts and the decimal conversions used at
// API and configuration boundaries. Arithmetic stays in integer cents.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Cents is an amount in minor currency units.
type Cents int64

// Decimal returns the amount in major units.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(c)).Shift(-2)
}

// String renders the amount with two decimal places, e.g. "87.00".
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// MulRateFloor returns c × rate rounded down to the nearest cent.
func (c Cents) MulRateFloor(rate decimal.Decimal) Cents {
	return Cents(decimal.NewFromInt(int64(c)).Mul(rate).Floor().IntPart())
}

// Times multiplies a unit price by a quantity.
func (c Cents) Times(qty int64) Cents {
	return Cents(int64(c) * qty)
}

// Parse converts a major-unit string such as "100.00" into Cents. More than
// two fractional digits and negative amounts are rejected.
func Parse(value string) (Cents, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("amount is required")
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", value)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("amount must not be negative")
	}
	shifted := d.Shift(2)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than two decimal places", value)
	}
	return Cents(shifted.IntPart()), nil
}
