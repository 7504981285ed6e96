package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a value expressed in major units (e.g. 12.34) into minor
// units using scale decimal places. Values with more precision than scale, zero,
// negative or too large for int64 are rejected with ErrInvalidAmount.
func ParseAmount(d decimal.Decimal, scale int32) (Amount, error) {
	minor := d.Shift(scale)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("%w: more than %d decimal places", ErrInvalidAmount, scale)
	}
	if !minor.IsPositive() {
		return 0, ErrInvalidAmount
	}
	n := minor.BigInt()
	if !n.IsInt64() {
		return 0, fmt.Errorf("%w: out of range", ErrInvalidAmount)
	}
	return Amount(n.Int64()), nil
}

// Decimal renders the amount back into major units.
func (a Amount) Decimal(scale int32) decimal.Decimal {
	return decimal.New(int64(a), -scale)
}

// add returns a+b and false when the sum does not fit in an int64.
func (a Amount) add(b Amount) (Amount, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}
