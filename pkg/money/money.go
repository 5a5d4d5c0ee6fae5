// Package money converts between rupee amounts at the API boundary and the
// int64 paise held by the ledger.
package money

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// MinRecharge is the smallest accepted recharge (₹1.00) in paise.
const MinRecharge int64 = 100

var (
	ErrTooPrecise = errors.New("amount has more than two fractional digits")
	ErrOutOfRange = errors.New("amount out of range")
)

var (
	hundred  = decimal.NewFromInt(100)
	maxPaise = decimal.NewFromInt(math.MaxInt64)
)

// ToPaise converts a rupee amount to paise. The amount may be negative;
// callers decide what sign is acceptable.
func ToPaise(rupees decimal.Decimal) (int64, error) {
	p := rupees.Mul(hundred)
	if !p.IsInteger() {
		return 0, ErrTooPrecise
	}
	if p.Abs().GreaterThan(maxPaise) {
		return 0, ErrOutOfRange
	}
	return p.IntPart(), nil
}

// Parse reads a rupee string such as "500" or "99.50" into paise.
func Parse(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return ToPaise(d)
}

// FromPaise returns the rupee value of p.
func FromPaise(p int64) decimal.Decimal {
	return decimal.New(p, -2)
}

// Format renders p as a rupee string with exactly two fractional digits.
func Format(p int64) string {
	return FromPaise(p).StringFixed(2)
}
