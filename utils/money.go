package utils

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor currency units (cents).
type Money int64

// MaxMoney bounds every amount in either direction: 100 billion in major units.
const MaxMoney Money = 10_000_000_000_000

var ErrMoneyRange = errors.New("amount out of range")

var (
	hundred  = decimal.NewFromInt(100)
	maxCents = decimal.NewFromInt(int64(MaxMoney))
)

// MoneyFromDecimal rounds d half away from zero to the cent. Amounts beyond
// MaxMoney fail with ErrMoneyRange.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Round(2).Shift(2)
	if cents.Abs().GreaterThan(maxCents) {
		return 0, fmt.Errorf("%w: %s", ErrMoneyRange, d.StringFixed(2))
	}
	return Money(cents.IntPart()), nil
}

// ParseMoney reads a decimal string such as "12.5" or "199.99".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return MoneyFromDecimal(d)
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Times multiplies a unit price by a quantity.
func (m Money) Times(qty int64) (Money, error) {
	return MoneyFromDecimal(m.Decimal().Mul(decimal.NewFromInt(qty)))
}

// Add sums two amounts.
func (m Money) Add(o Money) (Money, error) {
	return MoneyFromDecimal(m.Decimal().Add(o.Decimal()))
}

// Percent returns rate% of m, rounded to the cent.
func (m Money) Percent(rate decimal.Decimal) (Money, error) {
	return MoneyFromDecimal(m.Decimal().Mul(rate).Div(hundred))
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*m = 0
		return nil
	}
	v, err := ParseMoney(string(bytes.Trim(b, `"`)))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
