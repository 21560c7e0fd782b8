package domain

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// nanoPrecision is the number of decimal places carried by Money.Nano.
const nanoPrecision = 9

const nanoFactor = 1_000_000_000

// ErrMoneyOverflow reports an amount whose whole part does not fit in int64.
var ErrMoneyOverflow = errors.New("money amount out of range")

var maxUnits = decimal.NewFromInt(math.MaxInt64)

// Money is a fixed-point monetary amount: Units whole units plus Nano
// billionths, tagged with a currency code. A Money with an empty currency
// is a plain quotation (a price in a request, a yield) and combines with an
// amount of any currency.
//
// Values built through the package functions are always reduced:
// |Nano| < 1e9 and the sign of Nano matches the sign of Units.
type Money struct {
	Units    int64  `json:"units"`
	Nano     int32  `json:"nano"`
	Currency string `json:"currency,omitempty"`
}

// NewMoney builds a reduced Money from possibly unreduced parts.
func NewMoney(units int64, nano int64, currency string) Money {
	units += nano / nanoFactor
	nano %= nanoFactor
	if units > 0 && nano < 0 {
		units--
		nano += nanoFactor
	} else if units < 0 && nano > 0 {
		units++
		nano -= nanoFactor
	}
	return Money{Units: units, Nano: int32(nano), Currency: currency}
}

// Zero returns a zero amount in the given currency.
func Zero(currency string) Money {
	return Money{Currency: currency}
}

// ParseMoney parses a decimal string such as "1228.6" into Money. It returns
// an error for malformed input or more than nine fractional digits.
func ParseMoney(s, currency string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("parse money %q: %w", s, err)
	}
	if !d.Equal(d.Round(nanoPrecision)) {
		return Money{}, fmt.Errorf("parse money %q: at most %d fractional digits allowed", s, nanoPrecision)
	}
	return CheckedFromDecimal(d, currency)
}

// MustParseMoney is like ParseMoney but panics on error. It is meant for
// fixtures and constants.
func MustParseMoney(s, currency string) Money {
	m, err := ParseMoney(s, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// FromDecimal converts d to Money, rounding half away from zero to the
// nearest billionth.
func FromDecimal(d decimal.Decimal, currency string) Money {
	r := d.Round(nanoPrecision)
	whole := r.Truncate(0)
	frac := r.Sub(whole).Shift(nanoPrecision)
	return NewMoney(whole.IntPart(), frac.IntPart(), currency)
}

// CheckedFromDecimal is like FromDecimal but returns ErrMoneyOverflow
// instead of wrapping when the rounded amount is outside ±MaxInt64 units.
func CheckedFromDecimal(d decimal.Decimal, currency string) (Money, error) {
	if d.Round(nanoPrecision).Truncate(0).Abs().GreaterThan(maxUnits) {
		return Money{}, fmt.Errorf("%w: %s", ErrMoneyOverflow, d.String())
	}
	return FromDecimal(d, currency), nil
}

// Decimal returns the exact decimal value of m.
func (m Money) Decimal() decimal.Decimal {
	return decimal.NewFromInt(m.Units).Add(decimal.New(int64(m.Nano), -nanoPrecision))
}

// WithCurrency returns m tagged with currency.
func (m Money) WithCurrency(currency string) Money {
	m.Currency = currency
	return m
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	cur := mergeCurrency(m, o)
	return NewMoney(m.Units+o.Units, int64(m.Nano)+int64(o.Nano), cur)
}

// Sub returns m - o.
func (m Money) Sub(o Money) Money {
	return m.Add(o.Neg())
}

// Neg returns -m.
func (m Money) Neg() Money {
	return Money{Units: -m.Units, Nano: -m.Nano, Currency: m.Currency}
}

// Abs returns |m|.
func (m Money) Abs() Money {
	if m.Sign() < 0 {
		return m.Neg()
	}
	return m
}

// MulInt returns m × k. The result is exact.
func (m Money) MulInt(k int64) Money {
	return FromDecimal(m.Decimal().Mul(decimal.NewFromInt(k)), m.Currency)
}

// CheckedMulInt is like MulInt but reports a product that does not fit.
func (m Money) CheckedMulInt(k int64) (Money, error) {
	return CheckedFromDecimal(m.Decimal().Mul(decimal.NewFromInt(k)), m.Currency)
}

// CheckedAdd is like Add but reports a sum that does not fit.
func (m Money) CheckedAdd(o Money) (Money, error) {
	cur := mergeCurrency(m, o)
	return CheckedFromDecimal(m.Decimal().Add(o.Decimal()), cur)
}

// MulRate returns m × rate rounded half away from zero to a billionth.
func (m Money) MulRate(rate decimal.Decimal) Money {
	return FromDecimal(m.Decimal().Mul(rate), m.Currency)
}

// DivInt returns m / k rounded half away from zero to a billionth.
// It panics if k is zero.
func (m Money) DivInt(k int64) Money {
	if k == 0 {
		panic("domain: money division by zero")
	}
	return FromDecimal(m.Decimal().DivRound(decimal.NewFromInt(k), nanoPrecision), m.Currency)
}

// Cmp compares m and o and returns -1, 0 or +1.
func (m Money) Cmp(o Money) int {
	mergeCurrency(m, o)
	switch {
	case m.Units < o.Units:
		return -1
	case m.Units > o.Units:
		return 1
	case m.Nano < o.Nano:
		return -1
	case m.Nano > o.Nano:
		return 1
	}
	return 0
}

// LessThan reports whether m < o.
func (m Money) LessThan(o Money) bool {
	return m.Cmp(o) < 0
}

// Sign returns -1, 0 or +1 depending on the sign of m.
func (m Money) Sign() int {
	switch {
	case m.Units < 0 || m.Nano < 0:
		return -1
	case m.Units > 0 || m.Nano > 0:
		return 1
	}
	return 0
}

// IsZero reports whether the amount is zero, regardless of currency.
func (m Money) IsZero() bool {
	return m.Units == 0 && m.Nano == 0
}

func (m Money) String() string {
	if m.Currency == "" {
		return m.Decimal().String()
	}
	return m.Decimal().String() + " " + m.Currency
}

// mergeCurrency returns the currency of an operation on a and b. Mixing two
// different non-empty currencies is a programming error.
func mergeCurrency(a, b Money) string {
	switch {
	case a.Currency == "":
		return b.Currency
	case b.Currency == "" || a.Currency == b.Currency:
		return a.Currency
	}
	panic(fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, a.Currency, b.Currency))
}
