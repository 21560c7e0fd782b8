package engine

import (
	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/domain"
)

// DefaultFeeRate is the broker fee charged on notional, 0.3%.
var DefaultFeeRate = decimal.RequireFromString("0.003")

// Commission computes broker fees at a fixed rate.
type Commission struct {
	Rate decimal.Decimal
}

// Fee returns notional × rate rounded half away from zero to a billionth
// of the currency. The sign follows notional.
func (c Commission) Fee(notional domain.Money) domain.Money {
	return notional.MulRate(c.Rate)
}
