package engine

import "github.com/efreitasn/papertrade/internal/domain"

// ResolveFill decides whether a pending order executes against candle and
// at what per-unit price.
//
// Market orders always fill at the reference price their reservation was
// computed from. A limit buy fills when the candle traded at or below the
// limit, a limit sell when it traded at or above it; both execute at
// exactly the limit price.
func ResolveFill(o *domain.Order, c domain.Candle) (domain.Money, bool) {
	switch o.Kind {
	case domain.OrderKindMarket:
		return o.ReferencePrice, true
	case domain.OrderKindLimit:
		if o.LimitPrice == nil {
			return domain.Money{}, false
		}
		limit := *o.LimitPrice
		if o.Direction == domain.DirectionBuy && c.Low.Cmp(limit) <= 0 {
			return limit, true
		}
		if o.Direction == domain.DirectionSell && c.High.Cmp(limit) >= 0 {
			return limit, true
		}
	}
	return domain.Money{}, false
}
