package engine

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/instrument"
)

// Security is a held instrument in a positions report.
type Security struct {
	InstrumentID string `json:"figi"`
	Balance      int64  `json:"balance"` // unblocked units
	Blocked      int64  `json:"blocked"`
}

// Positions is the cash-and-units view of an account.
type Positions struct {
	Money      []domain.Money `json:"money"`   // available cash per currency
	Blocked    []domain.Money `json:"blocked"` // non-zero blocked cash per currency
	Securities []Security     `json:"securities"`
}

// PortfolioPosition is one valued holding.
type PortfolioPosition struct {
	InstrumentID             string                `json:"figi"`
	Type                     domain.InstrumentType `json:"instrument_type"`
	Quantity                 int64                 `json:"quantity"`
	QuantityLots             int64                 `json:"quantity_lots"`
	Blocked                  int64                 `json:"blocked"`
	AveragePositionPrice     domain.Money          `json:"average_position_price"`
	AveragePositionPriceFIFO domain.Money          `json:"average_position_price_fifo"`
	CurrentPrice             domain.Money          `json:"current_price"`
	Value                    domain.Money          `json:"value"`
}

// Portfolio values an account in its base currency.
type Portfolio struct {
	Positions             []PortfolioPosition `json:"positions"`
	TotalAmountCurrencies domain.Money        `json:"total_amount_currencies"`
	TotalAmountShares     domain.Money        `json:"total_amount_shares"`
	TotalAmountBonds      domain.Money        `json:"total_amount_bonds"`
	TotalAmountEtf        domain.Money        `json:"total_amount_etf"`
	TotalAmountFutures    domain.Money        `json:"total_amount_futures"`
	TotalAmountPortfolio  domain.Money        `json:"total_amount_portfolio"`
	// ExpectedYield is the gain over invested capital, in percent.
	ExpectedYield domain.Money `json:"expected_yield"`
}

var hundred = decimal.NewFromInt(100)

// GetPositions reports available and blocked cash per currency and the
// units held of every instrument with a non-zero quantity.
func (e *Engine) GetPositions(accountID string) (*Positions, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	acc, err := e.accounts.Get(accountID)
	if err != nil {
		return nil, err
	}
	out := &Positions{
		Money:      []domain.Money{},
		Blocked:    []domain.Money{},
		Securities: []Security{},
	}
	for _, cur := range sortedKeys(acc.Cash) {
		cb := acc.Cash[cur]
		out.Money = append(out.Money, cb.Available())
		if !cb.Blocked.IsZero() {
			out.Blocked = append(out.Blocked, cb.Blocked)
		}
	}
	for _, id := range sortedKeys(acc.Positions) {
		p := acc.Positions[id]
		if p.Quantity <= 0 {
			continue
		}
		out.Securities = append(out.Securities, Security{
			InstrumentID: id,
			Balance:      p.Available(),
			Blocked:      p.Blocked,
		})
	}
	return out, nil
}

// GetPortfolio values every position at the current price and totals the
// account in its base currency. Amounts in other currencies are listed but
// left out of the totals.
func (e *Engine) GetPortfolio(accountID string) (*Portfolio, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	acc, err := e.accounts.Get(accountID)
	if err != nil {
		return nil, err
	}
	base := acc.Currency
	pf := &Portfolio{
		Positions:             []PortfolioPosition{},
		TotalAmountCurrencies: domain.Zero(base),
		TotalAmountShares:     domain.Zero(base),
		TotalAmountBonds:      domain.Zero(base),
		TotalAmountEtf:        domain.Zero(base),
		TotalAmountFutures:    domain.Zero(base),
	}
	if cb, ok := acc.Cash[base]; ok {
		pf.TotalAmountCurrencies = cb.Total
	}

	for _, id := range sortedKeys(acc.Positions) {
		p := acc.Positions[id]
		inst, _ := e.market.Instrument(id)
		price, ok := e.market.CurrentPrice(id)
		if !ok {
			price = domain.Zero(p.AverageCost.Currency)
		}
		pos := PortfolioPosition{
			InstrumentID:             id,
			Type:                     inst.Type,
			Quantity:                 p.Quantity,
			Blocked:                  p.Blocked,
			AveragePositionPrice:     p.AverageCost,
			AveragePositionPriceFIFO: p.AverageCost,
			CurrentPrice:             price,
			Value:                    price.MulInt(p.Quantity),
		}
		if inst.LotSize > 0 {
			pos.QuantityLots = p.Quantity / inst.LotSize
		}
		pf.Positions = append(pf.Positions, pos)

		if pos.Value.Currency != base {
			continue
		}
		switch inst.Type {
		case domain.InstrumentTypeBond:
			pf.TotalAmountBonds = pf.TotalAmountBonds.Add(pos.Value)
		case domain.InstrumentTypeETF:
			pf.TotalAmountEtf = pf.TotalAmountEtf.Add(pos.Value)
		case domain.InstrumentTypeFuture:
			pf.TotalAmountFutures = pf.TotalAmountFutures.Add(pos.Value)
		case domain.InstrumentTypeCurrency:
			pf.TotalAmountCurrencies = pf.TotalAmountCurrencies.Add(pos.Value)
		default:
			pf.TotalAmountShares = pf.TotalAmountShares.Add(pos.Value)
		}
	}

	pf.TotalAmountPortfolio = pf.TotalAmountCurrencies.
		Add(pf.TotalAmountShares).
		Add(pf.TotalAmountBonds).
		Add(pf.TotalAmountEtf).
		Add(pf.TotalAmountFutures)
	pf.ExpectedYield = expectedYield(pf.TotalAmountPortfolio, acc.InitialCapital)
	return pf, nil
}

// expectedYield returns 100 × (total − invested) / invested as a
// quotation, or zero when nothing was invested.
func expectedYield(total, invested domain.Money) domain.Money {
	if invested.Sign() <= 0 {
		return domain.Zero("")
	}
	gain := total.Sub(invested).Decimal().Mul(hundred)
	return domain.FromDecimal(gain.DivRound(invested.Decimal(), 9), "")
}

// LastPrice is the current price of one instrument.
type LastPrice struct {
	InstrumentID string       `json:"figi"`
	Price        domain.Money `json:"price"`
	Time         *time.Time   `json:"time,omitempty"` // nil before any candle
}

// LastPrices returns the current price of each instrument. Instruments the
// engine has not traded yet are resolved through the reference and quoted
// at their reference price.
func (e *Engine) LastPrices(ctx context.Context, ids []string) ([]LastPrice, error) {
	out := make([]LastPrice, 0, len(ids))
	for _, id := range ids {
		e.mu.RLock()
		price, known := e.market.CurrentPrice(id)
		c, hasCandle := e.market.LastCandle(id)
		e.mu.RUnlock()

		lp := LastPrice{InstrumentID: id, Price: price}
		if hasCandle {
			t := c.Time
			lp.Time = &t
		}
		if !known {
			inst, err := e.ref.Resolve(ctx, instrument.ByFigi(id))
			if err != nil {
				return nil, err
			}
			lp.Price = inst.CurrentPrice.WithCurrency(inst.Currency)
		}
		out = append(out, lp)
	}
	return out, nil
}

// LastCandle returns the candle the scheduler last consumed for the
// instrument.
func (e *Engine) LastCandle(instrumentID string) (domain.Candle, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.market.LastCandle(instrumentID)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
