package engine

import (
	"fmt"

	"github.com/efreitasn/papertrade/internal/domain"
)

// Ledger is the only writer of cash balances and positions. Every check
// happens before the first mutation, so a failed call leaves the account
// untouched. It relies on the engine lock for exclusion.
type Ledger struct{}

// ReserveCash blocks amount of available cash for a buy of instrumentID.
func (Ledger) ReserveCash(a *domain.Account, instrumentID string, amount domain.Money) error {
	available := a.AvailableCash(amount.Currency)
	if available.Cmp(amount) < 0 {
		return &domain.InsufficientFundsError{
			InstrumentID: instrumentID,
			Shortfall:    amount.Sub(available),
		}
	}
	cb := a.CashBalance(amount.Currency)
	cb.Blocked = cb.Blocked.Add(amount)
	return nil
}

// ReleaseCash unblocks amount previously reserved.
func (Ledger) ReleaseCash(a *domain.Account, amount domain.Money) error {
	cb, ok := a.Cash[amount.Currency]
	if !ok || cb.Blocked.Cmp(amount) < 0 {
		return fmt.Errorf("release %s: more than blocked in account %s", amount, a.AccountID)
	}
	cb.Blocked = cb.Blocked.Sub(amount)
	return nil
}

// ReserveQuantity blocks units of the position for a sell.
func (Ledger) ReserveQuantity(a *domain.Account, instrumentID string, units int64) error {
	p, ok := a.Positions[instrumentID]
	var available int64
	if ok {
		available = p.Available()
	}
	if units <= 0 || available < units {
		return &domain.InsufficientHoldingsError{
			InstrumentID: instrumentID,
			Balance:      available - units,
		}
	}
	p.Blocked += units
	return nil
}

// ReleaseQuantity unblocks units previously reserved.
func (Ledger) ReleaseQuantity(a *domain.Account, instrumentID string, units int64) error {
	p, ok := a.Positions[instrumentID]
	if !ok || p.Blocked < units {
		return fmt.Errorf("release %d units of %s: more than blocked in account %s", units, instrumentID, a.AccountID)
	}
	p.Blocked -= units
	return nil
}

// Release returns the reservation a pending order holds.
func (l Ledger) Release(a *domain.Account, o *domain.Order) error {
	if o.Direction == domain.DirectionBuy {
		return l.ReleaseCash(a, o.ReservedCash)
	}
	return l.ReleaseQuantity(a, o.InstrumentID, o.ReservedQuantity)
}

// SettleBuy books a filled buy: the reservation is released, notional and
// fee leave the cash balance and the units join the position at a
// lot-weighted average cost.
func (l Ledger) SettleBuy(a *domain.Account, o *domain.Order, price, fee domain.Money) error {
	units := o.Units()
	notional := price.MulInt(units)
	if err := l.ReleaseCash(a, o.ReservedCash); err != nil {
		return err
	}
	cb := a.CashBalance(notional.Currency)
	cb.Total = cb.Total.Sub(notional).Sub(fee)

	p := a.Position(o.InstrumentID, notional.Currency)
	held := p.AverageCost.MulInt(p.Quantity)
	p.Quantity += units
	p.AverageCost = held.Add(notional).DivInt(p.Quantity)
	return nil
}

// SettleSell books a filled sell: blocked units leave the position and
// notional minus fee joins the cash balance. A closed position keeps no
// cost basis.
func (l Ledger) SettleSell(a *domain.Account, o *domain.Order, price, fee domain.Money) error {
	units := o.Units()
	notional := price.MulInt(units)
	if err := l.ReleaseQuantity(a, o.InstrumentID, o.ReservedQuantity); err != nil {
		return err
	}
	p := a.Positions[o.InstrumentID]
	p.Quantity -= units
	if p.Quantity == 0 {
		p.AverageCost = domain.Zero(notional.Currency)
	}
	cb := a.CashBalance(notional.Currency)
	cb.Total = cb.Total.Add(notional).Sub(fee)
	return nil
}

// PayIn deposits amount. Deposits in the account currency also count as
// invested capital.
func (Ledger) PayIn(a *domain.Account, amount domain.Money) {
	cb := a.CashBalance(amount.Currency)
	cb.Total = cb.Total.Add(amount)
	if amount.Currency == a.Currency {
		a.InitialCapital = a.InitialCapital.Add(amount)
	}
}
