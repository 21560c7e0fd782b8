package domain

import "time"

// AccountStatus is the lifecycle state of a sandbox account.
type AccountStatus string

const (
	AccountStatusOpen   AccountStatus = "open"
	AccountStatusClosed AccountStatus = "closed"
)

// Account is a simulated brokerage account. Its cash balances and positions
// are owned by the ledger and are only mutated through it.
type Account struct {
	AccountID      string
	Name           string
	Currency       string // base currency of portfolio totals
	InitialCapital Money  // invested capital, grows with pay-ins
	Status         AccountStatus
	OpenedAt       time.Time
	ClosedAt       *time.Time

	Cash      map[string]*CashBalance // currency → balance
	Positions map[string]*Position    // instrument_id → position
}

// NewAccount creates an open account holding initialCapital in cash.
func NewAccount(id, name string, initialCapital Money, openedAt time.Time) *Account {
	a := &Account{
		AccountID:      id,
		Name:           name,
		Currency:       initialCapital.Currency,
		InitialCapital: initialCapital,
		Status:         AccountStatusOpen,
		OpenedAt:       openedAt,
		Cash:           make(map[string]*CashBalance),
		Positions:      make(map[string]*Position),
	}
	if initialCapital.Currency != "" {
		a.CashBalance(initialCapital.Currency).Total = initialCapital
	}
	return a
}

// CashBalance returns the balance for currency, creating an empty one if
// absent.
func (a *Account) CashBalance(currency string) *CashBalance {
	cb, ok := a.Cash[currency]
	if !ok {
		cb = &CashBalance{
			AccountID: a.AccountID,
			Currency:  currency,
			Total:     Zero(currency),
			Blocked:   Zero(currency),
		}
		a.Cash[currency] = cb
	}
	return cb
}

// AvailableCash returns the unblocked cash in currency.
func (a *Account) AvailableCash(currency string) Money {
	cb, ok := a.Cash[currency]
	if !ok {
		return Zero(currency)
	}
	return cb.Available()
}

// Position returns the position for instrumentID, creating an empty one if
// absent.
func (a *Account) Position(instrumentID, currency string) *Position {
	p, ok := a.Positions[instrumentID]
	if !ok {
		p = &Position{
			AccountID:    a.AccountID,
			InstrumentID: instrumentID,
			AverageCost:  Zero(currency),
		}
		a.Positions[instrumentID] = p
	}
	return p
}

// AvailableQuantity returns the unblocked units held of instrumentID, or 0
// if the account has no position in it.
func (a *Account) AvailableQuantity(instrumentID string) int64 {
	p, ok := a.Positions[instrumentID]
	if !ok {
		return 0
	}
	return p.Available()
}

// CashBalance is the cash held in one currency. Blocked is reserved by
// pending buy orders and is still part of Total.
type CashBalance struct {
	AccountID string
	Currency  string
	Total     Money
	Blocked   Money
}

// Available returns Total − Blocked.
func (c *CashBalance) Available() Money {
	return c.Total.Sub(c.Blocked)
}

// Position is a long holding of one instrument, in units (lots × lot size).
// Blocked is reserved by pending sell orders and never exceeds Quantity.
type Position struct {
	AccountID    string
	InstrumentID string
	Quantity     int64
	Blocked      int64
	AverageCost  Money // per unit
}

// Available returns Quantity − Blocked.
func (p *Position) Available() int64 {
	return p.Quantity - p.Blocked
}

// Clone returns a deep copy of the account and its balances.
func (a *Account) Clone() *Account {
	c := *a
	if a.ClosedAt != nil {
		t := *a.ClosedAt
		c.ClosedAt = &t
	}
	c.Cash = make(map[string]*CashBalance, len(a.Cash))
	for k, v := range a.Cash {
		cb := *v
		c.Cash[k] = &cb
	}
	c.Positions = make(map[string]*Position, len(a.Positions))
	for k, v := range a.Positions {
		p := *v
		c.Positions[k] = &p
	}
	return &c
}
