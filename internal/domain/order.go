package domain

import (
	"fmt"
	"time"
)

// OrderKind distinguishes limit orders from market orders.
type OrderKind string

const (
	OrderKindLimit  OrderKind = "limit"
	OrderKindMarket OrderKind = "market"
	// OrderKindBestPrice is accepted on the wire but not modelled.
	OrderKindBestPrice OrderKind = "bestprice"
)

// Direction indicates whether an order buys or sells.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// OrderState represents the lifecycle state of an order.
type OrderState string

const (
	OrderStatePending   OrderState = "pending"
	OrderStateExecuted  OrderState = "executed"
	OrderStateCancelled OrderState = "cancelled"
)

// Order is an instruction to buy or sell whole lots of one instrument.
// Pending is the only non-terminal state.
type Order struct {
	OrderID      string
	AccountID    string
	InstrumentID string
	Direction    Direction
	Kind         OrderKind
	QuantityLots int64
	LotSize      int64
	Currency     string
	LimitPrice   *Money // nil for market orders
	State        OrderState
	CreatedAt    time.Time
	Seq          uint64 // submission sequence, tie-break for equal CreatedAt

	// ReferencePrice is the per-unit price the reservation was computed
	// from: the limit price, or the current price for market orders.
	ReferencePrice    Money
	InitialOrderPrice Money // notional
	InitialCommission Money
	TotalOrderAmount  Money

	// Reservation held while pending. Buys block cash, sells block units.
	ReservedCash     Money
	ReservedQuantity int64

	ExecutedAt         *time.Time
	ExecutionPrice     *Money
	ExecutedCommission *Money
	CancelledAt        *time.Time
}

// Units returns the number of instrument units the order covers.
func (o *Order) Units() int64 {
	return o.QuantityLots * o.LotSize
}

// IsPending reports whether the order can still fill or be cancelled.
func (o *Order) IsPending() bool {
	return o.State == OrderStatePending
}

// Transition moves the order to a terminal state. Only pending orders may
// transition.
func (o *Order) Transition(to OrderState, at time.Time) error {
	if o.State != OrderStatePending {
		return fmt.Errorf("%w: order %s is %s", ErrOrderNotPending, o.OrderID, o.State)
	}
	switch to {
	case OrderStateExecuted:
		o.ExecutedAt = &at
	case OrderStateCancelled:
		o.CancelledAt = &at
	default:
		return fmt.Errorf("invalid order transition %s -> %s", o.State, to)
	}
	o.State = to
	return nil
}

// Clone returns a copy that shares no pointers with o.
func (o *Order) Clone() *Order {
	c := *o
	if o.LimitPrice != nil {
		p := *o.LimitPrice
		c.LimitPrice = &p
	}
	if o.ExecutedAt != nil {
		t := *o.ExecutedAt
		c.ExecutedAt = &t
	}
	if o.ExecutionPrice != nil {
		p := *o.ExecutionPrice
		c.ExecutionPrice = &p
	}
	if o.ExecutedCommission != nil {
		p := *o.ExecutedCommission
		c.ExecutedCommission = &p
	}
	if o.CancelledAt != nil {
		t := *o.CancelledAt
		c.CancelledAt = &t
	}
	return &c
}
