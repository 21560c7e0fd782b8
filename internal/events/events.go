// Package events publishes engine notifications to external sinks.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
)

// Event types.
const (
	OrderExecuted   = "order.executed"
	OrderCancelled  = "order.cancelled"
	OperationPosted = "operation.posted"
)

// ValidTypes lists every event type a subscriber may ask for.
var ValidTypes = []string{OrderExecuted, OrderCancelled, OperationPosted}

// Event is a notification about one account. Exactly one of Order and
// Operation is set.
type Event struct {
	Type       string
	AccountID  string
	OccurredAt time.Time
	Order      *domain.Order
	Operation  *domain.Operation
}

// Publisher delivers events. Publish must not block on slow consumers for
// longer than its own timeout.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to several publishers and joins their errors.
type Multi []Publisher

// Publish implements Publisher.
func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Envelope is the JSON form of an event shared by every sink.
type Envelope struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
	AccountID string `json:"account_id"`
	Data      any    `json:"data"`
}

// OrderData is the payload of order events.
type OrderData struct {
	OrderID            string        `json:"order_id"`
	InstrumentID       string        `json:"instrument_id"`
	Direction          string        `json:"direction"`
	Kind               string        `json:"kind"`
	State              string        `json:"state"`
	QuantityLots       int64         `json:"quantity_lots"`
	LotSize            int64         `json:"lot_size"`
	InitialOrderPrice  domain.Money  `json:"initial_order_price"`
	TotalOrderAmount   domain.Money  `json:"total_order_amount"`
	ExecutionPrice     *domain.Money `json:"execution_price,omitempty"`
	ExecutedCommission *domain.Money `json:"executed_commission,omitempty"`
}

// OperationData is the payload of operation events.
type OperationData struct {
	OperationID  string       `json:"operation_id"`
	OrderID      string       `json:"order_id,omitempty"`
	InstrumentID string       `json:"instrument_id,omitempty"`
	Kind         string       `json:"kind"`
	Payment      domain.Money `json:"payment"`
	Price        domain.Money `json:"price"`
	Quantity     int64        `json:"quantity"`
	Date         string       `json:"date"`
}

// NewEnvelope converts e to its wire form.
func NewEnvelope(e Event) Envelope {
	env := Envelope{
		Event:     e.Type,
		Timestamp: e.OccurredAt.UTC().Format(time.RFC3339Nano),
		AccountID: e.AccountID,
	}
	switch {
	case e.Order != nil:
		o := e.Order
		env.Data = OrderData{
			OrderID:            o.OrderID,
			InstrumentID:       o.InstrumentID,
			Direction:          string(o.Direction),
			Kind:               string(o.Kind),
			State:              string(o.State),
			QuantityLots:       o.QuantityLots,
			LotSize:            o.LotSize,
			InitialOrderPrice:  o.InitialOrderPrice,
			TotalOrderAmount:   o.TotalOrderAmount,
			ExecutionPrice:     o.ExecutionPrice,
			ExecutedCommission: o.ExecutedCommission,
		}
	case e.Operation != nil:
		op := e.Operation
		env.Data = OperationData{
			OperationID:  op.OperationID,
			OrderID:      op.OrderID,
			InstrumentID: op.InstrumentID,
			Kind:         string(op.Kind),
			Payment:      op.Payment,
			Price:        op.Price,
			Quantity:     op.Quantity,
			Date:         op.Date.UTC().Format(time.RFC3339Nano),
		}
	}
	return env
}
