package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
)

// SubmitOrderRequest represents the input for order submission.
type SubmitOrderRequest struct {
	AccountID    string
	OrderID      string // optional, generated when empty
	InstrumentID string
	Direction    string
	Kind         string
	Quantity     int64   // lots
	Price        *string // required for limit, must be nil for market
}

// OrderService handles order submission, retrieval, cancellation and
// listing.
type OrderService struct {
	engine *engine.Engine
}

// NewOrderService creates a new OrderService.
func NewOrderService(eng *engine.Engine) *OrderService {
	return &OrderService{engine: eng}
}

// SubmitOrder validates the request and hands it to the engine, which
// reserves funds or units and queues the order for the next tick.
func (s *OrderService) SubmitOrder(ctx context.Context, req SubmitOrderRequest) (*domain.Order, error) {
	if err := validateAccountID(req.AccountID); err != nil {
		return nil, err
	}
	if req.OrderID != "" && !orderIDRegex.MatchString(req.OrderID) {
		return nil, &domain.ValidationError{Message: "order_id must match ^[a-zA-Z0-9_.:-]{1,64}$"}
	}
	if err := validateInstrumentID(req.InstrumentID); err != nil {
		return nil, err
	}

	direction := domain.Direction(strings.ToLower(req.Direction))
	if direction != domain.DirectionBuy && direction != domain.DirectionSell {
		return nil, &domain.ValidationError{Message: "direction must be 'buy' or 'sell'"}
	}

	kind := domain.OrderKind(strings.ToLower(req.Kind))
	switch kind {
	case domain.OrderKindLimit, domain.OrderKindMarket:
	case domain.OrderKindBestPrice:
		return nil, domain.UnsupportedError("bestprice order kind")
	default:
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("Unknown order kind: %s. Must be one of: limit, market", req.Kind),
		}
	}

	if req.Quantity <= 0 {
		return nil, &domain.ValidationError{Message: "quantity must be a positive integer"}
	}

	var limit *domain.Money
	switch {
	case kind == domain.OrderKindLimit && req.Price == nil:
		return nil, &domain.ValidationError{Message: "price is required for limit orders"}
	case kind == domain.OrderKindMarket && req.Price != nil:
		return nil, &domain.ValidationError{Message: "price must not be set for market orders"}
	case req.Price != nil:
		p, err := parseAmount("price", *req.Price, "")
		if err != nil {
			return nil, err
		}
		if p.Sign() <= 0 {
			return nil, &domain.ValidationError{Message: "price must be > 0"}
		}
		limit = &p
	}

	return s.engine.SubmitOrder(ctx, engine.SubmitRequest{
		AccountID:    req.AccountID,
		OrderID:      req.OrderID,
		InstrumentID: req.InstrumentID,
		Direction:    direction,
		Kind:         kind,
		QuantityLots: req.Quantity,
		LimitPrice:   limit,
	})
}

// GetOrderState returns an order of the account in any state.
func (s *OrderService) GetOrderState(accountID, orderID string) (*domain.Order, error) {
	if err := validateAccountID(accountID); err != nil {
		return nil, err
	}
	return s.engine.GetOrder(accountID, orderID)
}

// CancelOrder cancels a pending order and releases its reservation.
func (s *OrderService) CancelOrder(ctx context.Context, accountID, orderID string) (*domain.Order, error) {
	if err := validateAccountID(accountID); err != nil {
		return nil, err
	}
	return s.engine.CancelOrder(ctx, accountID, orderID)
}

// ListOrders returns the account's pending orders in submission order.
func (s *OrderService) ListOrders(accountID string) ([]*domain.Order, error) {
	if err := validateAccountID(accountID); err != nil {
		return nil, err
	}
	return s.engine.ListOrders(accountID)
}

// ReplaceOrder is not modelled.
func (s *OrderService) ReplaceOrder(ctx context.Context, accountID, orderID string) (*domain.Order, error) {
	return s.engine.ReplaceOrder(ctx, accountID, orderID)
}

// PostStopOrder is not modelled.
func (s *OrderService) PostStopOrder(context.Context, string) error {
	return domain.UnsupportedError("stop orders")
}

// GetMarginAttributes is not modelled.
func (s *OrderService) GetMarginAttributes(string) error {
	return domain.UnsupportedError("margin attributes")
}
