package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/service"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orderSvc *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// submitOrderRequest is the JSON request body for POST /accounts/{id}/orders.
// Price is a decimal string.
type submitOrderRequest struct {
	OrderID      string  `json:"order_id"`
	InstrumentID string  `json:"instrument_id"`
	Direction    string  `json:"direction"`
	Kind         string  `json:"kind"`
	Quantity     int64   `json:"quantity"`
	Price        *string `json:"price"`
}

// orderResponse is the JSON form of an order. Nullable fields use
// pointers and are always present.
type orderResponse struct {
	OrderID            string        `json:"order_id"`
	AccountID          string        `json:"account_id"`
	InstrumentID       string        `json:"instrument_id"`
	Direction          string        `json:"direction"`
	Kind               string        `json:"kind"`
	State              string        `json:"state"`
	QuantityLots       int64         `json:"quantity_lots"`
	LotSize            int64         `json:"lot_size"`
	LimitPrice         *domain.Money `json:"limit_price"`
	InitialOrderPrice  domain.Money  `json:"initial_order_price"`
	InitialCommission  domain.Money  `json:"initial_commission"`
	TotalOrderAmount   domain.Money  `json:"total_order_amount"`
	ExecutionPrice     *domain.Money `json:"execution_price"`
	ExecutedCommission *domain.Money `json:"executed_commission"`
	CreatedAt          string        `json:"created_at"`
	ExecutedAt         *string       `json:"executed_at"`
	CancelledAt        *string       `json:"cancelled_at"`
}

func buildOrderResponse(o *domain.Order) orderResponse {
	return orderResponse{
		OrderID:            o.OrderID,
		AccountID:          o.AccountID,
		InstrumentID:       o.InstrumentID,
		Direction:          string(o.Direction),
		Kind:               string(o.Kind),
		State:              string(o.State),
		QuantityLots:       o.QuantityLots,
		LotSize:            o.LotSize,
		LimitPrice:         o.LimitPrice,
		InitialOrderPrice:  o.InitialOrderPrice,
		InitialCommission:  o.InitialCommission,
		TotalOrderAmount:   o.TotalOrderAmount,
		ExecutionPrice:     o.ExecutionPrice,
		ExecutedCommission: o.ExecutedCommission,
		CreatedAt:          formatTime(o.CreatedAt),
		ExecutedAt:         formatTimePtr(o.ExecutedAt),
		CancelledAt:        formatTimePtr(o.CancelledAt),
	}
}

func buildOrderResponses(orders []*domain.Order) []orderResponse {
	result := make([]orderResponse, len(orders))
	for i, o := range orders {
		result[i] = buildOrderResponse(o)
	}
	return result
}

// SubmitOrder handles POST /accounts/{account_id}/orders.
func (h *OrderHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	order, err := h.orderSvc.SubmitOrder(r.Context(), service.SubmitOrderRequest{
		AccountID:    chi.URLParam(r, "account_id"),
		OrderID:      req.OrderID,
		InstrumentID: req.InstrumentID,
		Direction:    req.Direction,
		Kind:         req.Kind,
		Quantity:     req.Quantity,
		Price:        req.Price,
	})
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildOrderResponse(order))
}

// ListOrders handles GET /accounts/{account_id}/orders.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderSvc.ListOrders(chi.URLParam(r, "account_id"))
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"orders": buildOrderResponses(orders)})
}

// GetOrderState handles GET /accounts/{account_id}/orders/{order_id}.
func (h *OrderHandler) GetOrderState(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderSvc.GetOrderState(chi.URLParam(r, "account_id"), chi.URLParam(r, "order_id"))
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// CancelOrder handles DELETE /accounts/{account_id}/orders/{order_id}.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderSvc.CancelOrder(r.Context(), chi.URLParam(r, "account_id"), chi.URLParam(r, "order_id"))
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// ReplaceOrder handles PUT /accounts/{account_id}/orders/{order_id}.
func (h *OrderHandler) ReplaceOrder(w http.ResponseWriter, r *http.Request) {
	_, err := h.orderSvc.ReplaceOrder(r.Context(), chi.URLParam(r, "account_id"), chi.URLParam(r, "order_id"))
	mapError(w, err)
}

// PostStopOrder handles POST /accounts/{account_id}/stop-orders.
func (h *OrderHandler) PostStopOrder(w http.ResponseWriter, r *http.Request) {
	mapError(w, h.orderSvc.PostStopOrder(r.Context(), chi.URLParam(r, "account_id")))
}

// GetMarginAttributes handles GET /accounts/{account_id}/margin.
func (h *OrderHandler) GetMarginAttributes(w http.ResponseWriter, r *http.Request) {
	mapError(w, h.orderSvc.GetMarginAttributes(chi.URLParam(r, "account_id")))
}
