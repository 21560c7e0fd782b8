package handler

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/service"
)

// AccountHandler handles HTTP requests for sandbox accounts and their
// holdings.
type AccountHandler struct {
	accountSvc   *service.AccountService
	operationSvc *service.OperationService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountSvc *service.AccountService, operationSvc *service.OperationService) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc, operationSvc: operationSvc}
}

// openAccountRequest is the JSON request body for POST /accounts.
type openAccountRequest struct {
	Name           string `json:"name"`
	InitialCapital string `json:"initial_capital"`
	Currency       string `json:"currency"`
}

// payInRequest is the JSON request body for POST /accounts/{id}/pay-in.
type payInRequest struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type accountResponse struct {
	AccountID      string         `json:"account_id"`
	Name           string         `json:"name"`
	Currency       string         `json:"currency"`
	InitialCapital domain.Money   `json:"initial_capital"`
	Status         string         `json:"status"`
	Cash           []cashResponse `json:"cash"`
	OpenedAt       string         `json:"opened_at"`
	ClosedAt       *string        `json:"closed_at"`
}

type cashResponse struct {
	Currency  string       `json:"currency"`
	Total     domain.Money `json:"total"`
	Blocked   domain.Money `json:"blocked"`
	Available domain.Money `json:"available"`
}

type operationResponse struct {
	OperationID  string       `json:"operation_id"`
	InstrumentID string       `json:"figi,omitempty"`
	OrderID      string       `json:"order_id,omitempty"`
	Kind         string       `json:"operation_type"`
	Direction    string       `json:"direction,omitempty"`
	State        string       `json:"state"`
	Payment      domain.Money `json:"payment"`
	Price        domain.Money `json:"price"`
	Quantity     int64        `json:"quantity"`
	Date         string       `json:"date"`
}

func buildAccountResponse(a *domain.Account) accountResponse {
	cash := make([]cashResponse, 0, len(a.Cash))
	for _, cur := range sortedCurrencies(a) {
		cb := a.Cash[cur]
		cash = append(cash, cashResponse{
			Currency:  cur,
			Total:     cb.Total,
			Blocked:   cb.Blocked,
			Available: cb.Available(),
		})
	}
	return accountResponse{
		AccountID:      a.AccountID,
		Name:           a.Name,
		Currency:       a.Currency,
		InitialCapital: a.InitialCapital,
		Status:         string(a.Status),
		Cash:           cash,
		OpenedAt:       formatTime(a.OpenedAt),
		ClosedAt:       formatTimePtr(a.ClosedAt),
	}
}

func buildOperationResponses(ops []*domain.Operation) []operationResponse {
	result := make([]operationResponse, len(ops))
	for i, op := range ops {
		result[i] = operationResponse{
			OperationID:  op.OperationID,
			InstrumentID: op.InstrumentID,
			OrderID:      op.OrderID,
			Kind:         string(op.Kind),
			Direction:    string(op.Direction),
			State:        string(op.State),
			Payment:      op.Payment,
			Price:        op.Price,
			Quantity:     op.Quantity,
			Date:         formatTime(op.Date),
		}
	}
	return result
}

// Open handles POST /accounts.
func (h *AccountHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openAccountRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	acc, err := h.accountSvc.Open(r.Context(), service.OpenAccountRequest{
		Name:           req.Name,
		InitialCapital: req.InitialCapital,
		Currency:       req.Currency,
	})
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildAccountResponse(acc))
}

// List handles GET /accounts.
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts := h.accountSvc.List()
	result := make([]accountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = buildAccountResponse(a)
	}
	WriteJSON(w, http.StatusOK, map[string]any{"accounts": result})
}

// Get handles GET /accounts/{account_id}.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	acc, err := h.accountSvc.Get(chi.URLParam(r, "account_id"))
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildAccountResponse(acc))
}

// Close handles DELETE /accounts/{account_id}.
func (h *AccountHandler) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.accountSvc.Close(r.Context(), chi.URLParam(r, "account_id")); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PayIn handles POST /accounts/{account_id}/pay-in.
func (h *AccountHandler) PayIn(w http.ResponseWriter, r *http.Request) {
	var req payInRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	balance, err := h.accountSvc.PayIn(r.Context(), chi.URLParam(r, "account_id"), req.Amount, req.Currency)
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]domain.Money{"balance": balance})
}

// GetPositions handles GET /accounts/{account_id}/positions.
func (h *AccountHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.operationSvc.GetPositions(chi.URLParam(r, "account_id"))
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, positions)
}

// GetPortfolio handles GET /accounts/{account_id}/portfolio.
func (h *AccountHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	portfolio, err := h.operationSvc.GetPortfolio(chi.URLParam(r, "account_id"))
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, portfolio)
}

// GetOperations handles GET /accounts/{account_id}/operations.
func (h *AccountHandler) GetOperations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ops, err := h.operationSvc.GetOperations(chi.URLParam(r, "account_id"), q.Get("instrument_id"), q.Get("state"))
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"operations": buildOperationResponses(ops)})
}

func sortedCurrencies(a *domain.Account) []string {
	keys := make([]string, 0, len(a.Cash))
	for k := range a.Cash {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
