package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/service"
)

// WebhookHandler serves subscription management for event delivery.
type WebhookHandler struct {
	webhookSvc *service.WebhookService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(webhookSvc *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookSvc: webhookSvc}
}

// subscribeRequest is the JSON body of POST /webhooks. Events may hold
// "*" to receive every event of the account.
type subscribeRequest struct {
	AccountID string   `json:"account_id"`
	URL       string   `json:"url"`
	Events    []string `json:"events"`
}

type subscriptionResponse struct {
	WebhookID string `json:"webhook_id"`
	AccountID string `json:"account_id"`
	Event     string `json:"event"`
	URL       string `json:"url"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type webhookListResponse struct {
	Webhooks []subscriptionResponse `json:"webhooks"`
}

func newWebhookList(hooks []*domain.Webhook) webhookListResponse {
	out := webhookListResponse{Webhooks: make([]subscriptionResponse, 0, len(hooks))}
	for _, h := range hooks {
		out.Webhooks = append(out.Webhooks, subscriptionResponse{
			WebhookID: h.WebhookID,
			AccountID: h.AccountID,
			Event:     h.Event,
			URL:       h.URL,
			CreatedAt: formatTime(h.CreatedAt),
			UpdatedAt: formatTime(h.UpdatedAt),
		})
	}
	return out
}

// Upsert handles POST /webhooks. It answers 201 when at least one
// subscription is new and 200 when all of them already existed.
func (h *WebhookHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	hooks, created, err := h.webhookSvc.Upsert(service.UpsertWebhookRequest(req))
	if err != nil {
		mapError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	WriteJSON(w, status, newWebhookList(hooks))
}

// List handles GET /webhooks?account_id=.
func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		WriteError(w, http.StatusBadRequest, "validation_error", "account_id query parameter is required")
		return
	}
	hooks, err := h.webhookSvc.List(accountID)
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, newWebhookList(hooks))
}

// Delete handles DELETE /webhooks/{webhook_id}.
func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.webhookSvc.Delete(chi.URLParam(r, "webhook_id")); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
