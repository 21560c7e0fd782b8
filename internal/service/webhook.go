package service

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/events"
	"github.com/efreitasn/papertrade/internal/store"
)

// validWebhookEvents lists the subscribable event types.
var validWebhookEvents = func() map[string]bool {
	m := map[string]bool{store.EventAll: true}
	for _, t := range events.ValidTypes {
		m[t] = true
	}
	return m
}()

// UpsertWebhookRequest represents the input for webhook registration.
type UpsertWebhookRequest struct {
	AccountID string
	URL       string
	Events    []string
}

// AccountChecker reports whether an account exists.
type AccountChecker interface {
	GetAccount(accountID string) (*domain.Account, error)
}

// WebhookService handles webhook subscriptions. Delivery is done by
// events.Webhook, which reads the same store.
type WebhookService struct {
	store    *store.WebhookStore
	accounts AccountChecker
	now      func() time.Time
}

// NewWebhookService creates a new WebhookService.
func NewWebhookService(webhookStore *store.WebhookStore, accounts AccountChecker) *WebhookService {
	return &WebhookService{
		store:    webhookStore,
		accounts: accounts,
		now:      time.Now,
	}
}

// Upsert validates the request and creates or updates one subscription per
// event. It reports whether any subscription was newly created.
func (s *WebhookService) Upsert(req UpsertWebhookRequest) ([]*domain.Webhook, bool, error) {
	if err := validateAccountID(req.AccountID); err != nil {
		return nil, false, err
	}
	if _, err := s.accounts.GetAccount(req.AccountID); err != nil {
		return nil, false, err
	}

	if req.URL == "" {
		return nil, false, &domain.ValidationError{Message: "url is required"}
	}
	if len(req.URL) > 2048 {
		return nil, false, &domain.ValidationError{Message: "url must be at most 2048 characters"}
	}
	parsed, err := url.ParseRequestURI(req.URL)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return nil, false, &domain.ValidationError{Message: "url must be a valid absolute URL"}
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return nil, false, &domain.ValidationError{Message: "url must use http or https scheme"}
	}

	if len(req.Events) == 0 {
		return nil, false, &domain.ValidationError{Message: "events must be a non-empty array"}
	}
	seen := make(map[string]bool, len(req.Events))
	deduped := make([]string, 0, len(req.Events))
	for _, event := range req.Events {
		if !validWebhookEvents[event] {
			return nil, false, &domain.ValidationError{
				Message: "Unknown event type: " + event + ". Must be one of: " + strings.Join(events.ValidTypes, ", ") + ", *",
			}
		}
		if !seen[event] {
			seen[event] = true
			deduped = append(deduped, event)
		}
	}

	now := s.now().UTC().Truncate(time.Second)
	anyCreated := false
	webhooks := make([]*domain.Webhook, 0, len(deduped))
	for _, event := range deduped {
		stored, created := s.store.Upsert(&domain.Webhook{
			WebhookID: uuid.NewString(),
			AccountID: req.AccountID,
			Event:     event,
			URL:       req.URL,
			CreatedAt: now,
			UpdatedAt: now,
		})
		anyCreated = anyCreated || created
		webhooks = append(webhooks, stored)
	}
	return webhooks, anyCreated, nil
}

// List returns the account's subscriptions.
func (s *WebhookService) List(accountID string) ([]*domain.Webhook, error) {
	if err := validateAccountID(accountID); err != nil {
		return nil, err
	}
	if _, err := s.accounts.GetAccount(accountID); err != nil {
		return nil, err
	}
	return s.store.ListByAccount(accountID), nil
}

// Delete removes a subscription by ID.
func (s *WebhookService) Delete(webhookID string) error {
	return s.store.Delete(webhookID)
}
