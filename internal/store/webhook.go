package store

import (
	"sort"
	"sync"

	"github.com/efreitasn/papertrade/internal/domain"
)

// EventAll subscribes a webhook to every event of its account.
const EventAll = "*"

// WebhookStore holds webhook subscriptions. A subscription is unique per
// (account, event) pair; re-subscribing moves the URL and keeps the ID.
type WebhookStore struct {
	mu    sync.RWMutex
	byID  map[string]*domain.Webhook
	byKey map[webhookKey]*domain.Webhook
}

type webhookKey struct {
	accountID string
	event     string
}

// NewWebhookStore creates an empty WebhookStore.
func NewWebhookStore() *WebhookStore {
	return &WebhookStore{
		byID:  make(map[string]*domain.Webhook),
		byKey: make(map[webhookKey]*domain.Webhook),
	}
}

// Upsert stores w, or updates the URL of the existing subscription for the
// same account and event. It returns the stored subscription and whether
// it was newly created.
func (s *WebhookStore) Upsert(w *domain.Webhook) (*domain.Webhook, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := webhookKey{w.AccountID, w.Event}
	if existing, ok := s.byKey[key]; ok {
		if existing.URL != w.URL {
			existing.URL = w.URL
			existing.UpdatedAt = w.UpdatedAt
		}
		return existing, false
	}
	s.byID[w.WebhookID] = w
	s.byKey[key] = w
	return w, true
}

// Get returns the subscription with the given ID, or
// domain.ErrWebhookNotFound.
func (s *WebhookStore) Get(id string) (*domain.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrWebhookNotFound
	}
	return w, nil
}

// ListByAccount returns the account's subscriptions ordered by event name.
func (s *WebhookStore) ListByAccount(accountID string) []*domain.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Webhook, 0)
	for key, w := range s.byKey {
		if key.accountID == accountID {
			result = append(result, w)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Event < result[j].Event })
	return result
}

// Subscribers returns the subscriptions that should receive event for the
// account: the exact match first, then the wildcard one.
func (s *WebhookStore) Subscribers(accountID, event string) []*domain.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Webhook
	if w, ok := s.byKey[webhookKey{accountID, event}]; ok {
		result = append(result, w)
	}
	if event != EventAll {
		if w, ok := s.byKey[webhookKey{accountID, EventAll}]; ok {
			result = append(result, w)
		}
	}
	return result
}

// Delete removes a subscription by ID, or returns domain.ErrWebhookNotFound.
func (s *WebhookStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.byID[id]
	if !ok {
		return domain.ErrWebhookNotFound
	}
	delete(s.byID, id)
	delete(s.byKey, webhookKey{w.AccountID, w.Event})
	return nil
}
