package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/efreitasn/papertrade/internal/domain"
)

// Subscriptions returns the webhooks an account has for an event type.
type Subscriptions interface {
	Subscribers(accountID, event string) []*domain.Webhook
}

// Webhook posts events to subscribed account URLs. Deliveries run in the
// background and failures are only logged.
type Webhook struct {
	subs   Subscriptions
	client *http.Client
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewWebhook creates a webhook publisher with the given per-request timeout.
func NewWebhook(subs Subscriptions, timeout time.Duration, logger *zap.Logger) *Webhook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Webhook{
		subs:   subs,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Publish implements Publisher.
func (w *Webhook) Publish(_ context.Context, e Event) error {
	hooks := w.subs.Subscribers(e.AccountID, e.Type)
	if len(hooks) == 0 {
		return nil
	}
	body, err := json.Marshal(NewEnvelope(e))
	if err != nil {
		return fmt.Errorf("encode %s event: %w", e.Type, err)
	}
	for _, wh := range hooks {
		w.wg.Add(1)
		go func(wh *domain.Webhook) {
			defer w.wg.Done()
			w.deliver(wh, e.Type, body)
		}(wh)
	}
	return nil
}

// Wait blocks until in-flight deliveries finish.
func (w *Webhook) Wait() {
	w.wg.Wait()
}

func (w *Webhook) deliver(wh *domain.Webhook, eventType string, body []byte) {
	req, err := http.NewRequest(http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		w.logger.Warn("webhook request", zap.String("webhook_id", wh.WebhookID), zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", uuid.New().String())
	req.Header.Set("X-Webhook-Id", wh.WebhookID)
	req.Header.Set("X-Event-Type", eventType)

	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Warn("webhook delivery failed",
			zap.String("webhook_id", wh.WebhookID),
			zap.String("event", eventType),
			zap.Error(err),
		)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		w.logger.Warn("webhook rejected",
			zap.String("webhook_id", wh.WebhookID),
			zap.String("event", eventType),
			zap.Int("status", resp.StatusCode),
		)
	}
}
