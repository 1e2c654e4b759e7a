package service

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/commandledger/internal/domain"
	"github.com/efreitasn/commandledger/internal/store"
)

// Webhook event types.
const (
	EventCommandCreated   = "command.created"
	EventCommandCertified = "command.certified"
	EventCommandCancelled = "command.cancelled"
)

// Valid webhook event types.
var validWebhookEvents = map[string]bool{
	EventCommandCreated:   true,
	EventCommandCertified: true,
	EventCommandCancelled: true,
}

// UpsertWebhookRequest represents the input for webhook registration.
type UpsertWebhookRequest struct {
	AccountID domain.AccountID
	URL       string
	Events    []string
}

// WebhookService handles webhook CRUD and delivers command events to the
// owning account's subscriptions.
type WebhookService struct {
	store    *store.WebhookStore
	client   *http.Client
	logger   *slog.Logger
	inflight sync.WaitGroup
}

// NewWebhookService creates a new WebhookService with the given dependencies.
func NewWebhookService(
	webhookStore *store.WebhookStore,
	webhookTimeout time.Duration,
	logger *slog.Logger,
) *WebhookService {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookService{
		store: webhookStore,
		client: &http.Client{
			Timeout: webhookTimeout,
		},
		logger: logger,
	}
}

// Upsert validates the request and creates or updates webhook subscriptions.
// Returns the resulting webhooks, whether any new subscriptions were created, and any error.
func (s *WebhookService) Upsert(req UpsertWebhookRequest) ([]*domain.Webhook, bool, error) {
	if req.AccountID == "" {
		return nil, false, &domain.ValidationError{Message: "account_id is required"}
	}

	if req.URL == "" {
		return nil, false, &domain.ValidationError{Message: "url is required"}
	}
	if len(req.URL) > 2048 {
		return nil, false, &domain.ValidationError{Message: "url must be at most 2048 characters"}
	}
	parsed, err := url.ParseRequestURI(req.URL)
	if err != nil || !parsed.IsAbs() {
		return nil, false, &domain.ValidationError{Message: "url must be a valid absolute URL"}
	}
	if parsed.Scheme != "https" {
		return nil, false, &domain.ValidationError{Message: "url must use https scheme"}
	}

	if len(req.Events) == 0 {
		return nil, false, &domain.ValidationError{Message: "events must be a non-empty array"}
	}

	// Deduplicate events while preserving order.
	seen := make(map[string]bool, len(req.Events))
	events := make([]string, 0, len(req.Events))
	for _, event := range req.Events {
		if !validWebhookEvents[event] {
			return nil, false, &domain.ValidationError{
				Message: "Unknown event type: " + event + ". Must be one of: " +
					strings.Join([]string{EventCommandCreated, EventCommandCertified, EventCommandCancelled}, ", "),
			}
		}
		if !seen[event] {
			seen[event] = true
			events = append(events, event)
		}
	}

	now := time.Now().UTC().Truncate(time.Second)
	anyCreated := false
	webhooks := make([]*domain.Webhook, 0, len(events))

	for _, event := range events {
		w := &domain.Webhook{
			WebhookID: uuid.New().String(),
			AccountID: req.AccountID,
			Event:     event,
			URL:       req.URL,
			CreatedAt: now,
			UpdatedAt: now,
		}

		stored, created := s.store.Upsert(w)
		anyCreated = anyCreated || created
		webhooks = append(webhooks, stored)
	}

	return webhooks, anyCreated, nil
}

// List returns all webhook subscriptions of an account.
func (s *WebhookService) List(account domain.AccountID) ([]*domain.Webhook, error) {
	if account == "" {
		return nil, &domain.ValidationError{Message: "account_id is required"}
	}
	return s.store.ListByAccount(account), nil
}

// Get returns a webhook subscription by ID.
func (s *WebhookService) Get(webhookID string) (*domain.Webhook, error) {
	return s.store.Get(webhookID)
}

// Delete removes a webhook subscription by ID.
func (s *WebhookService) Delete(webhookID string) error {
	return s.store.Delete(webhookID)
}

// commandEventPayload is the JSON body of every command.* webhook.
type commandEventPayload struct {
	Event     string           `json:"event"`
	Timestamp string           `json:"timestamp"`
	Data      commandEventData `json:"data"`
}

type commandEventData struct {
	CommandID       string  `json:"command_id"`
	OwnerID         string  `json:"owner_id"`
	NameProduct     string  `json:"name_product"`
	Side            string  `json:"side"`
	AmountProduct   string  `json:"amount_product"`
	PricePerProduct string  `json:"price_per_product"`
	Status          string  `json:"status"`
	Kind            string  `json:"kind,omitempty"`
	Signer          string  `json:"signer,omitempty"`
	Certificates    *int    `json:"certificates,omitempty"`
	Stages          *int    `json:"stages,omitempty"`
	Released        *string `json:"released,omitempty"`
}

// CommandCreated notifies the owner that a command was added.
func (s *WebhookService) CommandCreated(c *domain.Command) {
	s.dispatch(EventCommandCreated, c, s.commandData(c))
}

// CommandCertified notifies the owner that someone signed off on a command.
func (s *WebhookService) CommandCertified(c *domain.Command, kind domain.CertificationKind, signer domain.AccountID) {
	data := s.commandData(c)
	data.Kind = string(kind)
	data.Signer = string(signer)
	if c.Quality != nil {
		certificates, stages := len(c.Quality.Certificate), len(c.Quality.Stage)
		data.Certificates = &certificates
		data.Stages = &stages
	}
	s.dispatch(EventCommandCertified, c, data)
}

// CommandCancelled notifies the owner that a command was cancelled and its
// deposit released.
func (s *WebhookService) CommandCancelled(c *domain.Command) {
	data := s.commandData(c)
	released := c.Deposit.String()
	data.Released = &released
	s.dispatch(EventCommandCancelled, c, data)
}

// Wait blocks until all in-flight deliveries finish or ctx is done.
func (s *WebhookService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *WebhookService) commandData(c *domain.Command) commandEventData {
	return commandEventData{
		CommandID:       c.CommandID,
		OwnerID:         string(c.OwnerID),
		NameProduct:     c.NameProduct,
		Side:            string(c.Side()),
		AmountProduct:   c.AmountProduct.String(),
		PricePerProduct: c.PricePerProduct.String(),
		Status:          string(c.Status),
	}
}

// dispatch sends the event to the owner's subscription, if any.
// Fire-and-forget: delivery failures are logged, never returned.
func (s *WebhookService) dispatch(event string, c *domain.Command, data commandEventData) {
	wh := s.store.Subscription(c.OwnerID, event)
	if wh == nil {
		return
	}

	payload := commandEventPayload{
		Event:     event,
		Timestamp: time.Now().UTC().Truncate(time.Second).Format(time.RFC3339),
		Data:      data,
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.deliver(wh, event, payload)
	}()
}

// deliver sends the webhook payload via HTTP POST with the required headers.
func (s *WebhookService) deliver(wh *domain.Webhook, eventType string, payload commandEventPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("webhook payload encoding failed", slog.String("webhook_id", wh.WebhookID), slog.String("error", err.Error()))
		return
	}

	req, err := http.NewRequest(http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		s.logger.Warn("webhook request build failed", slog.String("webhook_id", wh.WebhookID), slog.String("error", err.Error()))
		return
	}

	deliveryID := uuid.New().String()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", deliveryID)
	req.Header.Set("X-Webhook-Id", wh.WebhookID)
	req.Header.Set("X-Event-Type", eventType)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("webhook delivery failed",
			slog.String("webhook_id", wh.WebhookID),
			slog.String("delivery_id", deliveryID),
			slog.String("event", eventType),
			slog.String("error", err.Error()),
		)
		return
	}
	resp.Body.Close()

	s.logger.Debug("webhook delivered",
		slog.String("webhook_id", wh.WebhookID),
		slog.String("delivery_id", deliveryID),
		slog.String("event", eventType),
		slog.Int("status", resp.StatusCode),
	)
}
