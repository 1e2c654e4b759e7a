package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/commandledger/internal/domain"
	"github.com/efreitasn/commandledger/internal/service"
)

// WebhookHandler serves the /webhooks subscription endpoints.
type WebhookHandler struct {
	webhookSvc *service.WebhookService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(webhookSvc *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookSvc: webhookSvc}
}

type upsertWebhookRequest struct {
	AccountID string   `json:"account_id"`
	URL       string   `json:"url"`
	Events    []string `json:"events"`
}

type webhookResponse struct {
	WebhookID string `json:"webhook_id"`
	AccountID string `json:"account_id"`
	Event     string `json:"event"`
	URL       string `json:"url"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func newWebhookResponse(wh *domain.Webhook) webhookResponse {
	return webhookResponse{
		WebhookID: wh.WebhookID,
		AccountID: string(wh.AccountID),
		Event:     wh.Event,
		URL:       wh.URL,
		CreatedAt: wh.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt: wh.UpdatedAt.UTC().Format(timeLayout),
	}
}

// writeWebhooks writes {"webhooks": [...]} with the given status.
func writeWebhooks(w http.ResponseWriter, status int, webhooks []*domain.Webhook) {
	out := make([]webhookResponse, 0, len(webhooks))
	for _, wh := range webhooks {
		out = append(out, newWebhookResponse(wh))
	}
	WriteJSON(w, status, struct {
		Webhooks []webhookResponse `json:"webhooks"`
	}{out})
}

// Upsert handles POST /webhooks. It answers 201 when at least one
// subscription is new and 200 when every event was already subscribed.
func (h *WebhookHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertWebhookRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	webhooks, created, err := h.webhookSvc.Upsert(service.UpsertWebhookRequest{
		AccountID: domain.AccountID(req.AccountID),
		URL:       req.URL,
		Events:    req.Events,
	})
	if err != nil {
		writeWebhookError(w, err)
		return
	}

	if created {
		writeWebhooks(w, http.StatusCreated, webhooks)
		return
	}
	writeWebhooks(w, http.StatusOK, webhooks)
}

// List handles GET /webhooks?account_id=.
func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	account := r.URL.Query().Get("account_id")
	if account == "" {
		WriteError(w, http.StatusBadRequest, "validation_error", "account_id query parameter is required")
		return
	}

	webhooks, err := h.webhookSvc.List(domain.AccountID(account))
	if err != nil {
		writeWebhookError(w, err)
		return
	}
	writeWebhooks(w, http.StatusOK, webhooks)
}

// Get handles GET /webhooks/{webhook_id}.
func (h *WebhookHandler) Get(w http.ResponseWriter, r *http.Request) {
	wh, err := h.webhookSvc.Get(chi.URLParam(r, "webhook_id"))
	if err != nil {
		writeWebhookError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, newWebhookResponse(wh))
}

// Delete handles DELETE /webhooks/{webhook_id}.
func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.webhookSvc.Delete(chi.URLParam(r, "webhook_id")); err != nil {
		writeWebhookError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeWebhookError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
	case errors.Is(err, domain.ErrWebhookNotFound):
		WriteError(w, http.StatusNotFound, "webhook_not_found", "Webhook not found")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
