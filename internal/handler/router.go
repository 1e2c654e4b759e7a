package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/efreitasn/commandledger/internal/domain"
	"github.com/efreitasn/commandledger/internal/ledger"
	"github.com/efreitasn/commandledger/internal/service"
)

const headerRequestID = "X-Request-Id"

// NewRouter wires the ledger and webhook endpoints behind request-id,
// logging, panic recovery and Content-Type middleware.
func NewRouter(
	l *ledger.Ledger,
	webhookSvc *service.WebhookService,
	logger *slog.Logger,
) chi.Router {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(requestLogging(logger))
	r.Use(middleware.Recoverer)

	commandH := NewCommandHandler(l)
	callH := NewCallHandler(l)
	webhookH := NewWebhookHandler(webhookSvc)

	// Health check.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Calls that may carry a deposit check their own body so a rejection
	// can still refund it.
	r.Post("/commands", commandH.AddCommand)
	r.Get("/commands", commandH.ListCommands)
	r.Get("/commands/{command_id}", commandH.GetCommand)
	r.Post("/commands/{command_id}/certificates", commandH.Certify(domain.CertificationCertificate))
	r.Post("/commands/{command_id}/stages", commandH.Certify(domain.CertificationStage))
	r.Post("/commands/{command_id}/cancel", commandH.Cancel)
	r.Get("/accounts/{account_id}/receipts", commandH.Receipts)
	r.Post("/call/{method}", callH.Call)

	r.Group(func(r chi.Router) {
		r.Use(contentTypeJSON)

		r.Post("/init", commandH.Init)

		r.Post("/webhooks", webhookH.Upsert)
		r.Get("/webhooks", webhookH.List)
		r.Get("/webhooks/{webhook_id}", webhookH.Get)
		r.Delete("/webhooks/{webhook_id}", webhookH.Delete)
	})

	return r
}

// requestID echoes the caller's X-Request-Id or assigns a new one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.New().String()
			r.Header.Set(headerRequestID, id)
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r)
	})
}

// requestLogging logs one line per request once the handler returns.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(r.Context(), level, "request",
				slog.String("request_id", r.Header.Get(headerRequestID)),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("caller", r.Header.Get(headerCallerID)),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// contentTypeJSON rejects POST, PUT and PATCH bodies that are not
// declared as JSON.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hasBody := r.ContentLength != 0
		if hasBody && (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) {
			if !isJSON(r.Header.Get("Content-Type")) {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
