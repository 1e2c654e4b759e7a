package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/commandledger/internal/domain"
	"github.com/efreitasn/commandledger/internal/escrow"
	"github.com/efreitasn/commandledger/internal/ledger"
	"github.com/efreitasn/commandledger/internal/store"
)

// Request headers carrying the call context.
const (
	headerCallerID        = "X-Caller-Id"
	headerAttachedDeposit = "X-Attached-Deposit"
)

// CommandHandler handles HTTP requests for ledger endpoints.
type CommandHandler struct {
	ledger *ledger.Ledger
}

// NewCommandHandler creates a new CommandHandler.
func NewCommandHandler(l *ledger.Ledger) *CommandHandler {
	return &CommandHandler{ledger: l}
}

// commandResponse is the JSON form of a command record.
type commandResponse struct {
	CommandID       string              `json:"command_id"`
	NameProduct     string              `json:"name_product"`
	IsSell          bool                `json:"is_sell"`
	AmountProduct   domain.U128         `json:"amount_product"`
	PricePerProduct domain.U128         `json:"price_per_product"`
	Quality         *ledger.QualityJSON `json:"quality"`
	OwnerID         string              `json:"command_owner_id"`
	Status          string              `json:"status"`
	Deposit         domain.U128         `json:"deposit"`
	CreatedAt       string              `json:"created_at"`
	UpdatedAt       string              `json:"updated_at"`
}

func newCommandResponse(c *domain.Command) commandResponse {
	return commandResponse{
		CommandID:       c.CommandID,
		NameProduct:     c.NameProduct,
		IsSell:          c.IsSell,
		AmountProduct:   c.AmountProduct,
		PricePerProduct: c.PricePerProduct,
		Quality:         ledger.NewQualityJSON(c.Quality),
		OwnerID:         string(c.OwnerID),
		Status:          string(c.Status),
		Deposit:         c.Deposit,
		CreatedAt:       c.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:       c.UpdatedAt.UTC().Format(timeLayout),
	}
}

// quoteResponse breaks down an accepted deposit.
type quoteResponse struct {
	Base   domain.U128 `json:"base"`
	Margin domain.U128 `json:"margin"`
	Excess domain.U128 `json:"excess"`
}

func newQuoteResponse(q escrow.Quote) quoteResponse {
	return quoteResponse{Base: q.Base, Margin: q.Margin, Excess: q.Excess}
}

// addCommandResponse is the JSON response for POST /commands.
type addCommandResponse struct {
	CommandID string        `json:"command_id"`
	Quote     quoteResponse `json:"quote"`
}

// commandMutationResponse is returned by certify and cancel.
type commandMutationResponse struct {
	Command commandResponse   `json:"command"`
	Refunds []receiptResponse `json:"refunds"`
}

// listCommandsResponse is the JSON response for GET /commands.
type listCommandsResponse struct {
	Commands []commandResponse `json:"commands"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}

// initRequest is the JSON request body for POST /init.
type initRequest struct {
	OwnerID string `json:"owner_id"`
}

// Init handles POST /init.
func (h *CommandHandler) Init(w http.ResponseWriter, r *http.Request) {
	var req initRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := h.ledger.Init(r.Context(), domain.AccountID(req.OwnerID)); err != nil {
		mapLedgerError(w, err, nil)
		return
	}

	WriteJSON(w, http.StatusCreated, initRequest{OwnerID: req.OwnerID})
}

// AddCommand handles POST /commands.
func (h *CommandHandler) AddCommand(w http.ResponseWriter, r *http.Request) {
	call, err := callFromRequest(r)
	if err != nil {
		mapLedgerError(w, err, nil)
		return
	}
	raw, err := readCallBody(w, r)
	if err != nil {
		mapLedgerError(w, err, h.ledger.Reject(call, "add_command", err))
		return
	}

	res, err := h.ledger.AddCommandJSON(r.Context(), call, raw)
	if err != nil {
		mapLedgerError(w, err, res.Refund)
		return
	}

	WriteJSON(w, http.StatusCreated, addCommandResponse{
		CommandID: res.CommandID,
		Quote:     newQuoteResponse(res.Quote),
	})
}

// GetCommand handles GET /commands/{command_id}.
func (h *CommandHandler) GetCommand(w http.ResponseWriter, r *http.Request) {
	c, err := h.ledger.GetCommand(r.Context(), chi.URLParam(r, "command_id"))
	if err != nil {
		mapLedgerError(w, err, nil)
		return
	}
	WriteJSON(w, http.StatusOK, newCommandResponse(c))
}

// ListCommands handles GET /commands.
func (h *CommandHandler) ListCommands(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page := 1
	if p := q.Get("page"); p != "" {
		var err error
		page, err = strconv.Atoi(p)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "page must be a valid integer")
			return
		}
	}

	limit := 20
	if l := q.Get("limit"); l != "" {
		var err error
		limit, err = strconv.Atoi(l)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "limit must be a valid integer")
			return
		}
	}

	commands, total, err := h.ledger.ListCommands(r.Context(), store.ListFilter{
		OwnerID: domain.AccountID(q.Get("owner")),
		Side:    domain.Side(q.Get("side")),
		Page:    page,
		Limit:   limit,
	})
	if err != nil {
		mapLedgerError(w, err, nil)
		return
	}

	resp := listCommandsResponse{
		Commands: make([]commandResponse, len(commands)),
		Total:    total,
		Page:     page,
		Limit:    limit,
	}
	for i, c := range commands {
		resp.Commands[i] = newCommandResponse(c)
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Certify returns the handler for POST /commands/{command_id}/certificates
// or /stages, depending on kind.
func (h *CommandHandler) Certify(kind domain.CertificationKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		call, err := callFromRequest(r)
		if err != nil {
			mapLedgerError(w, err, nil)
			return
		}

		c, refunds, err := h.ledger.CertifyCommand(r.Context(), call, chi.URLParam(r, "command_id"), kind)
		if err != nil {
			mapLedgerError(w, err, firstReceipt(refunds))
			return
		}

		WriteJSON(w, http.StatusOK, commandMutationResponse{
			Command: newCommandResponse(c),
			Refunds: newReceiptResponses(refunds),
		})
	}
}

// Cancel handles POST /commands/{command_id}/cancel.
func (h *CommandHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	call, err := callFromRequest(r)
	if err != nil {
		mapLedgerError(w, err, nil)
		return
	}

	c, refunds, err := h.ledger.CancelCommand(r.Context(), call, chi.URLParam(r, "command_id"))
	if err != nil {
		mapLedgerError(w, err, firstReceipt(refunds))
		return
	}

	WriteJSON(w, http.StatusOK, commandMutationResponse{
		Command: newCommandResponse(c),
		Refunds: newReceiptResponses(refunds),
	})
}

// Receipts handles GET /accounts/{account_id}/receipts.
func (h *CommandHandler) Receipts(w http.ResponseWriter, r *http.Request) {
	account := domain.AccountID(chi.URLParam(r, "account_id"))
	WriteJSON(w, http.StatusOK, map[string][]receiptResponse{
		"receipts": newReceiptResponses(h.ledger.Receipts(account)),
	})
}

// callFromRequest reads the caller and attached deposit from the headers.
func callFromRequest(r *http.Request) (ledger.Call, error) {
	call := ledger.Call{Caller: domain.AccountID(r.Header.Get(headerCallerID))}
	if v := r.Header.Get(headerAttachedDeposit); v != "" {
		d, err := domain.ParseU128(v)
		if err != nil {
			return ledger.Call{}, &domain.ValidationError{
				Message: headerAttachedDeposit + " must be a non-negative integer below 2^128",
			}
		}
		call.Deposit = d
	}
	return call, nil
}

// readCallBody reads the JSON body of a call. Its errors are
// validation errors so the caller's deposit can be refunded.
func readCallBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.ContentLength != 0 && !isJSON(r.Header.Get("Content-Type")) {
		return nil, &domain.ValidationError{Message: "Content-Type must be application/json"}
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &domain.ValidationError{Message: "Request body must be at most 1 MiB"}
		}
		return nil, &domain.ValidationError{Message: "Request body could not be read"}
	}
	return raw, nil
}

func firstReceipt(rs []*domain.Receipt) *domain.Receipt {
	if len(rs) == 0 {
		return nil
	}
	return rs[0]
}

// mapLedgerError maps domain errors to HTTP responses for ledger endpoints.
// refund, if any, is echoed in the error body. Validation failures are
// reported as invalid_payload.
func mapLedgerError(w http.ResponseWriter, err error, refund *domain.Receipt) {
	var status int
	switch {
	case errors.Is(err, domain.ErrDuplicateID),
		errors.Is(err, domain.ErrCommandCancelled),
		errors.Is(err, domain.ErrAlreadyInitialized):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidPrice),
		errors.Is(err, domain.ErrInvalidPayload):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientDeposit):
		status = http.StatusPaymentRequired
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotInitialized):
		status = http.StatusServiceUnavailable
	default:
		WriteErrorWithRefund(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred", refund)
		return
	}
	WriteErrorWithRefund(w, status, ledger.ErrorCode(err), err.Error(), refund)
}
