package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/efreitasn/commandledger/internal/domain"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

// WriteJSON writes a JSON response with the given status code and data.
// Sets Content-Type to application/json before writing the status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // Write error intentionally ignored in response helper
}

// errorResponse is the standard error response format. Refund is set when
// the failed call carried a deposit that was returned to the caller.
type errorResponse struct {
	Error   string           `json:"error"`
	Message string           `json:"message"`
	Refund  *receiptResponse `json:"refund,omitempty"`
}

// WriteError writes {"error": errorCode, "message": message}.
func WriteError(w http.ResponseWriter, status int, errorCode, message string) {
	WriteErrorWithRefund(w, status, errorCode, message, nil)
}

// WriteErrorWithRefund is WriteError plus the refund receipt of the
// failed call, when there is one.
func WriteErrorWithRefund(w http.ResponseWriter, status int, errorCode, message string, refund *domain.Receipt) {
	resp := errorResponse{Error: errorCode, Message: message}
	if refund != nil {
		r := newReceiptResponse(refund)
		resp.Refund = &r
	}
	WriteJSON(w, status, resp)
}

// ParseJSON strictly decodes a JSON request body of at most maxBodyBytes
// into v. Unknown fields are an error.
func ParseJSON(r *http.Request, v any) error {
	if !isJSON(r.Header.Get("Content-Type")) {
		return errors.New("Content-Type must be application/json")
	}

	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("Request body must be valid JSON: %v", err)
	}
	return nil
}

func isJSON(contentType string) bool {
	return strings.HasPrefix(contentType, "application/json")
}

// receiptResponse is the JSON form of a refund receipt.
type receiptResponse struct {
	ReceiptID string      `json:"receipt_id"`
	AccountID string      `json:"account_id"`
	CommandID string      `json:"command_id,omitempty"`
	Amount    domain.U128 `json:"amount"`
	Reason    string      `json:"reason"`
	IssuedAt  string      `json:"issued_at"`
}

func newReceiptResponse(r *domain.Receipt) receiptResponse {
	return receiptResponse{
		ReceiptID: r.ReceiptID,
		AccountID: string(r.AccountID),
		CommandID: r.CommandID,
		Amount:    r.Amount,
		Reason:    r.Reason,
		IssuedAt:  r.IssuedAt.UTC().Format(timeLayout),
	}
}

func newReceiptResponses(rs []*domain.Receipt) []receiptResponse {
	out := make([]receiptResponse, len(rs))
	for i, r := range rs {
		out[i] = newReceiptResponse(r)
	}
	return out
}

const timeLayout = "2006-01-02T15:04:05Z"
