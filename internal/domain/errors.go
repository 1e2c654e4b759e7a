package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrDuplicateID         = errors.New("duplicate_id")
	ErrInvalidQuantity     = errors.New("invalid_quantity")
	ErrInvalidPrice        = errors.New("invalid_price")
	ErrInsufficientDeposit = errors.New("insufficient_deposit")
	ErrNotFound            = errors.New("not_found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidPayload      = errors.New("invalid_payload")
	ErrCommandCancelled    = errors.New("command_cancelled")
	ErrNotInitialized      = errors.New("not_initialized")
	ErrAlreadyInitialized  = errors.New("already_initialized")
	ErrWebhookNotFound     = errors.New("webhook_not_found")
)

// ValidationError represents a malformed request. It matches
// ErrInvalidPayload under errors.Is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidPayload
}
