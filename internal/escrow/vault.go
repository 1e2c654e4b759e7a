package escrow

import (
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/efreitasn/commandledger/internal/domain"
)

// ReceiptRecorder persists issued receipts.
type ReceiptRecorder interface {
	Append(r *domain.Receipt)
}

// Vault accounts for value held on behalf of commands and issues
// receipts whenever value goes back to an account.
type Vault struct {
	mu       sync.Mutex
	held     map[string]domain.U128 // command_id → escrowed amount
	receipts ReceiptRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewVault creates a Vault that records receipts into r.
func NewVault(r ReceiptRecorder, logger *slog.Logger) *Vault {
	if logger == nil {
		logger = slog.Default()
	}
	return &Vault{
		held:     make(map[string]domain.U128),
		receipts: r,
		logger:   logger,
		now:      time.Now,
	}
}

// Hold records amount as escrowed for commandID.
func (v *Vault) Hold(commandID string, amount domain.U128) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.held[commandID] = amount
}

// Held returns the amount currently escrowed for commandID.
func (v *Vault) Held(commandID string) domain.U128 {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.held[commandID]
}

// Release returns the escrowed deposit of c to its owner and clears
// the hold. The amount comes from the command record so it survives
// restarts of a durable repository.
func (v *Vault) Release(c *domain.Command, reason string) *domain.Receipt {
	v.mu.Lock()
	delete(v.held, c.CommandID)
	v.mu.Unlock()

	return v.Refund(c.OwnerID, c.Deposit, c.CommandID, reason)
}

// Refund issues a receipt returning amount to account. It returns nil
// when amount is zero.
func (v *Vault) Refund(account domain.AccountID, amount domain.U128, commandID, reason string) *domain.Receipt {
	if amount.IsZero() {
		return nil
	}
	r := &domain.Receipt{
		ReceiptID: ulid.Make().String(),
		AccountID: account,
		CommandID: commandID,
		Amount:    amount,
		Reason:    reason,
		IssuedAt:  v.now().UTC(),
	}
	v.receipts.Append(r)

	v.logger.Info("refund issued",
		slog.String("receipt_id", r.ReceiptID),
		slog.String("account_id", string(account)),
		slog.String("command_id", commandID),
		slog.String("amount", amount.String()),
		slog.String("reason", reason),
	)
	return r
}
