package store

import (
	"sync"

	"github.com/efreitasn/commandledger/internal/domain"
)

// ReceiptStore is a thread-safe in-memory store for refund receipts,
// keyed by the receiving account. Receipts are append-only and
// chronological.
type ReceiptStore struct {
	mu       sync.RWMutex
	receipts map[domain.AccountID][]*domain.Receipt
}

// NewReceiptStore creates an empty ReceiptStore.
func NewReceiptStore() *ReceiptStore {
	return &ReceiptStore{
		receipts: make(map[domain.AccountID][]*domain.Receipt),
	}
}

// Append adds a receipt to the account's chronological list.
func (s *ReceiptStore) Append(r *domain.Receipt) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.receipts[r.AccountID] = append(s.receipts[r.AccountID], r)
}

// ListByAccount returns all receipts issued to an account in
// chronological order. Returns an empty slice if there are none.
func (s *ReceiptStore) ListByAccount(account domain.AccountID) []*domain.Receipt {
	s.mu.RLock()
	defer s.mu.RUnlock()

	receipts := s.receipts[account]
	result := make([]*domain.Receipt, len(receipts))
	copy(result, receipts)
	return result
}
