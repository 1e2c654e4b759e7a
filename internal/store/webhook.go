package store

import (
	"sort"
	"sync"

	"github.com/efreitasn/commandledger/internal/domain"
)

// subscription identifies the single webhook an account may hold per event.
type subscription struct {
	account domain.AccountID
	event   string
}

// WebhookStore keeps webhook subscriptions in memory. Callers only ever
// see copies, so deliveries running in other goroutines never observe
// a URL change halfway through.
type WebhookStore struct {
	mu    sync.RWMutex
	byID  map[string]*domain.Webhook
	bySub map[subscription]string // → webhook_id
}

// NewWebhookStore creates an empty WebhookStore.
func NewWebhookStore() *WebhookStore {
	return &WebhookStore{
		byID:  make(map[string]*domain.Webhook),
		bySub: make(map[subscription]string),
	}
}

// Upsert stores w unless the account already subscribes to w.Event, in
// which case the existing subscription keeps its id and only takes the
// new URL and UpdatedAt (when the URL differs). It returns the stored
// subscription and whether it was newly created.
func (s *WebhookStore) Upsert(w *domain.Webhook) (*domain.Webhook, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := subscription{account: w.AccountID, event: w.Event}
	if id, ok := s.bySub[key]; ok {
		existing := s.byID[id]
		if existing.URL != w.URL {
			existing.URL = w.URL
			existing.UpdatedAt = w.UpdatedAt
		}
		cp := *existing
		return &cp, false
	}

	stored := *w
	s.byID[w.WebhookID] = &stored
	s.bySub[key] = w.WebhookID
	cp := stored
	return &cp, true
}

// Get returns the webhook with the given id, or domain.ErrWebhookNotFound.
func (s *WebhookStore) Get(id string) (*domain.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrWebhookNotFound
	}
	cp := *w
	return &cp, nil
}

// ListByAccount returns the account's subscriptions ordered by event
// name. It never returns nil.
func (s *WebhookStore) ListByAccount(account domain.AccountID) []*domain.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*domain.Webhook{}
	for key, id := range s.bySub {
		if key.account == account {
			cp := *s.byID[id]
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Event < result[j].Event
	})
	return result
}

// Delete removes the webhook with the given id, or returns
// domain.ErrWebhookNotFound.
func (s *WebhookStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.byID[id]
	if !ok {
		return domain.ErrWebhookNotFound
	}
	delete(s.byID, id)
	delete(s.bySub, subscription{account: w.AccountID, event: w.Event})
	return nil
}

// Subscription returns the account's webhook for event, or nil.
func (s *WebhookStore) Subscription(account domain.AccountID, event string) *domain.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.bySub[subscription{account: account, event: event}]
	if !ok {
		return nil
	}
	cp := *s.byID[id]
	return &cp
}
