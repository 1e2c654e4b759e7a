package store

import (
	"context"
	"sync"

	"github.com/google/btree"

	"github.com/efreitasn/commandledger/internal/domain"
)

// ListFilter selects commands for listing. Zero-valued fields match
// everything. Pagination is 1-based.
type ListFilter struct {
	OwnerID domain.AccountID
	Side    domain.Side
	Page    int
	Limit   int
}

func (f ListFilter) matches(c *domain.Command) bool {
	if f.OwnerID != "" && c.OwnerID != f.OwnerID {
		return false
	}
	if f.Side != "" && c.Side() != f.Side {
		return false
	}
	return true
}

// commandLess orders the index by command_id ascending.
func commandLess(a, b *domain.Command) bool {
	return a.CommandID < b.CommandID
}

// CommandStore is a thread-safe in-memory command repository. Records
// are kept in a B-tree ordered by command_id. Records are never
// deleted, so an id stays taken for the store's lifetime.
type CommandStore struct {
	mu       sync.RWMutex
	commands *btree.BTreeG[*domain.Command]
	owner    domain.AccountID
}

// NewCommandStore creates an empty CommandStore.
func NewCommandStore() *CommandStore {
	const degree = 32
	return &CommandStore{
		commands: btree.NewG[*domain.Command](degree, commandLess),
	}
}

// Create stores a copy of c. It returns domain.ErrDuplicateID if a
// command with the same ID already exists.
func (s *CommandStore) Create(_ context.Context, c *domain.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.commands.Has(c) {
		return domain.ErrDuplicateID
	}
	s.commands.ReplaceOrInsert(c.Clone())
	return nil
}

// Get returns a copy of the command with the given ID, or
// domain.ErrNotFound.
func (s *CommandStore) Get(_ context.Context, id string) (*domain.Command, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.commands.Get(&domain.Command{CommandID: id})
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c.Clone(), nil
}

// Update replaces an existing command. It returns domain.ErrNotFound
// if no command with that ID was created before.
func (s *CommandStore) Update(_ context.Context, c *domain.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.commands.Has(c) {
		return domain.ErrNotFound
	}
	s.commands.ReplaceOrInsert(c.Clone())
	return nil
}

// List returns the page of commands matching f ordered by command_id,
// and the total count of matches before pagination.
func (s *CommandStore) List(_ context.Context, f ListFilter) ([]*domain.Command, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := (f.Page - 1) * f.Limit
	page := make([]*domain.Command, 0)
	total := 0
	s.commands.Ascend(func(c *domain.Command) bool {
		if !f.matches(c) {
			return true
		}
		if total >= start && len(page) < f.Limit {
			page = append(page, c.Clone())
		}
		total++
		return true
	})
	return page, total, nil
}

// Owner returns the ledger owner and whether it has been set.
func (s *CommandStore) Owner(_ context.Context) (domain.AccountID, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.owner, s.owner != "", nil
}

// SetOwner records the ledger owner. It returns
// domain.ErrAlreadyInitialized if an owner is already set.
func (s *CommandStore) SetOwner(_ context.Context, owner domain.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.owner != "" {
		return domain.ErrAlreadyInitialized
	}
	s.owner = owner
	return nil
}
