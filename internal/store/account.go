package store

import (
	"sort"
	"sync"

	"github.com/efreitasn/papertrade/internal/domain"
)

// AccountStore is a thread-safe in-memory store for accounts,
// keyed by account_id. Balances and positions inside an account are
// mutated only by the engine's ledger.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
}

// NewAccountStore creates an empty AccountStore.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts: make(map[string]*domain.Account),
	}
}

// Create adds an account to the store. It returns
// domain.ErrAccountExists if an account with the same ID
// already exists.
func (s *AccountStore) Create(a *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[a.AccountID]; exists {
		return domain.ErrAccountExists
	}
	s.accounts[a.AccountID] = a
	return nil
}

// Get retrieves an account by ID. It returns
// domain.ErrAccountNotFound if the account does not exist.
func (s *AccountStore) Get(id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return a, nil
}

// Exists returns true if an account with the given ID exists.
func (s *AccountStore) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.accounts[id]
	return ok
}

// List returns all accounts ordered by opening time, then ID.
func (s *AccountStore) List() []*domain.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].OpenedAt.Equal(result[j].OpenedAt) {
			return result[i].OpenedAt.Before(result[j].OpenedAt)
		}
		return result[i].AccountID < result[j].AccountID
	})
	return result
}

// Reset drops every account.
func (s *AccountStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts = make(map[string]*domain.Account)
}
