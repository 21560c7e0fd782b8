package store

import (
	"fmt"
	"sync"

	"github.com/efreitasn/papertrade/internal/domain"
)

// OrderStore is a thread-safe in-memory store for orders of every state.
// Orders are indexed by account_id then order_id, and each account keeps
// its orders in submission order.
type OrderStore struct {
	mu            sync.RWMutex
	orders        map[string]map[string]*domain.Order // account_id → order_id → order
	accountOrders map[string][]*domain.Order          // account_id → orders (append-only)
}

// NewOrderStore creates an empty OrderStore.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders:        make(map[string]map[string]*domain.Order),
		accountOrders: make(map[string][]*domain.Order),
	}
}

// Create adds an order to the store and appends it to the account's
// secondary index. Order IDs are unique per account; a duplicate is
// reported as a validation error.
func (s *OrderStore) Create(o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := s.orders[o.AccountID]
	if byID == nil {
		byID = make(map[string]*domain.Order)
		s.orders[o.AccountID] = byID
	}
	if _, exists := byID[o.OrderID]; exists {
		return &domain.ValidationError{Message: fmt.Sprintf("order %s already exists", o.OrderID)}
	}
	byID[o.OrderID] = o
	s.accountOrders[o.AccountID] = append(s.accountOrders[o.AccountID], o)
	return nil
}

// Exists reports whether the account already has an order with this ID.
func (s *OrderStore) Exists(accountID, orderID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.orders[accountID][orderID]
	return ok
}

// Get retrieves an order of an account. It returns
// domain.ErrOrderNotFound if the account has no such order.
func (s *OrderStore) Get(accountID, orderID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[accountID][orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

// ListPending returns the account's pending orders in submission order.
// Returns an empty slice if there are none.
func (s *OrderStore) ListPending(accountID string) []*domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Order, 0)
	for _, o := range s.accountOrders[accountID] {
		if o.IsPending() {
			result = append(result, o)
		}
	}
	return result
}

// ListByAccount returns every order of the account in submission order.
func (s *OrderStore) ListByAccount(accountID string) []*domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.accountOrders[accountID]
	result := make([]*domain.Order, len(all))
	copy(result, all)
	return result
}

// All returns every order across accounts, grouped by account in
// submission order.
func (s *OrderStore) All() []*domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Order
	for _, orders := range s.accountOrders {
		result = append(result, orders...)
	}
	return result
}

// Reset drops every order.
func (s *OrderStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders = make(map[string]map[string]*domain.Order)
	s.accountOrders = make(map[string][]*domain.Order)
}
