package store

import (
	"sync"

	"github.com/efreitasn/papertrade/internal/domain"
)

// OperationFilter narrows an operations listing. Empty fields match
// everything.
type OperationFilter struct {
	InstrumentID string
	State        domain.OperationState
}

// OperationStore is a thread-safe append-only log of operations,
// keyed by account_id. Each account's operations stay in insertion
// order, which is also date order since the simulated clock only
// moves forward.
type OperationStore struct {
	mu         sync.RWMutex
	operations map[string][]*domain.Operation // account_id → operations
}

// NewOperationStore creates an empty OperationStore.
func NewOperationStore() *OperationStore {
	return &OperationStore{
		operations: make(map[string][]*domain.Operation),
	}
}

// Append adds operations to their accounts' logs in the given order.
func (s *OperationStore) Append(ops ...*domain.Operation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, op := range ops {
		s.operations[op.AccountID] = append(s.operations[op.AccountID], op)
	}
}

// List returns the account's operations matching f in insertion order.
// Returns an empty slice if nothing matches.
func (s *OperationStore) List(accountID string, f OperationFilter) []*domain.Operation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Operation, 0)
	for _, op := range s.operations[accountID] {
		if f.InstrumentID != "" && op.InstrumentID != f.InstrumentID {
			continue
		}
		if f.State != domain.OperationStateUnspecified && op.State != f.State {
			continue
		}
		result = append(result, op)
	}
	return result
}

// All returns every operation across accounts, grouped by account in
// insertion order.
func (s *OperationStore) All() []*domain.Operation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Operation
	for _, ops := range s.operations {
		result = append(result, ops...)
	}
	return result
}

// Reset drops every operation.
func (s *OperationStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.operations = make(map[string][]*domain.Operation)
}
