package store

import (
	"testing"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
)

func newTestOperation(id, accountID, instrumentID, payment string) *domain.Operation {
	return &domain.Operation{
		OperationID:  id,
		AccountID:    accountID,
		InstrumentID: instrumentID,
		Kind:         domain.OperationKindPayment,
		State:        domain.OperationStateExecuted,
		Payment:      domain.MustParseMoney(payment, "rub"),
		Date:         time.Date(2022, 4, 29, 7, 1, 0, 0, time.UTC),
	}
}

func TestOperationStore_List_InsertionOrder(t *testing.T) {
	s := NewOperationStore()
	s.Append(
		newTestOperation("op-1", "acc-1", "BBG004730N88", "-1228.6"),
		newTestOperation("op-2", "acc-1", "BBG004730N88", "-3.6858"),
	)
	s.Append(newTestOperation("op-3", "acc-2", "BBG004730N88", "-1"))

	ops := s.List("acc-1", OperationFilter{})
	if len(ops) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(ops))
	}
	if ops[0].OperationID != "op-1" || ops[1].OperationID != "op-2" {
		t.Fatalf("unexpected order: %s, %s", ops[0].OperationID, ops[1].OperationID)
	}
}

func TestOperationStore_List_Filters(t *testing.T) {
	s := NewOperationStore()
	s.Append(
		newTestOperation("op-1", "acc-1", "BBG004730N88", "-1228.6"),
		newTestOperation("op-2", "acc-1", "BBG000B9XRY4", "-100"),
	)

	if ops := s.List("acc-1", OperationFilter{InstrumentID: "BBG000B9XRY4"}); len(ops) != 1 || ops[0].OperationID != "op-2" {
		t.Fatalf("instrument filter returned %v", ops)
	}
	if ops := s.List("acc-1", OperationFilter{State: domain.OperationStateExecuted}); len(ops) != 2 {
		t.Fatalf("executed filter expected 2, got %d", len(ops))
	}
	if ops := s.List("acc-1", OperationFilter{State: domain.OperationStateCancelled}); len(ops) != 0 {
		t.Fatalf("cancelled filter expected 0, got %d", len(ops))
	}
}

func TestOperationStore_List_Empty(t *testing.T) {
	s := NewOperationStore()

	ops := s.List("nobody", OperationFilter{})
	if ops == nil || len(ops) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", ops)
	}
}
