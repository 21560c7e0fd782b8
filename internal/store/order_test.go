package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
)

func newTestOrder(id, accountID string, seq uint64) *domain.Order {
	return &domain.Order{
		OrderID:      id,
		AccountID:    accountID,
		InstrumentID: "BBG004730N88",
		Direction:    domain.DirectionBuy,
		Kind:         domain.OrderKindMarket,
		QuantityLots: 1,
		LotSize:      10,
		Currency:     "rub",
		State:        domain.OrderStatePending,
		CreatedAt:    time.Date(2022, 4, 29, 7, 0, 0, 0, time.UTC),
		Seq:          seq,
	}
}

func TestOrderStore_Create_and_Get(t *testing.T) {
	s := NewOrderStore()
	if err := s.Create(newTestOrder("order-1", "acc-1", 1)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	got, err := s.Get("acc-1", "order-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.OrderID != "order-1" {
		t.Fatalf("expected order-1, got %s", got.OrderID)
	}
	if !s.Exists("acc-1", "order-1") {
		t.Fatal("order-1 should exist")
	}
}

func TestOrderStore_Get_ScopedToAccount(t *testing.T) {
	s := NewOrderStore()
	_ = s.Create(newTestOrder("order-1", "acc-1", 1))

	if _, err := s.Get("acc-2", "order-1"); err != domain.ErrOrderNotFound {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderStore_Create_DuplicateID(t *testing.T) {
	s := NewOrderStore()
	_ = s.Create(newTestOrder("order-1", "acc-1", 1))

	err := s.Create(newTestOrder("order-1", "acc-1", 2))
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	// The same ID under another account is fine.
	if err := s.Create(newTestOrder("order-1", "acc-2", 3)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestOrderStore_ListPending_SubmissionOrder(t *testing.T) {
	s := NewOrderStore()
	for i := 0; i < 5; i++ {
		_ = s.Create(newTestOrder(fmt.Sprintf("order-%d", i), "acc-1", uint64(i)))
	}
	o, _ := s.Get("acc-1", "order-2")
	_ = o.Transition(domain.OrderStateCancelled, time.Now())

	pending := s.ListPending("acc-1")
	want := []string{"order-0", "order-1", "order-3", "order-4"}
	if len(pending) != len(want) {
		t.Fatalf("expected %d pending, got %d", len(want), len(pending))
	}
	for i := range want {
		if pending[i].OrderID != want[i] {
			t.Fatalf("index %d: expected %s, got %s", i, want[i], pending[i].OrderID)
		}
	}

	if all := s.ListByAccount("acc-1"); len(all) != 5 {
		t.Fatalf("expected 5 orders in history, got %d", len(all))
	}
}

func TestOrderStore_ListPending_EmptyAccount(t *testing.T) {
	s := NewOrderStore()

	pending := s.ListPending("nobody")
	if pending == nil || len(pending) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", pending)
	}
}

func TestOrderStore_ConcurrentAccess(t *testing.T) {
	s := NewOrderStore()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = s.Create(newTestOrder(fmt.Sprintf("order-%d", i), fmt.Sprintf("acc-%d", i%5), uint64(i)))
		}(i)
		go func(i int) {
			defer wg.Done()
			s.ListPending(fmt.Sprintf("acc-%d", i%5))
		}(i)
	}
	wg.Wait()

	for a := 0; a < 5; a++ {
		if n := len(s.ListPending(fmt.Sprintf("acc-%d", a))); n != 20 {
			t.Fatalf("acc-%d expected 20 orders, got %d", a, n)
		}
	}
	if n := len(s.All()); n != 100 {
		t.Fatalf("expected 100 orders, got %d", n)
	}
}
