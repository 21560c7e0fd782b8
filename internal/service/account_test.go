package service

import (
	"context"
	"errors"
	"testing"

	"github.com/efreitasn/papertrade/internal/domain"
)

func TestAccountService_OpenAndPayIn(t *testing.T) {
	svc := NewAccountService(newTestEngine(t))
	ctx := context.Background()

	acc, err := svc.Open(ctx, OpenAccountRequest{Name: "main", InitialCapital: "100000", Currency: "RUB"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if acc.Currency != "rub" {
		t.Errorf("Currency = %q, want rub", acc.Currency)
	}

	total, err := svc.PayIn(ctx, acc.AccountID, "0.5", "rub")
	if err != nil {
		t.Fatalf("PayIn: %v", err)
	}
	if total != domain.MustParseMoney("100000.5", "rub") {
		t.Errorf("total = %v, want 100000.5 rub", total)
	}

	if got := svc.List(); len(got) != 1 {
		t.Errorf("List = %d accounts, want 1", len(got))
	}
}

func TestAccountService_Validation(t *testing.T) {
	svc := NewAccountService(newTestEngine(t))
	ctx := context.Background()

	bad := []OpenAccountRequest{
		{InitialCapital: "100", Currency: ""},
		{InitialCapital: "100", Currency: "rubles"},
		{InitialCapital: "1.0000000001", Currency: "rub"},
		{InitialCapital: "-1", Currency: "rub"},
		{InitialCapital: "x", Currency: "rub"},
	}
	for _, req := range bad {
		_, err := svc.Open(ctx, req)
		var ve *domain.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("Open(%+v): expected ValidationError, got %v", req, err)
		}
	}

	acc, err := svc.Open(ctx, OpenAccountRequest{InitialCapital: "1", Currency: "rub"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, amount := range []string{"0", "-5", ""} {
		_, err := svc.PayIn(ctx, acc.AccountID, amount, "rub")
		var ve *domain.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("PayIn(%q): expected ValidationError, got %v", amount, err)
		}
	}
}

func TestAccountService_Close(t *testing.T) {
	eng := newTestEngine(t)
	svc := NewAccountService(eng)
	ctx := context.Background()
	id := openTestAccount(t, eng)

	if err := svc.Close(ctx, id); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := svc.PayIn(ctx, id, "1", "rub"); !errors.Is(err, domain.ErrAccountClosed) {
		t.Errorf("PayIn on closed account: expected ErrAccountClosed, got %v", err)
	}
	if _, err := svc.Get("00000000-0000-0000-0000-000000000000"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}
