package domain

import (
	"errors"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Message: "quantity must be a positive integer"}
	if err.Error() != "quantity must be a positive integer" {
		t.Errorf("Error() = %q, want %q", err.Error(), "quantity must be a positive integer")
	}
}

func TestSentinelErrors_AreDistinct(t *testing.T) {
	errs := []error{
		ErrAccountNotFound,
		ErrAccountExists,
		ErrAccountClosed,
		ErrOrderNotFound,
		ErrOrderNotPending,
		ErrInsufficientFunds,
		ErrInsufficientHoldings,
		ErrInstrumentNotFound,
		ErrInstrumentNotTradable,
		ErrUnsupportedOperation,
		ErrWebhookNotFound,
		ErrCurrencyMismatch,
	}
	for i := 0; i < len(errs); i++ {
		for j := i + 1; j < len(errs); j++ {
			if errors.Is(errs[i], errs[j]) {
				t.Errorf("sentinel errors %d and %d should be distinct", i, j)
			}
		}
	}
}

func TestInsufficientHoldingsError(t *testing.T) {
	var err error = &InsufficientHoldingsError{InstrumentID: "BBG004730N88", Balance: -50}
	if !errors.Is(err, ErrInsufficientHoldings) {
		t.Error("expected errors.Is(err, ErrInsufficientHoldings)")
	}
	if got, want := err.Error(), "negative balance of instrument BBG004730N88: -50"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestInsufficientFundsError(t *testing.T) {
	var err error = &InsufficientFundsError{
		InstrumentID: "BBG004730N88",
		Shortfall:    MustParseMoney("32.2858", "rub"),
	}
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Error("expected errors.Is(err, ErrInsufficientFunds)")
	}
	var target *InsufficientFundsError
	if !errors.As(err, &target) || target.Shortfall.String() != "32.2858 rub" {
		t.Errorf("errors.As = %+v", target)
	}
}

func TestUnsupportedError(t *testing.T) {
	err := UnsupportedError("stop orders")
	if !errors.Is(err, ErrUnsupportedOperation) {
		t.Error("expected errors.Is(err, ErrUnsupportedOperation)")
	}
}
