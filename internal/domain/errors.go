package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrAccountNotFound       = errors.New("account_not_found")
	ErrAccountExists         = errors.New("account_already_exists")
	ErrAccountClosed         = errors.New("account_closed")
	ErrOrderNotFound         = errors.New("order_not_found")
	ErrOrderNotPending       = errors.New("order_not_pending")
	ErrInsufficientFunds     = errors.New("insufficient_funds")
	ErrInsufficientHoldings  = errors.New("insufficient_holdings")
	ErrInstrumentNotFound    = errors.New("instrument_not_found")
	ErrInstrumentNotTradable = errors.New("instrument_not_tradable")
	ErrUnsupportedOperation  = errors.New("unsupported_operation")
	ErrWebhookNotFound       = errors.New("webhook_not_found")
	ErrCurrencyMismatch      = errors.New("currency_mismatch")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// InsufficientFundsError reports a buy rejected because available cash does
// not cover the reservation. Shortfall is the missing amount.
type InsufficientFundsError struct {
	InstrumentID string
	Shortfall    Money
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds for instrument %s: short by %s", e.InstrumentID, e.Shortfall)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// InsufficientHoldingsError reports a sell rejected because the unblocked
// quantity is smaller than requested. Balance is the negative unit balance
// the sell would have produced.
type InsufficientHoldingsError struct {
	InstrumentID string
	Balance      int64
}

func (e *InsufficientHoldingsError) Error() string {
	return fmt.Sprintf("negative balance of instrument %s: %d", e.InstrumentID, e.Balance)
}

func (e *InsufficientHoldingsError) Unwrap() error {
	return ErrInsufficientHoldings
}

// UnsupportedError names a capability this simulator does not model.
func UnsupportedError(capability string) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedOperation, capability)
}
