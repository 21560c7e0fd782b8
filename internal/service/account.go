package service

import (
	"context"
	"unicode/utf8"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
)

// OpenAccountRequest is the input for opening a sandbox account.
type OpenAccountRequest struct {
	Name           string
	InitialCapital string // decimal string
	Currency       string
}

// AccountService manages sandbox accounts.
type AccountService struct {
	engine *engine.Engine
}

// NewAccountService creates a new AccountService.
func NewAccountService(eng *engine.Engine) *AccountService {
	return &AccountService{engine: eng}
}

// Open validates the request and opens a funded account.
func (s *AccountService) Open(ctx context.Context, req OpenAccountRequest) (*domain.Account, error) {
	if utf8.RuneCountInString(req.Name) > 128 {
		return nil, &domain.ValidationError{Message: "name must be at most 128 characters"}
	}
	if req.Currency == "" {
		return nil, &domain.ValidationError{Message: "currency is required"}
	}
	capital, err := parseAmount("initial_capital", req.InitialCapital, req.Currency)
	if err != nil {
		return nil, err
	}
	if capital.Sign() < 0 {
		return nil, &domain.ValidationError{Message: "initial_capital must be >= 0"}
	}
	return s.engine.OpenAccount(ctx, req.Name, capital)
}

// Close cancels the account's pending orders and closes it.
func (s *AccountService) Close(ctx context.Context, accountID string) error {
	if err := validateAccountID(accountID); err != nil {
		return err
	}
	return s.engine.CloseAccount(ctx, accountID)
}

// Get returns one account.
func (s *AccountService) Get(accountID string) (*domain.Account, error) {
	if err := validateAccountID(accountID); err != nil {
		return nil, err
	}
	return s.engine.GetAccount(accountID)
}

// List returns every account, oldest first.
func (s *AccountService) List() []*domain.Account {
	return s.engine.ListAccounts()
}

// PayIn deposits amount of currency into the account and returns the new
// balance in that currency.
func (s *AccountService) PayIn(ctx context.Context, accountID, amount, currency string) (domain.Money, error) {
	if err := validateAccountID(accountID); err != nil {
		return domain.Money{}, err
	}
	if currency == "" {
		return domain.Money{}, &domain.ValidationError{Message: "currency is required"}
	}
	m, err := parseAmount("amount", amount, currency)
	if err != nil {
		return domain.Money{}, err
	}
	if m.Sign() <= 0 {
		return domain.Money{}, &domain.ValidationError{Message: "amount must be > 0"}
	}
	return s.engine.PayIn(ctx, accountID, m)
}
