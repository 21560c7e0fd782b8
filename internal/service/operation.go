package service

import (
	"fmt"
	"strings"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/efreitasn/papertrade/internal/store"
)

// ValidOperationStates lists the accepted operation state filters. The
// empty string means unspecified.
var ValidOperationStates = map[string]domain.OperationState{
	"":            domain.OperationStateUnspecified,
	"unspecified": domain.OperationStateUnspecified,
	"executed":    domain.OperationStateExecuted,
	"cancelled":   domain.OperationStateCancelled,
}

// OperationService answers operations, positions and portfolio queries.
type OperationService struct {
	engine *engine.Engine
}

// NewOperationService creates a new OperationService.
func NewOperationService(eng *engine.Engine) *OperationService {
	return &OperationService{engine: eng}
}

// GetOperations lists the account's operations, optionally narrowed to one
// instrument and state.
func (s *OperationService) GetOperations(accountID, instrumentID, state string) ([]*domain.Operation, error) {
	if err := validateAccountID(accountID); err != nil {
		return nil, err
	}
	if instrumentID != "" {
		if err := validateInstrumentID(instrumentID); err != nil {
			return nil, err
		}
	}
	st, ok := ValidOperationStates[strings.ToLower(state)]
	if !ok {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("Invalid state filter: '%s'. Must be one of: executed, cancelled, unspecified", state),
		}
	}
	return s.engine.GetOperations(accountID, store.OperationFilter{InstrumentID: instrumentID, State: st})
}

// GetPositions returns the account's cash and security balances.
func (s *OperationService) GetPositions(accountID string) (*engine.Positions, error) {
	if err := validateAccountID(accountID); err != nil {
		return nil, err
	}
	return s.engine.GetPositions(accountID)
}

// GetPortfolio values the account at current prices.
func (s *OperationService) GetPortfolio(accountID string) (*engine.Portfolio, error) {
	if err := validateAccountID(accountID); err != nil {
		return nil, err
	}
	return s.engine.GetPortfolio(accountID)
}
