package service

import (
	"context"
	"fmt"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
)

// MaxLastPriceIDs bounds one GetLastPrices call.
const MaxLastPriceIDs = 100

// MarketDataService serves the prices the simulation currently sees.
type MarketDataService struct {
	engine *engine.Engine
}

// NewMarketDataService creates a new MarketDataService.
func NewMarketDataService(eng *engine.Engine) *MarketDataService {
	return &MarketDataService{engine: eng}
}

// GetLastPrices returns the current price of each instrument.
func (s *MarketDataService) GetLastPrices(ctx context.Context, ids []string) ([]engine.LastPrice, error) {
	if len(ids) == 0 {
		return nil, &domain.ValidationError{Message: "at least one instrument_id is required"}
	}
	if len(ids) > MaxLastPriceIDs {
		return nil, &domain.ValidationError{Message: fmt.Sprintf("at most %d instrument_id values are allowed", MaxLastPriceIDs)}
	}
	for _, id := range ids {
		if err := validateInstrumentID(id); err != nil {
			return nil, err
		}
	}
	return s.engine.LastPrices(ctx, ids)
}

// GetLastCandle returns the candle the simulation last consumed for the
// instrument, or domain.ErrInstrumentNotFound if none was consumed yet.
func (s *MarketDataService) GetLastCandle(instrumentID string) (domain.Candle, error) {
	if err := validateInstrumentID(instrumentID); err != nil {
		return domain.Candle{}, err
	}
	c, ok := s.engine.LastCandle(instrumentID)
	if !ok {
		return domain.Candle{}, fmt.Errorf("%w: no candle consumed for %s", domain.ErrInstrumentNotFound, instrumentID)
	}
	return c, nil
}
