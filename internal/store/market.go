package store

import (
	"sync"

	"github.com/efreitasn/papertrade/internal/domain"
)

// MarketStore tracks the instruments the engine has traded and the last
// candle consumed for each. Instruments are registered implicitly the
// first time an order references them.
type MarketStore struct {
	mu          sync.RWMutex
	instruments map[string]domain.Instrument // instrument_id → reference data
	lastCandles map[string]domain.Candle     // instrument_id → last consumed candle
}

// NewMarketStore creates an empty MarketStore.
func NewMarketStore() *MarketStore {
	return &MarketStore{
		instruments: make(map[string]domain.Instrument),
		lastCandles: make(map[string]domain.Candle),
	}
}

// Register records or refreshes an instrument's reference data.
func (s *MarketStore) Register(inst domain.Instrument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instruments[inst.InstrumentID] = inst
}

// Instrument returns the registered reference data for id.
func (s *MarketStore) Instrument(id string) (domain.Instrument, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.instruments[id]
	return inst, ok
}

// Instruments returns every registered instrument.
func (s *MarketStore) Instruments() []domain.Instrument {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Instrument, 0, len(s.instruments))
	for _, inst := range s.instruments {
		result = append(result, inst)
	}
	return result
}

// SetLastCandle records c as the most recent candle of its instrument.
func (s *MarketStore) SetLastCandle(c domain.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCandles[c.InstrumentID] = c
}

// LastCandle returns the most recent candle consumed for id.
func (s *MarketStore) LastCandle(id string) (domain.Candle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.lastCandles[id]
	return c, ok
}

// CurrentPrice is the close of the last consumed candle, falling back to
// the instrument's reference price. ok is false for unknown instruments.
func (s *MarketStore) CurrentPrice(id string) (domain.Money, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.lastCandles[id]; ok {
		return c.Close, true
	}
	inst, ok := s.instruments[id]
	if !ok {
		return domain.Money{}, false
	}
	return inst.CurrentPrice, true
}

// LastCandles returns every recorded last candle.
func (s *MarketStore) LastCandles() []domain.Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Candle, 0, len(s.lastCandles))
	for _, c := range s.lastCandles {
		result = append(result, c)
	}
	return result
}

// Reset drops every instrument and candle.
func (s *MarketStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.instruments = make(map[string]domain.Instrument)
	s.lastCandles = make(map[string]domain.Candle)
}
