// Package feed supplies historical candles to the tick scheduler. A feed is
// a forward-only cursor per instrument: once a candle is returned it is never
// returned again.
package feed

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/efreitasn/papertrade/internal/domain"
)

// ErrEndOfData is returned when an instrument has no more candles.
var ErrEndOfData = errors.New("end_of_data")

// Feed returns the next candle of an instrument.
type Feed interface {
	NextCandle(ctx context.Context, instrumentID string) (domain.Candle, error)
}

// Memory is an in-process feed over preloaded candle series.
type Memory struct {
	mu      sync.Mutex
	series  map[string][]domain.Candle
	cursors map[string]int
}

// NewMemory creates a feed over candles, grouped by instrument and sorted by
// time within each instrument.
func NewMemory(candles []domain.Candle) *Memory {
	m := &Memory{
		series:  make(map[string][]domain.Candle),
		cursors: make(map[string]int),
	}
	for _, c := range candles {
		m.series[c.InstrumentID] = append(m.series[c.InstrumentID], c)
	}
	for _, s := range m.series {
		sort.SliceStable(s, func(i, j int) bool { return s[i].Time.Before(s[j].Time) })
	}
	return m
}

// NextCandle returns the instrument's next candle and moves its cursor.
func (m *Memory) NextCandle(ctx context.Context, instrumentID string) (domain.Candle, error) {
	if err := ctx.Err(); err != nil {
		return domain.Candle{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.cursors[instrumentID]
	s := m.series[instrumentID]
	if i >= len(s) {
		return domain.Candle{}, ErrEndOfData
	}
	m.cursors[instrumentID] = i + 1
	return s[i], nil
}

// Remaining returns how many candles are left for the instrument.
func (m *Memory) Remaining(instrumentID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.series[instrumentID]) - m.cursors[instrumentID]
}

// Cursors returns the number of candles consumed per instrument.
func (m *Memory) Cursors() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]int, len(m.cursors))
	for id, n := range m.cursors {
		out[id] = n
	}
	return out
}

// Seek restores consumed-candle counts, typically from a snapshot. Counts
// beyond the end of a series are clamped.
func (m *Memory) Seek(cursors map[string]int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, n := range cursors {
		if n < 0 {
			n = 0
		}
		if limit := len(m.series[id]); n > limit {
			n = limit
		}
		m.cursors[id] = n
	}
}
