package engine

import (
	"fmt"
	"sort"

	"github.com/efreitasn/papertrade/internal/domain"
)

// Snapshot is the complete simulation state at a point in simulated time.
type Snapshot struct {
	Clock       Clock
	Seq         uint64
	Accounts    []*domain.Account
	Orders      []*domain.Order     // every order, in submission order
	Operations  []*domain.Operation // every operation, in posting order
	Instruments []domain.Instrument
	LastCandles []domain.Candle
	FeedCursors map[string]int // candles consumed per instrument
}

// seekableFeed is implemented by feeds that can report and restore their
// read positions.
type seekableFeed interface {
	Cursors() map[string]int
	Seek(map[string]int)
}

// Snapshot copies the engine state. The copy shares nothing with the
// engine.
func (e *Engine) Snapshot() *Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := &Snapshot{Clock: e.clock, Seq: e.seq}
	for _, a := range e.accounts.List() {
		s.Accounts = append(s.Accounts, a.Clone())
	}
	s.Orders = cloneOrders(e.orders.All())
	sort.SliceStable(s.Orders, func(i, j int) bool { return s.Orders[i].Seq < s.Orders[j].Seq })
	for _, op := range e.operations.All() {
		c := *op
		s.Operations = append(s.Operations, &c)
	}
	s.Instruments = e.market.Instruments()
	sort.Slice(s.Instruments, func(i, j int) bool { return s.Instruments[i].InstrumentID < s.Instruments[j].InstrumentID })
	s.LastCandles = e.market.LastCandles()
	sort.Slice(s.LastCandles, func(i, j int) bool { return s.LastCandles[i].InstrumentID < s.LastCandles[j].InstrumentID })
	if f, ok := e.feed.(seekableFeed); ok {
		s.FeedCursors = f.Cursors()
	}
	return s
}

// Restore replaces the engine state with s and rebuilds the pending
// queues. The feed is moved to the snapshot's cursors when it supports
// seeking.
func (e *Engine) Restore(s *Snapshot) error {
	if s.Clock.Step <= 0 {
		return fmt.Errorf("restore: snapshot step must be positive, got %s", s.Clock.Step)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.accounts.Reset()
	e.orders.Reset()
	e.operations.Reset()
	e.market.Reset()
	e.queues.Reset()

	e.clock = s.Clock
	e.seq = s.Seq
	for _, a := range s.Accounts {
		if err := e.accounts.Create(a.Clone()); err != nil {
			return fmt.Errorf("restore account %s: %w", a.AccountID, err)
		}
	}
	for _, o := range s.Orders {
		o := o.Clone()
		if err := e.orders.Create(o); err != nil {
			return fmt.Errorf("restore order %s: %w", o.OrderID, err)
		}
		if o.IsPending() {
			e.queues.GetOrCreate(o.InstrumentID).Insert(o)
		}
	}
	for _, op := range s.Operations {
		c := *op
		e.operations.Append(&c)
	}
	for _, inst := range s.Instruments {
		e.market.Register(inst)
	}
	for _, c := range s.LastCandles {
		e.market.SetLastCandle(c)
	}
	if f, ok := e.feed.(seekableFeed); ok && s.FeedCursors != nil {
		f.Seek(s.FeedCursors)
	}
	e.metrics.SetPending(e.queues.Len())
	return nil
}
