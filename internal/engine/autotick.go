package engine

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Advancer moves a simulation forward by one tick.
type Advancer interface {
	Advance(ctx context.Context) (TickReport, error)
}

// AutoTicker advances the simulation on a wall-clock interval. It is off
// unless the host starts it.
type AutoTicker struct {
	interval time.Duration
	target   Advancer
	logger   *zap.Logger
	onTick   func(TickReport)
	ticks    atomic.Int64
}

// NewAutoTicker creates an AutoTicker. onTick, if non-nil, runs after each
// successful advance.
func NewAutoTicker(interval time.Duration, target Advancer, logger *zap.Logger, onTick func(TickReport)) *AutoTicker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutoTicker{
		interval: interval,
		target:   target,
		logger:   logger,
		onTick:   onTick,
	}
}

// Start launches a background goroutine that ticks at the configured
// interval. It stops when ctx is cancelled.
func (a *AutoTicker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.tick(ctx)
			}
		}
	}()
}

func (a *AutoTicker) tick(ctx context.Context) {
	report, err := a.target.Advance(ctx)
	if err != nil {
		if ctx.Err() == nil {
			a.logger.Warn("auto tick failed", zap.Error(err))
		}
		return
	}
	a.ticks.Add(1)
	if a.onTick != nil {
		a.onTick(report)
	}
}

// Ticks returns the number of advances run so far.
func (a *AutoTicker) Ticks() int64 {
	return a.ticks.Load()
}
