package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/events"
	"github.com/efreitasn/papertrade/internal/feed"
)

// Clock is the simulated time. It only moves forward, one Step per tick.
type Clock struct {
	Now   time.Time
	Step  time.Duration
	Ticks int64
}

// TickReport describes one clock advance.
type TickReport struct {
	Tick       int64
	Time       time.Time
	Candles    []domain.Candle     // consumed this tick, by instrument
	Executed   []*domain.Order     // in evaluation order
	Operations []*domain.Operation // in posting order
	Starved    []string            // instruments with pending orders but no candle
}

// Clock returns the current simulated time.
func (e *Engine) Clock() Clock {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.clock
}

// Advance moves the clock one step and evaluates every pending order
// against its instrument's next candle. Instruments without pending
// orders do not consume candles. Feed errors are logged and leave the
// instrument's orders pending; they are never returned. The only error is
// ctx being done before the tick started.
func (e *Engine) Advance(ctx context.Context) (TickReport, error) {
	if err := ctx.Err(); err != nil {
		return TickReport{}, err
	}

	e.mu.Lock()
	report := e.advanceLocked(ctx)
	pending := e.queues.Len()
	e.mu.Unlock()

	e.metrics.Tick()
	for _, o := range report.Executed {
		e.metrics.OrderFilled(string(o.Direction), string(o.Kind))
	}
	e.metrics.SetPending(pending)
	e.logger.Debug("tick",
		zap.Int64("tick", report.Tick),
		zap.Time("time", report.Time),
		zap.Int("executed", len(report.Executed)),
		zap.Int("pending", pending),
	)

	for _, o := range report.Executed {
		e.publish(ctx, events.Event{Type: events.OrderExecuted, AccountID: o.AccountID, OccurredAt: report.Time, Order: o})
	}
	for _, op := range report.Operations {
		e.publish(ctx, events.Event{Type: events.OperationPosted, AccountID: op.AccountID, OccurredAt: report.Time, Operation: op})
	}
	return report, nil
}

// AdvanceN runs n ticks and returns their reports. It stops early when
// ctx is done.
func (e *Engine) AdvanceN(ctx context.Context, n int) ([]TickReport, error) {
	if n <= 0 {
		return nil, &domain.ValidationError{Message: "steps must be a positive integer"}
	}
	reports := make([]TickReport, 0, n)
	for i := 0; i < n; i++ {
		r, err := e.Advance(ctx)
		if err != nil {
			return reports, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func (e *Engine) advanceLocked(ctx context.Context) TickReport {
	e.clock.Now = e.clock.Now.Add(e.clock.Step)
	e.clock.Ticks++
	report := TickReport{Tick: e.clock.Ticks, Time: e.clock.Now}

	for _, instrumentID := range e.queues.Active() {
		c, err := e.feed.NextCandle(ctx, instrumentID)
		if err != nil {
			report.Starved = append(report.Starved, instrumentID)
			if errors.Is(err, feed.ErrEndOfData) {
				e.logger.Warn("feed exhausted", zap.String("instrument_id", instrumentID))
			} else {
				e.logger.Error("feed error", zap.String("instrument_id", instrumentID), zap.Error(err))
			}
			continue
		}
		c, err = e.normalizeCandle(c)
		if err != nil {
			report.Starved = append(report.Starved, instrumentID)
			e.logger.Error("feed error", zap.String("instrument_id", instrumentID), zap.Error(err))
			continue
		}
		e.market.SetLastCandle(c)
		report.Candles = append(report.Candles, c)

		for _, o := range e.queues.GetOrCreate(instrumentID).Orders() {
			price, ok := ResolveFill(o, c)
			if !ok {
				continue
			}
			ops, err := e.settle(o, price)
			if err != nil {
				// The reservation invariants were broken; keep the order
				// pending so the state stays inspectable.
				e.logger.Error("settlement failed",
					zap.String("account_id", o.AccountID),
					zap.String("order_id", o.OrderID),
					zap.Error(err),
				)
				continue
			}
			e.queues.Remove(o)
			report.Executed = append(report.Executed, o.Clone())
			for _, op := range ops {
				posted := *op
				report.Operations = append(report.Operations, &posted)
			}
			e.logger.Info("order executed",
				zap.String("account_id", o.AccountID),
				zap.String("order_id", o.OrderID),
				zap.String("instrument_id", o.InstrumentID),
				zap.String("direction", string(o.Direction)),
				zap.Stringer("price", price),
				zap.Stringer("commission", *o.ExecutedCommission),
			)
		}
	}
	return report
}

// settle books a fill: ledger mutation, the trade and commission
// operations, and the order's transition to executed.
func (e *Engine) settle(o *domain.Order, price domain.Money) ([]*domain.Operation, error) {
	acc, err := e.accounts.Get(o.AccountID)
	if err != nil {
		return nil, err
	}
	units := o.Units()
	notional := price.MulInt(units)
	fee := e.commission.Fee(notional)

	payment := notional
	if o.Direction == domain.DirectionBuy {
		err = e.ledger.SettleBuy(acc, o, price, fee)
		payment = notional.Neg()
	} else {
		err = e.ledger.SettleSell(acc, o, price, fee)
	}
	if err != nil {
		return nil, fmt.Errorf("settle order %s: %w", o.OrderID, err)
	}
	if err := o.Transition(domain.OrderStateExecuted, e.clock.Now); err != nil {
		return nil, err
	}
	o.ExecutionPrice = &price
	o.ExecutedCommission = &fee
	o.ReservedCash = domain.Zero(o.Currency)
	o.ReservedQuantity = 0

	trade := &domain.Operation{
		OperationID:  e.opIDs.next(e.clock.Now),
		AccountID:    o.AccountID,
		InstrumentID: o.InstrumentID,
		OrderID:      o.OrderID,
		Kind:         domain.OperationKindPayment,
		Direction:    o.Direction,
		State:        domain.OperationStateExecuted,
		Payment:      payment,
		Price:        price,
		Quantity:     units,
		Date:         e.clock.Now,
	}
	commission := &domain.Operation{
		OperationID:  e.opIDs.next(e.clock.Now),
		AccountID:    o.AccountID,
		InstrumentID: o.InstrumentID,
		OrderID:      o.OrderID,
		Kind:         domain.OperationKindCommission,
		Direction:    o.Direction,
		State:        domain.OperationStateExecuted,
		Payment:      fee.Abs().Neg(),
		Price:        domain.Zero(o.Currency),
		Date:         e.clock.Now,
	}
	e.operations.Append(trade, commission)
	return []*domain.Operation{trade, commission}, nil
}

// normalizeCandle tags feed quotations with the instrument currency. A
// candle already priced in another currency is rejected.
func (e *Engine) normalizeCandle(c domain.Candle) (domain.Candle, error) {
	inst, ok := e.market.Instrument(c.InstrumentID)
	if !ok {
		return c, nil
	}
	cur := inst.Currency
	for _, p := range []domain.Money{c.Open, c.High, c.Low, c.Close} {
		if p.Currency != "" && p.Currency != cur {
			return domain.Candle{}, fmt.Errorf("%w: candle in %s for instrument %s in %s",
				domain.ErrCurrencyMismatch, p.Currency, c.InstrumentID, cur)
		}
	}
	c.Open = c.Open.WithCurrency(cur)
	c.High = c.High.WithCurrency(cur)
	c.Low = c.Low.WithCurrency(cur)
	c.Close = c.Close.WithCurrency(cur)
	return c, nil
}
