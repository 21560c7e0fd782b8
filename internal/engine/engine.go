// Package engine is the paper-trading core: order admission, the pending
// queues, the tick scheduler, fills, settlement and portfolio valuation.
//
// All state lives behind one RWMutex per Engine. Mutations (submit,
// cancel, advance, account changes) hold the write lock until they
// complete; queries share the read lock. Events are published after the
// lock is released.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/events"
	"github.com/efreitasn/papertrade/internal/feed"
	"github.com/efreitasn/papertrade/internal/instrument"
	"github.com/efreitasn/papertrade/internal/metrics"
	"github.com/efreitasn/papertrade/internal/store"
)

// Config fixes the simulation parameters.
type Config struct {
	Start   time.Time       // simulated time before the first tick
	Step    time.Duration   // clock advance per tick
	FeeRate decimal.Decimal // commission rate on notional
	Seed    int64           // entropy seed for operation IDs; 0 picks one
}

// DefaultConfig matches the sandbox defaults: one-minute candles and a
// 0.3% fee.
func DefaultConfig() Config {
	return Config{
		Start:   time.Date(2022, 4, 29, 7, 0, 0, 1_000_000, time.UTC),
		Step:    time.Minute,
		FeeRate: DefaultFeeRate,
	}
}

// Engine simulates a broker for any number of independent accounts.
type Engine struct {
	mu sync.RWMutex

	clock      Clock
	seq        uint64
	commission Commission
	ledger     Ledger
	opIDs      *operationIDs

	ref       instrument.Reference
	feed      feed.Feed
	publisher events.Publisher
	logger    *zap.Logger
	metrics   *metrics.Metrics

	accounts   *store.AccountStore
	orders     *store.OrderStore
	operations *store.OperationStore
	market     *store.MarketStore
	queues     *QueueManager
}

// Option customises an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics records engine activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithPublisher sends order and operation events to p.
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// New creates an engine resolving instruments through ref and reading
// candles from f.
func New(cfg Config, ref instrument.Reference, f feed.Feed, opts ...Option) (*Engine, error) {
	if cfg.Step <= 0 {
		return nil, fmt.Errorf("engine: step must be positive, got %s", cfg.Step)
	}
	if cfg.Start.Before(time.Unix(0, 0)) {
		return nil, fmt.Errorf("engine: start %s is before the Unix epoch", cfg.Start)
	}
	if cfg.FeeRate.IsNegative() {
		return nil, fmt.Errorf("engine: fee rate must not be negative, got %s", cfg.FeeRate)
	}
	e := &Engine{
		clock:      Clock{Now: cfg.Start.UTC(), Step: cfg.Step},
		commission: Commission{Rate: cfg.FeeRate},
		opIDs:      newOperationIDs(cfg.Seed),
		ref:        ref,
		feed:       f,
		publisher:  events.Nop{},
		logger:     zap.NewNop(),
		accounts:   store.NewAccountStore(),
		orders:     store.NewOrderStore(),
		operations: store.NewOperationStore(),
		market:     store.NewMarketStore(),
		queues:     NewQueueManager(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// SubmitRequest is a client order. OrderID is optional; an empty ID gets a
// generated one.
type SubmitRequest struct {
	AccountID    string
	OrderID      string
	InstrumentID string
	Direction    domain.Direction
	Kind         domain.OrderKind
	QuantityLots int64
	LimitPrice   *domain.Money
}

func (r SubmitRequest) validate() error {
	if r.AccountID == "" {
		return &domain.ValidationError{Message: "account_id is required"}
	}
	if r.InstrumentID == "" {
		return &domain.ValidationError{Message: "instrument_id is required"}
	}
	if r.Direction != domain.DirectionBuy && r.Direction != domain.DirectionSell {
		return &domain.ValidationError{Message: "direction must be 'buy' or 'sell'"}
	}
	switch r.Kind {
	case domain.OrderKindMarket:
	case domain.OrderKindLimit:
		if r.LimitPrice == nil {
			return &domain.ValidationError{Message: "price is required for limit orders"}
		}
		if r.LimitPrice.Sign() <= 0 {
			return &domain.ValidationError{Message: "price must be positive"}
		}
	case domain.OrderKindBestPrice:
		return domain.UnsupportedError("bestprice order kind")
	default:
		return &domain.ValidationError{Message: "kind must be 'market' or 'limit'"}
	}
	if r.QuantityLots <= 0 {
		return &domain.ValidationError{Message: "quantity must be a positive integer"}
	}
	return nil
}

// SubmitOrder validates an order, reserves cash or units for it and makes
// it pending. A rejected order leaves no trace in the ledger or the order
// store.
func (e *Engine) SubmitOrder(ctx context.Context, req SubmitRequest) (*domain.Order, error) {
	o, err := e.submit(ctx, req)
	if err != nil {
		e.metrics.OrderRejected(rejectReason(err))
		e.logger.Debug("order rejected",
			zap.String("account_id", req.AccountID),
			zap.String("instrument_id", req.InstrumentID),
			zap.String("direction", string(req.Direction)),
			zap.Int64("quantity_lots", req.QuantityLots),
			zap.Error(err),
		)
		return nil, err
	}
	e.metrics.OrderSubmitted(string(o.Direction), string(o.Kind))
	e.logger.Info("order accepted",
		zap.String("account_id", o.AccountID),
		zap.String("order_id", o.OrderID),
		zap.String("instrument_id", o.InstrumentID),
		zap.String("direction", string(o.Direction)),
		zap.String("kind", string(o.Kind)),
		zap.Int64("quantity_lots", o.QuantityLots),
		zap.Stringer("total_order_amount", o.TotalOrderAmount),
	)
	return o, nil
}

func (e *Engine) submit(ctx context.Context, req SubmitRequest) (*domain.Order, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	// Resolved outside the lock: lookups may hit disk or upstream.
	inst, err := e.ref.Resolve(ctx, instrument.ByFigi(req.InstrumentID))
	if err != nil {
		return nil, err
	}
	if req.Direction == domain.DirectionBuy && !inst.BuyAvailable ||
		req.Direction == domain.DirectionSell && !inst.SellAvailable {
		return nil, fmt.Errorf("%w: %s %s", domain.ErrInstrumentNotTradable, req.Direction, inst.InstrumentID)
	}
	if inst.LotSize <= 0 {
		return nil, fmt.Errorf("instrument %s has lot size %d", inst.InstrumentID, inst.LotSize)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	acc, err := e.openAccount(req.AccountID)
	if err != nil {
		return nil, err
	}
	orderID := req.OrderID
	if orderID == "" {
		orderID = uuid.NewString()
	} else if e.orders.Exists(acc.AccountID, orderID) {
		return nil, &domain.ValidationError{Message: fmt.Sprintf("order %s already exists", orderID)}
	}

	inst.CurrentPrice = inst.CurrentPrice.WithCurrency(inst.Currency)
	if req.QuantityLots > math.MaxInt64/inst.LotSize {
		return nil, &domain.ValidationError{Message: "quantity is out of range"}
	}

	var price domain.Money
	if req.Kind == domain.OrderKindLimit {
		if c := req.LimitPrice.Currency; c != "" && c != inst.Currency {
			return nil, &domain.ValidationError{Message: fmt.Sprintf("price currency %s does not match instrument currency %s", c, inst.Currency)}
		}
		price = req.LimitPrice.WithCurrency(inst.Currency)
	} else {
		price = inst.CurrentPrice
		if c, ok := e.market.LastCandle(inst.InstrumentID); ok {
			price = c.Close
		}
		if price.Sign() <= 0 {
			return nil, &domain.ValidationError{Message: fmt.Sprintf("no market price for instrument %s", inst.InstrumentID)}
		}
	}

	o := &domain.Order{
		OrderID:        orderID,
		AccountID:      acc.AccountID,
		InstrumentID:   inst.InstrumentID,
		Direction:      req.Direction,
		Kind:           req.Kind,
		QuantityLots:   req.QuantityLots,
		LotSize:        inst.LotSize,
		Currency:       inst.Currency,
		State:          domain.OrderStatePending,
		CreatedAt:      e.clock.Now,
		ReferencePrice: price,
		ReservedCash:   domain.Zero(inst.Currency),
	}
	if req.Kind == domain.OrderKindLimit {
		limit := price
		o.LimitPrice = &limit
	}
	if o.InitialOrderPrice, err = price.CheckedMulInt(o.Units()); err != nil {
		return nil, &domain.ValidationError{Message: "order amount is out of range"}
	}
	o.InitialCommission = e.commission.Fee(o.InitialOrderPrice)

	if o.Direction == domain.DirectionBuy {
		if o.TotalOrderAmount, err = o.InitialOrderPrice.CheckedAdd(o.InitialCommission); err != nil {
			return nil, &domain.ValidationError{Message: "order amount is out of range"}
		}
		if err := e.ledger.ReserveCash(acc, o.InstrumentID, o.TotalOrderAmount); err != nil {
			return nil, err
		}
		o.ReservedCash = o.TotalOrderAmount
	} else {
		o.TotalOrderAmount = o.InitialOrderPrice.Sub(o.InitialCommission)
		if err := e.ledger.ReserveQuantity(acc, o.InstrumentID, o.Units()); err != nil {
			return nil, err
		}
		o.ReservedQuantity = o.Units()
	}

	e.seq++
	o.Seq = e.seq
	if err := e.orders.Create(o); err != nil {
		_ = e.ledger.Release(acc, o)
		return nil, err
	}
	e.market.Register(inst)
	e.queues.GetOrCreate(o.InstrumentID).Insert(o)
	return o.Clone(), nil
}

// ReplaceOrder is not modelled.
func (e *Engine) ReplaceOrder(context.Context, string, string) (*domain.Order, error) {
	return nil, domain.UnsupportedError("replace order")
}

// CancelOrder cancels a pending order of the account and releases exactly
// the reservation it held. No operation is posted.
func (e *Engine) CancelOrder(ctx context.Context, accountID, orderID string) (*domain.Order, error) {
	e.mu.Lock()
	acc, err := e.accounts.Get(accountID)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	o, err := e.orders.Get(acc.AccountID, orderID)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if err := e.cancelLocked(acc, o); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	out := o.Clone()
	e.mu.Unlock()

	e.metrics.OrderCancelled()
	e.logger.Info("order cancelled",
		zap.String("account_id", accountID),
		zap.String("order_id", orderID),
	)
	e.publish(ctx, events.Event{Type: events.OrderCancelled, AccountID: accountID, OccurredAt: *out.CancelledAt, Order: out})
	return out, nil
}

func (e *Engine) cancelLocked(acc *domain.Account, o *domain.Order) error {
	if !o.IsPending() {
		return fmt.Errorf("%w: order %s is %s", domain.ErrOrderNotPending, o.OrderID, o.State)
	}
	if err := e.ledger.Release(acc, o); err != nil {
		return err
	}
	if err := o.Transition(domain.OrderStateCancelled, e.clock.Now); err != nil {
		return err
	}
	o.ReservedCash = domain.Zero(o.Currency)
	o.ReservedQuantity = 0
	e.queues.Remove(o)
	return nil
}

// ListOrders returns the account's pending orders in submission order.
func (e *Engine) ListOrders(accountID string) ([]*domain.Order, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.accounts.Exists(accountID) {
		return nil, domain.ErrAccountNotFound
	}
	return cloneOrders(e.orders.ListPending(accountID)), nil
}

// GetOrder returns an order of the account in any state.
func (e *Engine) GetOrder(accountID, orderID string) (*domain.Order, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.accounts.Exists(accountID) {
		return nil, domain.ErrAccountNotFound
	}
	o, err := e.orders.Get(accountID, orderID)
	if err != nil {
		return nil, err
	}
	return o.Clone(), nil
}

// GetOperations returns the account's operations in posting order.
func (e *Engine) GetOperations(accountID string, f store.OperationFilter) ([]*domain.Operation, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.accounts.Exists(accountID) {
		return nil, domain.ErrAccountNotFound
	}
	ops := e.operations.List(accountID, f)
	out := make([]*domain.Operation, len(ops))
	for i, op := range ops {
		c := *op
		out[i] = &c
	}
	return out, nil
}

// OpenAccount creates an account funded with initialCapital, which also
// fixes the account's base currency.
func (e *Engine) OpenAccount(_ context.Context, name string, initialCapital domain.Money) (*domain.Account, error) {
	if initialCapital.Currency == "" {
		return nil, &domain.ValidationError{Message: "initial capital currency is required"}
	}
	if initialCapital.Sign() < 0 {
		return nil, &domain.ValidationError{Message: "initial capital must not be negative"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	acc := domain.NewAccount(uuid.NewString(), name, initialCapital, e.clock.Now)
	if err := e.accounts.Create(acc); err != nil {
		return nil, err
	}
	e.logger.Info("account opened",
		zap.String("account_id", acc.AccountID),
		zap.Stringer("initial_capital", initialCapital),
	)
	return acc.Clone(), nil
}

// CloseAccount cancels the account's pending orders and closes it. A
// closed account still answers queries.
func (e *Engine) CloseAccount(ctx context.Context, accountID string) error {
	e.mu.Lock()
	acc, err := e.openAccount(accountID)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	var cancelled []*domain.Order
	for _, o := range e.orders.ListPending(accountID) {
		if err := e.cancelLocked(acc, o); err != nil {
			e.mu.Unlock()
			return err
		}
		cancelled = append(cancelled, o.Clone())
	}
	now := e.clock.Now
	acc.Status = domain.AccountStatusClosed
	acc.ClosedAt = &now
	e.mu.Unlock()

	for _, o := range cancelled {
		e.metrics.OrderCancelled()
		e.publish(ctx, events.Event{Type: events.OrderCancelled, AccountID: accountID, OccurredAt: now, Order: o})
	}
	e.logger.Info("account closed", zap.String("account_id", accountID), zap.Int("cancelled_orders", len(cancelled)))
	return nil
}

// GetAccount returns a copy of the account.
func (e *Engine) GetAccount(accountID string) (*domain.Account, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	acc, err := e.accounts.Get(accountID)
	if err != nil {
		return nil, err
	}
	return acc.Clone(), nil
}

// ListAccounts returns copies of every account, oldest first.
func (e *Engine) ListAccounts() []*domain.Account {
	e.mu.RLock()
	defer e.mu.RUnlock()

	all := e.accounts.List()
	out := make([]*domain.Account, len(all))
	for i, a := range all {
		out[i] = a.Clone()
	}
	return out
}

// PayIn deposits amount into the account and posts a pay_in operation.
// It returns the new total balance in that currency.
func (e *Engine) PayIn(ctx context.Context, accountID string, amount domain.Money) (domain.Money, error) {
	if amount.Currency == "" {
		return domain.Money{}, &domain.ValidationError{Message: "amount currency is required"}
	}
	if amount.Sign() <= 0 {
		return domain.Money{}, &domain.ValidationError{Message: "amount must be positive"}
	}

	e.mu.Lock()
	acc, err := e.openAccount(accountID)
	if err != nil {
		e.mu.Unlock()
		return domain.Money{}, err
	}
	e.ledger.PayIn(acc, amount)
	op := &domain.Operation{
		OperationID: e.opIDs.next(e.clock.Now),
		AccountID:   accountID,
		Kind:        domain.OperationKindPayIn,
		State:       domain.OperationStateExecuted,
		Payment:     amount,
		Price:       domain.Zero(amount.Currency),
		Date:        e.clock.Now,
	}
	e.operations.Append(op)
	total := acc.CashBalance(amount.Currency).Total
	opCopy := *op
	e.mu.Unlock()

	e.logger.Info("pay-in", zap.String("account_id", accountID), zap.Stringer("amount", amount))
	e.publish(ctx, events.Event{Type: events.OperationPosted, AccountID: accountID, OccurredAt: op.Date, Operation: &opCopy})
	return total, nil
}

// openAccount returns the account if it exists and is open. Callers hold
// the write lock.
func (e *Engine) openAccount(accountID string) (*domain.Account, error) {
	acc, err := e.accounts.Get(accountID)
	if err != nil {
		return nil, err
	}
	if acc.Status == domain.AccountStatusClosed {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountClosed, accountID)
	}
	return acc, nil
}

func (e *Engine) publish(ctx context.Context, ev events.Event) {
	if err := e.publisher.Publish(ctx, ev); err != nil {
		e.logger.Warn("event publish failed",
			zap.String("event", ev.Type),
			zap.String("account_id", ev.AccountID),
			zap.Error(err),
		)
	}
}

func cloneOrders(orders []*domain.Order) []*domain.Order {
	out := make([]*domain.Order, len(orders))
	for i, o := range orders {
		out[i] = o.Clone()
	}
	return out
}

func rejectReason(err error) string {
	for _, sentinel := range []error{
		domain.ErrInsufficientFunds,
		domain.ErrInsufficientHoldings,
		domain.ErrInstrumentNotFound,
		domain.ErrInstrumentNotTradable,
		domain.ErrAccountNotFound,
		domain.ErrAccountClosed,
		domain.ErrUnsupportedOperation,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return "validation"
	}
	return "other"
}
