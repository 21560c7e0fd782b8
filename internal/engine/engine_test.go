package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/events"
	"github.com/efreitasn/papertrade/internal/feed"
	"github.com/efreitasn/papertrade/internal/instrument"
	"github.com/efreitasn/papertrade/internal/store"
)

const sber = "BBG004730N88"

func rub(s string) domain.Money { return domain.MustParseMoney(s, "rub") }

func quote(s string) domain.Money { return domain.MustParseMoney(s, "") }

func sberInstrument() domain.Instrument {
	return domain.Instrument{
		InstrumentID:  sber,
		Ticker:        "SBER",
		ClassCode:     "TQBR",
		Name:          "Сбер Банк",
		Type:          domain.InstrumentTypeShare,
		LotSize:       10,
		Currency:      "rub",
		BuyAvailable:  true,
		SellAvailable: true,
		CurrentPrice:  rub("122.86"),
	}
}

// sberCandles are the minute candles following 2022-04-29T07:00Z.
func sberCandles() []domain.Candle {
	at := func(min int) time.Time {
		return time.Date(2022, 4, 29, 7, min, 0, 1_000_000, time.UTC)
	}
	return []domain.Candle{
		{InstrumentID: sber, Time: at(1), Open: quote("122.86"), High: quote("123.87"), Low: quote("122.8"), Close: quote("123.65")},
		{InstrumentID: sber, Time: at(2), Open: quote("123.65"), High: quote("124.1"), Low: quote("123.4"), Close: quote("123.9")},
		{InstrumentID: sber, Time: at(3), Open: quote("123.9"), High: quote("124.3"), Low: quote("123.7"), Close: quote("124.2")},
	}
}

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	eng     *Engine
	acc     string
	events  *recorder
	candles *feed.Memory
}

func newFixture(t *testing.T, candles ...domain.Candle) *fixture {
	t.Helper()
	if candles == nil {
		candles = sberCandles()
	}
	rec := &recorder{}
	mem := feed.NewMemory(candles)
	cfg := DefaultConfig()
	cfg.Seed = 42
	eng, err := New(cfg, instrument.NewCatalog(sberInstrument()), mem, WithPublisher(rec))
	require.NoError(t, err)

	acc, err := eng.OpenAccount(context.Background(), "main", rub("100000"))
	require.NoError(t, err)
	return &fixture{eng: eng, acc: acc.AccountID, events: rec, candles: mem}
}

func (f *fixture) submit(t *testing.T, dir domain.Direction, kind domain.OrderKind, lots int64, limit string) *domain.Order {
	t.Helper()
	req := SubmitRequest{
		AccountID:    f.acc,
		InstrumentID: sber,
		Direction:    dir,
		Kind:         kind,
		QuantityLots: lots,
	}
	if limit != "" {
		p := quote(limit)
		req.LimitPrice = &p
	}
	o, err := f.eng.SubmitOrder(context.Background(), req)
	require.NoError(t, err)
	return o
}

func (f *fixture) tick(t *testing.T) TickReport {
	t.Helper()
	r, err := f.eng.Advance(context.Background())
	require.NoError(t, err)
	return r
}

func (f *fixture) payments(t *testing.T) []domain.Money {
	t.Helper()
	ops, err := f.eng.GetOperations(f.acc, store.OperationFilter{InstrumentID: sber, State: domain.OperationStateExecuted})
	require.NoError(t, err)
	out := make([]domain.Money, len(ops))
	for i, op := range ops {
		out[i] = op.Payment
	}
	return out
}

func TestNew_RejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Step = 0
	_, err := New(cfg, instrument.NewCatalog(), feed.NewMemory(nil))
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.FeeRate = cfg.FeeRate.Neg()
	_, err = New(cfg, instrument.NewCatalog(), feed.NewMemory(nil))
	assert.Error(t, err)
}

func TestMarketBuy(t *testing.T) {
	f := newFixture(t)

	o := f.submit(t, domain.DirectionBuy, domain.OrderKindMarket, 1, "")
	assert.Equal(t, domain.OrderStatePending, o.State)
	assert.Equal(t, "2022-04-29T07:00:00.001Z", o.CreatedAt.Format("2006-01-02T15:04:05.000Z"))
	assert.Equal(t, rub("1228.6"), o.InitialOrderPrice)
	assert.Equal(t, rub("3.6858"), o.InitialCommission)
	assert.Equal(t, rub("1232.2858"), o.TotalOrderAmount)

	pending, err := f.eng.ListOrders(f.acc)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	pos, err := f.eng.GetPositions(f.acc)
	require.NoError(t, err)
	assert.Equal(t, []domain.Money{rub("1232.2858")}, pos.Blocked)
	assert.Equal(t, []domain.Money{rub("98767.7142")}, pos.Money)
	assert.Empty(t, pos.Securities)

	report := f.tick(t)
	require.Len(t, report.Executed, 1)
	assert.Equal(t, domain.OrderStateExecuted, report.Executed[0].State)

	pending, err = f.eng.ListOrders(f.acc)
	require.NoError(t, err)
	assert.Empty(t, pending)

	ops, err := f.eng.GetOperations(f.acc, store.OperationFilter{InstrumentID: sber, State: domain.OperationStateExecuted})
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, rub("-1228.6"), ops[0].Payment)
	assert.Equal(t, domain.OperationKindPayment, ops[0].Kind)
	assert.Equal(t, "2022-04-29T07:01:00.001Z", ops[0].Date.Format("2006-01-02T15:04:05.000Z"))
	assert.Equal(t, rub("-3.6858"), ops[1].Payment)
	assert.Equal(t, domain.OperationKindCommission, ops[1].Kind)
	assert.Less(t, ops[0].OperationID, ops[1].OperationID)

	pf, err := f.eng.GetPortfolio(f.acc)
	require.NoError(t, err)
	require.Len(t, pf.Positions, 1)
	p := pf.Positions[0]
	assert.Equal(t, rub("123.65"), p.CurrentPrice)
	assert.Equal(t, rub("122.86"), p.AveragePositionPrice)
	assert.Equal(t, rub("122.86"), p.AveragePositionPriceFIFO)
	assert.Equal(t, int64(1), p.QuantityLots)
	assert.Equal(t, int64(10), p.Quantity)
	assert.Equal(t, domain.InstrumentTypeShare, p.Type)

	pos, err = f.eng.GetPositions(f.acc)
	require.NoError(t, err)
	assert.Empty(t, pos.Blocked)
	assert.Equal(t, []domain.Money{rub("98767.7142")}, pos.Money)
	assert.Equal(t, []Security{{InstrumentID: sber, Balance: 10}}, pos.Securities)

	assert.Equal(t, rub("98767.7142"), pf.TotalAmountCurrencies)
	assert.Equal(t, rub("1236.5"), pf.TotalAmountShares)
	assert.Equal(t, rub("100004.2142"), pf.TotalAmountPortfolio)
	assert.Equal(t, domain.NewMoney(0, 4214200, ""), pf.ExpectedYield)

	assert.Equal(t, []string{events.OrderExecuted, events.OperationPosted, events.OperationPosted}, f.events.types())
}

func TestMarketSell(t *testing.T) {
	f := newFixture(t)

	f.submit(t, domain.DirectionBuy, domain.OrderKindMarket, 1, "")
	f.tick(t)

	sell := f.submit(t, domain.DirectionSell, domain.OrderKindMarket, 1, "")
	assert.Equal(t, rub("1236.5"), sell.InitialOrderPrice)
	assert.Equal(t, rub("3.7095"), sell.InitialCommission)
	assert.Equal(t, rub("1232.7905"), sell.TotalOrderAmount)

	pos, err := f.eng.GetPositions(f.acc)
	require.NoError(t, err)
	assert.Equal(t, []Security{{InstrumentID: sber, Balance: 0, Blocked: 10}}, pos.Securities)

	f.tick(t)

	assert.Equal(t, []domain.Money{rub("-1228.6"), rub("-3.6858"), rub("1236.5"), rub("-3.7095")}, f.payments(t))

	pf, err := f.eng.GetPortfolio(f.acc)
	require.NoError(t, err)
	assert.Equal(t, rub("100000.5047"), pf.TotalAmountCurrencies)
	require.Len(t, pf.Positions, 1)
	assert.Equal(t, int64(0), pf.Positions[0].QuantityLots)
	assert.Equal(t, int64(0), pf.Positions[0].Quantity)
	assert.Equal(t, rub("0"), pf.Positions[0].AveragePositionPrice)

	pos, err = f.eng.GetPositions(f.acc)
	require.NoError(t, err)
	assert.Empty(t, pos.Securities)
}

func TestLimitBuy_FillsAtLimit(t *testing.T) {
	f := newFixture(t)

	o := f.submit(t, domain.DirectionBuy, domain.OrderKindLimit, 10, "123")
	assert.Equal(t, rub("12300"), o.InitialOrderPrice)

	f.tick(t)

	pending, err := f.eng.ListOrders(f.acc)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, []domain.Money{rub("-12300"), rub("-36.9")}, f.payments(t))

	got, err := f.eng.GetOrder(f.acc, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStateExecuted, got.State)
	require.NotNil(t, got.ExecutionPrice)
	assert.Equal(t, rub("123"), *got.ExecutionPrice)
}

func TestLimitSell_FillsWhenHighReachesLimit(t *testing.T) {
	f := newFixture(t)
	f.submit(t, domain.DirectionBuy, domain.OrderKindMarket, 2, "")
	f.tick(t)

	// Second candle has H=124.1: 124.5 waits, 124.1 fills.
	high := f.submit(t, domain.DirectionSell, domain.OrderKindLimit, 1, "124.5")
	exact := f.submit(t, domain.DirectionSell, domain.OrderKindLimit, 1, "124.1")
	report := f.tick(t)

	require.Len(t, report.Executed, 1)
	assert.Equal(t, exact.OrderID, report.Executed[0].OrderID)

	got, err := f.eng.GetOrder(f.acc, high.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatePending, got.State)
}

func TestLimitBuy_NotReachedStaysPending(t *testing.T) {
	f := newFixture(t)
	o := f.submit(t, domain.DirectionBuy, domain.OrderKindLimit, 1, "100")

	for i := 0; i < 3; i++ {
		f.tick(t)
	}
	got, err := f.eng.GetOrder(f.acc, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatePending, got.State)
	assert.Empty(t, f.payments(t))
}

func TestCancelOrder_ReleasesReservation(t *testing.T) {
	f := newFixture(t)
	o := f.submit(t, domain.DirectionBuy, domain.OrderKindLimit, 1, "100")
	f.tick(t)

	cancelled, err := f.eng.CancelOrder(context.Background(), f.acc, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStateCancelled, cancelled.State)
	require.NotNil(t, cancelled.CancelledAt)

	pending, err := f.eng.ListOrders(f.acc)
	require.NoError(t, err)
	assert.Empty(t, pending)

	pos, err := f.eng.GetPositions(f.acc)
	require.NoError(t, err)
	assert.Equal(t, []domain.Money{rub("100000")}, pos.Money)
	assert.Empty(t, pos.Blocked)

	pf, err := f.eng.GetPortfolio(f.acc)
	require.NoError(t, err)
	assert.Equal(t, rub("100000"), pf.TotalAmountCurrencies)

	ops, err := f.eng.GetOperations(f.acc, store.OperationFilter{})
	require.NoError(t, err)
	assert.Empty(t, ops)

	_, err = f.eng.CancelOrder(context.Background(), f.acc, o.OrderID)
	assert.ErrorIs(t, err, domain.ErrOrderNotPending)
	_, err = f.eng.CancelOrder(context.Background(), f.acc, "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestCancelSell_ReleasesUnits(t *testing.T) {
	f := newFixture(t)
	f.submit(t, domain.DirectionBuy, domain.OrderKindMarket, 1, "")
	f.tick(t)

	o := f.submit(t, domain.DirectionSell, domain.OrderKindLimit, 1, "500")
	_, err := f.eng.CancelOrder(context.Background(), f.acc, o.OrderID)
	require.NoError(t, err)

	pos, err := f.eng.GetPositions(f.acc)
	require.NoError(t, err)
	assert.Equal(t, []Security{{InstrumentID: sber, Balance: 10}}, pos.Securities)
}

func TestOversell_Rejected(t *testing.T) {
	f := newFixture(t)
	before := f.eng.Snapshot()

	_, err := f.eng.SubmitOrder(context.Background(), SubmitRequest{
		AccountID:    f.acc,
		InstrumentID: sber,
		Direction:    domain.DirectionSell,
		Kind:         domain.OrderKindMarket,
		QuantityLots: 5,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientHoldings)
	assert.Contains(t, err.Error(), "negative balance of instrument BBG004730N88: -50")

	var he *domain.InsufficientHoldingsError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, int64(-50), he.Balance)

	after := f.eng.Snapshot()
	assert.Equal(t, before.Accounts, after.Accounts)
	assert.Empty(t, after.Orders)
}

func TestSubmit_QuantityOutOfRange(t *testing.T) {
	f := newFixture(t)
	before := f.eng.Snapshot()

	tests := []struct {
		name string
		dir  domain.Direction
		lots int64
	}{
		// 922337203685477581 × 10 wraps to a negative unit count.
		{"buy wrapping units", domain.DirectionBuy, 922337203685477581},
		{"sell wrapping units", domain.DirectionSell, 1 << 62},
		// Units fit but the notional does not.
		{"buy notional overflow", domain.DirectionBuy, 1 << 58},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.eng.SubmitOrder(context.Background(), SubmitRequest{
				AccountID:    f.acc,
				InstrumentID: sber,
				Direction:    tt.dir,
				Kind:         domain.OrderKindMarket,
				QuantityLots: tt.lots,
			})
			var ve *domain.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
		})
	}

	after := f.eng.Snapshot()
	assert.Equal(t, before.Accounts, after.Accounts)
	assert.Empty(t, after.Orders)

	pos, err := f.eng.GetPositions(f.acc)
	require.NoError(t, err)
	assert.Equal(t, []domain.Money{rub("100000")}, pos.Money)
	assert.Empty(t, pos.Blocked)
}

func TestOversell_LargeQuantityWithoutPosition(t *testing.T) {
	f := newFixture(t)

	// Fits in int64 after multiplying by the lot size.
	_, err := f.eng.SubmitOrder(context.Background(), SubmitRequest{
		AccountID:    f.acc,
		InstrumentID: sber,
		Direction:    domain.DirectionSell,
		Kind:         domain.OrderKindLimit,
		QuantityLots: 1 << 40,
		LimitPrice:   ptr(quote("1")),
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientHoldings)
	assert.Empty(t, f.eng.Snapshot().Orders)
}

func TestSubmit_RejectedLeavesMarketUntouched(t *testing.T) {
	f := newFixture(t)

	_, err := f.eng.SubmitOrder(context.Background(), SubmitRequest{
		AccountID:    f.acc,
		InstrumentID: sber,
		Direction:    domain.DirectionBuy,
		Kind:         domain.OrderKindLimit,
		QuantityLots: 1000,
		LimitPrice:   ptr(quote("100")),
	})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Empty(t, f.eng.market.Instruments())

	f.submit(t, domain.DirectionBuy, domain.OrderKindLimit, 1, "100")
	assert.Len(t, f.eng.market.Instruments(), 1)
}

func TestBuy_InsufficientFunds(t *testing.T) {
	f := newFixture(t)

	_, err := f.eng.SubmitOrder(context.Background(), SubmitRequest{
		AccountID:    f.acc,
		InstrumentID: sber,
		Direction:    domain.DirectionBuy,
		Kind:         domain.OrderKindLimit,
		QuantityLots: 100,
		LimitPrice:   ptr(quote("100")),
	})
	// 100000 + 300 fee against 100000 available.
	var fe *domain.InsufficientFundsError
	require.True(t, errors.As(err, &fe))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, rub("300"), fe.Shortfall)

	pos, err := f.eng.GetPositions(f.acc)
	require.NoError(t, err)
	assert.Equal(t, []domain.Money{rub("100000")}, pos.Money)
}

func TestSubmit_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  SubmitRequest
		want error
	}{
		{"unknown instrument", SubmitRequest{AccountID: f.acc, InstrumentID: "NOPE", Direction: domain.DirectionBuy, Kind: domain.OrderKindMarket, QuantityLots: 1}, domain.ErrInstrumentNotFound},
		{"unknown account", SubmitRequest{AccountID: "nope", InstrumentID: sber, Direction: domain.DirectionBuy, Kind: domain.OrderKindMarket, QuantityLots: 1}, domain.ErrAccountNotFound},
		{"bestprice", SubmitRequest{AccountID: f.acc, InstrumentID: sber, Direction: domain.DirectionBuy, Kind: domain.OrderKindBestPrice, QuantityLots: 1}, domain.ErrUnsupportedOperation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.eng.SubmitOrder(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	invalid := []SubmitRequest{
		{AccountID: f.acc, InstrumentID: sber, Direction: "hold", Kind: domain.OrderKindMarket, QuantityLots: 1},
		{AccountID: f.acc, InstrumentID: sber, Direction: domain.DirectionBuy, Kind: domain.OrderKindMarket, QuantityLots: 0},
		{AccountID: f.acc, InstrumentID: sber, Direction: domain.DirectionBuy, Kind: domain.OrderKindLimit, QuantityLots: 1},
		{AccountID: f.acc, InstrumentID: sber, Direction: domain.DirectionBuy, Kind: domain.OrderKindLimit, QuantityLots: 1, LimitPrice: ptr(quote("-1"))},
		{AccountID: f.acc, InstrumentID: sber, Direction: domain.DirectionBuy, Kind: domain.OrderKindLimit, QuantityLots: 1, LimitPrice: ptr(domain.MustParseMoney("1", "usd"))},
	}
	for _, req := range invalid {
		_, err := f.eng.SubmitOrder(ctx, req)
		var ve *domain.ValidationError
		assert.True(t, errors.As(err, &ve), "request %+v: got %v", req, err)
	}
}

func TestSubmit_DuplicateOrderID(t *testing.T) {
	f := newFixture(t)
	req := SubmitRequest{
		AccountID:    f.acc,
		OrderID:      "1",
		InstrumentID: sber,
		Direction:    domain.DirectionBuy,
		Kind:         domain.OrderKindLimit,
		QuantityLots: 1,
		LimitPrice:   ptr(quote("100")),
	}
	_, err := f.eng.SubmitOrder(context.Background(), req)
	require.NoError(t, err)

	_, err = f.eng.SubmitOrder(context.Background(), req)
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))

	pos, err := f.eng.GetPositions(f.acc)
	require.NoError(t, err)
	assert.Equal(t, []domain.Money{rub("1003")}, pos.Blocked)
}

func TestSubmit_NotTradable(t *testing.T) {
	inst := sberInstrument()
	inst.BuyAvailable = false
	eng, err := New(DefaultConfig(), instrument.NewCatalog(inst), feed.NewMemory(nil))
	require.NoError(t, err)
	acc, err := eng.OpenAccount(context.Background(), "", rub("1000"))
	require.NoError(t, err)

	_, err = eng.SubmitOrder(context.Background(), SubmitRequest{
		AccountID: acc.AccountID, InstrumentID: sber, Direction: domain.DirectionBuy, Kind: domain.OrderKindMarket, QuantityLots: 1,
	})
	assert.ErrorIs(t, err, domain.ErrInstrumentNotTradable)
}

func TestAverageCost_LotWeighted(t *testing.T) {
	f := newFixture(t)

	// 1 lot at 122.86, then 2 lots at 123.65 (close of the first candle).
	f.submit(t, domain.DirectionBuy, domain.OrderKindMarket, 1, "")
	f.tick(t)
	f.submit(t, domain.DirectionBuy, domain.OrderKindMarket, 2, "")
	f.tick(t)

	pf, err := f.eng.GetPortfolio(f.acc)
	require.NoError(t, err)
	require.Len(t, pf.Positions, 1)
	// (1228.6 + 2473) / 30
	assert.Equal(t, rub("123.386666667"), pf.Positions[0].AveragePositionPrice)
	assert.Equal(t, int64(30), pf.Positions[0].Quantity)
}

func TestAdvance_FeedExhaustedKeepsOrdersPending(t *testing.T) {
	f := newFixture(t, sberCandles()[0])
	f.submit(t, domain.DirectionBuy, domain.OrderKindLimit, 1, "100")

	f.tick(t)
	report := f.tick(t)
	assert.Equal(t, []string{sber}, report.Starved)

	pending, err := f.eng.ListOrders(f.acc)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Equal(t, int64(2), f.eng.Clock().Ticks)
}

func TestAdvance_ForeignCurrencyCandleIsSkipped(t *testing.T) {
	c := sberCandles()[0]
	c.Open = c.Open.WithCurrency("usd")
	c.High = c.High.WithCurrency("usd")
	c.Low = c.Low.WithCurrency("usd")
	c.Close = c.Close.WithCurrency("usd")
	f := newFixture(t, c)
	f.submit(t, domain.DirectionBuy, domain.OrderKindLimit, 1, "124")

	report := f.tick(t)
	assert.Equal(t, []string{sber}, report.Starved)
	assert.Empty(t, report.Candles)

	pending, err := f.eng.ListOrders(f.acc)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	_, ok := f.eng.market.LastCandle(sber)
	assert.False(t, ok)
}

func TestAdvance_OnlyActiveInstrumentsConsumeCandles(t *testing.T) {
	f := newFixture(t)

	f.tick(t)
	f.tick(t)
	assert.Equal(t, 3, f.candles.Remaining(sber))

	start := DefaultConfig().Start
	assert.Equal(t, start.Add(2*time.Minute), f.eng.Clock().Now)
}

func TestAdvance_EvaluationOrder(t *testing.T) {
	f := newFixture(t)
	first := f.submit(t, domain.DirectionBuy, domain.OrderKindMarket, 1, "")
	second := f.submit(t, domain.DirectionBuy, domain.OrderKindLimit, 1, "123")

	report := f.tick(t)
	require.Len(t, report.Executed, 2)
	assert.Equal(t, first.OrderID, report.Executed[0].OrderID)
	assert.Equal(t, second.OrderID, report.Executed[1].OrderID)
}

func TestAdvanceN(t *testing.T) {
	f := newFixture(t)
	reports, err := f.eng.AdvanceN(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, reports, 3)
	assert.Equal(t, int64(3), reports[2].Tick)

	_, err = f.eng.AdvanceN(context.Background(), 0)
	var ve *domain.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestAdvance_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.eng.Advance(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), f.eng.Clock().Ticks)
}

func TestCloseAccount(t *testing.T) {
	f := newFixture(t)
	f.submit(t, domain.DirectionBuy, domain.OrderKindLimit, 1, "100")

	require.NoError(t, f.eng.CloseAccount(context.Background(), f.acc))

	acc, err := f.eng.GetAccount(f.acc)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusClosed, acc.Status)
	assert.Equal(t, rub("100000"), acc.AvailableCash("rub"))

	pending, err := f.eng.ListOrders(f.acc)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = f.eng.SubmitOrder(context.Background(), SubmitRequest{
		AccountID: f.acc, InstrumentID: sber, Direction: domain.DirectionBuy, Kind: domain.OrderKindMarket, QuantityLots: 1,
	})
	assert.ErrorIs(t, err, domain.ErrAccountClosed)
	assert.ErrorIs(t, f.eng.CloseAccount(context.Background(), f.acc), domain.ErrAccountClosed)
	assert.Contains(t, f.events.types(), events.OrderCancelled)
}

func TestPayIn(t *testing.T) {
	f := newFixture(t)

	total, err := f.eng.PayIn(context.Background(), f.acc, rub("500.5"))
	require.NoError(t, err)
	assert.Equal(t, rub("100500.5"), total)

	acc, err := f.eng.GetAccount(f.acc)
	require.NoError(t, err)
	assert.Equal(t, rub("100500.5"), acc.InitialCapital)

	ops, err := f.eng.GetOperations(f.acc, store.OperationFilter{})
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, domain.OperationKindPayIn, ops[0].Kind)
	assert.Equal(t, rub("500.5"), ops[0].Payment)

	pf, err := f.eng.GetPortfolio(f.acc)
	require.NoError(t, err)
	assert.True(t, pf.ExpectedYield.IsZero())

	_, err = f.eng.PayIn(context.Background(), f.acc, rub("-1"))
	var ve *domain.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestListAccounts_AreIsolated(t *testing.T) {
	f := newFixture(t)
	other, err := f.eng.OpenAccount(context.Background(), "second", rub("10"))
	require.NoError(t, err)

	f.submit(t, domain.DirectionBuy, domain.OrderKindMarket, 1, "")
	f.tick(t)

	accounts := f.eng.ListAccounts()
	require.Len(t, accounts, 2)

	pos, err := f.eng.GetPositions(other.AccountID)
	require.NoError(t, err)
	assert.Equal(t, []domain.Money{rub("10")}, pos.Money)
	assert.Empty(t, pos.Securities)

	_, err = f.eng.GetPortfolio("missing")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestReplaceOrder_Unsupported(t *testing.T) {
	f := newFixture(t)
	_, err := f.eng.ReplaceOrder(context.Background(), f.acc, "1")
	assert.ErrorIs(t, err, domain.ErrUnsupportedOperation)
}

func TestLastPrices(t *testing.T) {
	f := newFixture(t)

	prices, err := f.eng.LastPrices(context.Background(), []string{sber})
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, rub("122.86"), prices[0].Price)
	assert.Nil(t, prices[0].Time)

	f.submit(t, domain.DirectionBuy, domain.OrderKindLimit, 1, "100")
	f.tick(t)

	prices, err = f.eng.LastPrices(context.Background(), []string{sber})
	require.NoError(t, err)
	assert.Equal(t, rub("123.65"), prices[0].Price)
	require.NotNil(t, prices[0].Time)

	c, ok := f.eng.LastCandle(sber)
	require.True(t, ok)
	assert.Equal(t, rub("122.8"), c.Low)

	_, err = f.eng.LastPrices(context.Background(), []string{"NOPE"})
	assert.ErrorIs(t, err, domain.ErrInstrumentNotFound)
}

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	f := newFixture(t)
	f.submit(t, domain.DirectionBuy, domain.OrderKindMarket, 1, "")
	f.tick(t)
	pending := f.submit(t, domain.DirectionBuy, domain.OrderKindLimit, 1, "123.5")

	snap := f.eng.Snapshot()

	restored := newFixture(t)
	require.NoError(t, restored.eng.Restore(snap))
	restored.acc = f.acc

	assert.Equal(t, f.eng.Clock(), restored.eng.Clock())
	assert.Equal(t, f.payments(t), restored.payments(t))

	orders, err := restored.eng.ListOrders(f.acc)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, pending.OrderID, orders[0].OrderID)

	// Both continue identically: the second candle has L=123.4.
	a := f.tick(t)
	b := restored.tick(t)
	require.Len(t, a.Executed, 1)
	require.Len(t, b.Executed, 1)
	assert.Equal(t, a.Executed[0].OrderID, b.Executed[0].OrderID)

	pa, err := f.eng.GetPortfolio(f.acc)
	require.NoError(t, err)
	pb, err := restored.eng.GetPortfolio(f.acc)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
}

func ptr[T any](v T) *T { return &v }
