package engine

import (
	"context"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/feed"
	"github.com/efreitasn/papertrade/internal/instrument"
	"github.com/efreitasn/papertrade/internal/store"
)

// randomCandles draws a walk of n candles for sber.
func randomCandles(t *rapid.T, n int) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		low := rapid.Int64Range(100, 140).Draw(t, "low")
		spread := rapid.Int64Range(0, 10).Draw(t, "spread")
		closing := rapid.Int64Range(low, low+spread).Draw(t, "close")
		out[i] = domain.Candle{
			InstrumentID: sber,
			Time:         time.Date(2022, 4, 29, 7, i+1, 0, 1_000_000, time.UTC),
			Open:         domain.NewMoney(low, 0, ""),
			Low:          domain.NewMoney(low, 0, ""),
			High:         domain.NewMoney(low+spread, 0, ""),
			Close:        domain.NewMoney(closing, 0, ""),
		}
	}
	return out
}

// TestProperty_LedgerConservation drives random submissions, cancels and
// ticks and checks after every step that:
//   - blocked cash equals the sum of pending buy reservations;
//   - blocked units equal the sum of pending sell reservations;
//   - nothing is negative and blocked never exceeds total;
//   - cash equals the initial capital plus the sum of posted payments.
func TestProperty_LedgerConservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		cfg := DefaultConfig()
		cfg.Seed = 1
		eng, err := New(cfg, instrument.NewCatalog(sberInstrument()), feed.NewMemory(randomCandles(t, 40)))
		if err != nil {
			t.Fatal(err)
		}
		acc, err := eng.OpenAccount(ctx, "", rub("20000"))
		if err != nil {
			t.Fatal(err)
		}
		id := acc.AccountID

		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 3).Draw(t, "action") {
			case 0, 1:
				req := SubmitRequest{
					AccountID:    id,
					InstrumentID: sber,
					Direction:    rapid.SampledFrom([]domain.Direction{domain.DirectionBuy, domain.DirectionSell}).Draw(t, "dir"),
					Kind:         domain.OrderKindMarket,
					QuantityLots: rapid.Int64Range(1, 5).Draw(t, "lots"),
				}
				if rapid.Bool().Draw(t, "limit") {
					p := domain.NewMoney(rapid.Int64Range(95, 145).Draw(t, "price"), 0, "")
					req.Kind = domain.OrderKindLimit
					req.LimitPrice = &p
				}
				_, _ = eng.SubmitOrder(ctx, req)
			case 2:
				pending, _ := eng.ListOrders(id)
				if len(pending) > 0 {
					o := rapid.SampledFrom(pending).Draw(t, "cancel")
					if _, err := eng.CancelOrder(ctx, id, o.OrderID); err != nil {
						t.Fatalf("cancel pending order: %v", err)
					}
				}
			case 3:
				if _, err := eng.Advance(ctx); err != nil {
					t.Fatal(err)
				}
			}
			checkLedger(t, eng, id, rub("20000"))
		}
	})
}

func checkLedger(t *rapid.T, eng *Engine, id string, initial domain.Money) {
	acc, err := eng.GetAccount(id)
	if err != nil {
		t.Fatal(err)
	}
	pending, err := eng.ListOrders(id)
	if err != nil {
		t.Fatal(err)
	}

	reservedCash := domain.Zero("rub")
	var reservedUnits int64
	for _, o := range pending {
		if o.Direction == domain.DirectionBuy {
			reservedCash = reservedCash.Add(o.ReservedCash)
		} else {
			reservedUnits += o.ReservedQuantity
		}
	}

	cb := acc.CashBalance("rub")
	if cb.Blocked != reservedCash {
		t.Fatalf("blocked cash %v != pending reservations %v", cb.Blocked, reservedCash)
	}
	if cb.Blocked.Sign() < 0 || cb.Blocked.Cmp(cb.Total) > 0 {
		t.Fatalf("blocked cash %v outside [0, %v]", cb.Blocked, cb.Total)
	}

	if p, ok := acc.Positions[sber]; ok {
		if p.Blocked != reservedUnits {
			t.Fatalf("blocked units %d != pending reservations %d", p.Blocked, reservedUnits)
		}
		if p.Quantity < 0 || p.Blocked < 0 || p.Blocked > p.Quantity {
			t.Fatalf("position %d blocked %d out of range", p.Quantity, p.Blocked)
		}
	} else if reservedUnits != 0 {
		t.Fatalf("%d units reserved without a position", reservedUnits)
	}

	ops, err := eng.GetOperations(id, store.OperationFilter{})
	if err != nil {
		t.Fatal(err)
	}
	expected := initial
	for _, op := range ops {
		expected = expected.Add(op.Payment)
	}
	if cb.Total != expected {
		t.Fatalf("cash %v != initial + payments %v", cb.Total, expected)
	}
}
