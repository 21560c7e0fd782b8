package service

import (
	"context"
	"testing"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/efreitasn/papertrade/internal/feed"
	"github.com/efreitasn/papertrade/internal/instrument"
)

const testFigi = "BBG004730N88"

func testCatalog() *instrument.Catalog {
	return instrument.NewCatalog(
		domain.Instrument{
			InstrumentID: testFigi, UID: "e6123145-9665-43e0-8413-cd61b8aa9b13", Ticker: "SBER", ClassCode: "TQBR",
			Name: "Сбер Банк", Type: domain.InstrumentTypeShare, LotSize: 10, Currency: "rub",
			BuyAvailable: true, SellAvailable: true, CurrentPrice: domain.MustParseMoney("122.86", "rub"),
		},
		domain.Instrument{
			InstrumentID: "BBG00T22WKV5", Ticker: "SU29013RMFS8", ClassCode: "TQOB",
			Name: "ОФЗ 29013", Type: domain.InstrumentTypeBond, LotSize: 1, Currency: "rub",
			BuyAvailable: true, SellAvailable: true, CurrentPrice: domain.MustParseMoney("1001.5", "rub"),
		},
	)
}

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	q := func(s string) domain.Money { return domain.MustParseMoney(s, "") }
	at := func(m int) time.Time { return time.Date(2022, 4, 29, 7, m, 0, 1_000_000, time.UTC) }
	mem := feed.NewMemory([]domain.Candle{
		{InstrumentID: testFigi, Time: at(1), Open: q("122.86"), High: q("123.87"), Low: q("122.8"), Close: q("123.65")},
		{InstrumentID: testFigi, Time: at(2), Open: q("123.65"), High: q("124.1"), Low: q("123.4"), Close: q("123.9")},
	})
	eng, err := engine.New(engine.DefaultConfig(), testCatalog(), mem)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return eng
}

func openTestAccount(t *testing.T, eng *engine.Engine) string {
	t.Helper()
	acc, err := eng.OpenAccount(context.Background(), "test", domain.MustParseMoney("100000", "rub"))
	if err != nil {
		t.Fatalf("OpenAccount: %v", err)
	}
	return acc.AccountID
}

func strPtr(s string) *string { return &s }
