package domain

import "time"

// InstrumentType is the asset class of an instrument.
type InstrumentType string

const (
	InstrumentTypeShare    InstrumentType = "share"
	InstrumentTypeBond     InstrumentType = "bond"
	InstrumentTypeETF      InstrumentType = "etf"
	InstrumentTypeCurrency InstrumentType = "currency"
	InstrumentTypeFuture   InstrumentType = "future"
)

// Instrument is static reference data for a tradable instrument.
// CurrentPrice is the reference price used before any candle is consumed.
type Instrument struct {
	InstrumentID  string         `json:"figi" yaml:"figi"`
	UID           string         `json:"uid,omitempty" yaml:"uid"`
	Ticker        string         `json:"ticker" yaml:"ticker"`
	ClassCode     string         `json:"class_code" yaml:"class_code"`
	Name          string         `json:"name" yaml:"name"`
	Type          InstrumentType `json:"instrument_type" yaml:"type"`
	LotSize       int64          `json:"lot" yaml:"lot"`
	Currency      string         `json:"currency" yaml:"currency"`
	BuyAvailable  bool           `json:"buy_available_flag" yaml:"buy_available"`
	SellAvailable bool           `json:"sell_available_flag" yaml:"sell_available"`
	CurrentPrice  Money          `json:"current_price" yaml:"-"`
}

// Candle is one OHLC period of an instrument. Time is the end of the period
// on the simulated clock.
type Candle struct {
	InstrumentID string
	Time         time.Time
	Open         Money
	High         Money
	Low          Money
	Close        Money
}
