package feed

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/efreitasn/papertrade/internal/domain"
)

var currencyRegex = regexp.MustCompile(`^[a-z]{3}$`)

// CandleRecord is the Parquet schema for candle files. Prices are stored
// fixed-point as units and nano columns so no precision is lost.
type CandleRecord struct {
	Instrument string `parquet:"instrument"`
	Timestamp  int64  `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Currency   string `parquet:"currency"`
	OpenUnits  int64  `parquet:"open_units"`
	OpenNano   int32  `parquet:"open_nano"`
	HighUnits  int64  `parquet:"high_units"`
	HighNano   int32  `parquet:"high_nano"`
	LowUnits   int64  `parquet:"low_units"`
	LowNano    int32  `parquet:"low_nano"`
	CloseUnits int64  `parquet:"close_units"`
	CloseNano  int32  `parquet:"close_nano"`
}

// LoadParquet reads a candle file written by WriteParquet.
func LoadParquet(path string) (*Memory, error) {
	records, err := parquet.ReadFile[CandleRecord](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet feed %s: %w", path, err)
	}
	candles := make([]domain.Candle, 0, len(records))
	for i, r := range records {
		c, err := r.candle()
		if err != nil {
			return nil, fmt.Errorf("parquet feed %s row %d: %w", path, i, err)
		}
		candles = append(candles, c)
	}
	return NewMemory(candles), nil
}

// WriteParquet stores candles in the format LoadParquet reads.
func WriteParquet(path string, candles []domain.Candle) error {
	records := make([]CandleRecord, 0, len(candles))
	for _, c := range candles {
		records = append(records, CandleRecord{
			Instrument: c.InstrumentID,
			Timestamp:  c.Time.UnixMilli(),
			Currency:   c.Close.Currency,
			OpenUnits:  c.Open.Units,
			OpenNano:   c.Open.Nano,
			HighUnits:  c.High.Units,
			HighNano:   c.High.Nano,
			LowUnits:   c.Low.Units,
			LowNano:    c.Low.Nano,
			CloseUnits: c.Close.Units,
			CloseNano:  c.Close.Nano,
		})
	}
	if err := parquet.WriteFile(path, records); err != nil {
		return fmt.Errorf("write parquet feed %s: %w", path, err)
	}
	return nil
}

func (r CandleRecord) candle() (domain.Candle, error) {
	if r.Instrument == "" {
		return domain.Candle{}, errors.New("instrument is empty")
	}
	if r.Currency != "" && !currencyRegex.MatchString(r.Currency) {
		return domain.Candle{}, fmt.Errorf("currency %q is not a three-letter code", r.Currency)
	}
	c := domain.Candle{
		InstrumentID: r.Instrument,
		Time:         time.UnixMilli(r.Timestamp).UTC(),
		Open:         domain.NewMoney(r.OpenUnits, int64(r.OpenNano), r.Currency),
		High:         domain.NewMoney(r.HighUnits, int64(r.HighNano), r.Currency),
		Low:          domain.NewMoney(r.LowUnits, int64(r.LowNano), r.Currency),
		Close:        domain.NewMoney(r.CloseUnits, int64(r.CloseNano), r.Currency),
	}
	if c.Low.Cmp(c.High) > 0 {
		return domain.Candle{}, fmt.Errorf("low %s above high %s", c.Low, c.High)
	}
	return c, nil
}
