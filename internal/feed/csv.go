package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
)

var csvHeader = []string{"time", "instrument", "open", "high", "low", "close"}

// LoadCSVFile reads a candle file and returns a Memory feed over it.
func LoadCSVFile(path string) (*Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feed: %w", err)
	}
	defer f.Close()
	return LoadCSV(f)
}

// LoadCSV parses rows of time,instrument,open,high,low,close. Time is
// RFC 3339; prices are decimal strings parsed exactly into quotations, the
// engine tags them with the instrument currency. A header row is optional.
func LoadCSV(r io.Reader) (*Memory, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)
	cr.TrimLeadingSpace = true

	var candles []domain.Candle
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read feed: %w", err)
		}
		if line == 1 && strings.EqualFold(rec[0], csvHeader[0]) {
			continue
		}
		c, err := parseCSVRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("feed line %d: %w", line, err)
		}
		candles = append(candles, c)
	}
	return NewMemory(candles), nil
}

func parseCSVRecord(rec []string) (domain.Candle, error) {
	ts, err := time.Parse(time.RFC3339Nano, rec[0])
	if err != nil {
		return domain.Candle{}, fmt.Errorf("time: %w", err)
	}
	if rec[1] == "" {
		return domain.Candle{}, errors.New("instrument is empty")
	}
	var prices [4]domain.Money
	for i := range prices {
		prices[i], err = domain.ParseMoney(rec[2+i], "")
		if err != nil {
			return domain.Candle{}, fmt.Errorf("%s: %w", csvHeader[2+i], err)
		}
	}
	c := domain.Candle{
		InstrumentID: rec[1],
		Time:         ts.UTC(),
		Open:         prices[0],
		High:         prices[1],
		Low:          prices[2],
		Close:        prices[3],
	}
	if c.Low.Cmp(c.High) > 0 {
		return domain.Candle{}, fmt.Errorf("low %s above high %s", c.Low, c.High)
	}
	return c, nil
}
