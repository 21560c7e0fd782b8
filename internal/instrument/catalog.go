package instrument

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/efreitasn/papertrade/internal/domain"
)

// Catalog is an in-memory Reference over a fixed instrument list, usually
// loaded from YAML.
type Catalog struct {
	mu          sync.RWMutex
	instruments []domain.Instrument
}

// CatalogEntry is the YAML form of an instrument. Price is a decimal
// string in the instrument currency.
type CatalogEntry struct {
	domain.Instrument `yaml:",inline"`
	Price             string `yaml:"price"`
}

// NewCatalog creates a catalog over instruments.
func NewCatalog(instruments ...domain.Instrument) *Catalog {
	c := &Catalog{}
	for _, inst := range instruments {
		c.Add(inst)
	}
	return c
}

// CatalogFromEntries validates YAML entries and builds a catalog.
func CatalogFromEntries(entries []CatalogEntry) (*Catalog, error) {
	c := NewCatalog()
	for i, e := range entries {
		inst := e.Instrument
		if inst.InstrumentID == "" {
			return nil, fmt.Errorf("instrument %d: figi is required", i)
		}
		if inst.LotSize <= 0 {
			return nil, fmt.Errorf("instrument %s: lot must be positive", inst.InstrumentID)
		}
		if inst.Currency == "" {
			return nil, fmt.Errorf("instrument %s: currency is required", inst.InstrumentID)
		}
		if e.Price != "" {
			p, err := domain.ParseMoney(e.Price, inst.Currency)
			if err != nil {
				return nil, fmt.Errorf("instrument %s: %w", inst.InstrumentID, err)
			}
			inst.CurrentPrice = p
		} else {
			inst.CurrentPrice = domain.Zero(inst.Currency)
		}
		c.Add(inst)
	}
	return c, nil
}

// LoadCatalog reads a YAML document holding a top-level "instruments"
// list.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var doc struct {
		Instruments []CatalogEntry `yaml:"instruments"`
	}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return CatalogFromEntries(doc.Instruments)
}

// LoadCatalogFile is LoadCatalog over a file.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return LoadCatalog(f)
}

// Add inserts or replaces an instrument keyed by figi.
func (c *Catalog) Add(inst domain.Instrument) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.instruments {
		if c.instruments[i].InstrumentID == inst.InstrumentID {
			c.instruments[i] = inst
			return
		}
	}
	c.instruments = append(c.instruments, inst)
}

// Resolve implements Reference.
func (c *Catalog) Resolve(_ context.Context, l Lookup) (domain.Instrument, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, inst := range c.instruments {
		if l.Matches(inst) {
			return inst, nil
		}
	}
	return domain.Instrument{}, fmt.Errorf("%w: %s", domain.ErrInstrumentNotFound, l.CacheKey())
}

// List implements Reference. Results are ordered by ticker.
func (c *Catalog) List(_ context.Context, t domain.InstrumentType) ([]domain.Instrument, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]domain.Instrument, 0, len(c.instruments))
	for _, inst := range c.instruments {
		if t == "" || inst.Type == t {
			result = append(result, inst)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Ticker < result[j].Ticker })
	return result, nil
}
