package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/efreitasn/papertrade/internal/instrument"
)

// Scenario describes a simulation: the instrument universe, the accounts
// opened at start, the candle feed and an optional script of orders and
// ticks replayed offline.
type Scenario struct {
	Start       *time.Time                `yaml:"start"`
	Step        time.Duration             `yaml:"step"`
	FeeRate     string                    `yaml:"fee_rate"`
	Feed        string                    `yaml:"feed"` // CSV or Parquet path, relative to the scenario file
	Instruments []instrument.CatalogEntry `yaml:"instruments"`
	Accounts    []ScenarioAccount         `yaml:"accounts"`
	Script      []ScriptStep              `yaml:"script"`
}

// ScenarioAccount is an account opened when the scenario loads. Script
// steps refer to it by Name.
type ScenarioAccount struct {
	Name           string `yaml:"name"`
	InitialCapital string `yaml:"initial_capital"`
	Currency       string `yaml:"currency"`
}

// ScriptStep is one action of a replay. Exactly one field is set.
type ScriptStep struct {
	Tick   int           `yaml:"tick"`
	Order  *ScriptOrder  `yaml:"order"`
	Cancel *ScriptCancel `yaml:"cancel"`
	PayIn  *ScriptPayIn  `yaml:"pay_in"`
}

// ScriptOrder submits an order on behalf of a scenario account.
type ScriptOrder struct {
	Account      string  `yaml:"account"`
	OrderID      string  `yaml:"order_id"`
	InstrumentID string  `yaml:"figi"`
	Direction    string  `yaml:"direction"`
	Kind         string  `yaml:"kind"`
	Quantity     int64   `yaml:"quantity"`
	Price        *string `yaml:"price"`
}

// ScriptCancel cancels an order submitted earlier in the script.
type ScriptCancel struct {
	Account string `yaml:"account"`
	OrderID string `yaml:"order_id"`
}

// ScriptPayIn deposits cash into a scenario account.
type ScriptPayIn struct {
	Account  string `yaml:"account"`
	Amount   string `yaml:"amount"`
	Currency string `yaml:"currency"`
}

// LoadScenario decodes and validates a scenario document.
func LoadScenario(r io.Reader) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadScenarioFile is LoadScenario over a file. A relative Feed path is
// resolved against the file's directory.
func LoadScenarioFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()

	s, err := LoadScenario(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Feed != "" && !filepath.IsAbs(s.Feed) {
		s.Feed = filepath.Join(filepath.Dir(path), s.Feed)
	}
	return s, nil
}

// Validate checks cross-references between accounts and script steps.
func (s *Scenario) Validate() error {
	if s.Step < 0 {
		return fmt.Errorf("step must not be negative")
	}
	if len(s.Instruments) == 0 {
		return fmt.Errorf("at least one instrument is required")
	}

	names := make(map[string]bool, len(s.Accounts))
	for i, a := range s.Accounts {
		if a.Name == "" {
			return fmt.Errorf("account %d: name is required", i)
		}
		if names[a.Name] {
			return fmt.Errorf("account %q: duplicate name", a.Name)
		}
		if a.Currency == "" {
			return fmt.Errorf("account %q: currency is required", a.Name)
		}
		names[a.Name] = true
	}

	for i, st := range s.Script {
		set := 0
		account := ""
		if st.Tick != 0 {
			set++
			if st.Tick < 0 {
				return fmt.Errorf("script step %d: tick must be positive", i)
			}
		}
		if st.Order != nil {
			set++
			account = st.Order.Account
		}
		if st.Cancel != nil {
			set++
			account = st.Cancel.Account
		}
		if st.PayIn != nil {
			set++
			account = st.PayIn.Account
		}
		if set != 1 {
			return fmt.Errorf("script step %d: exactly one of tick, order, cancel, pay_in is required", i)
		}
		if account != "" && !names[account] || st.Tick == 0 && account == "" {
			return fmt.Errorf("script step %d: unknown account %q", i, account)
		}
	}
	return nil
}

// Catalog builds the instrument reference of the scenario.
func (s *Scenario) Catalog() (*instrument.Catalog, error) {
	return instrument.CatalogFromEntries(s.Instruments)
}
