// Package instrument provides static reference data for tradable
// instruments: lookups by figi, ticker or uid, a YAML-backed catalog and a
// read-through cache in front of any source.
package instrument

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/efreitasn/papertrade/internal/domain"
)

// IDType selects which identifier a Lookup carries.
type IDType string

const (
	IDTypeFigi   IDType = "figi"
	IDTypeTicker IDType = "ticker"
	IDTypeUID    IDType = "uid"
)

// ParseIDType validates an identifier kind from user input.
func ParseIDType(s string) (IDType, error) {
	switch t := IDType(strings.ToLower(s)); t {
	case IDTypeFigi, IDTypeTicker, IDTypeUID:
		return t, nil
	}
	return "", &domain.ValidationError{Message: fmt.Sprintf("unknown id type %q", s)}
}

// Lookup identifies an instrument. Tickers are only unique together with a
// class code.
type Lookup struct {
	IDType    IDType
	ID        string
	ClassCode string
}

// ByFigi is a Lookup of the engine's canonical instrument identifier.
func ByFigi(figi string) Lookup {
	return Lookup{IDType: IDTypeFigi, ID: figi}
}

// CacheKey is the canonical identifier of the lookup:
// <idtype>_<id>[@<classcode>], with id and class code query-escaped so the
// key never contains a path separator and distinct lookups never collide.
func (l Lookup) CacheKey() string {
	key := string(l.IDType) + "_" + url.QueryEscape(l.ID)
	if l.ClassCode != "" {
		key += "@" + url.QueryEscape(l.ClassCode)
	}
	return key
}

// Matches reports whether inst is the instrument the lookup names.
func (l Lookup) Matches(inst domain.Instrument) bool {
	switch l.IDType {
	case IDTypeFigi:
		return inst.InstrumentID == l.ID
	case IDTypeUID:
		return inst.UID == l.ID
	case IDTypeTicker:
		return inst.Ticker == l.ID && (l.ClassCode == "" || inst.ClassCode == l.ClassCode)
	}
	return false
}

// Reference resolves instrument reference data. Unknown instruments are
// reported as domain.ErrInstrumentNotFound.
type Reference interface {
	Resolve(ctx context.Context, l Lookup) (domain.Instrument, error)
	// List returns instruments of type t, or all when t is empty.
	List(ctx context.Context, t domain.InstrumentType) ([]domain.Instrument, error)
}
