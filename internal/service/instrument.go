package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/instrument"
)

var validInstrumentTypes = map[string]domain.InstrumentType{
	"":         "",
	"share":    domain.InstrumentTypeShare,
	"bond":     domain.InstrumentTypeBond,
	"etf":      domain.InstrumentTypeETF,
	"currency": domain.InstrumentTypeCurrency,
	"future":   domain.InstrumentTypeFuture,
}

// InstrumentService answers reference data lookups.
type InstrumentService struct {
	ref instrument.Reference
}

// NewInstrumentService creates a new InstrumentService.
func NewInstrumentService(ref instrument.Reference) *InstrumentService {
	return &InstrumentService{ref: ref}
}

// GetInstrumentBy resolves one instrument by figi, ticker or uid. Tickers
// may be qualified with a class code.
func (s *InstrumentService) GetInstrumentBy(ctx context.Context, idType, id, classCode string) (domain.Instrument, error) {
	t, err := instrument.ParseIDType(idType)
	if err != nil {
		return domain.Instrument{}, err
	}
	if id == "" {
		return domain.Instrument{}, &domain.ValidationError{Message: "id is required"}
	}
	if !instrumentRegex.MatchString(id) {
		return domain.Instrument{}, &domain.ValidationError{Message: "id must match ^[A-Za-z0-9_.-]{1,64}$"}
	}
	if classCode != "" && !classCodeRegex.MatchString(classCode) {
		return domain.Instrument{}, &domain.ValidationError{Message: "class_code must match ^[A-Za-z0-9_]{1,16}$"}
	}
	return s.ref.Resolve(ctx, instrument.Lookup{IDType: t, ID: id, ClassCode: classCode})
}

// ListInstruments lists instruments, optionally of one type.
func (s *InstrumentService) ListInstruments(ctx context.Context, typ string) ([]domain.Instrument, error) {
	t, ok := validInstrumentTypes[strings.ToLower(typ)]
	if !ok {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("Unknown instrument type: %s. Must be one of: share, bond, etf, currency, future", typ),
		}
	}
	return s.ref.List(ctx, t)
}
