package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/efreitasn/papertrade/internal/domain"
)

var (
	accountIDRegex  = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	orderIDRegex    = regexp.MustCompile(`^[a-zA-Z0-9_.:-]{1,64}$`)
	currencyRegex   = regexp.MustCompile(`^[a-z]{3}$`)
	instrumentRegex = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)
	classCodeRegex  = regexp.MustCompile(`^[A-Za-z0-9_]{1,16}$`)
)

func validateAccountID(id string) error {
	if !accountIDRegex.MatchString(id) {
		return &domain.ValidationError{Message: "account_id must match ^[a-zA-Z0-9_-]{1,64}$"}
	}
	return nil
}

func validateInstrumentID(id string) error {
	if !instrumentRegex.MatchString(id) {
		return &domain.ValidationError{Message: "instrument_id must match ^[A-Za-z0-9_.-]{1,64}$"}
	}
	return nil
}

// parseAmount parses a decimal string into Money. An empty currency
// yields a quotation.
func parseAmount(field, value, currency string) (domain.Money, error) {
	currency = strings.ToLower(currency)
	if currency != "" && !currencyRegex.MatchString(currency) {
		return domain.Money{}, &domain.ValidationError{Message: fmt.Sprintf("%s currency must be a three-letter ISO code", field)}
	}
	m, err := domain.ParseMoney(value, currency)
	if errors.Is(err, domain.ErrMoneyOverflow) {
		return domain.Money{}, &domain.ValidationError{Message: fmt.Sprintf("%s is out of range", field)}
	}
	if err != nil {
		return domain.Money{}, &domain.ValidationError{Message: fmt.Sprintf("%s must be a decimal number with at most 9 fractional digits", field)}
	}
	return m, nil
}
