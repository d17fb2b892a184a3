package entities

import (
	"fmt"
	"strings"

	"github.com/KretovDmitry/backoffice/internal/application/errs"
)

type Currency string

const (
	// CurrencyUnknown is a valid transient value until reconciliation or payment assigns one.
	CurrencyUnknown Currency = "unknown"
	CurrencyCOP     Currency = "COP"
	CurrencyUSD     Currency = "USD"
	CurrencyEUR     Currency = "EUR"
)

// ParseCurrency normalizes an ISO code. It never returns CurrencyUnknown.
func ParseCurrency(code string) (Currency, error) {
	switch c := Currency(strings.ToUpper(strings.TrimSpace(code))); c {
	case CurrencyCOP, CurrencyUSD, CurrencyEUR:
		return c, nil
	}
	return CurrencyUnknown, fmt.Errorf("%w: unsupported currency %q", errs.ErrInvalidRequest, code)
}

func (c Currency) Known() bool {
	return c != CurrencyUnknown && c != ""
}
