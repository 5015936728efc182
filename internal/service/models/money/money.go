package money

import (
	"database/sql/driver"
	"errors"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencyTRY Currency = "TRY"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
)

var ErrInvalidCurrency = errors.New("invalid currency")

// Epsilon absorbs decimal conversion noise in >= comparisons on monetary
// amounts (minimum-order checks, balance checks).
var Epsilon = decimal.RequireFromString("0.0001")

func (c Currency) String() string {
	return string(c)
}

func (c Currency) Value() (driver.Value, error) {
	return c.String(), nil
}

// Symbol returns the display symbol used when formatting amounts.
func (c Currency) Symbol() string {
	switch c {
	case CurrencyTRY:
		return "₺"
	case CurrencyUSD:
		return "$"
	case CurrencyEUR:
		return "€"
	case CurrencyGBP:
		return "£"
	default:
		return c.String()
	}
}

func ParseCurrency(s string) (Currency, error) {
	switch s {
	case CurrencyTRY.String():
		return CurrencyTRY, nil
	case CurrencyUSD.String():
		return CurrencyUSD, nil
	case CurrencyEUR.String():
		return CurrencyEUR, nil
	case CurrencyGBP.String():
		return CurrencyGBP, nil
	default:
		return "", ErrInvalidCurrency
	}
}

// Money is an amount in a single currency. Amounts from different
// currencies are never combined directly; callers convert into one
// active currency first.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency Currency        `json:"currency"`
}

func New(amount decimal.Decimal, currency Currency) Money {
	return Money{Amount: amount, Currency: currency}
}

func Zero(currency Currency) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

// Round2 rounds a monetary amount to two decimal places.
func Round2(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// GTE reports whether a >= b within Epsilon.
func GTE(a, b decimal.Decimal) bool {
	return a.Add(Epsilon).GreaterThanOrEqual(b)
}

// Format renders an amount with its currency symbol, e.g. "₺90.00".
func Format(amount decimal.Decimal, currency Currency) string {
	return currency.Symbol() + amount.StringFixed(2)
}
