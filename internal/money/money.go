package money

import (
	"fmt"
	"strconv"
	"strings"
)

// Money is a currency amount in minor units (cents).
type Money struct {
	Cents    int64  `json:"cents"`
	Currency string `json:"currency"`
}

// DefaultCurrency is used when parsing display prices that carry only a symbol.
const DefaultCurrency = "USD"

var symbolCurrencies = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
}

// New creates a Money value in minor units.
func New(cents int64, currency string) Money {
	if currency == "" {
		currency = DefaultCurrency
	}
	return Money{Cents: cents, Currency: currency}
}

// Parse converts a display price ("$20", "$20.00", "20.5") into Money.
// Callers upstream still encode prices as display strings, so this is the
// single place that representation is tolerated.
func Parse(display string) (Money, error) {
	s := strings.TrimSpace(display)
	if s == "" {
		return Money{}, fmt.Errorf("empty price string")
	}

	currency := DefaultCurrency
	for symbol, code := range symbolCurrencies {
		if strings.HasPrefix(s, symbol) {
			currency = code
			s = strings.TrimPrefix(s, symbol)
			break
		}
	}
	s = strings.TrimSpace(s)

	major, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Money{}, fmt.Errorf("invalid price %q: %w", display, err)
	}
	if major < 0 {
		return Money{}, fmt.Errorf("negative price %q", display)
	}

	// Round half-up in minor units to avoid float drift on values like 19.99.
	cents := int64(major*100 + 0.5)
	return Money{Cents: cents, Currency: currency}, nil
}

// MustParse is Parse for fixtures and tests.
func MustParse(display string) Money {
	m, err := Parse(display)
	if err != nil {
		panic(err)
	}
	return m
}

// Mul scales the amount by a quantity.
func (m Money) Mul(qty int) Money {
	return Money{Cents: m.Cents * int64(qty), Currency: m.Currency}
}

// Add sums two amounts. Mixing currencies is a programming error upstream;
// the first non-empty currency wins.
func (m Money) Add(other Money) Money {
	currency := m.Currency
	if currency == "" {
		currency = other.Currency
	}
	return Money{Cents: m.Cents + other.Cents, Currency: currency}
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.Cents == 0
}

// Format renders the amount for display ("$40.00").
func (m Money) Format() string {
	major := float64(m.Cents) / 100.0
	switch m.Currency {
	case "USD", "":
		return fmt.Sprintf("$%.2f", major)
	case "EUR":
		return fmt.Sprintf("€%.2f", major)
	case "GBP":
		return fmt.Sprintf("£%.2f", major)
	default:
		return fmt.Sprintf("%.2f %s", major, m.Currency)
	}
}
