// Package core provides the ledger domain types and money handling.
//
// This file contains functions for parsing monetary amounts and converting
// between cents, decimals and display strings.
package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Currency used for display. Arithmetic never depends on it.
const Currency = money.EUR

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// ParseDecimalToCents converts a decimal string to cents with proper rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. The result is always positive cents.
// Returns an error for invalid formats, negative values, or zero amounts.
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("12,34") -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil (rounds up)
//	ParseDecimalToCents("12.344") -> 1234, nil (rounds down)
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		// Only positive values allowed
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	// Prevent overflow when multiplying by 100
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv >= maxSafeInt64 {
		return 0, ErrInvalidAmount
	}
	// Take first two fractional digits; then half-up rounding on third
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	cents := iv*100 + fracCents
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// ParseAmount parses a user-entered transaction amount.
func ParseAmount(s string) (Money, error) {
	cents, err := ParseDecimalToCents(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Money{Cents: cents}, nil
}

// maxIntegerDigits is the most integer digits a value in major units can
// have and still fit in int64 cents (9.2e16).
const maxIntegerDigits = 17

// MoneyFromDecimal rounds d half away from zero to cents. It fails only when
// the value does not fit in int64 cents.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsZero() {
		return Money{}, nil
	}
	// Decide on magnitude from the exponent alone: rounding a value like
	// 1e2000000000 would expand it digit by digit.
	intDigits := int64(d.NumDigits()) + int64(d.Exponent())
	if intDigits > maxIntegerDigits {
		return Money{}, fmt.Errorf("%w: out of range", ErrInvalidAmount)
	}
	if intDigits < -2 {
		// Below 0.001: rounds to zero cents.
		return Money{}, nil
	}
	cents := d.Round(2).Shift(2)
	if cents.GreaterThan(maxCents) || cents.LessThan(minCents) {
		return Money{}, fmt.Errorf("%w: out of range", ErrInvalidAmount)
	}
	return Money{Cents: cents.IntPart()}, nil
}

// MoneyFromFloat converts a float transaction amount. NaN, infinities and
// values that do not round to a positive number of cents are rejected.
func MoneyFromFloat(f float64) (Money, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Money{}, fmt.Errorf("%w: not finite", ErrInvalidAmount)
	}
	m, err := MoneyFromDecimal(decimal.NewFromFloat(f))
	if err != nil {
		return Money{}, err
	}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// Validate checks that m is usable as a transaction amount.
func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Add returns m+n; false on overflow.
func (m Money) Add(n Money) (Money, bool) {
	if (n.Cents > 0 && m.Cents > math.MaxInt64-n.Cents) ||
		(n.Cents < 0 && m.Cents < math.MinInt64-n.Cents) {
		return m, false
	}
	return Money{Cents: m.Cents + n.Cents}, true
}

// Sub returns m-n; false on overflow.
func (m Money) Sub(n Money) (Money, bool) {
	if (n.Cents > 0 && m.Cents < math.MinInt64+n.Cents) ||
		(n.Cents < 0 && m.Cents > math.MaxInt64+n.Cents) {
		return m, false
	}
	return Money{Cents: m.Cents - n.Cents}, true
}

// Decimal returns the value in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Fixed returns the value with exactly two decimals, e.g. "350.00".
func (m Money) Fixed() string {
	return m.Decimal().StringFixed(2)
}

// String formats the value for display, e.g. "€1,234.56".
func (m Money) String() string {
	return money.New(m.Cents, Currency).Display()
}
