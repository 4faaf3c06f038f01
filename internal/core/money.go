// Package core provides money parsing and handling utilities.
//
// Amounts are held as integer paise/cents; decimal strings from forms are
// parsed exactly with shopspring/decimal and never pass through float64.
package core

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// maxAmount bounds a single payment so cents always fit in an int64 column.
var maxAmount = decimal.New(1, 12)

// amountPattern admits plain decimals only. Exponent forms such as "1e9"
// are refused before decimal parsing, which would otherwise expand them.
var amountPattern = regexp.MustCompile(`^[0-9]{1,13}(\.[0-9]{1,8})?$`)

// ParseAmount converts a decimal string to Money with half-up rounding to two
// places.
//
// Surrounding whitespace is ignored. Only plain decimal digits with an
// optional fraction are accepted; signs, exponents and values that are zero
// after rounding or above maxAmount return ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("500")    -> 50000 cents
//	ParseAmount("0.01")   -> 1 cent
//	ParseAmount("12.345") -> 1235 cents (rounds up)
//	ParseAmount("-5")     -> ErrInvalidAmount
//	ParseAmount("1e3")    -> ErrInvalidAmount
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if !amountPattern.MatchString(s) {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.IsPositive() || d.GreaterThan(maxAmount) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: d.Shift(2).IntPart()}, nil
}

// Decimal returns the amount as an exact decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats the amount with exactly two decimals, e.g. "500.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}
