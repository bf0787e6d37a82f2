// Package core holds the financial computation engine: exact-decimal money
// arithmetic, calendar month keys, installment scheduling and the settlement
// algorithm. It has no knowledge of HTTP, persistence or messaging; callers
// hand it plain records and get computed values back.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// AmountScale is the fixed scale for stored and displayed money amounts.
	AmountScale = 2
	// RateScale is the fixed scale for FX rates.
	RateScale = 6
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidRate   = errors.New("invalid fx rate")
)

// RateARS is the rate applied to amounts already denominated in ARS.
var RateARS = decimal.New(1, 0)

// Round2 rounds half-up to 2 decimal places. Intermediate arithmetic keeps
// full precision; this is only applied when producing a final stored or
// displayed amount.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountScale)
}

// RoundRate rounds half-up to 6 decimal places.
func RoundRate(d decimal.Decimal) decimal.Decimal {
	return d.Round(RateScale)
}

// ConvertToARS is the canonical original-currency-to-ARS conversion. Every
// ARS amount stored anywhere in the system is derived through this function.
func ConvertToARS(original, rate decimal.Decimal) decimal.Decimal {
	return Round2(original.Mul(rate))
}

// AmountString renders d as a fixed 2-place decimal string for the API
// boundary. Money never crosses the boundary as a binary float.
func AmountString(d decimal.Decimal) string {
	return Round2(d).StringFixed(AmountScale)
}

// RateString renders d as a fixed 6-place decimal string.
func RateString(d decimal.Decimal) string {
	return RoundRate(d).StringFixed(RateScale)
}

// ParseAmount parses a strictly positive money amount. Both dot and comma
// decimal separators are accepted.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := parseDecimal(s)
	if err != nil || !d.IsPositive() {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	return d, nil
}

// ParseRate parses a strictly positive FX rate.
func ParseRate(s string) (decimal.Decimal, error) {
	d, err := parseDecimal(s)
	if err != nil || !d.IsPositive() {
		return decimal.Decimal{}, ErrInvalidRate
	}
	return d, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, errors.New("empty decimal string")
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	return decimal.NewFromString(s)
}
