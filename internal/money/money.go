package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Amounts are carried as int64 minor units (cents) everywhere in the core.

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has too many decimal places")
)

var hundred = decimal.NewFromInt(100)

func ParseMinor(input string) (int64, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return 0, ErrInvalidAmount
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if value.Exponent() < -2 && !value.Equal(value.Round(2)) {
		return 0, ErrTooManyDecimals
	}
	return value.Mul(hundred).IntPart(), nil
}

func FormatMinor(value int64) string {
	return decimal.New(value, -2).StringFixed(2)
}

func ToDecimal(value int64) decimal.Decimal {
	return decimal.New(value, -2)
}

// ApplyRate multiplies a minor-unit amount by a fractional rate and rounds
// half away from zero to the nearest minor unit.
func ApplyRate(amountMinor int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(amountMinor).Mul(rate).Round(0).IntPart()
}

// PercentOf returns percent% of amountMinor, e.g. PercentOf(500000, 30) == 150000.
func PercentOf(amountMinor int64, percent decimal.Decimal) int64 {
	return ApplyRate(amountMinor, percent.Div(hundred))
}
