package handlers

import (
	"merchantpay/internal/apperr"
	"merchantpay/internal/money"

	"github.com/shopspring/decimal"
)

var errInvalidPercent = apperr.Validation("invalid_commission_percent", "commission percent must be a number")

func parseAmountMinor(raw string) (int64, error) {
	amount, err := money.ParseMinor(raw)
	if err != nil || amount <= 0 {
		return 0, apperr.ErrInvalidAmount
	}
	return amount, nil
}

func parsePercent(raw *string) (decimal.NullDecimal, error) {
	if raw == nil || *raw == "" {
		return decimal.NullDecimal{}, nil
	}
	percent, err := decimal.NewFromString(*raw)
	if err != nil {
		return decimal.NullDecimal{}, errInvalidPercent
	}
	return decimal.NewNullDecimal(percent), nil
}
