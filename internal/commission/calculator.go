package commission

import (
	"merchantpay/internal/apperr"
	"merchantpay/internal/models"
	"merchantpay/internal/money"

	"github.com/shopspring/decimal"
)

var (
	// CardPercent is the platform rate on card payments. It has no
	// per-merchant override.
	CardPercent = decimal.NewFromInt(30)
	// LeaderPercent is the upline leader's override on the original amount.
	LeaderPercent = decimal.NewFromInt(5)

	hundred = decimal.NewFromInt(100)
)

type Breakdown struct {
	Percent    decimal.Decimal
	Commission int64
	Net        int64
}

// Calculate splits amount into platform commission and the merchant's net.
// The card rate applies whenever card is an accepted method; otherwise
// bankWirePercent is used. Commission + Net always equals amount.
func Calculate(amount int64, methods []string, bankWirePercent decimal.Decimal) (Breakdown, error) {
	if amount <= 0 {
		return Breakdown{}, apperr.ErrInvalidAmount
	}
	percent := bankWirePercent
	for _, method := range methods {
		if method == models.MethodCard {
			percent = CardPercent
			break
		}
	}
	if err := ValidatePercent(percent); err != nil {
		return Breakdown{}, err
	}
	commission := money.PercentOf(amount, percent)
	return Breakdown{
		Percent:    percent,
		Commission: commission,
		Net:        amount - commission,
	}, nil
}

func ValidatePercent(percent decimal.Decimal) error {
	if percent.IsNegative() || percent.GreaterThanOrEqual(hundred) {
		return apperr.Validation("invalid_commission_percent", "commission percent must be at least 0 and below 100")
	}
	return nil
}

// LeaderCommission is the override credited to a merchant's leader.
func LeaderCommission(paymentAmount int64) int64 {
	return money.PercentOf(paymentAmount, LeaderPercent)
}

// BankWireRate picks the bank-wire percent by precedence: explicit
// override, merchant rate, platform setting, then the configured default.
type BankWireRate struct {
	Override decimal.NullDecimal
	Merchant decimal.NullDecimal
	Platform decimal.NullDecimal
	Default  decimal.Decimal
}

func (r BankWireRate) Resolve() decimal.Decimal {
	for _, candidate := range []decimal.NullDecimal{r.Override, r.Merchant, r.Platform} {
		if candidate.Valid {
			return candidate.Decimal
		}
	}
	return r.Default
}
