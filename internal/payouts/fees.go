package payouts

import (
	"sort"

	"merchantpay/internal/apperr"
	"merchantpay/internal/money"

	"github.com/shopspring/decimal"
)

type Rail string

const (
	RailBTC          Rail = "BTC"
	RailETH          Rail = "ETH"
	RailTRX          Rail = "TRX"
	RailUSDTTRC20    Rail = "USDT_TRC20"
	RailUSDTERC20    Rail = "USDT_ERC20"
	RailUSDCERC20    Rail = "USDC_ERC20"
	RailBankTransfer Rail = "bank_transfer"
)

// feeRates are fractions of the payout amount.
var feeRates = map[Rail]decimal.Decimal{
	RailBTC:          decimal.RequireFromString("0.0001"),
	RailETH:          decimal.RequireFromString("0.0005"),
	RailTRX:          decimal.RequireFromString("0.0005"),
	RailUSDTTRC20:    decimal.RequireFromString("0.001"),
	RailUSDTERC20:    decimal.RequireFromString("0.002"),
	RailUSDCERC20:    decimal.RequireFromString("0.002"),
	RailBankTransfer: decimal.RequireFromString("0.01"),
}

func ParseRail(raw string) (Rail, error) {
	rail := Rail(raw)
	if _, ok := feeRates[rail]; !ok {
		return "", apperr.Validation("invalid_rail", "unsupported payout rail "+raw)
	}
	return rail, nil
}

func Rails() []Rail {
	out := make([]Rail, 0, len(feeRates))
	for rail := range feeRates {
		out = append(out, rail)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r Rail) IsCrypto() bool {
	return r != RailBankTransfer
}

// Fee is the rail fee on amount in minor units, rounded half away from
// zero.
func (r Rail) Fee(amount int64) int64 {
	return money.ApplyRate(amount, feeRates[r])
}
