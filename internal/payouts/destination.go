package payouts

import (
	"regexp"
	"strings"

	"merchantpay/internal/apperr"
	"merchantpay/internal/models"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fbsobreira/gotron-sdk/pkg/address"
)

var (
	btcPattern  = regexp.MustCompile(`^(bc1[a-z0-9]{25,87}|[13][a-km-zA-HJ-NP-Z1-9]{25,34})$`)
	evmPattern  = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	tronPattern = regexp.MustCompile(`^T[1-9A-HJ-NP-Za-km-z]{33}$`)
)

var errInvalidAddress = apperr.Validation("invalid_address", "destination address is not valid for this rail")

// ValidateDestination checks a crypto address against its rail's format
// and checksum, or that a bank transfer names at least one account
// identifier.
func ValidateDestination(rail Rail, dest models.Destination) error {
	if !rail.IsCrypto() {
		for _, field := range []*string{dest.IBAN, dest.AccountNumber, dest.SwiftBIC, dest.RoutingNumber} {
			if field != nil && strings.TrimSpace(*field) != "" {
				return nil
			}
		}
		return apperr.Validation("missing_bank_details", "bank transfers need an IBAN, account number, SWIFT/BIC or routing number")
	}
	if dest.Address == nil {
		return apperr.Validation("missing_address", "destination address is required")
	}
	addr := strings.TrimSpace(*dest.Address)
	switch rail {
	case RailBTC:
		if !btcPattern.MatchString(addr) {
			return errInvalidAddress
		}
		if _, err := btcutil.DecodeAddress(addr, &chaincfg.MainNetParams); err != nil {
			return errInvalidAddress
		}
	case RailETH, RailUSDTERC20, RailUSDCERC20:
		if !evmPattern.MatchString(addr) || !common.IsHexAddress(addr) {
			return errInvalidAddress
		}
	case RailTRX, RailUSDTTRC20:
		if !tronPattern.MatchString(addr) {
			return errInvalidAddress
		}
		if _, err := address.Base58ToAddress(addr); err != nil {
			return errInvalidAddress
		}
	}
	return nil
}
