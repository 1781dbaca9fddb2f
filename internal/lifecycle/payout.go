package lifecycle

import "merchantpay/internal/apperr"

// PayoutStatus is shared by withdrawals and settlements.
type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutProcessing PayoutStatus = "processing"
	PayoutCompleted  PayoutStatus = "completed"
	PayoutFailed     PayoutStatus = "failed"
	PayoutCancelled  PayoutStatus = "cancelled"
	PayoutReversed   PayoutStatus = "reversed"
)

var payoutTransitions = map[PayoutStatus][]PayoutStatus{
	PayoutPending:    {PayoutProcessing, PayoutCompleted, PayoutFailed, PayoutCancelled},
	PayoutProcessing: {PayoutCompleted, PayoutFailed, PayoutCancelled},
	PayoutCompleted:  {PayoutReversed},
	PayoutFailed:     {},
	PayoutCancelled:  {},
	PayoutReversed:   {},
}

func ParsePayoutStatus(raw string) (PayoutStatus, error) {
	status := PayoutStatus(raw)
	if _, ok := payoutTransitions[status]; !ok {
		return "", apperr.Validation("invalid_status", "unknown payout status "+raw)
	}
	return status, nil
}

// ReleasesReservation is true for statuses that hand the reserved amount
// plus fee back to available balance.
func (s PayoutStatus) ReleasesReservation() bool {
	return s == PayoutFailed || s == PayoutCancelled || s == PayoutReversed
}

func CheckPayoutTransition(from, to PayoutStatus) error {
	if _, ok := payoutTransitions[to]; !ok {
		return apperr.Validation("invalid_status", "unknown payout status "+string(to))
	}
	if from == to {
		return apperr.ErrStatusUnchanged
	}
	for _, candidate := range payoutTransitions[from] {
		if candidate == to {
			return nil
		}
	}
	return apperr.InvalidTransition(string(from), string(to))
}
