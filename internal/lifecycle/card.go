package lifecycle

import "merchantpay/internal/apperr"

// CardStatus tracks the PSP sub-flow of a single card submission. Every
// card status has a payment status of the same name, which the parent
// payment request moves to in lock-step.
type CardStatus string

const (
	CardSubmitted                 CardStatus = "submitted"
	CardAwaiting3DSMS             CardStatus = "awaiting_3d_sms"
	CardAwaiting3DPush            CardStatus = "awaiting_3d_push"
	CardVerificationCompleted     CardStatus = "verification_completed"
	CardProcessed                 CardStatus = "processed"
	CardProcessedAwaitingExchange CardStatus = "processed_awaiting_exchange"
	CardRejected                  CardStatus = "rejected"
	CardInsufficientFunds         CardStatus = "insufficient_funds"
	CardFailed                    CardStatus = "failed"
)

type VerificationType string

const (
	VerificationSMS  VerificationType = "sms"
	VerificationPush VerificationType = "push"
)

var cardStatuses = []CardStatus{
	CardSubmitted,
	CardAwaiting3DSMS,
	CardAwaiting3DPush,
	CardVerificationCompleted,
	CardProcessed,
	CardProcessedAwaitingExchange,
	CardRejected,
	CardInsufficientFunds,
	CardFailed,
}

func CardStatuses() []CardStatus {
	out := make([]CardStatus, len(cardStatuses))
	copy(out, cardStatuses)
	return out
}

var cardFailures = []CardStatus{CardRejected, CardInsufficientFunds, CardFailed}

var cardTransitions = map[CardStatus][]CardStatus{
	CardSubmitted:                 {CardAwaiting3DSMS, CardAwaiting3DPush, CardProcessed, CardProcessedAwaitingExchange},
	CardAwaiting3DSMS:             {CardAwaiting3DPush, CardVerificationCompleted},
	CardAwaiting3DPush:            {CardAwaiting3DSMS, CardVerificationCompleted},
	CardVerificationCompleted:     {CardAwaiting3DSMS, CardAwaiting3DPush, CardProcessed, CardProcessedAwaitingExchange},
	CardProcessedAwaitingExchange: {CardProcessed},
	CardProcessed:                 {},
	CardRejected:                  {},
	CardInsufficientFunds:         {},
	CardFailed:                    {},
}

func init() {
	for _, status := range []CardStatus{CardSubmitted, CardAwaiting3DSMS, CardAwaiting3DPush, CardVerificationCompleted, CardProcessedAwaitingExchange} {
		cardTransitions[status] = append(cardTransitions[status], cardFailures...)
	}
}

func (s CardStatus) Valid() bool {
	_, ok := cardTransitions[s]
	return ok
}

func (s CardStatus) PaymentStatus() PaymentStatus {
	return PaymentStatus(s)
}

func (s CardStatus) AwaitingVerification() bool {
	return s == CardAwaiting3DSMS || s == CardAwaiting3DPush
}

// VerificationType reports which out-of-band check a status asks the
// customer for.
func (s CardStatus) VerificationType() (VerificationType, bool) {
	switch s {
	case CardAwaiting3DSMS:
		return VerificationSMS, true
	case CardAwaiting3DPush:
		return VerificationPush, true
	}
	return "", false
}

// reviewDecisions are the statuses an admin may set; verification_completed
// is reserved for the customer.
var reviewDecisions = map[CardStatus]bool{
	CardProcessed:                 true,
	CardProcessedAwaitingExchange: true,
	CardRejected:                  true,
	CardInsufficientFunds:         true,
	CardFailed:                    true,
	CardAwaiting3DSMS:             true,
	CardAwaiting3DPush:            true,
}

func ParseReviewDecision(raw string) (CardStatus, error) {
	decision := CardStatus(raw)
	if !reviewDecisions[decision] {
		return "", apperr.Validation("invalid_decision", "unsupported review decision "+raw)
	}
	return decision, nil
}

func CheckCardTransition(from, to CardStatus) error {
	if !to.Valid() {
		return apperr.Validation("invalid_status", "unknown card status "+string(to))
	}
	if from == to {
		return apperr.ErrStatusUnchanged
	}
	for _, candidate := range cardTransitions[from] {
		if candidate == to {
			return nil
		}
	}
	return apperr.InvalidTransition(string(from), string(to))
}
