// Package lifecycle holds the closed status sets and transition tables for
// payment requests, card submissions and payouts. Nothing here touches
// storage; services consult these tables before mutating anything.
package lifecycle

import "merchantpay/internal/apperr"

type PaymentStatus string

const (
	StatusSent                      PaymentStatus = "sent"
	StatusViewed                    PaymentStatus = "viewed"
	StatusPendingSubmission         PaymentStatus = "pending_submission"
	StatusSubmitted                 PaymentStatus = "submitted"
	StatusAwaiting3DSMS             PaymentStatus = "awaiting_3d_sms"
	StatusAwaiting3DPush            PaymentStatus = "awaiting_3d_push"
	StatusVerificationCompleted     PaymentStatus = "verification_completed"
	StatusProcessedAwaitingExchange PaymentStatus = "processed_awaiting_exchange"
	StatusProcessed                 PaymentStatus = "processed"
	StatusPaid                      PaymentStatus = "paid"
	StatusRejected                  PaymentStatus = "rejected"
	StatusInsufficientFunds         PaymentStatus = "insufficient_funds"
	StatusFailed                    PaymentStatus = "failed"
	StatusExpired                   PaymentStatus = "expired"
	StatusCancelled                 PaymentStatus = "cancelled"
)

// Class is how the balance ledger sees a payment status.
type Class int

const (
	classUnknown Class = iota
	ClassPending
	ClassCompleted
	ClassVoid
)

func (c Class) String() string {
	switch c {
	case ClassPending:
		return "pending"
	case ClassCompleted:
		return "completed"
	case ClassVoid:
		return "void"
	}
	return "unknown"
}

var paymentStatuses = []PaymentStatus{
	StatusSent,
	StatusViewed,
	StatusPendingSubmission,
	StatusSubmitted,
	StatusAwaiting3DSMS,
	StatusAwaiting3DPush,
	StatusVerificationCompleted,
	StatusProcessedAwaitingExchange,
	StatusProcessed,
	StatusPaid,
	StatusRejected,
	StatusInsufficientFunds,
	StatusFailed,
	StatusExpired,
	StatusCancelled,
}

func PaymentStatuses() []PaymentStatus {
	out := make([]PaymentStatus, len(paymentStatuses))
	copy(out, paymentStatuses)
	return out
}

func (s PaymentStatus) Class() Class {
	switch s {
	case StatusSent, StatusViewed, StatusPendingSubmission, StatusSubmitted,
		StatusAwaiting3DSMS, StatusAwaiting3DPush, StatusVerificationCompleted,
		StatusProcessedAwaitingExchange:
		return ClassPending
	case StatusProcessed, StatusPaid:
		return ClassCompleted
	case StatusRejected, StatusInsufficientFunds, StatusFailed, StatusExpired, StatusCancelled:
		return ClassVoid
	}
	return classUnknown
}

func (s PaymentStatus) IsPending() bool   { return s.Class() == ClassPending }
func (s PaymentStatus) IsCompleted() bool { return s.Class() == ClassCompleted }
func (s PaymentStatus) IsTerminal() bool  { return s.Class() == ClassVoid }

// IsCardFlow reports whether the status mirrors a card submission. Only the
// card review and verification steps may move a request into or out of it.
func (s PaymentStatus) IsCardFlow() bool {
	switch s {
	case StatusSubmitted, StatusAwaiting3DSMS, StatusAwaiting3DPush,
		StatusVerificationCompleted, StatusProcessedAwaitingExchange:
		return true
	}
	return false
}

func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	status := PaymentStatus(raw)
	if status.Class() == classUnknown {
		return "", apperr.Validation("invalid_status", "unknown payment status "+raw)
	}
	return status, nil
}

var voidExits = []PaymentStatus{StatusRejected, StatusInsufficientFunds, StatusFailed, StatusExpired, StatusCancelled}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	StatusSent:              {StatusViewed, StatusPendingSubmission, StatusSubmitted, StatusPaid},
	StatusViewed:            {StatusPendingSubmission, StatusSubmitted, StatusPaid},
	StatusPendingSubmission: {StatusSubmitted, StatusPaid},
	StatusSubmitted: {
		StatusAwaiting3DSMS, StatusAwaiting3DPush, StatusVerificationCompleted,
		StatusProcessedAwaitingExchange, StatusProcessed, StatusPaid,
	},
	StatusAwaiting3DSMS:  {StatusAwaiting3DPush, StatusVerificationCompleted},
	StatusAwaiting3DPush: {StatusAwaiting3DSMS, StatusVerificationCompleted},
	StatusVerificationCompleted: {
		StatusAwaiting3DSMS, StatusAwaiting3DPush,
		StatusProcessedAwaitingExchange, StatusProcessed, StatusPaid,
	},
	StatusProcessedAwaitingExchange: {StatusProcessed, StatusPaid},
	// corrections out of a completed state; reversing funds may still fail
	// on the ledger if they were already withdrawn
	StatusProcessed:         {StatusPaid, StatusProcessedAwaitingExchange, StatusRejected, StatusFailed},
	StatusPaid:              {StatusProcessed, StatusProcessedAwaitingExchange, StatusRejected, StatusFailed},
	StatusRejected:          {},
	StatusInsufficientFunds: {},
	StatusFailed:            {},
	StatusExpired:           {},
	StatusCancelled:         {},
}

func init() {
	for status, next := range paymentTransitions {
		if status.IsPending() {
			paymentTransitions[status] = append(next, voidExits...)
		}
	}
}

// CheckPaymentTransition returns nil when to is reachable from from in one
// step, ErrStatusUnchanged for a no-op, and an invalid transition error
// otherwise.
func CheckPaymentTransition(from, to PaymentStatus) error {
	if to.Class() == classUnknown {
		return apperr.Validation("invalid_status", "unknown payment status "+string(to))
	}
	if from == to {
		return apperr.ErrStatusUnchanged
	}
	for _, candidate := range paymentTransitions[from] {
		if candidate == to {
			return nil
		}
	}
	return apperr.InvalidTransition(string(from), string(to))
}

func NextPaymentStatuses(from PaymentStatus) []PaymentStatus {
	next := paymentTransitions[from]
	out := make([]PaymentStatus, len(next))
	copy(out, next)
	return out
}
