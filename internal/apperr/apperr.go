package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation          Kind = "validation"
	KindInvalidTransition   Kind = "invalid_transition"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindDuplicateSubmission Kind = "duplicate_submission"
	KindConfiguration       Kind = "configuration"
	KindCrypto              Kind = "crypto"
	KindNotFound            Kind = "not_found"
	KindInternal            Kind = "internal"
)

// Error is the structured failure returned by every core operation. Code is
// machine-readable and stable; Message is safe to show to external callers.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind and Code so that a wrapped copy of a sentinel still
// satisfies errors.Is against the sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

func Validation(code, message string) *Error {
	return New(KindValidation, code, message)
}

func NotFound(entity string) *Error {
	return New(KindNotFound, entity+"_not_found", entity+" not found")
}

func InvalidTransition(from, to string) *Error {
	return New(KindInvalidTransition, "invalid_transition", fmt.Sprintf("cannot move from %s to %s", from, to))
}

// KindOf reports the kind of err, or KindInternal for errors that did not
// originate from this package.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

var (
	ErrInsufficientBalance = New(KindInsufficientBalance, "insufficient_balance", "insufficient available balance")
	ErrInvalidAmount       = Validation("invalid_amount", "amount must be greater than zero")
	ErrStatusUnchanged     = New(KindInvalidTransition, "status_unchanged", "status is already set")
	ErrDuplicateSubmission = New(KindDuplicateSubmission, "duplicate_submission", "payment already submitted")
)
