package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindInsufficientBalance, KindOf(ErrInsufficientBalance))
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("lookup: %w", NotFound("payment_request"))))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestSentinelMatchesWrappedCopy(t *testing.T) {
	err := Wrap(KindDuplicateSubmission, "duplicate_submission", "payment already submitted", errors.New("pq: 23505"))
	assert.ErrorIs(t, err, ErrDuplicateSubmission)
	assert.NotErrorIs(t, err, ErrStatusUnchanged)
}

func TestInvalidTransitionMessage(t *testing.T) {
	err := InvalidTransition("paid", "sent")
	assert.Equal(t, "invalid_transition: cannot move from paid to sent", err.Error())
	assert.True(t, IsKind(err, KindInvalidTransition))
	assert.False(t, IsKind(nil, KindInvalidTransition))
}
