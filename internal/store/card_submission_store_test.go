package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"merchantpay/internal/lifecycle"
	"merchantpay/internal/models"

	"github.com/lib/pq"
)

func TestCardSubmissionStoreCreate(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO card_submissions") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 10 || args[6] != "4242" || args[7] != "submitted" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewCardSubmissionStore(stubDB{})
	err := store.Create(ctx, execer, models.CardSubmission{ID: "cs-1", PaymentRequestID: "pr-1", LastFour: "4242", Status: lifecycle.CardSubmitted})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCardSubmissionStoreExistsForPayment(t *testing.T) {
	ctx := context.Background()
	getter := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FROM card_submissions WHERE payment_request_id = $1") {
				t.Fatalf("unexpected query: %s", query)
			}
			*dest.(*bool) = true
			return nil
		},
	}
	store := NewCardSubmissionStore(stubDB{})
	exists, err := store.ExistsForPayment(ctx, getter, "pr-1")
	if err != nil || !exists {
		t.Fatalf("expected existing submission, got %v %v", exists, err)
	}
}

func TestCardSubmissionStoreClaimAttempt(t *testing.T) {
	ctx := context.Background()
	store := NewCardSubmissionStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "verification_attempts + 1") || !strings.Contains(query, "verification_attempts < $2") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 2 || args[1] != 3 {
				t.Fatalf("expected attempt cap argument, got %v", args)
			}
			*dest.(*int) = 3
			return nil
		},
	})
	attempts, ok, err := store.ClaimAttempt(ctx, "cs-1", 3)
	if err != nil || !ok || attempts != 3 {
		t.Fatalf("unexpected result: %d %v %v", attempts, ok, err)
	}
}

func TestCardSubmissionStoreClaimAttemptAtCap(t *testing.T) {
	ctx := context.Background()
	store := NewCardSubmissionStore(stubDB{
		getFn: func(context.Context, any, string, ...any) error {
			return sql.ErrNoRows
		},
	})
	attempts, ok, err := store.ClaimAttempt(ctx, "cs-1", 3)
	if err != nil || ok || attempts != 0 {
		t.Fatalf("expected exhausted attempts, got %d %v %v", attempts, ok, err)
	}

	boom := errors.New("connection reset")
	store = NewCardSubmissionStore(stubDB{
		getFn: func(context.Context, any, string, ...any) error { return boom },
	})
	if _, _, err := store.ClaimAttempt(ctx, "cs-1", 3); !errors.Is(err, boom) {
		t.Fatalf("expected driver error, got %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := &pq.Error{Code: "23505", Constraint: ConstraintOneSubmissionPerPayment}
	if !IsUniqueViolation(err, ConstraintOneSubmissionPerPayment) {
		t.Fatalf("expected unique violation")
	}
	if IsUniqueViolation(err, "other_key") {
		t.Fatalf("constraint name must match")
	}
	if IsUniqueViolation(&pq.Error{Code: "40001"}, "") {
		t.Fatalf("serialization failure is not a unique violation")
	}
}

func TestCommissionStoreCreateAndExists(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO commissions") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 8 || args[4] != int64(1000) || args[6] != models.CommissionCredited {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	getter := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FROM commissions WHERE payment_request_id = $1") {
				t.Fatalf("unexpected query: %s", query)
			}
			*dest.(*bool) = false
			return nil
		},
	}
	store := NewCommissionStore(stubDB{})
	exists, err := store.ExistsForPayment(ctx, getter, "pr-1")
	if err != nil || exists {
		t.Fatalf("unexpected exists result: %v %v", exists, err)
	}
	err = store.Create(ctx, execer, models.Commission{ID: "c-1", UserID: "leader-1", Amount: 1000, PaymentAmount: 20000, Status: models.CommissionCredited})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPayoutStoreUsesConfiguredTable(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO settlements") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 16 || args[4] != int64(10000) || args[5] != int64(100) {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewSettlementStore(stubDB{})
	err := store.Create(ctx, execer, models.Payout{ID: "s-1", Reference: "01J", UserID: "m-1", Rail: "bank_transfer", Amount: 10000, Fee: 100, Status: lifecycle.PayoutPending})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPayoutStoreGetForUpdateMissing(t *testing.T) {
	ctx := context.Background()
	getter := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FROM withdrawals WHERE id = $1 FOR UPDATE") {
				t.Fatalf("unexpected query: %s", query)
			}
			return sql.ErrNoRows
		},
	}
	store := NewWithdrawalStore(stubDB{})
	_, err := store.GetForUpdate(ctx, getter, "w-1")
	if err == nil || !strings.Contains(err.Error(), "withdrawal_not_found") {
		t.Fatalf("expected withdrawal_not_found, got %v", err)
	}
}
