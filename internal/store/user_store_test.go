package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"merchantpay/internal/apperr"
	"merchantpay/internal/models"

	"github.com/shopspring/decimal"
)

func TestUserStoreCreate(t *testing.T) {
	ctx := context.Background()
	leader := "leader-1"
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO users") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 6 || args[0] != "user-1" || args[3] != models.RoleMerchant {
				t.Fatalf("unexpected args: %#v", args)
			}
			if ptr, ok := args[4].(*string); !ok || *ptr != leader {
				t.Fatalf("unexpected leader arg: %#v", args[4])
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewUserStore(stubDB{})
	err := store.Create(ctx, execer, models.User{ID: "user-1", Email: "m@example.com", PasswordHash: "hash", Role: models.RoleMerchant, MerchantLeaderID: &leader})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUserStoreGetProfile(t *testing.T) {
	ctx := context.Background()
	leader := "leader-1"
	store := NewUserStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FROM users WHERE id = $1") || !strings.Contains(query, "merchant_leader_id") {
				t.Fatalf("unexpected query: %s", query)
			}
			*dest.(*models.User) = models.User{
				ID:                "user-1",
				MerchantLeaderID:  &leader,
				CommissionPercent: decimal.NewNullDecimal(decimal.NewFromInt(8)),
			}
			return nil
		},
	})
	user, err := store.GetProfile(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.MerchantLeaderID == nil || *user.MerchantLeaderID != leader || !user.CommissionPercent.Valid {
		t.Fatalf("unexpected user: %#v", user)
	}
}

func TestUserStoreGetByEmailMissing(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(stubDB{
		getFn: func(context.Context, any, string, ...any) error {
			return sql.ErrNoRows
		},
	})
	_, err := store.GetByEmail(ctx, "nobody@example.com")
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUserStoreUpdateProfile(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "UPDATE users") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 4 || args[0] != models.RoleMerchantLeader || args[3] != "user-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewUserStore(stubDB{})
	rows, err := store.UpdateProfile(ctx, execer, "user-1", ProfileUpdate{Role: models.RoleMerchantLeader})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected 1 row, got %d", rows)
	}
}

func TestSettingsStoreGet(t *testing.T) {
	ctx := context.Background()
	store := NewSettingsStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FROM platform_settings") {
				t.Fatalf("unexpected query: %s", query)
			}
			*dest.(*settingRow) = settingRow{Key: "bank_wire_commission_percent", Kind: "number", Value: "12"}
			return nil
		},
	})
	setting, err := store.Get(ctx, "bank_wire_commission_percent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	value, err := setting.AsDecimal()
	if err != nil || !value.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("unexpected value: %v %v", value, err)
	}
}

func TestSettingsStorePutRejectsInvalidValue(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(context.Context, string, ...any) (sql.Result, error) {
			t.Fatalf("invalid setting must not be written")
			return nil, nil
		},
	}
	store := NewSettingsStore(stubDB{})
	if err := store.Put(ctx, execer, "bank_wire_commission_percent", "number", "ten"); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
