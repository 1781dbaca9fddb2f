package handlers

import (
	"context"

	"merchantpay/internal/config"
	"merchantpay/internal/models"
	"merchantpay/internal/payments"
	"merchantpay/internal/payouts"
	"merchantpay/internal/psp"
	"merchantpay/internal/store"
)

type UserStore interface {
	Create(ctx context.Context, tx store.Execer, user models.User) error
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetProfile(ctx context.Context, userID string) (models.User, error)
	HasAnyAdmin(ctx context.Context) (bool, error)
	UpdateProfile(ctx context.Context, tx store.Execer, userID string, update store.ProfileUpdate) (int64, error)
}

type SettingsStore interface {
	Put(ctx context.Context, tx store.Execer, key string, kind config.SettingKind, value string) error
}

type CommissionStore interface {
	ListByLeader(ctx context.Context, leaderID string, limit, offset int) ([]models.Commission, error)
}

type BalanceService interface {
	GetBalance(ctx context.Context, userID string) (models.Balance, error)
}

type PaymentService interface {
	Create(ctx context.Context, req payments.CreateRequest) (models.PaymentRequest, error)
	Get(ctx context.Context, id string) (models.PaymentRequest, error)
	MarkViewed(ctx context.Context, token string) (models.PaymentRequest, error)
	Transition(ctx context.Context, req payments.TransitionRequest) (models.PaymentRequest, error)
	ListByMerchant(ctx context.Context, merchantID string, limit, offset int) ([]models.PaymentRequest, error)
	Timeline(ctx context.Context, id string) ([]models.TimelineEntry, error)
}

type CardService interface {
	SubmitCard(ctx context.Context, token string, card psp.CardDetails, client psp.ClientInfo) (models.CardSubmission, error)
	Review(ctx context.Context, req psp.ReviewRequest) (models.CardSubmission, error)
	SubmitVerification(ctx context.Context, token string, req psp.VerificationRequest) (models.CardSubmission, error)
	GetSubmission(ctx context.Context, id string) (psp.SubmissionView, error)
}

type PayoutService interface {
	Create(ctx context.Context, req payouts.CreateRequest) (models.Payout, error)
	UpdateStatus(ctx context.Context, req payouts.UpdateRequest) (models.Payout, error)
	Get(ctx context.Context, id string) (models.Payout, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Payout, error)
}
