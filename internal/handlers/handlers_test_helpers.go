package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"merchantpay/internal/auth"
	"merchantpay/internal/config"
	"merchantpay/internal/ledger/ledgertest"
	"merchantpay/internal/metrics"
	"merchantpay/internal/models"
	"merchantpay/internal/payments"
	"merchantpay/internal/payouts"
	"merchantpay/internal/psp"
	"merchantpay/internal/store"
	"merchantpay/internal/websocket"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const testSecret = "handler-test-secret"

type stubUserStore struct {
	createFn        func(ctx context.Context, tx store.Execer, user models.User) error
	getByEmailFn    func(ctx context.Context, email string) (models.User, error)
	getProfileFn    func(ctx context.Context, userID string) (models.User, error)
	hasAnyAdminFn   func(ctx context.Context) (bool, error)
	updateProfileFn func(ctx context.Context, tx store.Execer, userID string, update store.ProfileUpdate) (int64, error)
}

func (s stubUserStore) Create(ctx context.Context, tx store.Execer, user models.User) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, user)
}

func (s stubUserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	if s.getByEmailFn == nil {
		return models.User{}, nil
	}
	return s.getByEmailFn(ctx, email)
}

func (s stubUserStore) GetProfile(ctx context.Context, userID string) (models.User, error) {
	if s.getProfileFn == nil {
		return models.User{ID: userID}, nil
	}
	return s.getProfileFn(ctx, userID)
}

func (s stubUserStore) HasAnyAdmin(ctx context.Context) (bool, error) {
	if s.hasAnyAdminFn == nil {
		return true, nil
	}
	return s.hasAnyAdminFn(ctx)
}

func (s stubUserStore) UpdateProfile(ctx context.Context, tx store.Execer, userID string, update store.ProfileUpdate) (int64, error) {
	if s.updateProfileFn == nil {
		return 1, nil
	}
	return s.updateProfileFn(ctx, tx, userID, update)
}

type stubSettingsStore struct {
	putFn func(ctx context.Context, tx store.Execer, key string, kind config.SettingKind, value string) error
}

func (s stubSettingsStore) Put(ctx context.Context, tx store.Execer, key string, kind config.SettingKind, value string) error {
	if s.putFn == nil {
		return nil
	}
	return s.putFn(ctx, tx, key, kind, value)
}

type stubCommissionStore struct {
	listFn func(ctx context.Context, leaderID string, limit, offset int) ([]models.Commission, error)
}

func (s stubCommissionStore) ListByLeader(ctx context.Context, leaderID string, limit, offset int) ([]models.Commission, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, leaderID, limit, offset)
}

type stubBalanceService struct {
	getFn func(ctx context.Context, userID string) (models.Balance, error)
}

func (s stubBalanceService) GetBalance(ctx context.Context, userID string) (models.Balance, error) {
	if s.getFn == nil {
		return models.Balance{UserID: userID, Currency: "USD"}, nil
	}
	return s.getFn(ctx, userID)
}

type stubPaymentService struct {
	createFn     func(ctx context.Context, req payments.CreateRequest) (models.PaymentRequest, error)
	getFn        func(ctx context.Context, id string) (models.PaymentRequest, error)
	markViewedFn func(ctx context.Context, token string) (models.PaymentRequest, error)
	transitionFn func(ctx context.Context, req payments.TransitionRequest) (models.PaymentRequest, error)
	listFn       func(ctx context.Context, merchantID string, limit, offset int) ([]models.PaymentRequest, error)
	timelineFn   func(ctx context.Context, id string) ([]models.TimelineEntry, error)
}

func (s stubPaymentService) Create(ctx context.Context, req payments.CreateRequest) (models.PaymentRequest, error) {
	if s.createFn == nil {
		return models.PaymentRequest{MerchantID: req.MerchantID, Amount: req.Amount}, nil
	}
	return s.createFn(ctx, req)
}

func (s stubPaymentService) Get(ctx context.Context, id string) (models.PaymentRequest, error) {
	if s.getFn == nil {
		return models.PaymentRequest{ID: id}, nil
	}
	return s.getFn(ctx, id)
}

func (s stubPaymentService) MarkViewed(ctx context.Context, token string) (models.PaymentRequest, error) {
	if s.markViewedFn == nil {
		return models.PaymentRequest{Token: token}, nil
	}
	return s.markViewedFn(ctx, token)
}

func (s stubPaymentService) Transition(ctx context.Context, req payments.TransitionRequest) (models.PaymentRequest, error) {
	if s.transitionFn == nil {
		return models.PaymentRequest{ID: req.ID, Status: req.Status}, nil
	}
	return s.transitionFn(ctx, req)
}

func (s stubPaymentService) ListByMerchant(ctx context.Context, merchantID string, limit, offset int) ([]models.PaymentRequest, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, merchantID, limit, offset)
}

func (s stubPaymentService) Timeline(ctx context.Context, id string) ([]models.TimelineEntry, error) {
	if s.timelineFn == nil {
		return nil, nil
	}
	return s.timelineFn(ctx, id)
}

type stubCardService struct {
	submitFn func(ctx context.Context, token string, card psp.CardDetails, client psp.ClientInfo) (models.CardSubmission, error)
	reviewFn func(ctx context.Context, req psp.ReviewRequest) (models.CardSubmission, error)
	verifyFn func(ctx context.Context, token string, req psp.VerificationRequest) (models.CardSubmission, error)
	getFn    func(ctx context.Context, id string) (psp.SubmissionView, error)
}

func (s stubCardService) SubmitCard(ctx context.Context, token string, card psp.CardDetails, client psp.ClientInfo) (models.CardSubmission, error) {
	if s.submitFn == nil {
		return models.CardSubmission{}, nil
	}
	return s.submitFn(ctx, token, card, client)
}

func (s stubCardService) Review(ctx context.Context, req psp.ReviewRequest) (models.CardSubmission, error) {
	if s.reviewFn == nil {
		return models.CardSubmission{ID: req.SubmissionID}, nil
	}
	return s.reviewFn(ctx, req)
}

func (s stubCardService) SubmitVerification(ctx context.Context, token string, req psp.VerificationRequest) (models.CardSubmission, error) {
	if s.verifyFn == nil {
		return models.CardSubmission{}, nil
	}
	return s.verifyFn(ctx, token, req)
}

func (s stubCardService) GetSubmission(ctx context.Context, id string) (psp.SubmissionView, error) {
	if s.getFn == nil {
		return psp.SubmissionView{}, nil
	}
	return s.getFn(ctx, id)
}

type stubPayoutService struct {
	createFn func(ctx context.Context, req payouts.CreateRequest) (models.Payout, error)
	updateFn func(ctx context.Context, req payouts.UpdateRequest) (models.Payout, error)
}

func (s stubPayoutService) Create(ctx context.Context, req payouts.CreateRequest) (models.Payout, error) {
	if s.createFn == nil {
		return models.Payout{UserID: req.UserID, Amount: req.Amount}, nil
	}
	return s.createFn(ctx, req)
}

func (s stubPayoutService) UpdateStatus(ctx context.Context, req payouts.UpdateRequest) (models.Payout, error) {
	if s.updateFn == nil {
		return models.Payout{ID: req.ID}, nil
	}
	return s.updateFn(ctx, req)
}

func (s stubPayoutService) Get(ctx context.Context, id string) (models.Payout, error) {
	return models.Payout{ID: id}, nil
}

func (s stubPayoutService) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Payout, error) {
	return nil, nil
}

// newTestDeps returns dependencies with every collaborator stubbed; tests
// override only what they exercise.
func newTestDeps() Deps {
	return Deps{
		TxRunner: ledgertest.TxRunner{},
		Config: config.Config{
			JWTSecret:      testSecret,
			TokenTTL:       time.Hour,
			AllowedOrigins: "*",
		},
		Logger:      zap.NewNop(),
		Users:       stubUserStore{},
		Settings:    stubSettingsStore{},
		Commissions: stubCommissionStore{},
		Balances:    stubBalanceService{},
		Payments:    stubPaymentService{},
		Cards:       stubCardService{},
		Withdrawals: stubPayoutService{},
		Settlements: stubPayoutService{},
		Hub:         websocket.NewHub(),
		Metrics:     metrics.New(prometheus.NewRegistry()),
	}
}

func tokenFor(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, userID, role, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func doRequest(t *testing.T, deps Deps, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	New(deps).Routes().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}
