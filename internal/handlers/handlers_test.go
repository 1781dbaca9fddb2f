package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"merchantpay/internal/apperr"
	"merchantpay/internal/config"
	"merchantpay/internal/lifecycle"
	"merchantpay/internal/models"
	"merchantpay/internal/payments"
	"merchantpay/internal/payouts"
	"merchantpay/internal/psp"
	"merchantpay/internal/store"
)

func TestCreatePaymentRequestParsesAmount(t *testing.T) {
	var got payments.CreateRequest
	deps := newTestDeps()
	deps.Payments = stubPaymentService{
		createFn: func(_ context.Context, req payments.CreateRequest) (models.PaymentRequest, error) {
			got = req
			return models.PaymentRequest{ID: "pr-1", MerchantID: req.MerchantID, Amount: req.Amount, Token: "tok-1"}, nil
		},
	}
	percent := "1"
	rec := doRequest(t, deps, http.MethodPost, "/payment-requests", tokenFor(t, "m-1", models.RoleMerchant), createPaymentRequest{
		MerchantID:        "someone-else",
		Amount:            "50.00",
		PaymentMethods:    []string{models.MethodCard},
		CommissionPercent: &percent,
	})
	expectStatus(t, rec, http.StatusCreated)
	if got.Amount != 5000 {
		t.Fatalf("expected 5000 minor units, got %d", got.Amount)
	}
	if got.MerchantID != "m-1" {
		t.Fatalf("merchant must create for themselves, got %q", got.MerchantID)
	}
	if got.CommissionPercent.Valid {
		t.Fatalf("merchant must not override the commission rate")
	}
	var body createPaymentResponse
	decodeBody(t, rec, &body)
	if body.Token != "tok-1" {
		t.Fatalf("expected token in response, got %q", body.Token)
	}
}

func TestCreatePaymentRequestRejectsBadAmount(t *testing.T) {
	deps := newTestDeps()
	for _, amount := range []string{"", "abc", "0", "-5"} {
		rec := doRequest(t, deps, http.MethodPost, "/payment-requests", tokenFor(t, "m-1", models.RoleMerchant), createPaymentRequest{Amount: amount})
		expectStatus(t, rec, http.StatusBadRequest)
		var body errorResponse
		decodeBody(t, rec, &body)
		if body.Error.Code != "invalid_amount" {
			t.Fatalf("amount %q: expected invalid_amount, got %+v", amount, body.Error)
		}
	}
}

func TestAdminCreatesPaymentRequestWithOverride(t *testing.T) {
	var got payments.CreateRequest
	deps := newTestDeps()
	deps.Payments = stubPaymentService{
		createFn: func(_ context.Context, req payments.CreateRequest) (models.PaymentRequest, error) {
			got = req
			return models.PaymentRequest{}, nil
		},
	}
	percent := "2.5"
	rec := doRequest(t, deps, http.MethodPost, "/payment-requests", tokenFor(t, "admin-1", models.RoleAdmin), createPaymentRequest{
		MerchantID:        "m-7",
		Amount:            "10",
		CommissionPercent: &percent,
	})
	expectStatus(t, rec, http.StatusCreated)
	if got.MerchantID != "m-7" || !got.CommissionPercent.Valid || got.CommissionPercent.Decimal.String() != "2.5" {
		t.Fatalf("unexpected create request: %+v", got)
	}
}

func TestPaymentRequestOwnership(t *testing.T) {
	deps := newTestDeps()
	deps.Payments = stubPaymentService{
		getFn: func(_ context.Context, id string) (models.PaymentRequest, error) {
			return models.PaymentRequest{ID: id, MerchantID: "m-1"}, nil
		},
	}
	rec := doRequest(t, deps, http.MethodGet, "/payment-requests/pr-1", tokenFor(t, "m-2", models.RoleMerchant), nil)
	expectStatus(t, rec, http.StatusNotFound)

	rec = doRequest(t, deps, http.MethodGet, "/payment-requests/pr-1", tokenFor(t, "m-1", models.RoleMerchant), nil)
	expectStatus(t, rec, http.StatusOK)

	rec = doRequest(t, deps, http.MethodGet, "/payment-requests/pr-1/timeline", tokenFor(t, "admin-1", models.RoleAdmin), nil)
	expectStatus(t, rec, http.StatusOK)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	deps := newTestDeps()
	rec := doRequest(t, deps, http.MethodPost, "/admin/payment-requests/pr-1/status", tokenFor(t, "m-1", models.RoleMerchant), transitionRequest{Status: "paid"})
	expectStatus(t, rec, http.StatusForbidden)

	rec = doRequest(t, deps, http.MethodPost, "/admin/payment-requests/pr-1/status", "", transitionRequest{Status: "paid"})
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestAdminTransitionMapsErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
		code string
	}{
		{apperr.InvalidTransition("paid", "sent"), http.StatusConflict, "invalid_transition"},
		{apperr.ErrStatusUnchanged, http.StatusConflict, "status_unchanged"},
		{apperr.ErrInsufficientBalance, http.StatusUnprocessableEntity, "insufficient_balance"},
		{apperr.NotFound("payment request"), http.StatusNotFound, ""},
		{errors.New("connection reset"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		deps := newTestDeps()
		deps.Payments = stubPaymentService{
			transitionFn: func(context.Context, payments.TransitionRequest) (models.PaymentRequest, error) {
				return models.PaymentRequest{}, tc.err
			},
		}
		rec := doRequest(t, deps, http.MethodPost, "/admin/payment-requests/pr-1/status", tokenFor(t, "admin-1", models.RoleAdmin), transitionRequest{Status: "paid"})
		expectStatus(t, rec, tc.want)
		if tc.code == "" {
			continue
		}
		var body errorResponse
		decodeBody(t, rec, &body)
		if body.Error.Code != tc.code {
			t.Fatalf("expected code %q, got %+v", tc.code, body.Error)
		}
		if strings.Contains(body.Error.Message, "connection reset") {
			t.Fatalf("internal error details leaked: %q", body.Error.Message)
		}
	}
}

func TestAdminTransitionPassesActor(t *testing.T) {
	var got payments.TransitionRequest
	deps := newTestDeps()
	deps.Payments = stubPaymentService{
		transitionFn: func(_ context.Context, req payments.TransitionRequest) (models.PaymentRequest, error) {
			got = req
			return models.PaymentRequest{ID: req.ID, Status: req.Status}, nil
		},
	}
	rec := doRequest(t, deps, http.MethodPost, "/admin/payment-requests/pr-9/status", tokenFor(t, "admin-1", models.RoleAdmin), transitionRequest{Status: "paid", Notes: "wire received"})
	expectStatus(t, rec, http.StatusOK)
	if got.ID != "pr-9" || got.Status != lifecycle.StatusPaid || got.ActorID != "admin-1" || got.Notes != "wire received" {
		t.Fatalf("unexpected transition request: %+v", got)
	}
}

func TestPublicPaymentViewHidesToken(t *testing.T) {
	deps := newTestDeps()
	deps.Payments = stubPaymentService{
		markViewedFn: func(_ context.Context, token string) (models.PaymentRequest, error) {
			return models.PaymentRequest{ID: "pr-1", Token: token, Amount: 5000, MerchantID: "m-1", Status: lifecycle.StatusAwaiting3DSMS}, nil
		},
	}
	rec := doRequest(t, deps, http.MethodGet, "/pay/secret-token", "", nil)
	expectStatus(t, rec, http.StatusOK)
	raw := rec.Body.String()
	if strings.Contains(raw, "secret-token") || strings.Contains(raw, "m-1") {
		t.Fatalf("public view leaked internals: %s", raw)
	}
	var view publicPayment
	decodeBody(t, rec, &view)
	if view.Amount != "50.00" || view.VerificationType == nil || *view.VerificationType != string(lifecycle.VerificationSMS) {
		t.Fatalf("unexpected view: %+v", view)
	}
}

func TestSubmitCardAndVerify(t *testing.T) {
	var gotCard psp.CardDetails
	var gotVerification psp.VerificationRequest
	deps := newTestDeps()
	deps.Cards = stubCardService{
		submitFn: func(_ context.Context, token string, card psp.CardDetails, _ psp.ClientInfo) (models.CardSubmission, error) {
			gotCard = card
			return models.CardSubmission{ID: "sub-1", Status: lifecycle.CardSubmitted, LastFour: "1111", CardNumber: "ciphertext"}, nil
		},
		verifyFn: func(_ context.Context, _ string, req psp.VerificationRequest) (models.CardSubmission, error) {
			gotVerification = req
			return models.CardSubmission{ID: "sub-1", Status: lifecycle.CardVerificationCompleted}, nil
		},
	}
	rec := doRequest(t, deps, http.MethodPost, "/pay/tok-1/card", "", cardRequest{
		Number: "4111 1111 1111 1111", Holder: "Jane Doe", ExpiryMonth: 12, ExpiryYear: 2030, CVV: "123",
	})
	expectStatus(t, rec, http.StatusCreated)
	if gotCard.Number != "4111 1111 1111 1111" || gotCard.CVV != "123" {
		t.Fatalf("unexpected card details: %+v", gotCard)
	}
	if strings.Contains(rec.Body.String(), "ciphertext") {
		t.Fatalf("submission response leaked card data")
	}

	rec = doRequest(t, deps, http.MethodPost, "/pay/tok-1/verify", "", verificationRequest{Code: "123456"})
	expectStatus(t, rec, http.StatusOK)
	if gotVerification.Code != "123456" {
		t.Fatalf("unexpected verification request: %+v", gotVerification)
	}
}

func TestSubmitCardDuplicate(t *testing.T) {
	deps := newTestDeps()
	deps.Cards = stubCardService{
		submitFn: func(context.Context, string, psp.CardDetails, psp.ClientInfo) (models.CardSubmission, error) {
			return models.CardSubmission{}, apperr.ErrDuplicateSubmission
		},
	}
	rec := doRequest(t, deps, http.MethodPost, "/pay/tok-1/card", "", cardRequest{Number: "4111111111111111"})
	expectStatus(t, rec, http.StatusConflict)
}

func TestCreateWithdrawal(t *testing.T) {
	var got payouts.CreateRequest
	deps := newTestDeps()
	deps.Withdrawals = stubPayoutService{
		createFn: func(_ context.Context, req payouts.CreateRequest) (models.Payout, error) {
			got = req
			return models.Payout{ID: "wd-1"}, nil
		},
	}
	address := "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"
	rec := doRequest(t, deps, http.MethodPost, "/withdrawals", tokenFor(t, "m-1", models.RoleMerchant), payoutRequest{
		UserID:  "m-2",
		Rail:    "BTC",
		Amount:  "100.00",
		Address: &address,
	})
	expectStatus(t, rec, http.StatusCreated)
	if got.UserID != "m-1" || got.Amount != 10000 || got.Destination.Address == nil {
		t.Fatalf("unexpected withdrawal request: %+v", got)
	}

	deps.Withdrawals = stubPayoutService{
		createFn: func(context.Context, payouts.CreateRequest) (models.Payout, error) {
			return models.Payout{}, apperr.ErrInsufficientBalance
		},
	}
	rec = doRequest(t, deps, http.MethodPost, "/withdrawals", tokenFor(t, "m-1", models.RoleMerchant), payoutRequest{Rail: "BTC", Amount: "100", Address: &address})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
}

func TestAdminSettlementRequiresUser(t *testing.T) {
	var got payouts.CreateRequest
	deps := newTestDeps()
	deps.Settlements = stubPayoutService{
		createFn: func(_ context.Context, req payouts.CreateRequest) (models.Payout, error) {
			got = req
			return models.Payout{}, nil
		},
	}
	admin := tokenFor(t, "admin-1", models.RoleAdmin)
	rec := doRequest(t, deps, http.MethodPost, "/admin/settlements", admin, payoutRequest{Rail: "bank_transfer", Amount: "10"})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = doRequest(t, deps, http.MethodPost, "/admin/settlements", admin, payoutRequest{UserID: "m-1", Rail: "bank_transfer", Amount: "10"})
	expectStatus(t, rec, http.StatusCreated)
	if got.UserID != "m-1" || got.CreatedBy != "admin-1" {
		t.Fatalf("unexpected settlement request: %+v", got)
	}
}

func TestAdminUpdateProfile(t *testing.T) {
	var got store.ProfileUpdate
	deps := newTestDeps()
	deps.Users = stubUserStore{
		getProfileFn: func(_ context.Context, userID string) (models.User, error) {
			if userID == "leader-1" {
				return models.User{ID: userID, Role: models.RoleMerchantLeader}, nil
			}
			return models.User{ID: userID, Role: models.RoleMerchant}, nil
		},
		updateProfileFn: func(_ context.Context, _ store.Execer, _ string, update store.ProfileUpdate) (int64, error) {
			got = update
			return 1, nil
		},
	}
	admin := tokenFor(t, "admin-1", models.RoleAdmin)
	leader := "leader-1"
	percent := "4"
	rec := doRequest(t, deps, http.MethodPut, "/admin/users/m-1/profile", admin, profileRequest{
		Role: models.RoleMerchant, MerchantLeaderID: &leader, CommissionPercent: &percent,
	})
	expectStatus(t, rec, http.StatusOK)
	if got.MerchantLeaderID == nil || *got.MerchantLeaderID != "leader-1" || got.CommissionPercent.Decimal.String() != "4" {
		t.Fatalf("unexpected profile update: %+v", got)
	}

	notLeader := "m-3"
	rec = doRequest(t, deps, http.MethodPut, "/admin/users/m-1/profile", admin, profileRequest{Role: models.RoleMerchant, MerchantLeaderID: &notLeader})
	expectStatus(t, rec, http.StatusBadRequest)

	tooHigh := "100"
	rec = doRequest(t, deps, http.MethodPut, "/admin/users/m-1/profile", admin, profileRequest{Role: models.RoleMerchant, CommissionPercent: &tooHigh})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = doRequest(t, deps, http.MethodPut, "/admin/users/m-1/profile", admin, profileRequest{Role: "superuser"})
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestAdminPutSetting(t *testing.T) {
	var stored string
	deps := newTestDeps()
	deps.Settings = stubSettingsStore{
		putFn: func(_ context.Context, _ store.Execer, key string, kind config.SettingKind, value string) error {
			stored = key + "=" + value + ":" + string(kind)
			return nil
		},
	}
	admin := tokenFor(t, "admin-1", models.RoleAdmin)
	rec := doRequest(t, deps, http.MethodPut, "/admin/settings/bank_wire_commission_percent", admin, settingRequest{Kind: "number", Value: "6"})
	expectStatus(t, rec, http.StatusOK)
	if stored != "bank_wire_commission_percent=6:number" {
		t.Fatalf("unexpected stored setting %q", stored)
	}

	rec = doRequest(t, deps, http.MethodPut, "/admin/settings/bank_wire_commission_percent", admin, settingRequest{Kind: "number", Value: "150"})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = doRequest(t, deps, http.MethodPut, "/admin/settings/bank_wire_commission_percent", admin, settingRequest{Kind: "bool", Value: "true"})
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestBalanceAndCommissions(t *testing.T) {
	deps := newTestDeps()
	deps.Balances = stubBalanceService{
		getFn: func(_ context.Context, userID string) (models.Balance, error) {
			return models.Balance{UserID: userID, Currency: "USD", Available: 3500, Pending: 1250}, nil
		},
	}
	rec := doRequest(t, deps, http.MethodGet, "/balance", tokenFor(t, "m-1", models.RoleMerchant), nil)
	expectStatus(t, rec, http.StatusOK)
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["available"] != "35.00" || body["pending"] != "12.50" {
		t.Fatalf("unexpected balance body: %+v", body)
	}

	rec = doRequest(t, deps, http.MethodGet, "/commissions", tokenFor(t, "m-1", models.RoleMerchant), nil)
	expectStatus(t, rec, http.StatusForbidden)
	rec = doRequest(t, deps, http.MethodGet, "/commissions", tokenFor(t, "leader-1", models.RoleMerchantLeader), nil)
	expectStatus(t, rec, http.StatusOK)
}

func TestHealth(t *testing.T) {
	rec := doRequest(t, newTestDeps(), http.MethodGet, "/health", "", nil)
	expectStatus(t, rec, http.StatusOK)
}
