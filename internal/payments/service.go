package payments

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"
	"time"

	"merchantpay/internal/apperr"
	"merchantpay/internal/commission"
	"merchantpay/internal/config"
	"merchantpay/internal/db"
	"merchantpay/internal/ledger"
	"merchantpay/internal/lifecycle"
	"merchantpay/internal/models"
	"merchantpay/internal/notify"
	"merchantpay/internal/store"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	ActorSystem   = "system"
	ActorCustomer = "customer"

	expiryBatchSize = 100
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

type RequestStore interface {
	Create(ctx context.Context, tx store.Execer, pr models.PaymentRequest) error
	GetByID(ctx context.Context, id string) (models.PaymentRequest, error)
	GetByToken(ctx context.Context, token string) (models.PaymentRequest, error)
	GetForUpdate(ctx context.Context, tx store.Getter, id string) (models.PaymentRequest, error)
	UpdateStatus(ctx context.Context, tx store.Execer, id string, status lifecycle.PaymentStatus, viewedAt, paidAt *time.Time) error
	ListOverdue(ctx context.Context, now time.Time, statuses []lifecycle.PaymentStatus, limit int) ([]models.PaymentRequest, error)
	ListByMerchant(ctx context.Context, merchantID string, limit, offset int) ([]models.PaymentRequest, error)
}

type TimelineStore interface {
	Append(ctx context.Context, tx store.Execer, entry models.TimelineEntry) error
	List(ctx context.Context, paymentRequestID string) ([]models.TimelineEntry, error)
}

type UserStore interface {
	GetProfile(ctx context.Context, userID string) (models.User, error)
}

type SettingsStore interface {
	Get(ctx context.Context, key string) (config.Setting, error)
}

type BalanceLedger interface {
	Lock(userIDs ...string) func()
	Apply(ctx context.Context, tx store.Tx, userID string, delta ledger.Delta) (models.Balance, error)
}

type CommissionCrediter interface {
	CreditIsolated(ctx context.Context, tx store.Tx, req commission.CreditRequest) bool
}

type Metrics interface {
	PaymentTransition(from, to string)
}

// Hook runs inside a transition's transaction, after the payment request
// row is locked and before the status check. Returning an error aborts the
// whole transition.
type Hook func(ctx context.Context, tx store.Tx, pr models.PaymentRequest) error

type Options struct {
	DefaultCurrency string
	BankWirePercent decimal.Decimal
}

type Service struct {
	txRunner    db.TxRunner
	requests    RequestStore
	timeline    TimelineStore
	users       UserStore
	settings    SettingsStore
	ledger      BalanceLedger
	commissions CommissionCrediter
	notifier    notify.Notifier
	metrics     Metrics
	logger      *zap.Logger
	opts        Options
	now         func() time.Time
	newToken    func() (string, error)
}

func NewService(txRunner db.TxRunner, requests RequestStore, timeline TimelineStore, users UserStore, settings SettingsStore, balances BalanceLedger, commissions CommissionCrediter, notifier notify.Notifier, metrics Metrics, logger *zap.Logger, opts Options) *Service {
	return &Service{
		txRunner:    txRunner,
		requests:    requests,
		timeline:    timeline,
		users:       users,
		settings:    settings,
		ledger:      balances,
		commissions: commissions,
		notifier:    notifier,
		metrics:     metrics,
		logger:      logger,
		opts:        opts,
		now:         time.Now,
		newToken:    newPaymentToken,
	}
}

type CreateRequest struct {
	MerchantID        string
	Amount            int64
	Currency          string
	Description       string
	InvoiceNumber     string
	DueDate           *time.Time
	CustomerName      string
	CustomerEmail     string
	CustomerPhone     string
	PaymentMethods    []string
	CommissionPercent decimal.NullDecimal
	BankRouteID       *string
	CardRouteID       *string
}

// Create stores a new payment request in sent and books its net amount as
// pending on the merchant's balance.
func (s *Service) Create(ctx context.Context, req CreateRequest) (models.PaymentRequest, error) {
	if req.Amount <= 0 {
		return models.PaymentRequest{}, apperr.ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.opts.DefaultCurrency
	}
	if !currencyPattern.MatchString(currency) {
		return models.PaymentRequest{}, apperr.Validation("invalid_currency", "currency must be a 3-letter code")
	}
	methods, err := normalizeMethods(req.PaymentMethods)
	if err != nil {
		return models.PaymentRequest{}, err
	}
	if req.CommissionPercent.Valid {
		if err := commission.ValidatePercent(req.CommissionPercent.Decimal); err != nil {
			return models.PaymentRequest{}, err
		}
	}
	merchant, err := s.users.GetProfile(ctx, req.MerchantID)
	if err != nil {
		return models.PaymentRequest{}, err
	}
	if merchant.Role == models.RoleAdmin {
		return models.PaymentRequest{}, apperr.Validation("not_a_merchant", "only merchants can request payments")
	}
	rate := commission.BankWireRate{
		Override: req.CommissionPercent,
		Merchant: merchant.CommissionPercent,
		Platform: s.platformBankWirePercent(ctx),
		Default:  s.opts.BankWirePercent,
	}
	breakdown, err := commission.Calculate(req.Amount, methods, rate.Resolve())
	if err != nil {
		return models.PaymentRequest{}, err
	}
	token, err := s.newToken()
	if err != nil {
		return models.PaymentRequest{}, err
	}
	now := s.now().UTC()
	pr := models.PaymentRequest{
		ID:                uuid.NewString(),
		MerchantID:        req.MerchantID,
		Amount:            req.Amount,
		Currency:          currency,
		Description:       req.Description,
		InvoiceNumber:     req.InvoiceNumber,
		DueDate:           req.DueDate,
		CustomerName:      req.CustomerName,
		CustomerEmail:     req.CustomerEmail,
		CustomerPhone:     req.CustomerPhone,
		PaymentMethods:    pq.StringArray(methods),
		Status:            lifecycle.StatusSent,
		CommissionPercent: breakdown.Percent,
		CommissionAmount:  breakdown.Commission,
		NetAmount:         breakdown.Net,
		BankRouteID:       req.BankRouteID,
		CardRouteID:       req.CardRouteID,
		Token:             token,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	unlock := s.ledger.Lock(req.MerchantID)
	defer unlock()
	err = s.txRunner.WithTx(ctx, func(tx store.Tx) error {
		if err := s.requests.Create(ctx, tx, pr); err != nil {
			return err
		}
		if _, err := s.ledger.Apply(ctx, tx, pr.MerchantID, ledger.Delta{
			Pending:     pr.EffectiveAmount(),
			Reason:      "payment_request.created",
			ReferenceID: pr.ID,
		}); err != nil {
			return err
		}
		return s.timeline.Append(ctx, tx, models.TimelineEntry{
			ID:               uuid.NewString(),
			PaymentRequestID: pr.ID,
			ToStatus:         string(pr.Status),
			ActorID:          req.MerchantID,
			Notes:            "created",
		})
	})
	if err != nil {
		return models.PaymentRequest{}, err
	}
	s.notifier.Notify(notify.Event{
		Type:     notify.TypePaymentCreated,
		UserID:   pr.MerchantID,
		Audience: notify.AudienceMerchant,
		EntityID: pr.ID,
		Status:   string(pr.Status),
		Payload:  map[string]any{"amount": pr.Amount, "net_amount": pr.NetAmount, "currency": pr.Currency},
	})
	return pr, nil
}

type TransitionRequest struct {
	ID      string
	Status  lifecycle.PaymentStatus
	ActorID string
	Notes   string
}

func (s *Service) Transition(ctx context.Context, req TransitionRequest) (models.PaymentRequest, error) {
	return s.TransitionWith(ctx, req, nil)
}

// checkCardFlow keeps card statuses in step with the card submission. A
// request that does not accept cards never enters them, and without a hook
// only the expiry job may move a request out of them.
func checkCardFlow(pr models.PaymentRequest, req TransitionRequest, hooked bool) error {
	refuse := apperr.InvalidTransition(string(pr.Status), string(req.Status))
	if req.Status.IsCardFlow() {
		if !pr.Accepts(models.MethodCard) || !hooked {
			return refuse
		}
	}
	if pr.Status.IsCardFlow() && !hooked && req.ActorID != ActorSystem {
		return refuse
	}
	return nil
}

// TransitionWith moves a payment request to a new status and applies the
// matching balance change. The balance update, the status write, the
// timeline entry and the leader commission all commit together, with the
// commission isolated so its failure never blocks the transition.
func (s *Service) TransitionWith(ctx context.Context, req TransitionRequest, hook Hook) (models.PaymentRequest, error) {
	if _, err := lifecycle.ParsePaymentStatus(string(req.Status)); err != nil {
		return models.PaymentRequest{}, err
	}
	current, err := s.requests.GetByID(ctx, req.ID)
	if err != nil {
		return models.PaymentRequest{}, err
	}
	leaderID := s.merchantLeader(ctx, current.MerchantID)

	unlock := s.ledger.Lock(current.MerchantID, leaderID)
	defer unlock()

	var result models.PaymentRequest
	var from lifecycle.PaymentStatus
	var credited bool
	err = s.txRunner.WithTx(ctx, func(tx store.Tx) error {
		credited = false
		pr, err := s.requests.GetForUpdate(ctx, tx, req.ID)
		if err != nil {
			return err
		}
		if err := checkCardFlow(pr, req, hook != nil); err != nil {
			return err
		}
		if hook != nil {
			if err := hook(ctx, tx, pr); err != nil {
				return err
			}
		}
		if err := lifecycle.CheckPaymentTransition(pr.Status, req.Status); err != nil {
			return err
		}
		from = pr.Status
		delta := balanceDelta(from.Class(), req.Status.Class(), pr.EffectiveAmount())
		delta.Reason = "payment_request." + string(req.Status)
		delta.ReferenceID = pr.ID
		if _, err := s.ledger.Apply(ctx, tx, pr.MerchantID, delta); err != nil {
			return err
		}

		now := s.now().UTC()
		var viewedAt, paidAt *time.Time
		if req.Status == lifecycle.StatusViewed {
			viewedAt = &now
		}
		if req.Status.IsCompleted() {
			paidAt = &now
		}
		if err := s.requests.UpdateStatus(ctx, tx, pr.ID, req.Status, viewedAt, paidAt); err != nil {
			return err
		}
		if err := s.timeline.Append(ctx, tx, models.TimelineEntry{
			ID:               uuid.NewString(),
			PaymentRequestID: pr.ID,
			FromStatus:       string(from),
			ToStatus:         string(req.Status),
			ActorID:          req.ActorID,
			Notes:            req.Notes,
		}); err != nil {
			return err
		}
		if req.Status.IsCompleted() && !from.IsCompleted() && leaderID != "" {
			credited = s.commissions.CreditIsolated(ctx, tx, commission.CreditRequest{
				LeaderID:         leaderID,
				MerchantID:       pr.MerchantID,
				PaymentRequestID: pr.ID,
				PaymentAmount:    pr.Amount,
			})
		}

		pr.Status = req.Status
		if pr.ViewedAt == nil {
			pr.ViewedAt = viewedAt
		}
		if pr.PaidAt == nil {
			pr.PaidAt = paidAt
		}
		pr.UpdatedAt = now
		result = pr
		return nil
	})
	if err != nil {
		return models.PaymentRequest{}, err
	}

	s.metrics.PaymentTransition(string(from), string(result.Status))
	s.notifier.Notify(notify.Event{
		Type:     notify.TypePaymentStatusChanged,
		UserID:   result.MerchantID,
		Audience: notify.AudienceMerchant,
		EntityID: result.ID,
		Status:   string(result.Status),
		Payload:  map[string]any{"from": string(from), "actor_id": req.ActorID},
	})
	if credited {
		s.notifier.Notify(notify.Event{
			Type:     notify.TypeCommissionCredited,
			UserID:   leaderID,
			Audience: notify.AudienceMerchant,
			EntityID: result.ID,
			Payload:  map[string]any{"amount": commission.LeaderCommission(result.Amount), "merchant_id": result.MerchantID},
		})
	}
	return result, nil
}

// merchantLeader resolves the merchant's leader before the ledger lock is
// taken. A failed lookup only skips the commission.
func (s *Service) merchantLeader(ctx context.Context, merchantID string) string {
	merchant, err := s.users.GetProfile(ctx, merchantID)
	if err != nil {
		s.logger.Warn("merchant leader lookup failed", zap.String("merchant_id", merchantID), zap.Error(err))
		return ""
	}
	if merchant.MerchantLeaderID == nil {
		return ""
	}
	return *merchant.MerchantLeaderID
}

// balanceDelta reverses the old status's contribution and books the new
// one. Void statuses contribute nothing.
func balanceDelta(from, to lifecycle.Class, amount int64) ledger.Delta {
	var delta ledger.Delta
	switch from {
	case lifecycle.ClassPending:
		delta.Pending -= amount
	case lifecycle.ClassCompleted:
		delta.Available -= amount
	case lifecycle.ClassVoid:
	}
	switch to {
	case lifecycle.ClassPending:
		delta.Pending += amount
	case lifecycle.ClassCompleted:
		delta.Available += amount
	case lifecycle.ClassVoid:
	}
	return delta
}

// MarkViewed records the first customer view of the payment link. Later
// views return the request unchanged.
func (s *Service) MarkViewed(ctx context.Context, token string) (models.PaymentRequest, error) {
	pr, err := s.requests.GetByToken(ctx, token)
	if err != nil {
		return models.PaymentRequest{}, err
	}
	if pr.Status != lifecycle.StatusSent {
		return pr, nil
	}
	viewed, err := s.Transition(ctx, TransitionRequest{ID: pr.ID, Status: lifecycle.StatusViewed, ActorID: ActorCustomer})
	if apperr.IsKind(err, apperr.KindInvalidTransition) {
		return s.requests.GetByToken(ctx, token)
	}
	return viewed, err
}

func (s *Service) Get(ctx context.Context, id string) (models.PaymentRequest, error) {
	return s.requests.GetByID(ctx, id)
}

func (s *Service) GetByToken(ctx context.Context, token string) (models.PaymentRequest, error) {
	return s.requests.GetByToken(ctx, token)
}

func (s *Service) ListByMerchant(ctx context.Context, merchantID string, limit, offset int) ([]models.PaymentRequest, error) {
	return s.requests.ListByMerchant(ctx, merchantID, limit, offset)
}

func (s *Service) Timeline(ctx context.Context, id string) ([]models.TimelineEntry, error) {
	if _, err := s.requests.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.timeline.List(ctx, id)
}

// ExpireOverdue moves pending requests past their due date to expired,
// one transition each. Requests that changed status concurrently are
// skipped. It returns how many were expired.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	var pending []lifecycle.PaymentStatus
	for _, status := range lifecycle.PaymentStatuses() {
		if status.IsPending() {
			pending = append(pending, status)
		}
	}
	overdue, err := s.requests.ListOverdue(ctx, s.now().UTC(), pending, expiryBatchSize)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, pr := range overdue {
		_, err := s.Transition(ctx, TransitionRequest{
			ID:      pr.ID,
			Status:  lifecycle.StatusExpired,
			ActorID: ActorSystem,
			Notes:   "due date passed",
		})
		switch {
		case err == nil:
			expired++
		case apperr.IsKind(err, apperr.KindInvalidTransition):
		case errors.Is(err, context.Canceled):
			return expired, err
		default:
			s.logger.Error("failed to expire payment request", zap.String("payment_request_id", pr.ID), zap.Error(err))
		}
	}
	return expired, nil
}

// RunExpiry calls ExpireOverdue every interval until ctx is done.
func (s *Service) RunExpiry(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := s.ExpireOverdue(ctx)
			if err != nil {
				s.logger.Warn("expiry sweep failed", zap.Error(err))
				continue
			}
			if count > 0 {
				s.logger.Info("expired overdue payment requests", zap.Int("count", count))
			}
		}
	}
}

func (s *Service) platformBankWirePercent(ctx context.Context) decimal.NullDecimal {
	setting, err := s.settings.Get(ctx, config.SettingBankWireCommissionPercent)
	if err != nil {
		if !apperr.IsKind(err, apperr.KindNotFound) {
			s.logger.Warn("unable to read platform commission setting", zap.Error(err))
		}
		return decimal.NullDecimal{}
	}
	percent, err := setting.AsDecimal()
	if err != nil {
		s.logger.Warn("platform commission setting has wrong kind", zap.Error(err))
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(percent)
}

func normalizeMethods(methods []string) ([]string, error) {
	if len(methods) == 0 {
		return nil, apperr.Validation("invalid_payment_methods", "at least one payment method is required")
	}
	seen := make(map[string]bool, len(methods))
	out := make([]string, 0, len(methods))
	for _, method := range methods {
		if method != models.MethodBankWire && method != models.MethodCard {
			return nil, apperr.Validation("invalid_payment_methods", "unsupported payment method "+method)
		}
		if seen[method] {
			continue
		}
		seen[method] = true
		out = append(out, method)
	}
	return out, nil
}

func newPaymentToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "token_unavailable", "unable to generate payment token", err)
	}
	return hex.EncodeToString(buf), nil
}
