package commission

import (
	"context"
	"errors"
	"time"

	"merchantpay/internal/db"
	"merchantpay/internal/ledger"
	"merchantpay/internal/models"
	"merchantpay/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrAlreadyCredited = errors.New("commission already credited for payment request")

type Store interface {
	ExistsForPayment(ctx context.Context, tx store.Getter, paymentRequestID string) (bool, error)
	Create(ctx context.Context, tx store.Execer, c models.Commission) error
}

type BalanceLedger interface {
	Apply(ctx context.Context, tx store.Tx, userID string, delta ledger.Delta) (models.Balance, error)
}

type Metrics interface {
	CommissionCredited(amount int64)
	CommissionFailed()
}

type CreditRequest struct {
	LeaderID         string
	MerchantID       string
	PaymentRequestID string
	PaymentAmount    int64
}

type Ledger struct {
	store    Store
	balances BalanceLedger
	metrics  Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func NewLedger(store Store, balances BalanceLedger, metrics Metrics, logger *zap.Logger) *Ledger {
	return &Ledger{
		store:    store,
		balances: balances,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Credit records the leader's override for one payment request and adds it
// to the leader's commission balance. A second call for the same payment
// request returns ErrAlreadyCredited and writes nothing.
func (l *Ledger) Credit(ctx context.Context, tx store.Tx, req CreditRequest) (models.Commission, error) {
	exists, err := l.store.ExistsForPayment(ctx, tx, req.PaymentRequestID)
	if err != nil {
		return models.Commission{}, err
	}
	if exists {
		return models.Commission{}, ErrAlreadyCredited
	}
	now := l.now().UTC()
	record := models.Commission{
		ID:               uuid.NewString(),
		UserID:           req.LeaderID,
		MerchantID:       req.MerchantID,
		PaymentRequestID: req.PaymentRequestID,
		Amount:           LeaderCommission(req.PaymentAmount),
		PaymentAmount:    req.PaymentAmount,
		Status:           models.CommissionCredited,
		CreditedAt:       &now,
		CreatedAt:        now,
	}
	if err := l.store.Create(ctx, tx, record); err != nil {
		return models.Commission{}, err
	}
	if _, err := l.balances.Apply(ctx, tx, req.LeaderID, ledger.Delta{
		Commission:  record.Amount,
		Reason:      "commission.credited",
		ReferenceID: req.PaymentRequestID,
	}); err != nil {
		return models.Commission{}, err
	}
	return record, nil
}

// CreditIsolated runs Credit inside a savepoint. Any failure is rolled back
// to the savepoint, logged and swallowed so the caller's transaction still
// commits. It reports whether a commission was recorded.
func (l *Ledger) CreditIsolated(ctx context.Context, tx store.Tx, req CreditRequest) bool {
	var record models.Commission
	err := db.WithSavepoint(ctx, tx, "commission_credit", func() error {
		var err error
		record, err = l.Credit(ctx, tx, req)
		return err
	})
	switch {
	case err == nil:
		l.metrics.CommissionCredited(record.Amount)
		l.logger.Info("commission credited",
			zap.String("leader_id", req.LeaderID),
			zap.String("payment_request_id", req.PaymentRequestID),
			zap.Int64("amount", record.Amount))
		return true
	case errors.Is(err, ErrAlreadyCredited):
		l.logger.Info("commission already credited", zap.String("payment_request_id", req.PaymentRequestID))
		return false
	default:
		l.metrics.CommissionFailed()
		l.logger.Error("commission credit failed",
			zap.String("leader_id", req.LeaderID),
			zap.String("merchant_id", req.MerchantID),
			zap.String("payment_request_id", req.PaymentRequestID),
			zap.Error(err))
		return false
	}
}
