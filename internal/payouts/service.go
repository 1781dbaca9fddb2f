// Package payouts reserves balance for withdrawals and settlements. The
// amount plus the rail fee leaves available balance when the payout is
// created and comes back at most once if the payout fails, is cancelled or
// is reversed.
package payouts

import (
	"context"
	"time"

	"merchantpay/internal/apperr"
	"merchantpay/internal/db"
	"merchantpay/internal/ledger"
	"merchantpay/internal/lifecycle"
	"merchantpay/internal/models"
	"merchantpay/internal/notify"
	"merchantpay/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Kind string

const (
	KindWithdrawal Kind = "withdrawal"
	KindSettlement Kind = "settlement"
)

type Store interface {
	Create(ctx context.Context, tx store.Execer, p models.Payout) error
	GetByID(ctx context.Context, id string) (models.Payout, error)
	GetForUpdate(ctx context.Context, tx store.Getter, id string) (models.Payout, error)
	UpdateStatus(ctx context.Context, tx store.Execer, p models.Payout) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Payout, error)
}

type BalanceLedger interface {
	Lock(userIDs ...string) func()
	Apply(ctx context.Context, tx store.Tx, userID string, delta ledger.Delta) (models.Balance, error)
}

type Metrics interface {
	PayoutReserved(kind, rail string)
	PayoutReleased(kind, status string)
}

type Service struct {
	kind       Kind
	txRunner   db.TxRunner
	records    Store
	ledger     BalanceLedger
	notifier   notify.Notifier
	metrics    Metrics
	logger     *zap.Logger
	currency   string
	references *referenceGenerator
	now        func() time.Time
}

func newService(kind Kind, prefix string, txRunner db.TxRunner, records Store, balances BalanceLedger, notifier notify.Notifier, metrics Metrics, logger *zap.Logger, currency string) *Service {
	return &Service{
		kind:       kind,
		txRunner:   txRunner,
		records:    records,
		ledger:     balances,
		notifier:   notifier,
		metrics:    metrics,
		logger:     logger.With(zap.String("payout_kind", string(kind))),
		currency:   currency,
		references: newReferenceGenerator(prefix),
		now:        time.Now,
	}
}

// NewWithdrawalService handles merchant-initiated payouts.
func NewWithdrawalService(txRunner db.TxRunner, records Store, balances BalanceLedger, notifier notify.Notifier, metrics Metrics, logger *zap.Logger, currency string) *Service {
	return newService(KindWithdrawal, "WD-", txRunner, records, balances, notifier, metrics, logger, currency)
}

// NewSettlementService handles admin-initiated payouts on a merchant's
// behalf.
func NewSettlementService(txRunner db.TxRunner, records Store, balances BalanceLedger, notifier notify.Notifier, metrics Metrics, logger *zap.Logger, currency string) *Service {
	return newService(KindSettlement, "ST-", txRunner, records, balances, notifier, metrics, logger, currency)
}

type CreateRequest struct {
	UserID      string
	Rail        string
	Amount      int64
	Destination models.Destination
	CreatedBy   string
}

// Create validates the destination, computes the rail fee and debits
// amount plus fee from the user's available balance.
func (s *Service) Create(ctx context.Context, req CreateRequest) (models.Payout, error) {
	if req.Amount <= 0 {
		return models.Payout{}, apperr.ErrInvalidAmount
	}
	rail, err := ParseRail(req.Rail)
	if err != nil {
		return models.Payout{}, err
	}
	if err := ValidateDestination(rail, req.Destination); err != nil {
		return models.Payout{}, err
	}
	now := s.now().UTC()
	reference, err := s.references.next(now)
	if err != nil {
		return models.Payout{}, apperr.Wrap(apperr.KindInternal, "reference_unavailable", "unable to generate payout reference", err)
	}
	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = req.UserID
	}
	payout := models.Payout{
		ID:          uuid.NewString(),
		Reference:   reference,
		UserID:      req.UserID,
		Rail:        string(rail),
		Amount:      req.Amount,
		Fee:         rail.Fee(req.Amount),
		Currency:    s.currency,
		Status:      lifecycle.PayoutPending,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
		Destination: req.Destination,
	}

	unlock := s.ledger.Lock(req.UserID)
	defer unlock()
	err = s.txRunner.WithTx(ctx, func(tx store.Tx) error {
		if _, err := s.ledger.Apply(ctx, tx, payout.UserID, ledger.Delta{
			Available:   -payout.Reserved(),
			Reason:      string(s.kind) + ".reserved",
			ReferenceID: payout.ID,
		}); err != nil {
			return err
		}
		return s.records.Create(ctx, tx, payout)
	})
	if err != nil {
		return models.Payout{}, err
	}

	s.metrics.PayoutReserved(string(s.kind), payout.Rail)
	s.logger.Info("payout reserved",
		zap.String("payout_id", payout.ID),
		zap.String("reference", payout.Reference),
		zap.String("user_id", payout.UserID),
		zap.Int64("amount", payout.Amount),
		zap.Int64("fee", payout.Fee))
	s.notify(payout)
	return payout, nil
}

type UpdateRequest struct {
	ID            string
	Status        string
	FailureReason string
	ActorID       string
}

// UpdateStatus moves a payout through its lifecycle. Failure, cancellation
// and reversal return amount plus fee to available balance once; completion
// only stamps the completion time.
func (s *Service) UpdateStatus(ctx context.Context, req UpdateRequest) (models.Payout, error) {
	status, err := lifecycle.ParsePayoutStatus(req.Status)
	if err != nil {
		return models.Payout{}, err
	}
	current, err := s.records.GetByID(ctx, req.ID)
	if err != nil {
		return models.Payout{}, err
	}

	unlock := s.ledger.Lock(current.UserID)
	defer unlock()

	var result models.Payout
	var released bool
	err = s.txRunner.WithTx(ctx, func(tx store.Tx) error {
		released = false
		payout, err := s.records.GetForUpdate(ctx, tx, req.ID)
		if err != nil {
			return err
		}
		if err := lifecycle.CheckPayoutTransition(payout.Status, status); err != nil {
			return err
		}
		now := s.now().UTC()
		payout.Status = status
		payout.UpdatedAt = now
		if req.FailureReason != "" {
			reason := req.FailureReason
			payout.FailureReason = &reason
		}
		if status == lifecycle.PayoutCompleted {
			payout.CompletedAt = &now
		}
		if status.ReleasesReservation() && payout.ReleasedAt == nil {
			if _, err := s.ledger.Apply(ctx, tx, payout.UserID, ledger.Delta{
				Available:   payout.Reserved(),
				Reason:      string(s.kind) + "." + string(status),
				ReferenceID: payout.ID,
			}); err != nil {
				return err
			}
			payout.ReleasedAt = &now
			released = true
		}
		if err := s.records.UpdateStatus(ctx, tx, payout); err != nil {
			return err
		}
		result = payout
		return nil
	})
	if err != nil {
		return models.Payout{}, err
	}

	if released {
		s.metrics.PayoutReleased(string(s.kind), string(status))
	}
	s.logger.Info("payout status changed",
		zap.String("payout_id", result.ID),
		zap.String("status", string(result.Status)),
		zap.String("actor_id", req.ActorID),
		zap.Bool("released", released))
	s.notify(result)
	return result, nil
}

func (s *Service) Get(ctx context.Context, id string) (models.Payout, error) {
	return s.records.GetByID(ctx, id)
}

func (s *Service) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Payout, error) {
	return s.records.ListByUser(ctx, userID, limit, offset)
}

func (s *Service) notify(p models.Payout) {
	eventType := notify.TypeWithdrawalStatus
	if s.kind == KindSettlement {
		eventType = notify.TypeSettlementStatus
	}
	s.notifier.Notify(notify.Event{
		Type:     eventType,
		UserID:   p.UserID,
		Audience: notify.AudienceMerchant,
		EntityID: p.ID,
		Status:   string(p.Status),
		Payload: map[string]any{
			"reference": p.Reference,
			"amount":    p.Amount,
			"fee":       p.Fee,
			"rail":      p.Rail,
		},
	})
}
