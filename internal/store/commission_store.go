package store

import (
	"context"

	"merchantpay/internal/models"
)

type CommissionStore struct {
	db DB
}

func NewCommissionStore(db DB) *CommissionStore {
	return &CommissionStore{db: db}
}

func (s *CommissionStore) ExistsForPayment(ctx context.Context, tx Getter, paymentRequestID string) (bool, error) {
	var exists bool
	err := tx.GetContext(ctx, &exists, `
		SELECT EXISTS (SELECT 1 FROM commissions WHERE payment_request_id = $1)
	`, paymentRequestID)
	return exists, err
}

func (s *CommissionStore) Create(ctx context.Context, tx Execer, c models.Commission) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO commissions (id, user_id, merchant_id, payment_request_id, amount, payment_amount, status, credited_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.UserID, c.MerchantID, c.PaymentRequestID, c.Amount, c.PaymentAmount, c.Status, c.CreditedAt)
	return err
}

func (s *CommissionStore) ListByLeader(ctx context.Context, leaderID string, limit, offset int) ([]models.Commission, error) {
	var rows []models.Commission
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, merchant_id, payment_request_id, amount, payment_amount, status, credited_at, created_at
		FROM commissions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, leaderID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
