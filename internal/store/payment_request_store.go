package store

import (
	"context"
	"time"

	"merchantpay/internal/lifecycle"
	"merchantpay/internal/models"

	"github.com/lib/pq"
)

type PaymentRequestStore struct {
	db DB
}

func NewPaymentRequestStore(db DB) *PaymentRequestStore {
	return &PaymentRequestStore{db: db}
}

const paymentRequestColumns = `id, merchant_id, amount, currency, description, invoice_number, due_date,
		       customer_name, customer_email, customer_phone, payment_methods, status,
		       commission_percent, commission_amount, net_amount, bank_route_id, card_route_id,
		       token, viewed_at, paid_at, created_at, updated_at`

func (s *PaymentRequestStore) Create(ctx context.Context, tx Execer, pr models.PaymentRequest) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payment_requests (id, merchant_id, amount, currency, description, invoice_number, due_date,
		                              customer_name, customer_email, customer_phone, payment_methods, status,
		                              commission_percent, commission_amount, net_amount, bank_route_id, card_route_id, token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`, pr.ID, pr.MerchantID, pr.Amount, pr.Currency, pr.Description, pr.InvoiceNumber, pr.DueDate,
		pr.CustomerName, pr.CustomerEmail, pr.CustomerPhone, pr.PaymentMethods, string(pr.Status),
		pr.CommissionPercent, pr.CommissionAmount, pr.NetAmount, pr.BankRouteID, pr.CardRouteID, pr.Token)
	return err
}

func (s *PaymentRequestStore) GetByID(ctx context.Context, id string) (models.PaymentRequest, error) {
	var row models.PaymentRequest
	err := s.db.GetContext(ctx, &row, `SELECT `+paymentRequestColumns+` FROM payment_requests WHERE id = $1`, id)
	if err != nil {
		return models.PaymentRequest{}, notFound(err, "payment_request")
	}
	return row, nil
}

func (s *PaymentRequestStore) GetByToken(ctx context.Context, token string) (models.PaymentRequest, error) {
	var row models.PaymentRequest
	err := s.db.GetContext(ctx, &row, `SELECT `+paymentRequestColumns+` FROM payment_requests WHERE token = $1`, token)
	if err != nil {
		return models.PaymentRequest{}, notFound(err, "payment_request")
	}
	return row, nil
}

func (s *PaymentRequestStore) GetForUpdate(ctx context.Context, tx Getter, id string) (models.PaymentRequest, error) {
	var row models.PaymentRequest
	err := tx.GetContext(ctx, &row, `SELECT `+paymentRequestColumns+` FROM payment_requests WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return models.PaymentRequest{}, notFound(err, "payment_request")
	}
	return row, nil
}

// UpdateStatus persists a new status. viewed_at and paid_at are only ever
// set once; later writes keep the first timestamp.
func (s *PaymentRequestStore) UpdateStatus(ctx context.Context, tx Execer, id string, status lifecycle.PaymentStatus, viewedAt, paidAt *time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payment_requests
		SET status = $1,
		    viewed_at = COALESCE(viewed_at, $2),
		    paid_at = COALESCE(paid_at, $3),
		    updated_at = NOW()
		WHERE id = $4
	`, string(status), viewedAt, paidAt, id)
	return err
}

// ListOverdue returns pending requests whose due date is before now and
// that have no card submission still waiting on review or verification.
func (s *PaymentRequestStore) ListOverdue(ctx context.Context, now time.Time, statuses []lifecycle.PaymentStatus, limit int) ([]models.PaymentRequest, error) {
	raw := make([]string, 0, len(statuses))
	for _, status := range statuses {
		raw = append(raw, string(status))
	}
	var rows []models.PaymentRequest
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+paymentRequestColumns+`
		FROM payment_requests pr
		WHERE pr.status = ANY($1)
		  AND pr.due_date IS NOT NULL
		  AND pr.due_date < $2
		  AND NOT EXISTS (
		      SELECT 1 FROM card_submissions cs
		      WHERE cs.payment_request_id = pr.id
		        AND cs.status IN ('submitted', 'awaiting_3d_sms', 'awaiting_3d_push', 'verification_completed')
		  )
		ORDER BY pr.due_date
		LIMIT $3
	`, pq.Array(raw), now, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *PaymentRequestStore) ListByMerchant(ctx context.Context, merchantID string, limit, offset int) ([]models.PaymentRequest, error) {
	var rows []models.PaymentRequest
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+paymentRequestColumns+`
		FROM payment_requests
		WHERE merchant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, merchantID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
