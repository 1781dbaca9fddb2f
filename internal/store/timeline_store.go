package store

import (
	"context"

	"merchantpay/internal/models"
)

// TimelineStore is the append-only status history of payment requests.
// Rows are never updated or deleted.
type TimelineStore struct {
	db DB
}

func NewTimelineStore(db DB) *TimelineStore {
	return &TimelineStore{db: db}
}

func (s *TimelineStore) Append(ctx context.Context, tx Execer, entry models.TimelineEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payment_request_timeline (id, payment_request_id, from_status, to_status, actor_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ID, entry.PaymentRequestID, entry.FromStatus, entry.ToStatus, entry.ActorID, entry.Notes)
	return err
}

func (s *TimelineStore) List(ctx context.Context, paymentRequestID string) ([]models.TimelineEntry, error) {
	var rows []models.TimelineEntry
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, payment_request_id, from_status, to_status, actor_id, notes, created_at
		FROM payment_request_timeline
		WHERE payment_request_id = $1
		ORDER BY created_at, id
	`, paymentRequestID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
