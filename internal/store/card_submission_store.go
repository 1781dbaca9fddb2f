package store

import (
	"context"
	"database/sql"
	"errors"

	"merchantpay/internal/models"
)

// ConstraintOneSubmissionPerPayment is the unique index that keeps card
// submissions 1:1 with payment requests.
const ConstraintOneSubmissionPerPayment = "card_submissions_payment_request_id_key"

type CardSubmissionStore struct {
	db DB
}

func NewCardSubmissionStore(db DB) *CardSubmissionStore {
	return &CardSubmissionStore{db: db}
}

const cardSubmissionColumns = `id, payment_request_id, card_number, card_holder, card_expiry, card_cvv, last_four,
		       status, verification_type, verification_code, verification_attempts, verification_approved,
		       verified_at, reviewed_by, review_notes, ip_address, user_agent, created_at, updated_at`

func (s *CardSubmissionStore) Create(ctx context.Context, tx Execer, sub models.CardSubmission) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO card_submissions (id, payment_request_id, card_number, card_holder, card_expiry, card_cvv,
		                              last_four, status, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, sub.ID, sub.PaymentRequestID, sub.CardNumber, sub.CardHolder, sub.CardExpiry, sub.CardCVV,
		sub.LastFour, string(sub.Status), sub.IPAddress, sub.UserAgent)
	return err
}

func (s *CardSubmissionStore) ExistsForPayment(ctx context.Context, tx Getter, paymentRequestID string) (bool, error) {
	var exists bool
	err := tx.GetContext(ctx, &exists, `
		SELECT EXISTS (SELECT 1 FROM card_submissions WHERE payment_request_id = $1)
	`, paymentRequestID)
	return exists, err
}

func (s *CardSubmissionStore) GetByID(ctx context.Context, id string) (models.CardSubmission, error) {
	var row models.CardSubmission
	err := s.db.GetContext(ctx, &row, `SELECT `+cardSubmissionColumns+` FROM card_submissions WHERE id = $1`, id)
	if err != nil {
		return models.CardSubmission{}, notFound(err, "card_submission")
	}
	return row, nil
}

func (s *CardSubmissionStore) GetByPaymentRequest(ctx context.Context, paymentRequestID string) (models.CardSubmission, error) {
	var row models.CardSubmission
	err := s.db.GetContext(ctx, &row, `SELECT `+cardSubmissionColumns+` FROM card_submissions WHERE payment_request_id = $1`, paymentRequestID)
	if err != nil {
		return models.CardSubmission{}, notFound(err, "card_submission")
	}
	return row, nil
}

func (s *CardSubmissionStore) GetForUpdate(ctx context.Context, tx Getter, id string) (models.CardSubmission, error) {
	var row models.CardSubmission
	err := tx.GetContext(ctx, &row, `SELECT `+cardSubmissionColumns+` FROM card_submissions WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return models.CardSubmission{}, notFound(err, "card_submission")
	}
	return row, nil
}

// Update writes the mutable review and verification fields. Card data is
// immutable after submission.
func (s *CardSubmissionStore) Update(ctx context.Context, tx Execer, sub models.CardSubmission) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE card_submissions
		SET status = $1,
		    verification_type = $2,
		    verification_code = $3,
		    verification_attempts = $4,
		    verification_approved = $5,
		    verified_at = $6,
		    reviewed_by = $7,
		    review_notes = $8,
		    updated_at = NOW()
		WHERE id = $9
	`, string(sub.Status), sub.VerificationType, sub.VerificationCode, sub.VerificationAttempts,
		sub.VerificationApproved, sub.VerifiedAt, sub.ReviewedBy, sub.ReviewNotes, sub.ID)
	return err
}

// ClaimAttempt reserves one verification attempt while fewer than limit have
// been used and returns the new count. ok is false when the counter is
// already at limit, so concurrent callers can never exceed it.
func (s *CardSubmissionStore) ClaimAttempt(ctx context.Context, id string, limit int) (int, bool, error) {
	var attempts int
	err := s.db.GetContext(ctx, &attempts, `
		UPDATE card_submissions
		SET verification_attempts = verification_attempts + 1, updated_at = NOW()
		WHERE id = $1 AND verification_attempts < $2
		RETURNING verification_attempts
	`, id, limit)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return attempts, true, nil
}
