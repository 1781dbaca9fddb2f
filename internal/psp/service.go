// Package psp runs the card-payment sub-flow: card capture, admin review
// and the customer's out-of-band verification. Every card status change
// moves the parent payment request in the same transaction.
package psp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"

	"merchantpay/internal/apperr"
	"merchantpay/internal/encryption"
	"merchantpay/internal/lifecycle"
	"merchantpay/internal/models"
	"merchantpay/internal/notify"
	"merchantpay/internal/payments"
	"merchantpay/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultMaxAttempts = 5
	codeDigits         = 6
)

type SubmissionStore interface {
	Create(ctx context.Context, tx store.Execer, sub models.CardSubmission) error
	ExistsForPayment(ctx context.Context, tx store.Getter, paymentRequestID string) (bool, error)
	GetByID(ctx context.Context, id string) (models.CardSubmission, error)
	GetByPaymentRequest(ctx context.Context, paymentRequestID string) (models.CardSubmission, error)
	GetForUpdate(ctx context.Context, tx store.Getter, id string) (models.CardSubmission, error)
	Update(ctx context.Context, tx store.Execer, sub models.CardSubmission) error
	ClaimAttempt(ctx context.Context, id string, limit int) (int, bool, error)
}

type Payments interface {
	Get(ctx context.Context, id string) (models.PaymentRequest, error)
	GetByToken(ctx context.Context, token string) (models.PaymentRequest, error)
	TransitionWith(ctx context.Context, req payments.TransitionRequest, hook payments.Hook) (models.PaymentRequest, error)
}

type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

type Service struct {
	submissions SubmissionStore
	payments    Payments
	cipher      Cipher
	notifier    notify.Notifier
	logger      *zap.Logger
	maxAttempts int
	now         func() time.Time
	newCode     func() (string, error)
}

func NewService(submissions SubmissionStore, payments Payments, cipher Cipher, notifier notify.Notifier, logger *zap.Logger, maxAttempts int) *Service {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Service{
		submissions: submissions,
		payments:    payments,
		cipher:      cipher,
		notifier:    notifier,
		logger:      logger,
		maxAttempts: maxAttempts,
		now:         time.Now,
		newCode:     generateCode,
	}
}

type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// SubmitCard captures card data for the payment request behind token and
// moves it to submitted. A payment request takes at most one submission.
func (s *Service) SubmitCard(ctx context.Context, token string, card CardDetails, client ClientInfo) (models.CardSubmission, error) {
	pr, err := s.payments.GetByToken(ctx, token)
	if err != nil {
		return models.CardSubmission{}, err
	}
	if !pr.Accepts(models.MethodCard) {
		return models.CardSubmission{}, apperr.Validation("card_not_accepted", "this payment request does not accept cards")
	}
	card = card.normalized()
	if err := card.Validate(s.now()); err != nil {
		return models.CardSubmission{}, err
	}

	sub := models.CardSubmission{
		ID:               uuid.NewString(),
		PaymentRequestID: pr.ID,
		LastFour:         encryption.LastFour(card.Number),
		Status:           lifecycle.CardSubmitted,
		IPAddress:        client.IPAddress,
		UserAgent:        client.UserAgent,
	}
	for _, field := range []struct {
		dst   *string
		value string
	}{
		{&sub.CardNumber, card.Number},
		{&sub.CardHolder, card.Holder},
		{&sub.CardExpiry, card.expiry()},
		{&sub.CardCVV, card.CVV},
	} {
		if *field.dst, err = s.cipher.Encrypt(field.value); err != nil {
			return models.CardSubmission{}, err
		}
	}

	_, err = s.payments.TransitionWith(ctx, payments.TransitionRequest{
		ID:      pr.ID,
		Status:  lifecycle.StatusSubmitted,
		ActorID: payments.ActorCustomer,
		Notes:   "card submitted",
	}, func(ctx context.Context, tx store.Tx, _ models.PaymentRequest) error {
		exists, err := s.submissions.ExistsForPayment(ctx, tx, pr.ID)
		if err != nil {
			return err
		}
		if exists {
			return apperr.ErrDuplicateSubmission
		}
		if err := s.submissions.Create(ctx, tx, sub); err != nil {
			if store.IsUniqueViolation(err, store.ConstraintOneSubmissionPerPayment) {
				return apperr.ErrDuplicateSubmission
			}
			return err
		}
		return nil
	})
	if err != nil {
		return models.CardSubmission{}, err
	}

	s.logger.Info("card submitted", zap.String("payment_request_id", pr.ID), zap.String("submission_id", sub.ID))
	s.notifier.Notify(notify.Event{
		Type:     notify.TypeCardSubmitted,
		Audience: notify.AudienceAdmin,
		EntityID: sub.ID,
		Status:   string(sub.Status),
		Payload:  map[string]any{"payment_request_id": pr.ID, "last_four": sub.LastFour},
	})
	return sub, nil
}

type ReviewRequest struct {
	SubmissionID string
	Decision     string
	ReviewerID   string
	Notes        string
	// Code is the expected SMS code. A random one is generated when empty.
	Code string
}

// Review applies an admin decision to a card submission. Verification
// decisions store a fresh expected code and reset the attempt counter.
func (s *Service) Review(ctx context.Context, req ReviewRequest) (models.CardSubmission, error) {
	decision, err := lifecycle.ParseReviewDecision(req.Decision)
	if err != nil {
		return models.CardSubmission{}, err
	}
	sub, err := s.submissions.GetByID(ctx, req.SubmissionID)
	if err != nil {
		return models.CardSubmission{}, err
	}

	verification, asksVerification := decision.VerificationType()
	var code, sealedCode string
	if verification == lifecycle.VerificationSMS {
		code = req.Code
		if code == "" {
			if code, err = s.newCode(); err != nil {
				return models.CardSubmission{}, err
			}
		}
		if len(code) < 4 || len(code) > 8 || digitsOnly(code) != code {
			return models.CardSubmission{}, apperr.Validation("invalid_code", "verification code must be 4 to 8 digits")
		}
		if sealedCode, err = s.cipher.Encrypt(code); err != nil {
			return models.CardSubmission{}, err
		}
	}

	var updated models.CardSubmission
	pr, err := s.payments.TransitionWith(ctx, payments.TransitionRequest{
		ID:      sub.PaymentRequestID,
		Status:  decision.PaymentStatus(),
		ActorID: req.ReviewerID,
		Notes:   req.Notes,
	}, func(ctx context.Context, tx store.Tx, _ models.PaymentRequest) error {
		locked, err := s.submissions.GetForUpdate(ctx, tx, sub.ID)
		if err != nil {
			return err
		}
		if err := lifecycle.CheckCardTransition(locked.Status, decision); err != nil {
			return err
		}
		locked.Status = decision
		reviewer := req.ReviewerID
		locked.ReviewedBy = &reviewer
		locked.ReviewNotes = req.Notes
		if asksVerification {
			kind := string(verification)
			locked.VerificationType = &kind
			locked.VerificationCode = nil
			if sealedCode != "" {
				locked.VerificationCode = &sealedCode
			}
			locked.VerificationAttempts = 0
			locked.VerificationApproved = nil
			locked.VerifiedAt = nil
		}
		if err := s.submissions.Update(ctx, tx, locked); err != nil {
			return err
		}
		updated = locked
		return nil
	})
	if err != nil {
		return models.CardSubmission{}, err
	}

	if asksVerification {
		payload := map[string]any{
			"verification_type": string(verification),
			"customer_phone":    pr.CustomerPhone,
			"customer_email":    pr.CustomerEmail,
			"last_four":         updated.LastFour,
		}
		if code != "" {
			payload["code"] = code
		}
		s.notifier.Notify(notify.Event{
			Type:     notify.TypeVerificationRequested,
			Audience: notify.AudienceCustomer,
			EntityID: pr.ID,
			Status:   string(updated.Status),
			Payload:  payload,
		})
	}
	return updated, nil
}

type VerificationRequest struct {
	Code     string
	Approved *bool
}

// SubmitVerification checks the customer's answer to the pending 3-D
// verification. Each SMS answer claims an attempt before the code is compared
// in constant time, so the limit holds under concurrent requests. A declined
// push fails the payment.
func (s *Service) SubmitVerification(ctx context.Context, token string, req VerificationRequest) (models.CardSubmission, error) {
	pr, err := s.payments.GetByToken(ctx, token)
	if err != nil {
		return models.CardSubmission{}, err
	}
	sub, err := s.submissions.GetByPaymentRequest(ctx, pr.ID)
	if err != nil {
		return models.CardSubmission{}, err
	}
	kind, ok := sub.Status.VerificationType()
	if !ok {
		return models.CardSubmission{}, apperr.InvalidTransition(string(sub.Status), string(lifecycle.CardVerificationCompleted))
	}
	if sub.VerificationAttempts >= s.maxAttempts {
		return models.CardSubmission{}, errVerificationLocked
	}

	target := lifecycle.CardVerificationCompleted
	approved := true
	switch kind {
	case lifecycle.VerificationSMS:
		if req.Code == "" {
			return models.CardSubmission{}, apperr.Validation("missing_code", "verification code is required")
		}
		if sub.VerificationCode == nil {
			return models.CardSubmission{}, apperr.New(apperr.KindInternal, "missing_expected_code", "no verification code on record")
		}
		attempts, ok, err := s.submissions.ClaimAttempt(ctx, sub.ID, s.maxAttempts)
		if err != nil {
			return models.CardSubmission{}, err
		}
		if !ok {
			return models.CardSubmission{}, errVerificationLocked
		}
		expected, err := s.cipher.Decrypt(*sub.VerificationCode)
		if err != nil {
			return models.CardSubmission{}, err
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(req.Code)) != 1 {
			return models.CardSubmission{}, s.rejectCode(sub, attempts)
		}
	case lifecycle.VerificationPush:
		if req.Approved == nil {
			return models.CardSubmission{}, apperr.Validation("missing_approval", "approved is required")
		}
		approved = *req.Approved
		if !approved {
			target = lifecycle.CardFailed
		}
	}

	var updated models.CardSubmission
	_, err = s.payments.TransitionWith(ctx, payments.TransitionRequest{
		ID:      pr.ID,
		Status:  target.PaymentStatus(),
		ActorID: payments.ActorCustomer,
		Notes:   string(kind) + " verification",
	}, func(ctx context.Context, tx store.Tx, _ models.PaymentRequest) error {
		locked, err := s.submissions.GetForUpdate(ctx, tx, sub.ID)
		if err != nil {
			return err
		}
		if locked.Status != sub.Status {
			return apperr.InvalidTransition(string(locked.Status), string(target))
		}
		if locked.VerificationAttempts > s.maxAttempts {
			return errVerificationLocked
		}
		if err := lifecycle.CheckCardTransition(locked.Status, target); err != nil {
			return err
		}
		now := s.now().UTC()
		locked.Status = target
		locked.VerificationApproved = &approved
		locked.VerifiedAt = &now
		if err := s.submissions.Update(ctx, tx, locked); err != nil {
			return err
		}
		updated = locked
		return nil
	})
	if err != nil {
		return models.CardSubmission{}, err
	}

	s.notifier.Notify(notify.Event{
		Type:     notify.TypeVerificationCompleted,
		Audience: notify.AudienceAdmin,
		EntityID: updated.ID,
		Status:   string(updated.Status),
		Payload:  map[string]any{"payment_request_id": pr.ID, "approved": approved},
	})
	return updated, nil
}

var errVerificationLocked = apperr.Validation("verification_locked", "too many failed verification attempts")

func (s *Service) rejectCode(sub models.CardSubmission, attempts int) error {
	s.logger.Warn("verification code mismatch",
		zap.String("submission_id", sub.ID),
		zap.Int("attempts", attempts))
	if attempts >= s.maxAttempts {
		return errVerificationLocked
	}
	return apperr.Validation("invalid_code", fmt.Sprintf("verification code is incorrect, %d attempts left", s.maxAttempts-attempts))
}

// SubmissionView is the admin view of a card submission with only the
// masked number exposed.
type SubmissionView struct {
	models.CardSubmission
	MaskedCardNumber string `json:"masked_card_number"`
}

func (s *Service) GetSubmission(ctx context.Context, id string) (SubmissionView, error) {
	sub, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		return SubmissionView{}, err
	}
	number, err := s.cipher.Decrypt(sub.CardNumber)
	if err != nil {
		return SubmissionView{}, err
	}
	return SubmissionView{CardSubmission: sub, MaskedCardNumber: encryption.MaskCardNumber(number)}, nil
}

func generateCode() (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "code_unavailable", "unable to generate verification code", err)
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}
