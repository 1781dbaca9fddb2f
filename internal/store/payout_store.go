package store

import (
	"context"

	"merchantpay/internal/models"
)

const (
	TableWithdrawals = "withdrawals"
	TableSettlements = "settlements"
)

// PayoutStore persists withdrawals or settlements; both tables share one
// shape and the table is fixed at construction.
type PayoutStore struct {
	db     DB
	table  string
	entity string
}

func NewWithdrawalStore(db DB) *PayoutStore {
	return &PayoutStore{db: db, table: TableWithdrawals, entity: "withdrawal"}
}

func NewSettlementStore(db DB) *PayoutStore {
	return &PayoutStore{db: db, table: TableSettlements, entity: "settlement"}
}

const payoutColumns = `id, reference, user_id, rail, amount, fee, currency, status, failure_reason, created_by,
		       completed_at, released_at, created_at, updated_at,
		       address, iban, account_number, swift_bic, routing_number, bank_name, account_holder`

func (s *PayoutStore) Create(ctx context.Context, tx Execer, p models.Payout) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO `+s.table+` (id, reference, user_id, rail, amount, fee, currency, status, created_by,
		                         address, iban, account_number, swift_bic, routing_number, bank_name, account_holder)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, p.ID, p.Reference, p.UserID, p.Rail, p.Amount, p.Fee, p.Currency, string(p.Status), p.CreatedBy,
		p.Address, p.IBAN, p.AccountNumber, p.SwiftBIC, p.RoutingNumber, p.BankName, p.AccountHolder)
	return err
}

func (s *PayoutStore) GetByID(ctx context.Context, id string) (models.Payout, error) {
	var row models.Payout
	err := s.db.GetContext(ctx, &row, `SELECT `+payoutColumns+` FROM `+s.table+` WHERE id = $1`, id)
	if err != nil {
		return models.Payout{}, notFound(err, s.entity)
	}
	return row, nil
}

func (s *PayoutStore) GetForUpdate(ctx context.Context, tx Getter, id string) (models.Payout, error) {
	var row models.Payout
	err := tx.GetContext(ctx, &row, `SELECT `+payoutColumns+` FROM `+s.table+` WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return models.Payout{}, notFound(err, s.entity)
	}
	return row, nil
}

func (s *PayoutStore) UpdateStatus(ctx context.Context, tx Execer, p models.Payout) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE `+s.table+`
		SET status = $1, failure_reason = $2, completed_at = $3, released_at = $4, updated_at = NOW()
		WHERE id = $5
	`, string(p.Status), p.FailureReason, p.CompletedAt, p.ReleasedAt, p.ID)
	return err
}

func (s *PayoutStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Payout, error) {
	var rows []models.Payout
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+payoutColumns+`
		FROM `+s.table+`
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
