package store

import (
	"context"

	"merchantpay/internal/models"
)

type BalanceStore struct {
	db DB
}

func NewBalanceStore(db DB) *BalanceStore {
	return &BalanceStore{db: db}
}

const balanceColumns = `user_id, available, pending, commission_balance, currency, created_at, updated_at`

// Ensure creates the zero balance row for userID if it does not exist yet.
func (s *BalanceStore) Ensure(ctx context.Context, tx Execer, userID, currency string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO balances (user_id, available, pending, commission_balance, currency)
		VALUES ($1, 0, 0, 0, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, currency)
	return err
}

func (s *BalanceStore) Get(ctx context.Context, tx Getter, userID string) (models.Balance, error) {
	var row models.Balance
	err := tx.GetContext(ctx, &row, `
		SELECT `+balanceColumns+`
		FROM balances
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return models.Balance{}, notFound(err, "balance")
	}
	return row, nil
}

func (s *BalanceStore) GetForUpdate(ctx context.Context, tx Getter, userID string) (models.Balance, error) {
	var row models.Balance
	err := tx.GetContext(ctx, &row, `
		SELECT `+balanceColumns+`
		FROM balances
		WHERE user_id = $1
		FOR UPDATE
	`, userID)
	if err != nil {
		return models.Balance{}, notFound(err, "balance")
	}
	return row, nil
}

func (s *BalanceStore) Update(ctx context.Context, tx Execer, balance models.Balance) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE balances
		SET available = $1, pending = $2, commission_balance = $3, updated_at = NOW()
		WHERE user_id = $4
	`, balance.Available, balance.Pending, balance.CommissionBalance, balance.UserID)
	return err
}
