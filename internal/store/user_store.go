package store

import (
	"context"

	"merchantpay/internal/models"

	"github.com/shopspring/decimal"
)

type UserStore struct {
	db DB
}

func NewUserStore(db DB) *UserStore {
	return &UserStore{db: db}
}

const userColumns = `id, email, password_hash, role, merchant_leader_id, commission_percent, created_at`

func (s *UserStore) Create(ctx context.Context, tx Execer, user models.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, role, merchant_leader_id, commission_percent)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := tx.ExecContext(ctx, query, user.ID, user.Email, user.PasswordHash, user.Role, user.MerchantLeaderID, user.CommissionPercent)
	return err
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var row models.User
	err := s.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	if err != nil {
		return models.User{}, notFound(err, "user")
	}
	return row, nil
}

// GetProfile loads the fields money movement depends on: role, upline
// leader and the merchant's bank-wire commission override.
func (s *UserStore) GetProfile(ctx context.Context, userID string) (models.User, error) {
	var row models.User
	err := s.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	if err != nil {
		return models.User{}, notFound(err, "user")
	}
	return row, nil
}

func (s *UserStore) HasAnyAdmin(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM users WHERE role = 'admin')`)
	return exists, err
}

type ProfileUpdate struct {
	Role              string
	MerchantLeaderID  *string
	CommissionPercent decimal.NullDecimal
}

func (s *UserStore) UpdateProfile(ctx context.Context, tx Execer, userID string, update ProfileUpdate) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE users
		SET role = $1, merchant_leader_id = $2, commission_percent = $3
		WHERE id = $4
	`, update.Role, update.MerchantLeaderID, update.CommissionPercent, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
