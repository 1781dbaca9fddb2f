package store

import "context"

const (
	BucketAvailable  = "available"
	BucketPending    = "pending"
	BucketCommission = "commission"
)

// BalanceEntryStore keeps the append-only movement history behind every
// balance mutation.
type BalanceEntryStore struct {
	db DB
}

func NewBalanceEntryStore(db DB) *BalanceEntryStore {
	return &BalanceEntryStore{db: db}
}

type BalanceEntryInput struct {
	ID          string
	UserID      string
	Bucket      string
	Amount      int64
	Reason      string
	ReferenceID string
}

func (s *BalanceEntryStore) InsertEntries(ctx context.Context, tx Execer, entries []BalanceEntryInput) error {
	query := `
		INSERT INTO balance_entries (id, user_id, bucket, amount, reason, reference_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, entry := range entries {
		if _, err := tx.ExecContext(ctx, query, entry.ID, entry.UserID, entry.Bucket, entry.Amount, entry.Reason, entry.ReferenceID); err != nil {
			return err
		}
	}
	return nil
}

func (s *BalanceEntryStore) SumByUser(ctx context.Context, userID, bucket string) (int64, error) {
	var sum int64
	err := s.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(amount), 0)
		FROM balance_entries
		WHERE user_id = $1 AND bucket = $2
	`, userID, bucket)
	return sum, err
}
