// Package ledgertest provides in-memory balance storage for tests of
// packages built on the ledger.
package ledgertest

import (
	"context"
	"database/sql"
	"sync"

	"merchantpay/internal/apperr"
	"merchantpay/internal/models"
	"merchantpay/internal/store"
)

// TxRunner runs the body once against a no-op transaction.
type TxRunner struct {
	Err error
}

func (r TxRunner) WithTx(ctx context.Context, fn func(store.Tx) error) error {
	if r.Err != nil {
		return r.Err
	}
	return fn(NopTx{})
}

// NopTx accepts every statement and returns no rows.
type NopTx struct{}

func (NopTx) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nopResult{}, nil
}

func (NopTx) GetContext(context.Context, any, string, ...any) error {
	return nil
}

func (NopTx) SelectContext(context.Context, any, string, ...any) error {
	return nil
}

type nopResult struct{}

func (nopResult) LastInsertId() (int64, error) { return 0, nil }
func (nopResult) RowsAffected() (int64, error) { return 1, nil }

type Balances struct {
	mu        sync.Mutex
	rows      map[string]models.Balance
	UpdateErr error
}

func NewBalances() *Balances {
	return &Balances{rows: make(map[string]models.Balance)}
}

// Seed sets a balance directly, bypassing the ledger.
func (b *Balances) Seed(balance models.Balance) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rows[balance.UserID] = balance
}

func (b *Balances) Snapshot(userID string) models.Balance {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rows[userID]
}

func (b *Balances) Ensure(_ context.Context, _ store.Execer, userID, currency string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.rows[userID]; !ok {
		b.rows[userID] = models.Balance{UserID: userID, Currency: currency}
	}
	return nil
}

func (b *Balances) Get(_ context.Context, _ store.Getter, userID string) (models.Balance, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	row, ok := b.rows[userID]
	if !ok {
		return models.Balance{}, apperr.NotFound("balance")
	}
	return row, nil
}

func (b *Balances) GetForUpdate(ctx context.Context, tx store.Getter, userID string) (models.Balance, error) {
	return b.Get(ctx, tx, userID)
}

func (b *Balances) Update(_ context.Context, _ store.Execer, balance models.Balance) error {
	if b.UpdateErr != nil {
		return b.UpdateErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rows[balance.UserID] = balance
	return nil
}

type Entries struct {
	mu   sync.Mutex
	rows []store.BalanceEntryInput
}

func (e *Entries) InsertEntries(_ context.Context, _ store.Execer, entries []store.BalanceEntryInput) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rows = append(e.rows, entries...)
	return nil
}

func (e *Entries) All() []store.BalanceEntryInput {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]store.BalanceEntryInput, len(e.rows))
	copy(out, e.rows)
	return out
}

// Sum totals the recorded movements for one user and bucket.
func (e *Entries) Sum(userID, bucket string) int64 {
	var total int64
	for _, entry := range e.All() {
		if entry.UserID == userID && entry.Bucket == bucket {
			total += entry.Amount
		}
	}
	return total
}
