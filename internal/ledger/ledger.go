// Package ledger owns every mutation of the per-user balance aggregate.
//
// Callers take Lock for each user they will touch, then run Apply inside a
// transaction. The in-process lock orders work on one instance; the row
// lock taken by Apply orders work across instances.
package ledger

import (
	"context"

	"merchantpay/internal/apperr"
	"merchantpay/internal/db"
	"merchantpay/internal/models"
	"merchantpay/internal/store"

	"github.com/google/uuid"
)

type BalanceStore interface {
	Ensure(ctx context.Context, tx store.Execer, userID, currency string) error
	Get(ctx context.Context, tx store.Getter, userID string) (models.Balance, error)
	GetForUpdate(ctx context.Context, tx store.Getter, userID string) (models.Balance, error)
	Update(ctx context.Context, tx store.Execer, balance models.Balance) error
}

type EntryStore interface {
	InsertEntries(ctx context.Context, tx store.Execer, entries []store.BalanceEntryInput) error
}

// Delta is a signed change to one user's buckets.
type Delta struct {
	Available   int64
	Pending     int64
	Commission  int64
	Reason      string
	ReferenceID string
}

func (d Delta) IsZero() bool {
	return d.Available == 0 && d.Pending == 0 && d.Commission == 0
}

type Ledger struct {
	txRunner db.TxRunner
	balances BalanceStore
	entries  EntryStore
	locks    *KeyLock
	currency string
}

func New(txRunner db.TxRunner, balances BalanceStore, entries EntryStore, locks *KeyLock, currency string) *Ledger {
	return &Ledger{
		txRunner: txRunner,
		balances: balances,
		entries:  entries,
		locks:    locks,
		currency: currency,
	}
}

// Lock serializes balance work for the given users. Hold it across the
// whole transaction, including commit.
func (l *Ledger) Lock(userIDs ...string) func() {
	return l.locks.Lock(userIDs...)
}

// Apply adds delta to userID's balance, creating the row on first use. It
// fails with ErrInsufficientBalance if any bucket would go negative, in
// which case nothing is written.
func (l *Ledger) Apply(ctx context.Context, tx store.Tx, userID string, delta Delta) (models.Balance, error) {
	if err := l.balances.Ensure(ctx, tx, userID, l.currency); err != nil {
		return models.Balance{}, err
	}
	balance, err := l.balances.GetForUpdate(ctx, tx, userID)
	if err != nil {
		return models.Balance{}, err
	}
	if delta.IsZero() {
		return balance, nil
	}
	next := balance
	next.Available += delta.Available
	next.Pending += delta.Pending
	next.CommissionBalance += delta.Commission
	if next.Available < 0 || next.Pending < 0 || next.CommissionBalance < 0 {
		return models.Balance{}, apperr.ErrInsufficientBalance
	}
	if err := l.balances.Update(ctx, tx, next); err != nil {
		return models.Balance{}, err
	}
	if err := l.entries.InsertEntries(ctx, tx, entriesFor(userID, delta)); err != nil {
		return models.Balance{}, err
	}
	return next, nil
}

// GetBalance returns the user's balance, creating an empty one on first
// access.
func (l *Ledger) GetBalance(ctx context.Context, userID string) (models.Balance, error) {
	var balance models.Balance
	err := l.txRunner.WithTx(ctx, func(tx store.Tx) error {
		if err := l.balances.Ensure(ctx, tx, userID, l.currency); err != nil {
			return err
		}
		var err error
		balance, err = l.balances.Get(ctx, tx, userID)
		return err
	})
	if err != nil {
		return models.Balance{}, err
	}
	return balance, nil
}

func entriesFor(userID string, delta Delta) []store.BalanceEntryInput {
	entries := make([]store.BalanceEntryInput, 0, 3)
	add := func(bucket string, amount int64) {
		if amount == 0 {
			return
		}
		entries = append(entries, store.BalanceEntryInput{
			ID:          uuid.NewString(),
			UserID:      userID,
			Bucket:      bucket,
			Amount:      amount,
			Reason:      delta.Reason,
			ReferenceID: delta.ReferenceID,
		})
	}
	add(store.BucketAvailable, delta.Available)
	add(store.BucketPending, delta.Pending)
	add(store.BucketCommission, delta.Commission)
	return entries
}
