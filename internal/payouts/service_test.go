package payouts

import (
	"context"
	"strings"
	"sync"
	"testing"

	"merchantpay/internal/apperr"
	"merchantpay/internal/ledger"
	"merchantpay/internal/ledger/ledgertest"
	"merchantpay/internal/lifecycle"
	"merchantpay/internal/models"
	"merchantpay/internal/notify"
	"merchantpay/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const btcAddress = "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"

type memoryPayouts struct {
	mu   sync.Mutex
	rows map[string]models.Payout
}

func (m *memoryPayouts) Create(_ context.Context, _ store.Execer, p models.Payout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[p.ID] = p
	return nil
}

func (m *memoryPayouts) GetByID(_ context.Context, id string) (models.Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return models.Payout{}, apperr.NotFound("withdrawal")
	}
	return p, nil
}

func (m *memoryPayouts) GetForUpdate(ctx context.Context, _ store.Getter, id string) (models.Payout, error) {
	return m.GetByID(ctx, id)
}

func (m *memoryPayouts) UpdateStatus(_ context.Context, _ store.Execer, p models.Payout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[p.ID] = p
	return nil
}

func (m *memoryPayouts) ListByUser(_ context.Context, userID string, _, _ int) ([]models.Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Payout
	for _, p := range m.rows {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

type countingMetrics struct {
	mu       sync.Mutex
	reserved int
	released map[string]int
}

func (c *countingMetrics) PayoutReserved(string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reserved++
}

func (c *countingMetrics) PayoutReleased(_ string, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released[status]++
}

type fixture struct {
	svc      *Service
	balances *ledgertest.Balances
	metrics  *countingMetrics
}

func newFixture(t *testing.T, kind Kind) *fixture {
	t.Helper()
	balances := ledgertest.NewBalances()
	balances.Seed(models.Balance{UserID: "m-1", Available: 15000, Currency: "USD"})
	balanceLedger := ledger.New(ledgertest.TxRunner{}, balances, &ledgertest.Entries{}, ledger.NewKeyLock(), "USD")
	metrics := &countingMetrics{released: make(map[string]int)}
	records := &memoryPayouts{rows: make(map[string]models.Payout)}
	build := NewWithdrawalService
	if kind == KindSettlement {
		build = NewSettlementService
	}
	svc := build(ledgertest.TxRunner{}, records, balanceLedger, notify.Discard{}, metrics, zap.NewNop(), "USD")
	return &fixture{svc: svc, balances: balances, metrics: metrics}
}

func strPtr(value string) *string {
	return &value
}

func (f *fixture) withdrawBTC(t *testing.T, amount int64) models.Payout {
	t.Helper()
	p, err := f.svc.Create(context.Background(), CreateRequest{
		UserID:      "m-1",
		Rail:        "BTC",
		Amount:      amount,
		Destination: models.Destination{Address: strPtr(btcAddress)},
	})
	require.NoError(t, err)
	return p
}

func TestWithdrawalFailureRestoresBalance(t *testing.T) {
	f := newFixture(t, KindWithdrawal)
	p := f.withdrawBTC(t, 10000)

	assert.Equal(t, int64(1), p.Fee)
	assert.Equal(t, lifecycle.PayoutPending, p.Status)
	assert.True(t, strings.HasPrefix(p.Reference, "WD-"))
	assert.Equal(t, "m-1", p.CreatedBy)
	assert.Equal(t, int64(4999), f.balances.Snapshot("m-1").Available)

	failed, err := f.svc.UpdateStatus(context.Background(), UpdateRequest{ID: p.ID, Status: "failed", FailureReason: "node rejected"})
	require.NoError(t, err)
	assert.Equal(t, int64(15000), f.balances.Snapshot("m-1").Available)
	require.NotNil(t, failed.ReleasedAt)
	require.NotNil(t, failed.FailureReason)
	assert.Equal(t, "node rejected", *failed.FailureReason)
	assert.Equal(t, 1, f.metrics.released["failed"])

	_, err = f.svc.UpdateStatus(context.Background(), UpdateRequest{ID: p.ID, Status: "cancelled"})
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidTransition))
	assert.Equal(t, int64(15000), f.balances.Snapshot("m-1").Available)
}

func TestWithdrawalCompletionThenReversal(t *testing.T) {
	f := newFixture(t, KindWithdrawal)
	p := f.withdrawBTC(t, 10000)

	_, err := f.svc.UpdateStatus(context.Background(), UpdateRequest{ID: p.ID, Status: "processing"})
	require.NoError(t, err)
	completed, err := f.svc.UpdateStatus(context.Background(), UpdateRequest{ID: p.ID, Status: "completed"})
	require.NoError(t, err)
	assert.NotNil(t, completed.CompletedAt)
	assert.Nil(t, completed.ReleasedAt)
	assert.Equal(t, int64(4999), f.balances.Snapshot("m-1").Available)

	_, err = f.svc.UpdateStatus(context.Background(), UpdateRequest{ID: p.ID, Status: "completed"})
	assert.ErrorIs(t, err, apperr.ErrStatusUnchanged)

	_, err = f.svc.UpdateStatus(context.Background(), UpdateRequest{ID: p.ID, Status: "reversed"})
	require.NoError(t, err)
	assert.Equal(t, int64(15000), f.balances.Snapshot("m-1").Available)
}

func TestWithdrawalNeedsAmountPlusFee(t *testing.T) {
	f := newFixture(t, KindWithdrawal)
	_, err := f.svc.Create(context.Background(), CreateRequest{
		UserID:      "m-1",
		Rail:        "bank_transfer",
		Amount:      15000,
		Destination: models.Destination{IBAN: strPtr("DE89370400440532013000")},
	})
	assert.ErrorIs(t, err, apperr.ErrInsufficientBalance)
	assert.Equal(t, int64(15000), f.balances.Snapshot("m-1").Available)
	assert.Equal(t, 0, f.metrics.reserved)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t, KindWithdrawal)
	cases := []CreateRequest{
		{UserID: "m-1", Rail: "BTC", Amount: 0, Destination: models.Destination{Address: strPtr(btcAddress)}},
		{UserID: "m-1", Rail: "DOGE", Amount: 100, Destination: models.Destination{Address: strPtr(btcAddress)}},
		{UserID: "m-1", Rail: "ETH", Amount: 100, Destination: models.Destination{Address: strPtr(btcAddress)}},
		{UserID: "m-1", Rail: "bank_transfer", Amount: 100, Destination: models.Destination{BankName: strPtr("Acme Bank")}},
	}
	for i, req := range cases {
		_, err := f.svc.Create(context.Background(), req)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation), "case %d: %v", i, err)
	}
}

func TestSettlementCreatedByAdmin(t *testing.T) {
	f := newFixture(t, KindSettlement)
	p, err := f.svc.Create(context.Background(), CreateRequest{
		UserID:      "m-1",
		Rail:        "bank_transfer",
		Amount:      10000,
		Destination: models.Destination{AccountNumber: strPtr("000123456789"), RoutingNumber: strPtr("021000021")},
		CreatedBy:   "admin-1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100), p.Fee)
	assert.Equal(t, "admin-1", p.CreatedBy)
	assert.True(t, strings.HasPrefix(p.Reference, "ST-"))
	assert.Equal(t, int64(4900), f.balances.Snapshot("m-1").Available)

	_, err = f.svc.UpdateStatus(context.Background(), UpdateRequest{ID: p.ID, Status: "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, int64(15000), f.balances.Snapshot("m-1").Available)
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	f := newFixture(t, KindWithdrawal)
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), CreateRequest{
				UserID:      "m-1",
				Rail:        "BTC",
				Amount:      1000,
				Destination: models.Destination{Address: strPtr(btcAddress)},
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	// fee on 1000 at 0.0001 rounds to zero
	assert.Equal(t, 15, succeeded)
	assert.Equal(t, int64(0), f.balances.Snapshot("m-1").Available)
}

func TestReferencesAreUniqueAndOrdered(t *testing.T) {
	f := newFixture(t, KindWithdrawal)
	first := f.withdrawBTC(t, 100)
	second := f.withdrawBTC(t, 100)
	assert.NotEqual(t, first.Reference, second.Reference)
	assert.Less(t, first.Reference, second.Reference)
}
