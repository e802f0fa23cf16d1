package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"fitpledge/apperrors"
	"fitpledge/models"
	"fitpledge/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerRepository_Apply(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	testDB := testutil.SetupTestDatabase(t)
	repo := NewLedgerRepository(testDB.DB)
	ctx := context.Background()

	t.Run("missing ledger reads as nil", func(t *testing.T) {
		ledger, err := repo.Get(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, ledger)

		_, err = repo.Apply(ctx, "nobody", 100, 0)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("ensure exists is idempotent", func(t *testing.T) {
		require.NoError(t, repo.EnsureExists(ctx, "alice"))
		require.NoError(t, repo.EnsureExists(ctx, "alice"))

		ledger, err := repo.Get(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, ledger)
		assert.Equal(t, int64(0), ledger.Total)
		assert.Equal(t, int64(0), ledger.Version)
	})

	t.Run("deltas keep total equal to buckets", func(t *testing.T) {
		ledger, err := repo.Apply(ctx, "alice", 5000, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(5000), ledger.Free)

		ledger, err = repo.Apply(ctx, "alice", -2000, 2000)
		require.NoError(t, err)
		assert.Equal(t, int64(3000), ledger.Free)
		assert.Equal(t, int64(2000), ledger.Invested)
		assert.Equal(t, int64(5000), ledger.Total)
		assert.Equal(t, int64(2), ledger.Version)
	})

	t.Run("overdraw is rejected and changes nothing", func(t *testing.T) {
		_, err := repo.Apply(ctx, "alice", -3001, 0)
		assert.ErrorIs(t, err, apperrors.ErrInsufficientFunds)

		_, err = repo.Apply(ctx, "alice", 2001, -2001)
		assert.ErrorIs(t, err, apperrors.ErrInsufficientFunds)

		ledger, err := repo.Get(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(3000), ledger.Free)
		assert.Equal(t, int64(2000), ledger.Invested)
		assert.Equal(t, int64(2), ledger.Version)
	})
}

func TestLedgerRepository_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	testDB := testutil.SetupTestDatabase(t)
	repo := NewLedgerRepository(testDB.DB)
	ctx := context.Background()

	require.NoError(t, repo.EnsureExists(ctx, "bob"))
	_, err := repo.Apply(ctx, "bob", 1000, 0)
	require.NoError(t, err)

	const attempts = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Apply(ctx, "bob", -200, 0); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, apperrors.ErrInsufficientFunds)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	ledger, err := repo.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(0), ledger.Free)
	assert.Equal(t, int64(0), ledger.Total)
}

func TestPaymentEventRepository_InsertIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	testDB := testutil.SetupTestDatabase(t)
	repo := NewPaymentEventRepository(testDB.DB)
	ctx := context.Background()

	event := &models.PaymentEvent{
		EventID:    "evt_1",
		UserID:     "alice",
		Amount:     5000,
		Currency:   "usd",
		OccurredAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	inserted, err := repo.Insert(ctx, event)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.False(t, event.ProcessedAt.IsZero())

	again := *event
	inserted, err = repo.Insert(ctx, &again)
	require.NoError(t, err)
	assert.False(t, inserted)

	stored, err := repo.GetByID(ctx, "evt_1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, int64(5000), stored.Amount)
}
