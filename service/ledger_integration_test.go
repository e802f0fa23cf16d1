package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"fitpledge/apperrors"
	"fitpledge/config"
	"fitpledge/events"
	"fitpledge/models"
	"fitpledge/payout"
	"fitpledge/repository"
	"fitpledge/repository/testutil"
	"fitpledge/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type integrationEnv struct {
	db          *testutil.TestDatabase
	bus         *events.Bus
	ledger      service.LedgerService
	payments    service.PaymentService
	commitments service.CommitmentService
	contests    service.ContestService
}

func newIntegrationEnv(t *testing.T) *integrationEnv {
	t.Helper()

	testDB := testutil.SetupTestDatabase(t)
	cfg := config.NewTestConfig()
	bus := events.NewBus()
	uowFactory := repository.NewUnitOfWorkFactory(testDB.DB, bus, nil)

	return &integrationEnv{
		db:          testDB,
		bus:         bus,
		ledger:      service.NewLedgerService(uowFactory, bus, cfg),
		payments:    service.NewPaymentService(uowFactory, cfg),
		commitments: service.NewCommitmentService(uowFactory, cfg),
		contests:    service.NewContestService(uowFactory, cfg),
	}
}

func (e *integrationEnv) deposit(t *testing.T, userID, eventID string, amount int64) {
	t.Helper()
	_, err := e.payments.HandlePaymentConfirmed(context.Background(), models.PaymentEvent{
		EventID:    eventID,
		UserID:     userID,
		Amount:     amount,
		Currency:   "USD",
		OccurredAt: time.Now(),
	})
	require.NoError(t, err)
}

func (e *integrationEnv) balances(t *testing.T, userID string) *models.Balances {
	t.Helper()
	b, err := e.ledger.GetBalances(context.Background(), userID)
	require.NoError(t, err)
	return b
}

func TestPaymentConfirmed_ConcurrentRedeliveryCreditsOnce(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	env := newIntegrationEnv(t)
	ctx := context.Background()

	var updates []models.Balances
	var mu sync.Mutex
	unsubscribe := env.ledger.Subscribe("alice", func(b models.Balances) {
		mu.Lock()
		updates = append(updates, b)
		mu.Unlock()
	})
	defer unsubscribe()

	event := models.PaymentEvent{EventID: "evt_dup", UserID: "alice", Amount: 5000, Currency: "usd", OccurredAt: time.Now()}

	const deliveries = 5
	var wg sync.WaitGroup
	results := make([]*models.PaymentResult, deliveries)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := env.payments.HandlePaymentConfirmed(ctx, event)
			assert.NoError(t, err)
			results[i] = result
		}(i)
	}
	wg.Wait()

	credited := 0
	for _, r := range results {
		if r != nil && !r.Duplicate {
			credited++
		}
	}
	assert.Equal(t, 1, credited)

	b := env.balances(t, "alice")
	assert.Equal(t, int64(5000), b.Free)
	assert.Equal(t, int64(5000), b.Total)

	history, err := env.ledger.History(ctx, "alice", 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	// Subscribers are notified off the committing goroutine
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(updates) > 0
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, updates, 1)
	assert.Equal(t, b.Version, updates[0].Version)
}

func TestCommitment_ConcurrentSettleConservesMoney(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	env := newIntegrationEnv(t)
	ctx := context.Background()

	env.deposit(t, "alice", "evt_c1", 10000)
	_, err := env.ledger.Transfer(ctx, "alice", 10000, models.BucketFree, models.BucketInvested)
	require.NoError(t, err)

	// A commitment for a month that has already ended is due for settlement
	commitment := testutil.CreateTestCommitment("alice", 10000, 8, models.Period{Year: 2026, Month: time.March})
	commitment.CompletedWorkouts = 4
	require.NoError(t, repository.NewCommitmentRepository(env.db.DB).Create(ctx, commitment))

	const settlers = 4
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		settled []*models.Commitment
	)
	for i := 0; i < settlers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := env.commitments.Settle(ctx, commitment.ID)
			if err != nil {
				assert.ErrorIs(t, err, apperrors.ErrInvalidState)
				return
			}
			mu.Lock()
			settled = append(settled, c)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, settled, 1)
	result := settled[0]
	require.NotNil(t, result.PrincipalReturned)
	require.NotNil(t, result.Forfeited)
	assert.Equal(t, int64(10000), *result.PrincipalReturned+*result.Forfeited)
	assert.Equal(t, int64(0), *result.BonusPaid)

	b := env.balances(t, "alice")
	assert.Equal(t, int64(0), b.Invested)
	assert.Equal(t, *result.PrincipalReturned, b.Free)

	entries, err := repository.NewPlatformRepository(env.db.DB).ListByRelated(ctx, models.RelatedTypeCommitment, commitment.ID.String())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.PlatformEntryForfeit, entries[0].Kind)
	assert.Equal(t, *result.Forfeited, entries[0].Amount)

	// Money is conserved between the user and the platform pool
	assert.Equal(t, int64(10000), b.Total+entries[0].Amount)
}

func TestContest_ConcurrentInvestActivatesOnce(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	env := newIntegrationEnv(t)
	ctx := context.Background()

	members := []string{"alice", "bob", "carol", "dave"}
	for _, m := range members {
		env.deposit(t, m, "evt_"+m, 2500)
	}

	startsAt := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	detail, err := env.contests.CreateContest(ctx, "alice", "Spring sprint", members[1:], 1000, models.ContestRules{
		ActivityType:          models.ActivityRunning,
		MinDistanceMiles:      2,
		MaxPaceMinutesPerMile: 12,
		RequiredWorkouts:      3,
		StartsAt:              startsAt,
		EndsAt:                startsAt.Add(7 * 24 * time.Hour),
	})
	require.NoError(t, err)
	contestID := detail.Contest.ID

	// Every member invests twice at once; only one attempt each may move money
	var wg sync.WaitGroup
	for _, m := range members {
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(userID string) {
				defer wg.Done()
				if _, err := env.contests.Invest(ctx, contestID, userID); err != nil {
					assert.ErrorIs(t, err, apperrors.ErrInvalidState)
				}
			}(m)
		}
	}
	wg.Wait()

	got, err := env.contests.GetContest(ctx, contestID)
	require.NoError(t, err)
	assert.Equal(t, models.ContestStatusActive, got.Contest.Status)
	assert.Equal(t, 4, got.Contest.InvestedParticipants)
	assert.Equal(t, int64(4000), got.Contest.TotalPot)
	for _, m := range got.Members {
		assert.Equal(t, models.MemberStatusInvested, m.Status, m.UserID)
	}

	for _, m := range members {
		b := env.balances(t, m)
		assert.Equal(t, int64(1500), b.Free, m)
		assert.Equal(t, int64(1000), b.Invested, m)
		assert.Equal(t, int64(2500), b.Total, m)
	}
}

func TestContest_CancelRefundsInvestedMembers(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	env := newIntegrationEnv(t)
	ctx := context.Background()

	env.deposit(t, "alice", "evt_a", 1000)
	env.deposit(t, "bob", "evt_b", 1000)

	startsAt := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)
	detail, err := env.contests.CreateContest(ctx, "alice", "Cancelled", []string{"bob", "carol"}, 1000, models.ContestRules{
		ActivityType:          models.ActivityCycling,
		MinDistanceMiles:      10,
		MaxPaceMinutesPerMile: 6,
		RequiredWorkouts:      2,
		StartsAt:              startsAt,
		EndsAt:                startsAt.Add(24 * time.Hour),
		PayoutScheme:          models.PayoutSchemeProrate,
	})
	require.NoError(t, err)
	contestID := detail.Contest.ID

	_, err = env.contests.Invest(ctx, contestID, "alice")
	require.NoError(t, err)
	_, err = env.contests.Invest(ctx, contestID, "bob")
	require.NoError(t, err)

	_, err = env.contests.Cancel(ctx, contestID, "bob")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	result, err := env.contests.Cancel(ctx, contestID, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.ContestStatusCancelled, result.Contest.Status)
	assert.Equal(t, 2, result.RefundedMembers)
	assert.Equal(t, int64(2000), result.TotalRefunded)
	assert.Equal(t, 0, result.PendingRefunds)

	for _, m := range []string{"alice", "bob"} {
		b := env.balances(t, m)
		assert.Equal(t, int64(1000), b.Free, m)
		assert.Equal(t, int64(0), b.Invested, m)
	}

	_, err = env.contests.Invest(ctx, contestID, "carol")
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestContest_OutOfOrderWorkoutsRankByRealFinish(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	env := newIntegrationEnv(t)
	ctx := context.Background()

	env.deposit(t, "alice", "evt_a", 1000)
	env.deposit(t, "bob", "evt_b", 1000)

	startsAt := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	detail, err := env.contests.CreateContest(ctx, "alice", "Out of order", []string{"bob"}, 1000, models.ContestRules{
		ActivityType:          models.ActivityRunning,
		MinDistanceMiles:      2,
		MaxPaceMinutesPerMile: 12,
		RequiredWorkouts:      3,
		StartsAt:              startsAt,
		EndsAt:                startsAt.Add(14 * 24 * time.Hour),
		PodiumSplits:          []int{100},
	})
	require.NoError(t, err)
	contestID := detail.Contest.ID

	for _, m := range []string{"alice", "bob"} {
		_, err := env.contests.Invest(ctx, contestID, m)
		require.NoError(t, err)
	}

	day := func(n int) time.Time { return startsAt.Add(time.Duration(n)*24*time.Hour + 6*time.Hour) }

	// Alice's day 2 workout arrives last, so her third workout by date is day 7
	deliveries := []struct {
		id     string
		userID string
		at     time.Time
	}{
		{"a-6", "alice", day(6)},
		{"a-7", "alice", day(7)},
		{"b-1", "bob", day(1)},
		{"b-3", "bob", day(3)},
		{"b-4", "bob", day(4)},
		{"a-2", "alice", day(2)},
	}
	for _, d := range deliveries {
		counted, err := env.contests.RecordQualifyingWorkout(ctx, contestID, testutil.QualifyingRun(d.id, d.userID, d.at))
		require.NoError(t, err)
		assert.True(t, counted, d.id)
	}

	got, err := env.contests.GetContest(ctx, contestID)
	require.NoError(t, err)

	alice, bob := got.Member("alice"), got.Member("bob")
	require.NotNil(t, alice.RequirementMetAt)
	require.NotNil(t, bob.RequirementMetAt)
	assert.Equal(t, 3, alice.CompletedWorkouts)
	assert.True(t, alice.RequirementMetAt.Equal(day(7)), "alice met at %s", alice.RequirementMetAt)
	assert.True(t, bob.RequirementMetAt.Equal(day(4)), "bob met at %s", bob.RequirementMetAt)

	results := []payout.MemberResult{
		{UserID: "alice", Stake: alice.Amount, Completed: alice.CompletedWorkouts, RequirementMetAt: alice.RequirementMetAt, JoinOrder: alice.JoinOrder},
		{UserID: "bob", Stake: bob.Amount, Completed: bob.CompletedWorkouts, RequirementMetAt: bob.RequirementMetAt, JoinOrder: bob.JoinOrder},
	}
	shares, err := payout.Podium(results, 3, []int{100})
	require.NoError(t, err)
	assert.Equal(t, int64(2000), shares["bob"])
	assert.Equal(t, int64(0), shares["alice"])
}

func TestWithdrawal_PendingRequestIsResentUntilAnswered(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	env := newIntegrationEnv(t)
	ctx := context.Background()

	env.deposit(t, "alice", "evt_a", 5000)
	withdrawal, err := env.payments.RequestWithdrawal(ctx, "alice", 2000)
	require.NoError(t, err)
	assert.Equal(t, 1, withdrawal.RequestAttempts)

	// Not stale yet
	sent, err := env.payments.ResendPendingWithdrawals(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, sent)

	sent, err = env.payments.ResendPendingWithdrawals(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	listed, err := env.payments.ListWithdrawals(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, 2, listed[0].RequestAttempts)
	assert.Equal(t, models.WithdrawalStatusPending, listed[0].Status)

	duplicate, err := env.payments.HandleWithdrawalResult(ctx, models.WithdrawalResult{
		WithdrawalID:      withdrawal.ID,
		Success:           true,
		TransferReference: "tr_1",
	})
	require.NoError(t, err)
	assert.False(t, duplicate)

	sent, err = env.payments.ResendPendingWithdrawals(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, sent)

	b := env.balances(t, "alice")
	assert.Equal(t, int64(3000), b.Free)
}
