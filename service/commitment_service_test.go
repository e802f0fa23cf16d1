package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"fitpledge/apperrors"
	"fitpledge/events"
	"fitpledge/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var march2026 = models.Period{Year: 2026, Month: time.March}

func newTestCommitmentService(env *testEnv, now time.Time) *commitmentService {
	svc := NewCommitmentService(env.factory, env.cfg).(*commitmentService)
	svc.now = func() time.Time { return now }
	return svc
}

func openCommitment(workoutCount, completed int) *models.Commitment {
	return &models.Commitment{
		ID:                uuid.New(),
		UserID:            "alice",
		Amount:            10000,
		WorkoutCount:      workoutCount,
		PeriodStart:       march2026.Start(),
		PeriodEnd:         march2026.End(),
		CompletedWorkouts: completed,
		Status:            models.CommitmentStatusOpen,
	}
}

func TestCommitmentService_CreateCommitment(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.expectCommit()

	env.expectMutation("alice", -10000, 10000, models.Ledger{Free: 0, Invested: 10000, Version: 2})
	env.repos.Commitments.On("Create", ctx, mock.MatchedBy(func(c *models.Commitment) bool {
		return c.UserID == "alice" &&
			c.Amount == 10000 &&
			c.WorkoutCount == 12 &&
			c.BonusRateBps == 2000 &&
			c.BonusSlots == 2 &&
			c.PeriodStart.Equal(march2026.Start()) &&
			c.Status == models.CommitmentStatusOpen
	})).Return(nil)

	svc := newTestCommitmentService(env, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	commitment, err := svc.CreateCommitment(ctx, "alice", 10000, 12, march2026)

	require.NoError(t, err)
	assert.Equal(t, march2026, commitment.Period())
	env.assertExpectations(t)
}

func TestCommitmentService_CreateCommitment_InsufficientFundsLeavesNoState(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	env.repos.Ledgers.On("EnsureExists", ctx, "alice").Return(nil)
	env.repos.Ledgers.On("Apply", ctx, "alice", int64(-10000), int64(10000)).
		Return(nil, apperrors.InsufficientFunds("insufficient funds"))

	svc := newTestCommitmentService(env, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	_, err := svc.CreateCommitment(ctx, "alice", 10000, 4, march2026)

	assert.True(t, errors.Is(err, apperrors.ErrInsufficientFunds))
	env.repos.Commitments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	env.uow.AssertNotCalled(t, "Commit")
}

func TestCommitmentService_CreateCommitment_Validation(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		amount       int64
		workoutCount int
		period       models.Period
	}{
		{"unsupported workout count", 10000, 5, march2026},
		{"zero amount", 0, 4, march2026},
		{"past period", 10000, 4, models.Period{Year: 2026, Month: time.February}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			svc := newTestCommitmentService(env, now)

			_, err := svc.CreateCommitment(context.Background(), "alice", tt.amount, tt.workoutCount, tt.period)

			assert.True(t, errors.Is(err, apperrors.ErrValidation), "got %v", err)
			env.factory.AssertNotCalled(t, "Create")
		})
	}
}

func TestCommitmentService_RecordQualifyingWorkout_Counts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.expectCommit()

	commitment := openCommitment(8, 2)
	workout := qualifyingRun("w1", "alice", time.Date(2026, 3, 5, 7, 0, 0, 0, time.UTC))

	env.repos.Commitments.On("GetByIDForUpdate", ctx, commitment.ID).Return(commitment, nil)
	env.repos.Workouts.On("Insert", ctx, workout).Return(true, nil)
	env.repos.Commitments.On("RecordWorkout", ctx, commitment.ID, "w1").Return(true, nil)
	env.repos.Commitments.On("Update", ctx, mock.MatchedBy(func(c *models.Commitment) bool {
		return c.CompletedWorkouts == 3 && c.IsOpen()
	})).Return(nil)

	svc := newTestCommitmentService(env, time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC))
	counted, err := svc.RecordQualifyingWorkout(ctx, commitment.ID, workout)

	require.NoError(t, err)
	assert.True(t, counted)
	env.assertExpectations(t)
}

func TestCommitmentService_RecordQualifyingWorkout_NotCounted(t *testing.T) {
	inMarch := time.Date(2026, 3, 5, 7, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		workout    *models.Workout
		commitment *models.Commitment
		duplicate  bool
		wantBegin  bool
	}{
		{
			name:       "too short",
			workout:    &models.Workout{ID: "w1", UserID: "alice", ActivityType: models.ActivityRunning, DistanceMeters: 3000, DurationSeconds: 900, PerformedAt: inMarch},
			commitment: openCommitment(8, 0),
		},
		{
			name:       "other user",
			workout:    qualifyingRun("w1", "mallory", inMarch),
			commitment: openCommitment(8, 0),
			wantBegin:  true,
		},
		{
			name:       "outside period",
			workout:    qualifyingRun("w1", "alice", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)),
			commitment: openCommitment(8, 0),
			wantBegin:  true,
		},
		{
			name:    "already settled",
			workout: qualifyingRun("w1", "alice", inMarch),
			commitment: func() *models.Commitment {
				c := openCommitment(8, 8)
				c.Status = models.CommitmentStatusSettled
				return c
			}(),
			wantBegin: true,
		},
		{
			name:       "already counted",
			workout:    qualifyingRun("w1", "alice", inMarch),
			commitment: openCommitment(8, 3),
			duplicate:  true,
			wantBegin:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			env := newTestEnv()
			env.repos.Commitments.On("GetByIDForUpdate", ctx, tt.commitment.ID).Return(tt.commitment, nil)
			if tt.duplicate {
				env.repos.Workouts.On("Insert", ctx, tt.workout).Return(false, nil)
				env.repos.Commitments.On("RecordWorkout", ctx, tt.commitment.ID, tt.workout.ID).Return(false, nil)
			}

			svc := newTestCommitmentService(env, inMarch)
			counted, err := svc.RecordQualifyingWorkout(ctx, tt.commitment.ID, tt.workout)

			require.NoError(t, err)
			assert.False(t, counted)
			env.repos.Commitments.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
			env.uow.AssertNotCalled(t, "Commit")
			if !tt.wantBegin {
				env.factory.AssertNotCalled(t, "Create")
			}
		})
	}
}

func TestCommitmentService_RecordQualifyingWorkout_ReachingTargetSettles(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.expectCommit()

	commitment := openCommitment(8, 7)
	workout := qualifyingRun("w8", "alice", time.Date(2026, 3, 20, 7, 0, 0, 0, time.UTC))

	env.repos.Commitments.On("GetByIDForUpdate", ctx, commitment.ID).Return(commitment, nil)
	env.repos.Workouts.On("Insert", ctx, workout).Return(true, nil)
	env.repos.Commitments.On("RecordWorkout", ctx, commitment.ID, "w8").Return(true, nil)
	env.expectMutation("alice", 11000, -10000, models.Ledger{Free: 11000, Version: 5})
	env.repos.Platform.On("Record", ctx, mock.MatchedBy(func(e *models.PlatformEntry) bool {
		return e.Kind == models.PlatformEntryBonus && e.Amount == 1000 && e.RelatedID == commitment.ID.String()
	})).Return(nil)
	env.repos.Commitments.On("Update", ctx, mock.MatchedBy(func(c *models.Commitment) bool {
		return c.Status == models.CommitmentStatusSettled && *c.PrincipalReturned == 10000 && *c.BonusPaid == 1000 && *c.Forfeited == 0
	})).Return(nil)
	env.repos.Events.On("Publish", mock.MatchedBy(func(e events.CommitmentSettledEvent) bool {
		return e.CommitmentID == commitment.ID && e.Bonus == 1000 && e.Period == "2026-03"
	})).Return(nil)

	svc := newTestCommitmentService(env, time.Date(2026, 3, 20, 8, 0, 0, 0, time.UTC))
	counted, err := svc.RecordQualifyingWorkout(ctx, commitment.ID, workout)

	require.NoError(t, err)
	assert.True(t, counted)
	env.assertExpectations(t)
}

func TestCommitmentService_Settle_PartialCompletionForfeits(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.expectCommit()

	commitment := openCommitment(8, 4)
	env.repos.Commitments.On("GetByIDForUpdate", ctx, commitment.ID).Return(commitment, nil)
	env.expectMutation("alice", 5714, -10000, models.Ledger{Free: 5714, Version: 6})
	env.repos.Platform.On("Record", ctx, mock.MatchedBy(func(e *models.PlatformEntry) bool {
		return e.Kind == models.PlatformEntryForfeit && e.Amount == 4286 && e.UserID == "alice"
	})).Return(nil)
	env.repos.Commitments.On("Update", ctx, mock.MatchedBy(func(c *models.Commitment) bool {
		return c.Status == models.CommitmentStatusSettled && *c.Forfeited == 4286 && c.SettledAt != nil
	})).Return(nil)
	env.repos.Events.On("Publish", mock.AnythingOfType("events.CommitmentSettledEvent")).Return(nil)

	svc := newTestCommitmentService(env, time.Date(2026, 4, 1, 0, 5, 0, 0, time.UTC))
	settled, err := svc.Settle(ctx, commitment.ID)

	require.NoError(t, err)
	assert.Equal(t, models.CommitmentStatusSettled, settled.Status)
	assert.Equal(t, int64(5714), *settled.PrincipalReturned)
	env.assertExpectations(t)
}

func TestCommitmentService_Settle_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		commitment *models.Commitment
		now        time.Time
		wantErr    error
	}{
		{
			name: "already settled",
			commitment: func() *models.Commitment {
				c := openCommitment(4, 4)
				c.Status = models.CommitmentStatusSettled
				return c
			}(),
			now:     time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
			wantErr: apperrors.ErrInvalidState,
		},
		{
			name:       "period running and target not reached",
			commitment: openCommitment(8, 3),
			now:        time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
			wantErr:    apperrors.ErrInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			env := newTestEnv()
			env.repos.Commitments.On("GetByIDForUpdate", ctx, tt.commitment.ID).Return(tt.commitment, nil)

			svc := newTestCommitmentService(env, tt.now)
			_, err := svc.Settle(ctx, tt.commitment.ID)

			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			env.repos.Ledgers.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			env.uow.AssertNotCalled(t, "Commit")
		})
	}
}

func TestCommitmentService_Settle_NotFound(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	id := uuid.New()
	env.repos.Commitments.On("GetByIDForUpdate", ctx, id).Return(nil, nil)

	svc := newTestCommitmentService(env, time.Now())
	_, err := svc.Settle(ctx, id)

	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}
