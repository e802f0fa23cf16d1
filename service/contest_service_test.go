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

var (
	contestCreatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	contestStart     = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	contestEnd       = time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
)

func newTestContestService(env *testEnv, now time.Time) *contestService {
	svc := NewContestService(env.factory, env.cfg).(*contestService)
	svc.now = func() time.Time { return now }
	return svc
}

func testRules() models.ContestRules {
	return models.ContestRules{
		ActivityType:          models.ActivityRunning,
		MinDistanceMiles:      2,
		MaxPaceMinutesPerMile: 12,
		RequiredWorkouts:      3,
		StartsAt:              contestStart,
		EndsAt:                contestEnd,
	}
}

func testContest(status models.ContestStatus, members, invested int) *models.Contest {
	return &models.Contest{
		ID:                    uuid.New(),
		Name:                  "March miles",
		OrganizerID:           "alice",
		Status:                status,
		AmountPerMember:       1000,
		InvestedParticipants:  invested,
		TotalParticipants:     members,
		TotalPot:              int64(invested) * 1000,
		ActivityType:          models.ActivityRunning,
		MinDistanceMiles:      2,
		MaxPaceMinutesPerMile: 12,
		RequiredWorkouts:      3,
		StartsAt:              contestStart,
		EndsAt:                contestEnd,
		PayoutScheme:          models.PayoutSchemePodium,
		PodiumSplits:          []int{60, 30, 10},
	}
}

func testMember(contest *models.Contest, userID string, order int, status models.MemberStatus) *models.ContestMember {
	return &models.ContestMember{
		ContestID: contest.ID,
		UserID:    userID,
		JoinOrder: order,
		Status:    status,
		Amount:    contest.AmountPerMember,
	}
}

func TestContestService_CreateContest(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.expectCommit()

	env.repos.Contests.On("Create", ctx,
		mock.MatchedBy(func(c *models.Contest) bool {
			return c.Status == models.ContestStatusPending &&
				c.TotalParticipants == 3 &&
				c.InvestedParticipants == 0 &&
				c.TotalPot == 0 &&
				c.PayoutScheme == models.PayoutSchemePodium &&
				assert.ObjectsAreEqual([]int{60, 30, 10}, c.PodiumSplits)
		}),
		mock.MatchedBy(func(members []*models.ContestMember) bool {
			return len(members) == 3 &&
				members[0].UserID == "alice" &&
				members[1].UserID == "bob" &&
				members[2].UserID == "carol" &&
				members[2].JoinOrder == 2 &&
				members[1].Status == models.MemberStatusPending
		}),
	).Return(nil)
	env.repos.Events.On("Publish", mock.MatchedBy(func(e events.ContestStateChangeEvent) bool {
		return e.NewState == models.ContestStatusPending
	})).Return(nil)

	svc := newTestContestService(env, contestCreatedAt)
	detail, err := svc.CreateContest(ctx, "alice", "March miles", []string{"bob", "alice", "carol", "bob", ""}, 1000, testRules())

	require.NoError(t, err)
	assert.Len(t, detail.Members, 3)
	env.assertExpectations(t)
}

func TestContestService_CreateContest_Validation(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		modify func(*models.ContestRules)
	}{
		{"zero amount", 0, func(r *models.ContestRules) {}},
		{"walking contest", 1000, func(r *models.ContestRules) { r.ActivityType = models.ActivityWalking }},
		{"no required workouts", 1000, func(r *models.ContestRules) { r.RequiredWorkouts = 0 }},
		{"starts in the past", 1000, func(r *models.ContestRules) { r.StartsAt = contestCreatedAt.Add(-time.Hour) }},
		{"ends before start", 1000, func(r *models.ContestRules) { r.EndsAt = r.StartsAt }},
		{"splits not summing to 100", 1000, func(r *models.ContestRules) { r.PodiumSplits = []int{50, 30} }},
		{"unknown scheme", 1000, func(r *models.ContestRules) { r.PayoutScheme = "lottery" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			svc := newTestContestService(env, contestCreatedAt)

			rules := testRules()
			tt.modify(&rules)
			_, err := svc.CreateContest(context.Background(), "alice", "March miles", []string{"bob"}, tt.amount, rules)

			assert.True(t, errors.Is(err, apperrors.ErrValidation), "got %v", err)
			env.factory.AssertNotCalled(t, "Create")
		})
	}
}

func TestContestService_Invest(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.expectCommit()

	contest := testContest(models.ContestStatusPending, 3, 1)
	member := testMember(contest, "bob", 1, models.MemberStatusPending)

	env.repos.Contests.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)
	env.repos.Contests.On("GetMemberForUpdate", ctx, contest.ID, "bob").Return(member, nil)
	env.expectMutation("bob", -1000, 1000, models.Ledger{Free: 4000, Invested: 1000, Version: 2})
	env.repos.Contests.On("UpdateMember", ctx, mock.MatchedBy(func(m *models.ContestMember) bool {
		return m.Status == models.MemberStatusInvested && m.InvestedAt != nil
	})).Return(nil)
	env.repos.Contests.On("Update", ctx, mock.MatchedBy(func(c *models.Contest) bool {
		return c.InvestedParticipants == 2 && c.TotalPot == 2000 && c.IsPending()
	})).Return(nil)

	svc := newTestContestService(env, contestCreatedAt)
	updated, err := svc.Invest(ctx, contest.ID, "bob")

	require.NoError(t, err)
	assert.Equal(t, models.ContestStatusPending, updated.Status)
	env.assertExpectations(t)
}

func TestContestService_Invest_LastMemberActivates(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.expectCommit()

	contest := testContest(models.ContestStatusPending, 3, 2)
	member := testMember(contest, "carol", 2, models.MemberStatusPending)

	env.repos.Contests.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)
	env.repos.Contests.On("GetMemberForUpdate", ctx, contest.ID, "carol").Return(member, nil)
	env.expectMutation("carol", -1000, 1000, models.Ledger{Invested: 1000, Version: 2})
	env.repos.Contests.On("UpdateMember", ctx, member).Return(nil)
	env.repos.Contests.On("Update", ctx, mock.MatchedBy(func(c *models.Contest) bool {
		return c.IsActive() && c.TotalPot == 3000 && c.InvestedParticipants == 3
	})).Return(nil)
	env.repos.Events.On("Publish", mock.MatchedBy(func(e events.ContestStateChangeEvent) bool {
		return e.OldState == models.ContestStatusPending && e.NewState == models.ContestStatusActive && e.TotalPot == 3000
	})).Return(nil)

	svc := newTestContestService(env, contestCreatedAt)
	updated, err := svc.Invest(ctx, contest.ID, "carol")

	require.NoError(t, err)
	assert.Equal(t, models.ContestStatusActive, updated.Status)
	env.assertExpectations(t)
}

func TestContestService_Invest_Rejections(t *testing.T) {
	tests := []struct {
		name          string
		contestStatus models.ContestStatus
		member        func(c *models.Contest) *models.ContestMember
		wantErr       error
	}{
		{
			name:          "contest not pending",
			contestStatus: models.ContestStatusActive,
			wantErr:       apperrors.ErrInvalidState,
		},
		{
			name:          "caller not a member",
			contestStatus: models.ContestStatusPending,
			member:        func(c *models.Contest) *models.ContestMember { return nil },
			wantErr:       apperrors.ErrUnauthorized,
		},
		{
			name:          "second invest",
			contestStatus: models.ContestStatusPending,
			member: func(c *models.Contest) *models.ContestMember {
				return testMember(c, "bob", 1, models.MemberStatusInvested)
			},
			wantErr: apperrors.ErrInvalidState,
		},
		{
			name:          "declined member",
			contestStatus: models.ContestStatusPending,
			member: func(c *models.Contest) *models.ContestMember {
				return testMember(c, "bob", 1, models.MemberStatusDeclined)
			},
			wantErr: apperrors.ErrInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			env := newTestEnv()
			contest := testContest(tt.contestStatus, 3, 1)
			env.repos.Contests.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)
			if tt.member != nil {
				member := tt.member(contest)
				if member == nil {
					env.repos.Contests.On("GetMemberForUpdate", ctx, contest.ID, "bob").Return(nil, nil)
				} else {
					env.repos.Contests.On("GetMemberForUpdate", ctx, contest.ID, "bob").Return(member, nil)
				}
			}

			svc := newTestContestService(env, contestCreatedAt)
			_, err := svc.Invest(ctx, contest.ID, "bob")

			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			env.repos.Ledgers.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			env.uow.AssertNotCalled(t, "Commit")
		})
	}
}

func TestContestService_Invest_InsufficientFundsChangesNothing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	contest := testContest(models.ContestStatusPending, 2, 0)
	env.repos.Contests.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)
	env.repos.Contests.On("GetMemberForUpdate", ctx, contest.ID, "bob").Return(testMember(contest, "bob", 1, models.MemberStatusPending), nil)
	env.repos.Ledgers.On("EnsureExists", ctx, "bob").Return(nil)
	env.repos.Ledgers.On("Apply", ctx, "bob", int64(-1000), int64(1000)).Return(nil, apperrors.InsufficientFunds("insufficient funds"))

	svc := newTestContestService(env, contestCreatedAt)
	_, err := svc.Invest(ctx, contest.ID, "bob")

	assert.True(t, errors.Is(err, apperrors.ErrInsufficientFunds))
	env.repos.Contests.AssertNotCalled(t, "UpdateMember", mock.Anything, mock.Anything)
	env.repos.Contests.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	env.uow.AssertNotCalled(t, "Commit")
}

func TestContestService_Decline(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.expectCommit()

	contest := testContest(models.ContestStatusPending, 3, 1)
	env.repos.Contests.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)
	env.repos.Contests.On("GetMemberForUpdate", ctx, contest.ID, "bob").Return(testMember(contest, "bob", 1, models.MemberStatusPending), nil)
	env.repos.Contests.On("UpdateMember", ctx, mock.MatchedBy(func(m *models.ContestMember) bool {
		return m.Status == models.MemberStatusDeclined && m.RespondedAt != nil
	})).Return(nil)

	svc := newTestContestService(env, contestCreatedAt)
	_, err := svc.Decline(ctx, contest.ID, "bob")

	require.NoError(t, err)
	env.repos.Ledgers.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	env.assertExpectations(t)
}

func TestContestService_Cancel_RefundsEveryInvestedMember(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.expectCommit()

	contest := testContest(models.ContestStatusPending, 3, 2)
	alice := testMember(contest, "alice", 0, models.MemberStatusInvested)
	bob := testMember(contest, "bob", 1, models.MemberStatusInvested)
	carol := testMember(contest, "carol", 2, models.MemberStatusPending)

	env.repos.Contests.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)
	env.repos.Contests.On("Update", ctx, mock.MatchedBy(func(c *models.Contest) bool {
		return c.Status == models.ContestStatusCancelled && c.CancelledAt != nil && c.TotalPot == 2000
	})).Return(nil)
	env.repos.Events.On("Publish", mock.MatchedBy(func(e events.ContestStateChangeEvent) bool {
		return e.NewState == models.ContestStatusCancelled
	})).Return(nil)
	env.repos.Contests.On("GetMembers", ctx, contest.ID).Return([]*models.ContestMember{alice, bob, carol}, nil)

	for _, m := range []*models.ContestMember{alice, bob} {
		locked := *m
		env.repos.Contests.On("GetMemberForUpdate", ctx, contest.ID, m.UserID).Return(&locked, nil)
		env.expectMutation(m.UserID, 1000, -1000, models.Ledger{Free: 1000, Version: 3})
	}
	env.repos.Contests.On("UpdateMember", ctx, mock.MatchedBy(func(m *models.ContestMember) bool {
		return m.Status == models.MemberStatusRefunded && *m.PayoutAmount == 1000
	})).Return(nil).Twice()

	svc := newTestContestService(env, contestCreatedAt)
	result, err := svc.Cancel(ctx, contest.ID, "alice")

	require.NoError(t, err)
	assert.Equal(t, 2, result.RefundedMembers)
	assert.Equal(t, int64(2000), result.TotalRefunded)
	assert.Equal(t, 0, result.PendingRefunds)
	env.repos.Contests.AssertNotCalled(t, "GetMemberForUpdate", mock.Anything, contest.ID, "carol")
	env.assertExpectations(t)
}

func TestContestService_Cancel_ResumesRefundPass(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.expectCommit()

	contest := testContest(models.ContestStatusCancelled, 2, 2)
	alice := testMember(contest, "alice", 0, models.MemberStatusRefunded)
	bob := testMember(contest, "bob", 1, models.MemberStatusInvested)

	env.repos.Contests.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)
	env.repos.Contests.On("GetMembers", ctx, contest.ID).Return([]*models.ContestMember{alice, bob}, nil)
	env.repos.Contests.On("GetMemberForUpdate", ctx, contest.ID, "bob").Return(bob, nil)
	env.expectMutation("bob", 1000, -1000, models.Ledger{Free: 1000, Version: 3})
	env.repos.Contests.On("UpdateMember", ctx, bob).Return(nil)

	svc := newTestContestService(env, contestCreatedAt)
	result, err := svc.Cancel(ctx, contest.ID, "alice")

	require.NoError(t, err)
	assert.Equal(t, 2, result.RefundedMembers)
	env.repos.Contests.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	env.repos.Ledgers.AssertNotCalled(t, "Apply", mock.Anything, "alice", mock.Anything, mock.Anything)
	env.assertExpectations(t)
}

func TestContestService_Cancel_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		status  models.ContestStatus
		caller  string
		wantErr error
	}{
		{"not the organizer", models.ContestStatusPending, "bob", apperrors.ErrUnauthorized},
		{"already active", models.ContestStatusActive, "alice", apperrors.ErrInvalidState},
		{"already completed", models.ContestStatusCompleted, "alice", apperrors.ErrInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			env := newTestEnv()
			contest := testContest(tt.status, 2, 2)
			env.repos.Contests.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)

			svc := newTestContestService(env, contestCreatedAt)
			_, err := svc.Cancel(ctx, contest.ID, tt.caller)

			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			env.repos.Contests.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
			env.uow.AssertNotCalled(t, "Commit")
		})
	}
}

func TestContestService_ExpirePending_BeforeStartIsRejected(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	contest := testContest(models.ContestStatusPending, 2, 1)
	env.repos.Contests.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)

	svc := newTestContestService(env, contestCreatedAt)
	_, err := svc.ExpirePending(ctx, contest.ID)

	assert.True(t, errors.Is(err, apperrors.ErrInvalidState))
	env.uow.AssertNotCalled(t, "Commit")
}

func TestContestService_Complete_PaysPodium(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.expectCommit()

	contest := testContest(models.ContestStatusActive, 3, 3)
	first := time.Date(2026, 3, 4, 7, 0, 0, 0, time.UTC)
	second := time.Date(2026, 3, 6, 7, 0, 0, 0, time.UTC)

	alice := testMember(contest, "alice", 0, models.MemberStatusInvested)
	alice.CompletedWorkouts, alice.RequirementMetAt = 3, &second
	bob := testMember(contest, "bob", 1, models.MemberStatusInvested)
	bob.CompletedWorkouts, bob.RequirementMetAt = 4, &first
	carol := testMember(contest, "carol", 2, models.MemberStatusInvested)
	carol.CompletedWorkouts = 1

	env.repos.Contests.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)
	env.repos.Contests.On("GetMembers", ctx, contest.ID).Return([]*models.ContestMember{alice, bob, carol}, nil)
	env.repos.Contests.On("UpdateMember", ctx, mock.Anything).Return(nil)
	env.repos.Contests.On("Update", ctx, mock.MatchedBy(func(c *models.Contest) bool {
		return c.Status == models.ContestStatusCompleted && c.CompletedAt != nil
	})).Return(nil)
	env.repos.Events.On("Publish", mock.MatchedBy(func(e events.ContestStateChangeEvent) bool {
		return e.NewState == models.ContestStatusCompleted
	})).Return(nil)

	// Shares of the 3000 pot with splits renormalised over two finishers: 60/90 and 30/90
	env.repos.Contests.On("GetMemberForUpdate", ctx, contest.ID, "alice").Return(alice, nil)
	env.repos.Contests.On("GetMemberForUpdate", ctx, contest.ID, "bob").Return(bob, nil)
	env.repos.Contests.On("GetMemberForUpdate", ctx, contest.ID, "carol").Return(carol, nil)
	env.expectMutation("bob", 2000, -1000, models.Ledger{Free: 2000, Version: 4})
	env.expectMutation("alice", 1000, -1000, models.Ledger{Free: 1000, Version: 4})
	env.expectMutation("carol", 0, -1000, models.Ledger{Version: 4})

	svc := newTestContestService(env, contestEnd.Add(time.Minute))
	result, err := svc.Complete(ctx, contest.ID)

	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"alice": 1000, "bob": 2000, "carol": 0}, result.Payouts)
	assert.Equal(t, int64(3000), result.TotalPaid)
	assert.Equal(t, 3, result.PaidMembers)
	assert.Equal(t, models.MemberStatusPaidOut, carol.Status)
	env.assertExpectations(t)
}

func TestContestService_Complete_ProrateWithoutFinishersRefunds(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.expectCommit()

	contest := testContest(models.ContestStatusActive, 2, 2)
	contest.PayoutScheme = models.PayoutSchemeProrate
	contest.PodiumSplits = nil

	alice := testMember(contest, "alice", 0, models.MemberStatusInvested)
	alice.CompletedWorkouts = 2
	bob := testMember(contest, "bob", 1, models.MemberStatusInvested)

	env.repos.Contests.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)
	env.repos.Contests.On("GetMembers", ctx, contest.ID).Return([]*models.ContestMember{alice, bob}, nil)
	env.repos.Contests.On("UpdateMember", ctx, mock.Anything).Return(nil)
	env.repos.Contests.On("Update", ctx, mock.Anything).Return(nil)
	env.repos.Events.On("Publish", mock.AnythingOfType("events.ContestStateChangeEvent")).Return(nil)
	env.repos.Contests.On("GetMemberForUpdate", ctx, contest.ID, "alice").Return(alice, nil)
	env.repos.Contests.On("GetMemberForUpdate", ctx, contest.ID, "bob").Return(bob, nil)
	env.expectMutation("alice", 1000, -1000, models.Ledger{Free: 1000, Version: 4})
	env.expectMutation("bob", 1000, -1000, models.Ledger{Free: 1000, Version: 4})

	svc := newTestContestService(env, contestEnd)
	result, err := svc.Complete(ctx, contest.ID)

	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"alice": 1000, "bob": 1000}, result.Payouts)
	env.assertExpectations(t)
}

func TestContestService_Complete_BeforeEndIsRejected(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	contest := testContest(models.ContestStatusActive, 2, 2)
	env.repos.Contests.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)

	svc := newTestContestService(env, contestEnd.Add(-time.Second))
	_, err := svc.Complete(ctx, contest.ID)

	assert.True(t, errors.Is(err, apperrors.ErrInvalidState))
	env.repos.Contests.AssertNotCalled(t, "GetMembers", mock.Anything, mock.Anything)
}

func TestContestService_RecordQualifyingWorkout_StampsRequirementMet(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.expectCommit()

	contest := testContest(models.ContestStatusActive, 2, 2)
	member := testMember(contest, "bob", 1, models.MemberStatusInvested)
	member.CompletedWorkouts = 2
	performedAt := time.Date(2026, 3, 5, 6, 30, 0, 0, time.UTC)
	workout := qualifyingRun("w3", "bob", performedAt)

	env.repos.Contests.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)
	env.repos.Contests.On("GetMemberForUpdate", ctx, contest.ID, "bob").Return(member, nil)
	env.repos.Workouts.On("Insert", ctx, workout).Return(true, nil)
	env.repos.Contests.On("RecordWorkout", ctx, contest.ID, "bob", "w3").Return(true, nil)
	env.repos.Contests.On("NthCountedWorkoutAt", ctx, contest.ID, "bob", 3).Return(&performedAt, nil)
	env.repos.Contests.On("UpdateMember", ctx, mock.MatchedBy(func(m *models.ContestMember) bool {
		return m.CompletedWorkouts == 3 && m.RequirementMetAt != nil && m.RequirementMetAt.Equal(performedAt)
	})).Return(nil)

	svc := newTestContestService(env, performedAt.Add(time.Hour))
	counted, err := svc.RecordQualifyingWorkout(ctx, contest.ID, workout)

	require.NoError(t, err)
	assert.True(t, counted)
	env.assertExpectations(t)
}

func TestContestService_RecordQualifyingWorkout_LateEarlierWorkoutMovesStamp(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.expectCommit()

	// Requirement already met on Mar 8; a Mar 3 workout delivered afterwards makes Mar 7 the third.
	contest := testContest(models.ContestStatusActive, 2, 2)
	member := testMember(contest, "alice", 0, models.MemberStatusInvested)
	member.CompletedWorkouts = 3
	staleStamp := time.Date(2026, 3, 8, 6, 0, 0, 0, time.UTC)
	member.RequirementMetAt = &staleStamp
	earlier := time.Date(2026, 3, 3, 6, 0, 0, 0, time.UTC)
	thirdEarliest := time.Date(2026, 3, 7, 6, 0, 0, 0, time.UTC)
	workout := qualifyingRun("w-late", "alice", earlier)

	env.repos.Contests.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)
	env.repos.Contests.On("GetMemberForUpdate", ctx, contest.ID, "alice").Return(member, nil)
	env.repos.Workouts.On("Insert", ctx, workout).Return(true, nil)
	env.repos.Contests.On("RecordWorkout", ctx, contest.ID, "alice", "w-late").Return(true, nil)
	env.repos.Contests.On("NthCountedWorkoutAt", ctx, contest.ID, "alice", 3).Return(&thirdEarliest, nil)
	env.repos.Contests.On("UpdateMember", ctx, mock.MatchedBy(func(m *models.ContestMember) bool {
		return m.CompletedWorkouts == 4 && m.RequirementMetAt != nil && m.RequirementMetAt.Equal(thirdEarliest)
	})).Return(nil)

	svc := newTestContestService(env, contestEnd.Add(-time.Hour))
	counted, err := svc.RecordQualifyingWorkout(ctx, contest.ID, workout)

	require.NoError(t, err)
	assert.True(t, counted)
	env.assertExpectations(t)
}

func TestContestService_RecordQualifyingWorkout_BelowRequirementLeavesStampUnset(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.expectCommit()

	contest := testContest(models.ContestStatusActive, 2, 2)
	member := testMember(contest, "bob", 1, models.MemberStatusInvested)
	performedAt := time.Date(2026, 3, 4, 6, 0, 0, 0, time.UTC)
	workout := qualifyingRun("w1", "bob", performedAt)

	env.repos.Contests.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)
	env.repos.Contests.On("GetMemberForUpdate", ctx, contest.ID, "bob").Return(member, nil)
	env.repos.Workouts.On("Insert", ctx, workout).Return(true, nil)
	env.repos.Contests.On("RecordWorkout", ctx, contest.ID, "bob", "w1").Return(true, nil)
	env.repos.Contests.On("UpdateMember", ctx, mock.MatchedBy(func(m *models.ContestMember) bool {
		return m.CompletedWorkouts == 1 && m.RequirementMetAt == nil
	})).Return(nil)

	svc := newTestContestService(env, performedAt.Add(time.Hour))
	counted, err := svc.RecordQualifyingWorkout(ctx, contest.ID, workout)

	require.NoError(t, err)
	assert.True(t, counted)
	env.repos.Contests.AssertNotCalled(t, "NthCountedWorkoutAt", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	env.assertExpectations(t)
}

func TestContestService_RecordQualifyingWorkout_IgnoresOutsideWindow(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	contest := testContest(models.ContestStatusActive, 2, 2)
	env.repos.Contests.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)

	svc := newTestContestService(env, contestEnd)
	counted, err := svc.RecordQualifyingWorkout(ctx, contest.ID, qualifyingRun("w1", "bob", contestEnd))

	require.NoError(t, err)
	assert.False(t, counted)
	env.repos.Contests.AssertNotCalled(t, "GetMemberForUpdate", mock.Anything, mock.Anything, mock.Anything)
}
