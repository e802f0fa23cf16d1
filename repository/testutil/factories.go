package testutil

import (
	"time"

	"fitpledge/models"

	"github.com/google/uuid"
)

// CreateTestLedger creates a ledger with the given buckets
func CreateTestLedger(userID string, free, invested int64) *models.Ledger {
	now := time.Now()
	return &models.Ledger{
		UserID:    userID,
		Total:     free + invested,
		Free:      free,
		Invested:  invested,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CreateTestCommitment creates an open commitment for the given period
func CreateTestCommitment(userID string, amount int64, workoutCount int, period models.Period) *models.Commitment {
	now := time.Now()
	return &models.Commitment{
		ID:           uuid.New(),
		UserID:       userID,
		Amount:       amount,
		WorkoutCount: workoutCount,
		PeriodStart:  period.Start(),
		PeriodEnd:    period.End(),
		Status:       models.CommitmentStatusOpen,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// CreateTestContest creates a pending podium contest running from startsAt for one week
func CreateTestContest(organizerID string, amountPerMember int64, totalParticipants int, startsAt time.Time) *models.Contest {
	now := time.Now()
	return &models.Contest{
		ID:                    uuid.New(),
		Name:                  "Test contest",
		OrganizerID:           organizerID,
		Status:                models.ContestStatusPending,
		AmountPerMember:       amountPerMember,
		TotalParticipants:     totalParticipants,
		ActivityType:          models.ActivityRunning,
		MinDistanceMiles:      2,
		MaxPaceMinutesPerMile: 12,
		RequiredWorkouts:      3,
		StartsAt:              startsAt,
		EndsAt:                startsAt.Add(7 * 24 * time.Hour),
		PayoutScheme:          models.PayoutSchemePodium,
		PodiumSplits:          []int{60, 30, 10},
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

// CreateTestMembers creates pending member sub-records in join order
func CreateTestMembers(contest *models.Contest, userIDs ...string) []*models.ContestMember {
	members := make([]*models.ContestMember, 0, len(userIDs))
	for i, userID := range userIDs {
		members = append(members, &models.ContestMember{
			ContestID: contest.ID,
			UserID:    userID,
			JoinOrder: i,
			Status:    models.MemberStatusPending,
			Amount:    contest.AmountPerMember,
		})
	}
	return members
}

// CreateTestRun creates a running workout covering meters in seconds
func CreateTestRun(id, userID string, meters, seconds float64, performedAt time.Time) *models.Workout {
	return &models.Workout{
		ID:              id,
		UserID:          userID,
		ActivityType:    models.ActivityRunning,
		DistanceMeters:  meters,
		DurationSeconds: seconds,
		PerformedAt:     performedAt,
	}
}

// QualifyingRun creates a 5 km run in 25 minutes
func QualifyingRun(id, userID string, performedAt time.Time) *models.Workout {
	return CreateTestRun(id, userID, 5000, 1500, performedAt)
}
