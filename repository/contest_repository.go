package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fitpledge/database"
	"fitpledge/infrastructure/observability"
	"fitpledge/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const contestColumns = `c.id, c.name, c.organizer_id, c.status, c.amount_per_member, c.invested_participants,
	c.total_participants, c.total_pot, c.activity_type, c.min_distance_miles, c.max_pace_minutes_per_mile,
	c.required_workouts, c.starts_at, c.ends_at, c.payout_scheme, c.podium_splits, c.cancel_reason,
	c.cancelled_at, c.completed_at, c.created_at, c.updated_at`

const memberColumns = `contest_id, user_id, join_order, status, amount, completed_workouts, requirement_met_at,
	payout_amount, invested_at, responded_at, settled_at, created_at, updated_at`

// ContestRepository implements the ContestRepository interface
type ContestRepository struct {
	q queryable
}

// NewContestRepository creates a new contest repository
func NewContestRepository(db *database.DB) *ContestRepository {
	return &ContestRepository{q: db.Pool}
}

// newContestRepositoryWithTx creates a new contest repository with a transaction
func newContestRepositoryWithTx(tx queryable) *ContestRepository {
	return &ContestRepository{q: tx}
}

func scanContest(row pgx.Row) (*models.Contest, error) {
	var c models.Contest
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.OrganizerID,
		&c.Status,
		&c.AmountPerMember,
		&c.InvestedParticipants,
		&c.TotalParticipants,
		&c.TotalPot,
		&c.ActivityType,
		&c.MinDistanceMiles,
		&c.MaxPaceMinutesPerMile,
		&c.RequiredWorkouts,
		&c.StartsAt,
		&c.EndsAt,
		&c.PayoutScheme,
		&c.PodiumSplits,
		&c.CancelReason,
		&c.CancelledAt,
		&c.CompletedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanMember(row pgx.Row) (*models.ContestMember, error) {
	var m models.ContestMember
	err := row.Scan(
		&m.ContestID,
		&m.UserID,
		&m.JoinOrder,
		&m.Status,
		&m.Amount,
		&m.CompletedWorkouts,
		&m.RequirementMetAt,
		&m.PayoutAmount,
		&m.InvestedAt,
		&m.RespondedAt,
		&m.SettledAt,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func collectContests(rows pgx.Rows) ([]*models.Contest, error) {
	defer rows.Close()

	var contests []*models.Contest
	for rows.Next() {
		c, err := scanContest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contest: %w", err)
		}
		contests = append(contests, c)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err, "failed to iterate contests")
	}
	return contests, nil
}

func collectIDs(rows pgx.Rows, what string) ([]uuid.UUID, error) {
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, translateError(err, "failed to scan %s", what)
	}
	return ids, nil
}

// Create persists a contest together with its member sub-records
func (r *ContestRepository) Create(ctx context.Context, contest *models.Contest, members []*models.ContestMember) error {
	defer observability.GetMetrics().MeasureDatabaseQuery("contest", "Create")()

	if contest.ID == uuid.Nil {
		contest.ID = uuid.New()
	}
	splits := contest.PodiumSplits
	if splits == nil {
		splits = []int{}
	}

	query := `
		INSERT INTO contests
		(id, name, organizer_id, status, amount_per_member, invested_participants, total_participants, total_pot,
		 activity_type, min_distance_miles, max_pace_minutes_per_mile, required_workouts, starts_at, ends_at,
		 payout_scheme, podium_splits)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		contest.ID,
		contest.Name,
		contest.OrganizerID,
		contest.Status,
		contest.AmountPerMember,
		contest.InvestedParticipants,
		contest.TotalParticipants,
		contest.TotalPot,
		contest.ActivityType,
		contest.MinDistanceMiles,
		contest.MaxPaceMinutesPerMile,
		contest.RequiredWorkouts,
		contest.StartsAt,
		contest.EndsAt,
		contest.PayoutScheme,
		splits,
	).Scan(&contest.CreatedAt, &contest.UpdatedAt)
	if err != nil {
		return translateError(err, "failed to create contest")
	}

	memberQuery := `
		INSERT INTO contest_members (contest_id, user_id, join_order, status, amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	for _, m := range members {
		m.ContestID = contest.ID
		err := r.q.QueryRow(ctx, memberQuery, m.ContestID, m.UserID, m.JoinOrder, m.Status, m.Amount).
			Scan(&m.CreatedAt, &m.UpdatedAt)
		if err != nil {
			return translateError(err, "failed to add member %s to contest %s", m.UserID, contest.ID)
		}
	}

	return nil
}

// GetByID retrieves a contest by its ID
func (r *ContestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Contest, error) {
	query := `SELECT ` + contestColumns + ` FROM contests c WHERE c.id = $1`

	c, err := scanContest(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(err, "failed to get contest %s", id)
	}

	return c, nil
}

// GetByIDForUpdate retrieves a contest and locks its row. Callers that also touch member
// rows or ledgers must take this lock first.
func (r *ContestRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Contest, error) {
	defer observability.GetMetrics().MeasureDatabaseQuery("contest", "GetByIDForUpdate")()

	query := `SELECT ` + contestColumns + ` FROM contests c WHERE c.id = $1 FOR UPDATE`

	c, err := scanContest(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(err, "failed to lock contest %s", id)
	}

	return c, nil
}

// GetDetail retrieves a contest with all member sub-records
func (r *ContestRepository) GetDetail(ctx context.Context, id uuid.UUID) (*models.ContestDetail, error) {
	contest, err := r.GetByID(ctx, id)
	if err != nil || contest == nil {
		return nil, err
	}

	members, err := r.GetMembers(ctx, id)
	if err != nil {
		return nil, err
	}

	return &models.ContestDetail{Contest: contest, Members: members}, nil
}

// GetMembers returns the member sub-records in join order
func (r *ContestRepository) GetMembers(ctx context.Context, contestID uuid.UUID) ([]*models.ContestMember, error) {
	query := `SELECT ` + memberColumns + ` FROM contest_members WHERE contest_id = $1 ORDER BY join_order`

	rows, err := r.q.Query(ctx, query, contestID)
	if err != nil {
		return nil, translateError(err, "failed to get members of contest %s", contestID)
	}
	defer rows.Close()

	var members []*models.ContestMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contest member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err, "failed to iterate contest members")
	}

	return members, nil
}

// GetMemberForUpdate retrieves one member sub-record and locks its row
func (r *ContestRepository) GetMemberForUpdate(ctx context.Context, contestID uuid.UUID, userID string) (*models.ContestMember, error) {
	query := `SELECT ` + memberColumns + ` FROM contest_members WHERE contest_id = $1 AND user_id = $2 FOR UPDATE`

	m, err := scanMember(r.q.QueryRow(ctx, query, contestID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(err, "failed to lock member %s of contest %s", userID, contestID)
	}

	return m, nil
}

// Update writes the contest's status, counters and timestamps
func (r *ContestRepository) Update(ctx context.Context, contest *models.Contest) error {
	query := `
		UPDATE contests
		SET status = $2,
		    invested_participants = $3,
		    total_pot = $4,
		    cancel_reason = $5,
		    cancelled_at = $6,
		    completed_at = $7,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.q.QueryRow(ctx, query,
		contest.ID,
		contest.Status,
		contest.InvestedParticipants,
		contest.TotalPot,
		contest.CancelReason,
		contest.CancelledAt,
		contest.CompletedAt,
	).Scan(&contest.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("contest %s not found", contest.ID)
	}
	if err != nil {
		return translateError(err, "failed to update contest %s", contest.ID)
	}

	return nil
}

// UpdateMember writes a member sub-record's status, progress and payout
func (r *ContestRepository) UpdateMember(ctx context.Context, member *models.ContestMember) error {
	query := `
		UPDATE contest_members
		SET status = $3,
		    completed_workouts = $4,
		    requirement_met_at = $5,
		    payout_amount = $6,
		    invested_at = $7,
		    responded_at = $8,
		    settled_at = $9,
		    updated_at = NOW()
		WHERE contest_id = $1 AND user_id = $2
		RETURNING updated_at
	`

	err := r.q.QueryRow(ctx, query,
		member.ContestID,
		member.UserID,
		member.Status,
		member.CompletedWorkouts,
		member.RequirementMetAt,
		member.PayoutAmount,
		member.InvestedAt,
		member.RespondedAt,
		member.SettledAt,
	).Scan(&member.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("member %s of contest %s not found", member.UserID, member.ContestID)
	}
	if err != nil {
		return translateError(err, "failed to update member %s of contest %s", member.UserID, member.ContestID)
	}

	return nil
}

// ListByUser returns contests the user is a member of, newest first
func (r *ContestRepository) ListByUser(ctx context.Context, userID string) ([]*models.Contest, error) {
	query := `
		SELECT ` + contestColumns + `
		FROM contests c
		JOIN contest_members m ON m.contest_id = c.id
		WHERE m.user_id = $1
		ORDER BY c.created_at DESC
	`

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, translateError(err, "failed to list contests for user %s", userID)
	}
	return collectContests(rows)
}

// ListActiveForMemberAt returns active contests where the user is invested and at is in the contest window
func (r *ContestRepository) ListActiveForMemberAt(ctx context.Context, userID string, at time.Time) ([]*models.Contest, error) {
	query := `
		SELECT ` + contestColumns + `
		FROM contests c
		JOIN contest_members m ON m.contest_id = c.id
		WHERE m.user_id = $1
		  AND m.status = 'invested'
		  AND c.status = 'active'
		  AND c.starts_at <= $2
		  AND c.ends_at > $2
		ORDER BY c.starts_at
	`

	rows, err := r.q.Query(ctx, query, userID, at)
	if err != nil {
		return nil, translateError(err, "failed to list active contests for user %s", userID)
	}
	return collectContests(rows)
}

// RecordWorkout marks a workout as counted for a contest
func (r *ContestRepository) RecordWorkout(ctx context.Context, contestID uuid.UUID, userID, workoutID string) (bool, error) {
	query := `
		INSERT INTO contest_workouts (contest_id, workout_id, user_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (contest_id, workout_id) DO NOTHING
	`

	tag, err := r.q.Exec(ctx, query, contestID, workoutID, userID)
	if err != nil {
		return false, translateError(err, "failed to record workout %s for contest %s", workoutID, contestID)
	}

	return tag.RowsAffected() == 1, nil
}

// NthCountedWorkoutAt returns when the member performed their nth earliest counted workout,
// or nil when fewer than n workouts are counted
func (r *ContestRepository) NthCountedWorkoutAt(ctx context.Context, contestID uuid.UUID, userID string, n int) (*time.Time, error) {
	if n < 1 {
		return nil, nil
	}

	query := `
		SELECT w.performed_at
		FROM contest_workouts cw
		JOIN workouts w ON w.id = cw.workout_id
		WHERE cw.contest_id = $1 AND cw.user_id = $2
		ORDER BY w.performed_at, w.id
		OFFSET $3
		LIMIT 1
	`

	var at time.Time
	err := r.q.QueryRow(ctx, query, contestID, userID, n-1).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(err, "failed to find workout %d of member %s in contest %s", n, userID, contestID)
	}

	return &at, nil
}

// ListExpiredPending returns pending contests whose start date is at or before now
func (r *ContestRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	query := `SELECT id FROM contests WHERE status = 'pending' AND starts_at <= $1 ORDER BY starts_at LIMIT $2`

	rows, err := r.q.Query(ctx, query, now, limit)
	if err != nil {
		return nil, translateError(err, "failed to list expired pending contests")
	}
	return collectIDs(rows, "expired pending contests")
}

// ListEnded returns active contests whose end date is at or before now
func (r *ContestRepository) ListEnded(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	query := `SELECT id FROM contests WHERE status = 'active' AND ends_at <= $1 ORDER BY ends_at LIMIT $2`

	rows, err := r.q.Query(ctx, query, now, limit)
	if err != nil {
		return nil, translateError(err, "failed to list ended contests")
	}
	return collectIDs(rows, "ended contests")
}

// ListWithUnsettledMembers returns cancelled or completed contests that still hold invested members
func (r *ContestRepository) ListWithUnsettledMembers(ctx context.Context, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT c.id
		FROM contests c
		JOIN contest_members m ON m.contest_id = c.id
		WHERE c.status IN ('cancelled', 'completed') AND m.status = 'invested'
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, translateError(err, "failed to list contests with unsettled members")
	}
	return collectIDs(rows, "contests with unsettled members")
}
