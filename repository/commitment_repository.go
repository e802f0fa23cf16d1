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

const commitmentColumns = `id, user_id, amount, workout_count, bonus_rate_bps, bonus_slots, period_start, period_end,
	completed_workouts, status, principal_returned, bonus_paid, forfeited, settled_at, created_at, updated_at`

// CommitmentRepository implements the CommitmentRepository interface
type CommitmentRepository struct {
	q queryable
}

// NewCommitmentRepository creates a new commitment repository
func NewCommitmentRepository(db *database.DB) *CommitmentRepository {
	return &CommitmentRepository{q: db.Pool}
}

// newCommitmentRepositoryWithTx creates a new commitment repository with a transaction
func newCommitmentRepositoryWithTx(tx queryable) *CommitmentRepository {
	return &CommitmentRepository{q: tx}
}

func scanCommitment(row pgx.Row) (*models.Commitment, error) {
	var c models.Commitment
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Amount,
		&c.WorkoutCount,
		&c.BonusRateBps,
		&c.BonusSlots,
		&c.PeriodStart,
		&c.PeriodEnd,
		&c.CompletedWorkouts,
		&c.Status,
		&c.PrincipalReturned,
		&c.BonusPaid,
		&c.Forfeited,
		&c.SettledAt,
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

func collectCommitments(rows pgx.Rows) ([]*models.Commitment, error) {
	defer rows.Close()

	var commitments []*models.Commitment
	for rows.Next() {
		c, err := scanCommitment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan commitment: %w", err)
		}
		commitments = append(commitments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err, "failed to iterate commitments")
	}
	return commitments, nil
}

// Create persists a new commitment
func (r *CommitmentRepository) Create(ctx context.Context, commitment *models.Commitment) error {
	defer observability.GetMetrics().MeasureDatabaseQuery("commitment", "Create")()

	if commitment.ID == uuid.Nil {
		commitment.ID = uuid.New()
	}

	query := `
		INSERT INTO commitments
		(id, user_id, amount, workout_count, bonus_rate_bps, bonus_slots, period_start, period_end, completed_workouts, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		commitment.ID,
		commitment.UserID,
		commitment.Amount,
		commitment.WorkoutCount,
		commitment.BonusRateBps,
		commitment.BonusSlots,
		commitment.PeriodStart,
		commitment.PeriodEnd,
		commitment.CompletedWorkouts,
		commitment.Status,
	).Scan(&commitment.CreatedAt, &commitment.UpdatedAt)
	if err != nil {
		return translateError(err, "failed to create commitment for user %s", commitment.UserID)
	}

	return nil
}

// GetByID retrieves a commitment by its ID
func (r *CommitmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Commitment, error) {
	query := `SELECT ` + commitmentColumns + ` FROM commitments WHERE id = $1`

	c, err := scanCommitment(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(err, "failed to get commitment %s", id)
	}

	return c, nil
}

// GetByIDForUpdate retrieves a commitment and locks its row
func (r *CommitmentRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Commitment, error) {
	defer observability.GetMetrics().MeasureDatabaseQuery("commitment", "GetByIDForUpdate")()

	query := `SELECT ` + commitmentColumns + ` FROM commitments WHERE id = $1 FOR UPDATE`

	c, err := scanCommitment(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(err, "failed to lock commitment %s", id)
	}

	return c, nil
}

// Update writes the commitment's progress and settlement fields
func (r *CommitmentRepository) Update(ctx context.Context, commitment *models.Commitment) error {
	query := `
		UPDATE commitments
		SET completed_workouts = $2,
		    status = $3,
		    principal_returned = $4,
		    bonus_paid = $5,
		    forfeited = $6,
		    settled_at = $7,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.q.QueryRow(ctx, query,
		commitment.ID,
		commitment.CompletedWorkouts,
		commitment.Status,
		commitment.PrincipalReturned,
		commitment.BonusPaid,
		commitment.Forfeited,
		commitment.SettledAt,
	).Scan(&commitment.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("commitment %s not found", commitment.ID)
	}
	if err != nil {
		return translateError(err, "failed to update commitment %s", commitment.ID)
	}

	return nil
}

// ListByUser returns a user's commitments, newest period first
func (r *CommitmentRepository) ListByUser(ctx context.Context, userID string) ([]*models.Commitment, error) {
	query := `SELECT ` + commitmentColumns + ` FROM commitments WHERE user_id = $1 ORDER BY period_start DESC, created_at DESC`

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, translateError(err, "failed to list commitments for user %s", userID)
	}
	return collectCommitments(rows)
}

// ListOpenByUserAt returns the user's open commitments whose period contains at
func (r *CommitmentRepository) ListOpenByUserAt(ctx context.Context, userID string, at time.Time) ([]*models.Commitment, error) {
	query := `
		SELECT ` + commitmentColumns + `
		FROM commitments
		WHERE user_id = $1 AND status = 'open' AND period_start <= $2 AND period_end > $2
		ORDER BY created_at
	`

	rows, err := r.q.Query(ctx, query, userID, at)
	if err != nil {
		return nil, translateError(err, "failed to list open commitments for user %s", userID)
	}
	return collectCommitments(rows)
}

// ListSettleable returns open commitments whose period ended at or before now
func (r *CommitmentRepository) ListSettleable(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT id FROM commitments
		WHERE status = 'open' AND period_end <= $1
		ORDER BY period_end
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, now, limit)
	if err != nil {
		return nil, translateError(err, "failed to list settleable commitments")
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, translateError(err, "failed to scan settleable commitments")
	}
	return ids, nil
}

// RecordWorkout marks a workout as counted toward a commitment
func (r *CommitmentRepository) RecordWorkout(ctx context.Context, commitmentID uuid.UUID, workoutID string) (bool, error) {
	query := `
		INSERT INTO commitment_workouts (commitment_id, workout_id)
		VALUES ($1, $2)
		ON CONFLICT (commitment_id, workout_id) DO NOTHING
	`

	tag, err := r.q.Exec(ctx, query, commitmentID, workoutID)
	if err != nil {
		return false, translateError(err, "failed to record workout %s for commitment %s", workoutID, commitmentID)
	}

	return tag.RowsAffected() == 1, nil
}
