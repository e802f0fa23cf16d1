package repository

import (
	"context"
	"errors"

	"fitpledge/database"
	"fitpledge/models"

	"github.com/jackc/pgx/v5"
)

// WorkoutRepository implements the WorkoutRepository interface
type WorkoutRepository struct {
	q queryable
}

// NewWorkoutRepository creates a new workout repository
func NewWorkoutRepository(db *database.DB) *WorkoutRepository {
	return &WorkoutRepository{q: db.Pool}
}

func newWorkoutRepositoryWithTx(tx queryable) *WorkoutRepository {
	return &WorkoutRepository{q: tx}
}

// Insert stores a workout. Redelivered workouts are reported as inserted == false.
func (r *WorkoutRepository) Insert(ctx context.Context, workout *models.Workout) (bool, error) {
	query := `
		INSERT INTO workouts
		(id, user_id, activity_type, distance_meters, duration_seconds, pace_seconds_per_meter, performed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
		RETURNING received_at
	`

	err := r.q.QueryRow(ctx, query,
		workout.ID,
		workout.UserID,
		workout.ActivityType,
		workout.DistanceMeters,
		workout.DurationSeconds,
		workout.PaceSecondsPerMeter,
		workout.PerformedAt,
	).Scan(&workout.ReceivedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, translateError(err, "failed to insert workout %s", workout.ID)
	}

	return true, nil
}

// GetByID retrieves a workout by its ID
func (r *WorkoutRepository) GetByID(ctx context.Context, id string) (*models.Workout, error) {
	query := `
		SELECT id, user_id, activity_type, distance_meters, duration_seconds, pace_seconds_per_meter, performed_at, received_at
		FROM workouts
		WHERE id = $1
	`

	var w models.Workout
	err := r.q.QueryRow(ctx, query, id).Scan(
		&w.ID,
		&w.UserID,
		&w.ActivityType,
		&w.DistanceMeters,
		&w.DurationSeconds,
		&w.PaceSecondsPerMeter,
		&w.PerformedAt,
		&w.ReceivedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(err, "failed to get workout %s", id)
	}

	return &w, nil
}
