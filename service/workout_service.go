package service

import (
	"context"
	"errors"
	"fmt"

	"fitpledge/config"
	"fitpledge/models"

	log "github.com/sirupsen/logrus"
)

type workoutService struct {
	uowFactory  UnitOfWorkFactory
	commitments CommitmentService
	contests    ContestService
	retry       RetryPolicy
}

// NewWorkoutService creates a new workout ingestion service
func NewWorkoutService(uowFactory UnitOfWorkFactory, commitments CommitmentService, contests ContestService, cfg *config.Config) WorkoutService {
	return &workoutService{
		uowFactory:  uowFactory,
		commitments: commitments,
		contests:    contests,
		retry:       RetryPolicyFromConfig(cfg),
	}
}

type workoutTargets struct {
	inserted    bool
	commitments []*models.Commitment
	contests    []*models.Contest
}

// IngestWorkout stores the workout and applies it to every open commitment and active contest
// of its owner. Each application runs in its own idempotent transaction, so a redelivered
// workout completes whatever an earlier delivery missed.
func (s *workoutService) IngestWorkout(ctx context.Context, workout models.Workout) (*models.WorkoutIngestResult, error) {
	if workout.ActivityType != "" {
		workout.ActivityType = models.ParseActivityType(string(workout.ActivityType))
	}
	workout.PerformedAt = workout.PerformedAt.UTC()
	if err := workout.Validate(); err != nil {
		return nil, err
	}

	targets, err := withRetry(ctx, s.retry, "ingest_workout", func() (*workoutTargets, error) {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		inserted, err := uow.WorkoutRepository().Insert(ctx, &workout)
		if err != nil {
			return nil, fmt.Errorf("failed to store workout: %w", err)
		}

		commitments, err := uow.CommitmentRepository().ListOpenByUserAt(ctx, workout.UserID, workout.PerformedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to list open commitments: %w", err)
		}
		contests, err := uow.ContestRepository().ListActiveForMemberAt(ctx, workout.UserID, workout.PerformedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to list active contests: %w", err)
		}

		if err := uow.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}

		return &workoutTargets{inserted: inserted, commitments: commitments, contests: contests}, nil
	})
	if err != nil {
		return nil, err
	}

	result := &models.WorkoutIngestResult{
		Duplicate:   !targets.inserted,
		Commitments: []string{},
		Contests:    []string{},
	}

	var errs []error
	for _, c := range targets.commitments {
		counted, err := s.commitments.RecordQualifyingWorkout(ctx, c.ID, &workout)
		if err != nil {
			errs = append(errs, fmt.Errorf("commitment %s: %w", c.ID, err))
			continue
		}
		if counted {
			result.Commitments = append(result.Commitments, c.ID.String())
		}
	}
	for _, c := range targets.contests {
		counted, err := s.contests.RecordQualifyingWorkout(ctx, c.ID, &workout)
		if err != nil {
			errs = append(errs, fmt.Errorf("contest %s: %w", c.ID, err))
			continue
		}
		if counted {
			result.Contests = append(result.Contests, c.ID.String())
		}
	}

	logger := log.WithFields(log.Fields{
		"workoutID":   workout.ID,
		"userID":      workout.UserID,
		"duplicate":   result.Duplicate,
		"commitments": len(result.Commitments),
		"contests":    len(result.Contests),
	})
	if len(errs) > 0 {
		err := errors.Join(errs...)
		logger.WithError(err).Error("Failed to apply workout everywhere")
		return result, fmt.Errorf("failed to apply workout %s: %w", workout.ID, err)
	}
	logger.Info("Workout ingested")

	return result, nil
}
