package service

import (
	"context"
	"fmt"
	"time"

	"fitpledge/apperrors"
	"fitpledge/config"
	"fitpledge/events"
	"fitpledge/infrastructure/observability"
	"fitpledge/models"
	"fitpledge/payout"
	"fitpledge/qualification"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type commitmentService struct {
	uowFactory UnitOfWorkFactory
	retry      RetryPolicy
	rules      []qualification.Rule
	now        func() time.Time
}

// NewCommitmentService creates a new commitment service judging workouts by the default rules
func NewCommitmentService(uowFactory UnitOfWorkFactory, cfg *config.Config) CommitmentService {
	return &commitmentService{
		uowFactory: uowFactory,
		retry:      RetryPolicyFromConfig(cfg),
		rules:      qualification.DefaultRules(),
		now:        time.Now,
	}
}

// CreateCommitment moves amount from free to invested and opens a commitment for period
func (s *commitmentService) CreateCommitment(ctx context.Context, userID string, amount int64, workoutCount int, period models.Period) (*models.Commitment, error) {
	if userID == "" {
		return nil, apperrors.Validation("user id is required")
	}
	if amount <= 0 {
		return nil, apperrors.Validation("commitment amount must be positive, got %d", amount)
	}
	tier, err := payout.TierFor(workoutCount)
	if err != nil {
		return nil, apperrors.Validation("%v", err)
	}
	if !period.End().After(s.now()) {
		return nil, apperrors.Validation("period %s is in the past", period)
	}

	return withRetry(ctx, s.retry, "create_commitment", func() (*models.Commitment, error) {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		commitment := &models.Commitment{
			ID:           uuid.New(),
			UserID:       userID,
			Amount:       amount,
			WorkoutCount: workoutCount,
			BonusRateBps: tier.RateBasisPoints,
			BonusSlots:   tier.BonusSlots,
			PeriodStart:  period.Start(),
			PeriodEnd:    period.End(),
			Status:       models.CommitmentStatusOpen,
		}

		mutation := models.LedgerMutation{
			UserID:          userID,
			DeltaFree:       -amount,
			DeltaInvested:   amount,
			TransactionType: models.TransactionTypeCommitmentPledge,
			Metadata: map[string]any{
				"period":        period.String(),
				"workout_count": workoutCount,
			},
		}.Related(commitment.ID.String(), models.RelatedTypeCommitment)

		if _, err := ApplyLedgerMutation(ctx, uow, mutation); err != nil {
			return nil, fmt.Errorf("failed to pledge commitment amount: %w", err)
		}

		if err := uow.CommitmentRepository().Create(ctx, commitment); err != nil {
			return nil, fmt.Errorf("failed to create commitment: %w", err)
		}

		if err := uow.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}

		log.WithFields(log.Fields{
			"commitmentID": commitment.ID,
			"userID":       userID,
			"amount":       amount,
			"workoutCount": workoutCount,
			"period":       period.String(),
		}).Info("Commitment created")

		return commitment, nil
	})
}

// RecordQualifyingWorkout counts workout toward the commitment. It returns false without error
// when the workout does not count: wrong owner, outside the period, below the thresholds, already
// counted, or the commitment is settled. Reaching the target settles the commitment immediately.
func (s *commitmentService) RecordQualifyingWorkout(ctx context.Context, commitmentID uuid.UUID, workout *models.Workout) (bool, error) {
	if workout == nil {
		return false, apperrors.Validation("workout is required")
	}
	if err := workout.Validate(); err != nil {
		return false, err
	}
	if !qualification.QualifiesAny(*workout, s.rules) {
		return false, nil
	}

	var settled *payout.CommitmentPayout
	counted, err := withRetry(ctx, s.retry, "record_commitment_workout", func() (bool, error) {
		settled = nil

		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return false, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		commitment, err := uow.CommitmentRepository().GetByIDForUpdate(ctx, commitmentID)
		if err != nil {
			return false, fmt.Errorf("failed to get commitment: %w", err)
		}
		if commitment == nil {
			return false, apperrors.NotFound("commitment %s not found", commitmentID)
		}
		if !commitment.IsOpen() || commitment.UserID != workout.UserID || !commitment.InPeriod(workout.PerformedAt) {
			return false, nil
		}

		if _, err := uow.WorkoutRepository().Insert(ctx, workout); err != nil {
			return false, fmt.Errorf("failed to store workout: %w", err)
		}
		fresh, err := uow.CommitmentRepository().RecordWorkout(ctx, commitment.ID, workout.ID)
		if err != nil {
			return false, fmt.Errorf("failed to record commitment workout: %w", err)
		}
		if !fresh {
			return false, nil
		}

		commitment.CompletedWorkouts++
		if commitment.TargetReached() {
			p, err := s.settleLocked(ctx, uow, commitment)
			if err != nil {
				return false, err
			}
			settled = &p
		} else if err := uow.CommitmentRepository().Update(ctx, commitment); err != nil {
			return false, fmt.Errorf("failed to update commitment: %w", err)
		}

		if err := uow.Commit(); err != nil {
			return false, fmt.Errorf("failed to commit transaction: %w", err)
		}

		log.WithFields(log.Fields{
			"commitmentID": commitment.ID,
			"workoutID":    workout.ID,
			"completed":    commitment.CompletedWorkouts,
			"required":     commitment.WorkoutCount,
		}).Info("Workout counted toward commitment")

		return true, nil
	})
	if err != nil {
		return false, err
	}

	if settled != nil {
		observability.GetMetrics().RecordCommitmentSettled(settlementOutcome(*settled))
	}
	return counted, nil
}

// Settle pays out a commitment whose period has ended or whose target was reached
func (s *commitmentService) Settle(ctx context.Context, commitmentID uuid.UUID) (*models.Commitment, error) {
	var settled payout.CommitmentPayout
	commitment, err := withRetry(ctx, s.retry, "settle_commitment", func() (*models.Commitment, error) {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		commitment, err := uow.CommitmentRepository().GetByIDForUpdate(ctx, commitmentID)
		if err != nil {
			return nil, fmt.Errorf("failed to get commitment: %w", err)
		}
		if commitment == nil {
			return nil, apperrors.NotFound("commitment %s not found", commitmentID)
		}
		if !commitment.IsOpen() {
			return nil, apperrors.InvalidState("commitment %s is already settled", commitmentID)
		}
		if !commitment.CanSettle(s.now()) {
			return nil, apperrors.InvalidState("commitment %s cannot settle before %s with %d of %d workouts",
				commitmentID, commitment.PeriodEnd.Format(time.RFC3339), commitment.CompletedWorkouts, commitment.WorkoutCount)
		}

		settled, err = s.settleLocked(ctx, uow, commitment)
		if err != nil {
			return nil, err
		}

		if err := uow.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return commitment, nil
	})
	if err != nil {
		return nil, err
	}

	observability.GetMetrics().RecordCommitmentSettled(settlementOutcome(settled))
	return commitment, nil
}

// settleLocked settles a commitment whose row is locked by uow
func (s *commitmentService) settleLocked(ctx context.Context, uow UnitOfWork, commitment *models.Commitment) (payout.CommitmentPayout, error) {
	p, err := payout.CalculateCommitmentPayout(commitment.Amount, commitment.WorkoutCount, commitment.CompletedWorkouts)
	if err != nil {
		return payout.CommitmentPayout{}, apperrors.DataIntegrity("commitment %s: %v", commitment.ID, err)
	}

	relatedID := commitment.ID.String()
	mutation := models.LedgerMutation{
		UserID:          commitment.UserID,
		DeltaFree:       p.Earned(),
		DeltaInvested:   -commitment.Amount,
		TransactionType: models.TransactionTypeCommitmentSettle,
		Metadata: map[string]any{
			"completed_workouts": commitment.CompletedWorkouts,
			"workout_count":      commitment.WorkoutCount,
			"principal":          p.Principal,
			"bonus":              p.Bonus,
			"forfeited":          p.Forfeited,
		},
	}.Related(relatedID, models.RelatedTypeCommitment)

	if _, err := ApplyLedgerMutation(ctx, uow, mutation); err != nil {
		return payout.CommitmentPayout{}, fmt.Errorf("failed to settle commitment ledger: %w", err)
	}

	entries := []*models.PlatformEntry{
		{Kind: models.PlatformEntryForfeit, Amount: p.Forfeited},
		{Kind: models.PlatformEntryBonus, Amount: p.Bonus},
	}
	for _, entry := range entries {
		if entry.Amount == 0 {
			continue
		}
		entry.UserID = commitment.UserID
		entry.RelatedID = relatedID
		entry.RelatedType = models.RelatedTypeCommitment
		if err := uow.PlatformRepository().Record(ctx, entry); err != nil {
			return payout.CommitmentPayout{}, fmt.Errorf("failed to record platform %s: %w", entry.Kind, err)
		}
	}

	now := s.now()
	commitment.Status = models.CommitmentStatusSettled
	commitment.PrincipalReturned = &p.Principal
	commitment.BonusPaid = &p.Bonus
	commitment.Forfeited = &p.Forfeited
	commitment.SettledAt = &now
	if err := uow.CommitmentRepository().Update(ctx, commitment); err != nil {
		return payout.CommitmentPayout{}, fmt.Errorf("failed to update commitment: %w", err)
	}

	event := events.CommitmentSettledEvent{
		CommitmentID:      commitment.ID,
		UserID:            commitment.UserID,
		Period:            commitment.Period().String(),
		Amount:            commitment.Amount,
		WorkoutCount:      commitment.WorkoutCount,
		CompletedWorkouts: commitment.CompletedWorkouts,
		Principal:         p.Principal,
		Bonus:             p.Bonus,
		Forfeited:         p.Forfeited,
	}
	if err := uow.EventBus().Publish(event); err != nil {
		return payout.CommitmentPayout{}, fmt.Errorf("failed to queue settlement event: %w", err)
	}

	log.WithFields(log.Fields{
		"commitmentID": commitment.ID,
		"userID":       commitment.UserID,
		"completed":    commitment.CompletedWorkouts,
		"principal":    payout.Format(p.Principal),
		"bonus":        payout.Format(p.Bonus),
		"forfeited":    payout.Format(p.Forfeited),
	}).Info("Commitment settled")

	return p, nil
}

func (s *commitmentService) GetCommitment(ctx context.Context, commitmentID uuid.UUID) (*models.Commitment, error) {
	return withRetry(ctx, s.retry, "get_commitment", func() (*models.Commitment, error) {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		commitment, err := uow.CommitmentRepository().GetByID(ctx, commitmentID)
		if err != nil {
			return nil, fmt.Errorf("failed to get commitment: %w", err)
		}
		if commitment == nil {
			return nil, apperrors.NotFound("commitment %s not found", commitmentID)
		}
		return commitment, nil
	})
}

func (s *commitmentService) ListCommitments(ctx context.Context, userID string) ([]*models.Commitment, error) {
	if userID == "" {
		return nil, apperrors.Validation("user id is required")
	}

	return withRetry(ctx, s.retry, "list_commitments", func() ([]*models.Commitment, error) {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		commitments, err := uow.CommitmentRepository().ListByUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to list commitments: %w", err)
		}
		return commitments, nil
	})
}

func settlementOutcome(p payout.CommitmentPayout) string {
	switch {
	case p.Forfeited == 0:
		return observability.OutcomeFullReturn
	case p.Principal == 0:
		return observability.OutcomeForfeit
	default:
		return observability.OutcomePartial
	}
}
