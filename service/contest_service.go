package service

import (
	"context"
	"fmt"
	"strings"
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

const (
	cancelReasonOrganizer = "cancelled by organizer"
	cancelReasonExpired   = "start date passed before every member invested"
)

type contestService struct {
	uowFactory    UnitOfWorkFactory
	retry         RetryPolicy
	defaultSplits []int
	now           func() time.Time
}

// NewContestService creates a new contest service
func NewContestService(uowFactory UnitOfWorkFactory, cfg *config.Config) ContestService {
	splits := cfg.PodiumSplits
	if len(splits) == 0 {
		splits = payout.DefaultPodiumSplits
	}
	return &contestService{
		uowFactory:    uowFactory,
		retry:         RetryPolicyFromConfig(cfg),
		defaultSplits: splits,
		now:           time.Now,
	}
}

// CreateContest creates a pending contest. The organizer is always the first member and
// duplicate member ids are dropped.
func (s *contestService) CreateContest(ctx context.Context, organizerID, name string, members []string, amountPerMember int64, rules models.ContestRules) (*models.ContestDetail, error) {
	name = strings.TrimSpace(name)
	if organizerID == "" {
		return nil, apperrors.Validation("organizer id is required")
	}
	if name == "" {
		return nil, apperrors.Validation("contest name is required")
	}
	if amountPerMember <= 0 {
		return nil, apperrors.Validation("amount per member must be positive, got %d", amountPerMember)
	}
	rules, err := s.normalizeRules(rules)
	if err != nil {
		return nil, err
	}

	memberIDs := dedupeMembers(organizerID, members)

	return withRetry(ctx, s.retry, "create_contest", func() (*models.ContestDetail, error) {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		contest := &models.Contest{
			ID:                    uuid.New(),
			Name:                  name,
			OrganizerID:           organizerID,
			Status:                models.ContestStatusPending,
			AmountPerMember:       amountPerMember,
			TotalParticipants:     len(memberIDs),
			ActivityType:          rules.ActivityType,
			MinDistanceMiles:      rules.MinDistanceMiles,
			MaxPaceMinutesPerMile: rules.MaxPaceMinutesPerMile,
			RequiredWorkouts:      rules.RequiredWorkouts,
			StartsAt:              rules.StartsAt,
			EndsAt:                rules.EndsAt,
			PayoutScheme:          rules.PayoutScheme,
			PodiumSplits:          rules.PodiumSplits,
		}

		rows := make([]*models.ContestMember, 0, len(memberIDs))
		for i, id := range memberIDs {
			rows = append(rows, &models.ContestMember{
				UserID:    id,
				JoinOrder: i,
				Status:    models.MemberStatusPending,
				Amount:    amountPerMember,
			})
		}

		if err := uow.ContestRepository().Create(ctx, contest, rows); err != nil {
			return nil, fmt.Errorf("failed to create contest: %w", err)
		}

		if err := uow.EventBus().Publish(events.ContestStateChangeEvent{
			ContestID: contest.ID,
			NewState:  models.ContestStatusPending,
			Reason:    "created",
		}); err != nil {
			return nil, fmt.Errorf("failed to queue contest event: %w", err)
		}

		if err := uow.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}

		log.WithFields(log.Fields{
			"contestID":       contest.ID,
			"organizerID":     organizerID,
			"members":         len(rows),
			"amountPerMember": amountPerMember,
			"payoutScheme":    contest.PayoutScheme,
		}).Info("Contest created")

		return &models.ContestDetail{Contest: contest, Members: rows}, nil
	})
}

func (s *contestService) normalizeRules(rules models.ContestRules) (models.ContestRules, error) {
	if rules.ActivityType != models.ActivityRunning && rules.ActivityType != models.ActivityCycling {
		return rules, apperrors.Validation("activity type must be running or cycling, got %q", rules.ActivityType)
	}
	if rules.RequiredWorkouts <= 0 {
		return rules, apperrors.Validation("required workouts must be positive")
	}
	if rules.MinDistanceMiles <= 0 || rules.MaxPaceMinutesPerMile <= 0 {
		return rules, apperrors.Validation("minimum distance and maximum pace must be positive")
	}
	if !rules.StartsAt.After(s.now()) {
		return rules, apperrors.Validation("contest must start in the future")
	}
	if !rules.EndsAt.After(rules.StartsAt) {
		return rules, apperrors.Validation("contest must end after it starts")
	}

	switch rules.PayoutScheme {
	case "", models.PayoutSchemePodium:
		rules.PayoutScheme = models.PayoutSchemePodium
		if len(rules.PodiumSplits) == 0 {
			rules.PodiumSplits = append([]int(nil), s.defaultSplits...)
		}
		if err := payout.ValidatePodiumSplits(rules.PodiumSplits); err != nil {
			return rules, apperrors.Validation("%v", err)
		}
	case models.PayoutSchemeProrate:
		rules.PodiumSplits = nil
	default:
		return rules, apperrors.Validation("unknown payout scheme %q", rules.PayoutScheme)
	}

	return rules, nil
}

func dedupeMembers(organizerID string, members []string) []string {
	seen := map[string]bool{organizerID: true}
	out := []string{organizerID}
	for _, m := range members {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// Invest moves the member's stake into the pot. Locks are taken contest first, then member,
// then ledger. The contest activates when the last member invests.
func (s *contestService) Invest(ctx context.Context, contestID uuid.UUID, userID string) (*models.Contest, error) {
	var activated bool
	contest, err := withRetry(ctx, s.retry, "invest", func() (*models.Contest, error) {
		activated = false

		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		contest, err := s.lockContest(ctx, uow, contestID)
		if err != nil {
			return nil, err
		}
		if !contest.IsPending() {
			return nil, apperrors.InvalidState("contest %s is %s, not pending", contestID, contest.Status)
		}

		member, err := uow.ContestRepository().GetMemberForUpdate(ctx, contestID, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to get contest member: %w", err)
		}
		if member == nil {
			return nil, apperrors.Unauthorized("user %s is not a member of contest %s", userID, contestID)
		}
		if member.Status != models.MemberStatusPending {
			return nil, apperrors.InvalidState("member %s of contest %s is already %s", userID, contestID, member.Status)
		}

		mutation := models.LedgerMutation{
			UserID:          userID,
			DeltaFree:       -member.Amount,
			DeltaInvested:   member.Amount,
			TransactionType: models.TransactionTypeContestInvest,
			Metadata:        map[string]any{"contest_name": contest.Name},
		}.Related(contestID.String(), models.RelatedTypeContest)

		if _, err := ApplyLedgerMutation(ctx, uow, mutation); err != nil {
			return nil, fmt.Errorf("failed to invest in contest: %w", err)
		}

		now := s.now()
		member.Status = models.MemberStatusInvested
		member.InvestedAt = &now
		member.RespondedAt = &now
		if err := uow.ContestRepository().UpdateMember(ctx, member); err != nil {
			return nil, fmt.Errorf("failed to update contest member: %w", err)
		}

		contest.InvestedParticipants++
		contest.TotalPot += member.Amount
		if contest.AllInvested() {
			contest.Status = models.ContestStatusActive
			activated = true
			if err := uow.EventBus().Publish(events.ContestStateChangeEvent{
				ContestID: contest.ID,
				OldState:  models.ContestStatusPending,
				NewState:  models.ContestStatusActive,
				TotalPot:  contest.TotalPot,
				Reason:    "all members invested",
			}); err != nil {
				return nil, fmt.Errorf("failed to queue contest event: %w", err)
			}
		}
		if err := uow.ContestRepository().Update(ctx, contest); err != nil {
			return nil, fmt.Errorf("failed to update contest: %w", err)
		}

		if err := uow.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}

		log.WithFields(log.Fields{
			"contestID": contestID,
			"userID":    userID,
			"invested":  contest.InvestedParticipants,
			"members":   contest.TotalParticipants,
			"totalPot":  contest.TotalPot,
		}).Info("Member invested in contest")

		return contest, nil
	})
	if err != nil {
		return nil, err
	}

	if activated {
		observability.GetMetrics().RecordContestTransition(string(models.ContestStatusPending), string(models.ContestStatusActive))
	}
	return contest, nil
}

// Decline marks a pending member as declined. The contest can then no longer activate and is
// cancelled with refunds once its start date passes, unless the organizer cancels it earlier.
func (s *contestService) Decline(ctx context.Context, contestID uuid.UUID, userID string) (*models.Contest, error) {
	return withRetry(ctx, s.retry, "decline", func() (*models.Contest, error) {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		contest, err := s.lockContest(ctx, uow, contestID)
		if err != nil {
			return nil, err
		}
		if !contest.IsPending() {
			return nil, apperrors.InvalidState("contest %s is %s, not pending", contestID, contest.Status)
		}

		member, err := uow.ContestRepository().GetMemberForUpdate(ctx, contestID, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to get contest member: %w", err)
		}
		if member == nil {
			return nil, apperrors.Unauthorized("user %s is not a member of contest %s", userID, contestID)
		}
		if member.Status != models.MemberStatusPending {
			return nil, apperrors.InvalidState("member %s of contest %s is already %s", userID, contestID, member.Status)
		}

		now := s.now()
		member.Status = models.MemberStatusDeclined
		member.RespondedAt = &now
		if err := uow.ContestRepository().UpdateMember(ctx, member); err != nil {
			return nil, fmt.Errorf("failed to update contest member: %w", err)
		}

		if err := uow.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}

		log.WithFields(log.Fields{
			"contestID": contestID,
			"userID":    userID,
		}).Info("Member declined contest")

		return contest, nil
	})
}

// Cancel cancels a pending contest and refunds every invested member. Cancelling an already
// cancelled contest resumes an unfinished refund pass.
func (s *contestService) Cancel(ctx context.Context, contestID uuid.UUID, organizerID string) (*models.CancelResult, error) {
	contest, err := s.transitionToCancelled(ctx, contestID, func(c *models.Contest) error {
		if !c.IsOrganizer(organizerID) {
			return apperrors.Unauthorized("only the organizer can cancel contest %s", contestID)
		}
		return nil
	}, cancelReasonOrganizer)
	if err != nil {
		return nil, err
	}
	return s.refundPass(ctx, contest)
}

// ExpirePending cancels a pending contest whose start date has passed
func (s *contestService) ExpirePending(ctx context.Context, contestID uuid.UUID) (*models.CancelResult, error) {
	contest, err := s.transitionToCancelled(ctx, contestID, func(c *models.Contest) error {
		if c.IsPending() && c.StartsAt.After(s.now()) {
			return apperrors.InvalidState("contest %s has not reached its start date", contestID)
		}
		return nil
	}, cancelReasonExpired)
	if err != nil {
		return nil, err
	}
	return s.refundPass(ctx, contest)
}

// transitionToCancelled flips a pending contest to cancelled under its row lock. A contest that
// is already cancelled is returned unchanged so the caller can resume its refund pass.
func (s *contestService) transitionToCancelled(ctx context.Context, contestID uuid.UUID, check func(*models.Contest) error, reason string) (*models.Contest, error) {
	var flipped bool
	contest, err := withRetry(ctx, s.retry, "cancel_contest", func() (*models.Contest, error) {
		flipped = false

		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		contest, err := s.lockContest(ctx, uow, contestID)
		if err != nil {
			return nil, err
		}
		if err := check(contest); err != nil {
			return nil, err
		}
		if contest.Status == models.ContestStatusCancelled {
			return contest, nil
		}
		if !contest.IsPending() {
			return nil, apperrors.InvalidState("contest %s is %s, not pending", contestID, contest.Status)
		}

		now := s.now()
		contest.Status = models.ContestStatusCancelled
		contest.CancelReason = &reason
		contest.CancelledAt = &now
		if err := uow.ContestRepository().Update(ctx, contest); err != nil {
			return nil, fmt.Errorf("failed to update contest: %w", err)
		}

		if err := uow.EventBus().Publish(events.ContestStateChangeEvent{
			ContestID: contest.ID,
			OldState:  models.ContestStatusPending,
			NewState:  models.ContestStatusCancelled,
			TotalPot:  contest.TotalPot,
			Reason:    reason,
		}); err != nil {
			return nil, fmt.Errorf("failed to queue contest event: %w", err)
		}

		if err := uow.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		flipped = true
		return contest, nil
	})
	if err != nil {
		return nil, err
	}

	if flipped {
		observability.GetMetrics().RecordContestTransition(string(models.ContestStatusPending), string(models.ContestStatusCancelled))
		log.WithFields(log.Fields{
			"contestID": contestID,
			"reason":    reason,
			"invested":  contest.InvestedParticipants,
		}).Info("Contest cancelled")
	}
	return contest, nil
}

// refundPass refunds every invested member of a cancelled contest, one transaction per member.
// Members whose refund fails stay invested and are reported as pending.
func (s *contestService) refundPass(ctx context.Context, contest *models.Contest) (*models.CancelResult, error) {
	members, err := s.loadMembers(ctx, contest.ID)
	if err != nil {
		return nil, err
	}

	result := &models.CancelResult{Contest: contest}
	for _, m := range members {
		switch m.Status {
		case models.MemberStatusRefunded:
			result.RefundedMembers++
			result.TotalRefunded += m.Amount
		case models.MemberStatusInvested:
			refunded, err := s.settleMember(ctx, contest, m.UserID, func(member *models.ContestMember) (int64, models.TransactionType, error) {
				return member.Amount, models.TransactionTypeContestRefund, nil
			}, models.MemberStatusRefunded)
			if err != nil {
				log.WithFields(log.Fields{
					"contestID": contest.ID,
					"userID":    m.UserID,
				}).WithError(err).Error("Failed to refund contest member")
				result.PendingRefunds++
				continue
			}
			if refunded {
				result.RefundedMembers++
				result.TotalRefunded += m.Amount
			}
		}
	}

	log.WithFields(log.Fields{
		"contestID":     contest.ID,
		"refunded":      result.RefundedMembers,
		"totalRefunded": result.TotalRefunded,
		"pending":       result.PendingRefunds,
	}).Info("Contest refund pass finished")

	return result, nil
}

// Complete decides the shares of an ended contest and pays every invested member. Calling it
// again on a completed contest resumes an unfinished payout pass.
func (s *contestService) Complete(ctx context.Context, contestID uuid.UUID) (*models.CompletionResult, error) {
	var flipped bool
	contest, err := withRetry(ctx, s.retry, "complete_contest", func() (*models.Contest, error) {
		flipped = false

		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		contest, err := s.lockContest(ctx, uow, contestID)
		if err != nil {
			return nil, err
		}
		if contest.Status == models.ContestStatusCompleted {
			return contest, nil
		}
		if !contest.IsActive() {
			return nil, apperrors.InvalidState("contest %s is %s, not active", contestID, contest.Status)
		}
		if s.now().Before(contest.EndsAt) {
			return nil, apperrors.InvalidState("contest %s has not ended yet", contestID)
		}

		members, err := uow.ContestRepository().GetMembers(ctx, contestID)
		if err != nil {
			return nil, fmt.Errorf("failed to get contest members: %w", err)
		}

		shares, err := s.computeShares(contest, members)
		if err != nil {
			return nil, err
		}

		for _, m := range members {
			share, ok := shares[m.UserID]
			if !ok || m.Status != models.MemberStatusInvested {
				continue
			}
			m.PayoutAmount = &share
			if err := uow.ContestRepository().UpdateMember(ctx, m); err != nil {
				return nil, fmt.Errorf("failed to record payout for member %s: %w", m.UserID, err)
			}
		}

		now := s.now()
		contest.Status = models.ContestStatusCompleted
		contest.CompletedAt = &now
		if err := uow.ContestRepository().Update(ctx, contest); err != nil {
			return nil, fmt.Errorf("failed to update contest: %w", err)
		}

		if err := uow.EventBus().Publish(events.ContestStateChangeEvent{
			ContestID: contest.ID,
			OldState:  models.ContestStatusActive,
			NewState:  models.ContestStatusCompleted,
			TotalPot:  contest.TotalPot,
			Reason:    "end date reached",
		}); err != nil {
			return nil, fmt.Errorf("failed to queue contest event: %w", err)
		}

		if err := uow.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		flipped = true
		return contest, nil
	})
	if err != nil {
		return nil, err
	}

	if flipped {
		observability.GetMetrics().RecordContestTransition(string(models.ContestStatusActive), string(models.ContestStatusCompleted))
		log.WithFields(log.Fields{
			"contestID": contestID,
			"totalPot":  contest.TotalPot,
			"scheme":    contest.PayoutScheme,
		}).Info("Contest completed")
	}
	return s.payoutPass(ctx, contest)
}

func (s *contestService) computeShares(contest *models.Contest, members []*models.ContestMember) (map[string]int64, error) {
	var results []payout.MemberResult
	for _, m := range members {
		if m.Status != models.MemberStatusInvested {
			continue
		}
		results = append(results, payout.MemberResult{
			UserID:           m.UserID,
			Stake:            m.Amount,
			Completed:        m.CompletedWorkouts,
			RequirementMetAt: m.RequirementMetAt,
			JoinOrder:        m.JoinOrder,
		})
	}

	switch contest.PayoutScheme {
	case models.PayoutSchemeProrate:
		return payout.Prorate(results, contest.RequiredWorkouts), nil
	case models.PayoutSchemePodium:
		shares, err := payout.Podium(results, contest.RequiredWorkouts, contest.PodiumSplits)
		if err != nil {
			return nil, apperrors.DataIntegrity("contest %s: %v", contest.ID, err)
		}
		return shares, nil
	default:
		return nil, apperrors.DataIntegrity("contest %s has unknown payout scheme %q", contest.ID, contest.PayoutScheme)
	}
}

// payoutPass pays each invested member of a completed contest the share recorded at completion
func (s *contestService) payoutPass(ctx context.Context, contest *models.Contest) (*models.CompletionResult, error) {
	members, err := s.loadMembers(ctx, contest.ID)
	if err != nil {
		return nil, err
	}

	result := &models.CompletionResult{Contest: contest, Payouts: make(map[string]int64)}
	for _, m := range members {
		switch m.Status {
		case models.MemberStatusPaidOut:
			if m.PayoutAmount != nil {
				result.PaidMembers++
				result.TotalPaid += *m.PayoutAmount
				result.Payouts[m.UserID] = *m.PayoutAmount
			}
		case models.MemberStatusInvested:
			paid, err := s.settleMember(ctx, contest, m.UserID, func(member *models.ContestMember) (int64, models.TransactionType, error) {
				if member.PayoutAmount == nil {
					return 0, "", apperrors.DataIntegrity("member %s of completed contest %s has no payout", member.UserID, contest.ID)
				}
				return *member.PayoutAmount, models.TransactionTypeContestPayout, nil
			}, models.MemberStatusPaidOut)
			if err != nil {
				log.WithFields(log.Fields{
					"contestID": contest.ID,
					"userID":    m.UserID,
				}).WithError(err).Error("Failed to pay out contest member")
				result.PendingPayouts++
				continue
			}
			if paid && m.PayoutAmount != nil {
				result.PaidMembers++
				result.TotalPaid += *m.PayoutAmount
				result.Payouts[m.UserID] = *m.PayoutAmount
			}
		}
	}

	log.WithFields(log.Fields{
		"contestID": contest.ID,
		"paid":      result.PaidMembers,
		"totalPaid": result.TotalPaid,
		"pending":   result.PendingPayouts,
	}).Info("Contest payout pass finished")

	return result, nil
}

// settleMember releases one invested member's stake in its own transaction: the stake leaves
// invested and amountFor decides how much lands in free. Returns false if the member was no
// longer invested.
func (s *contestService) settleMember(
	ctx context.Context,
	contest *models.Contest,
	userID string,
	amountFor func(*models.ContestMember) (int64, models.TransactionType, error),
	status models.MemberStatus,
) (bool, error) {
	return withRetry(ctx, s.retry, "settle_contest_member", func() (bool, error) {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return false, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		member, err := uow.ContestRepository().GetMemberForUpdate(ctx, contest.ID, userID)
		if err != nil {
			return false, fmt.Errorf("failed to get contest member: %w", err)
		}
		if member == nil || member.Status != models.MemberStatusInvested {
			return false, nil
		}

		amount, txType, err := amountFor(member)
		if err != nil {
			return false, err
		}

		mutation := models.LedgerMutation{
			UserID:          userID,
			DeltaFree:       amount,
			DeltaInvested:   -member.Amount,
			TransactionType: txType,
			Metadata: map[string]any{
				"contest_name":       contest.Name,
				"stake":              member.Amount,
				"completed_workouts": member.CompletedWorkouts,
			},
		}.Related(contest.ID.String(), models.RelatedTypeContest)

		if _, err := ApplyLedgerMutation(ctx, uow, mutation); err != nil {
			return false, fmt.Errorf("failed to release contest stake: %w", err)
		}

		now := s.now()
		member.Status = status
		member.PayoutAmount = &amount
		member.SettledAt = &now
		if err := uow.ContestRepository().UpdateMember(ctx, member); err != nil {
			return false, fmt.Errorf("failed to update contest member: %w", err)
		}

		if err := uow.Commit(); err != nil {
			return false, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return true, nil
	})
}

// ResumeSettlement finishes the refund or payout pass of a cancelled or completed contest
func (s *contestService) ResumeSettlement(ctx context.Context, contestID uuid.UUID) error {
	detail, err := s.GetContest(ctx, contestID)
	if err != nil {
		return err
	}

	switch detail.Contest.Status {
	case models.ContestStatusCancelled:
		result, err := s.refundPass(ctx, detail.Contest)
		if err != nil {
			return err
		}
		if result.PendingRefunds > 0 {
			return fmt.Errorf("contest %s still has %d pending refunds", contestID, result.PendingRefunds)
		}
	case models.ContestStatusCompleted:
		result, err := s.payoutPass(ctx, detail.Contest)
		if err != nil {
			return err
		}
		if result.PendingPayouts > 0 {
			return fmt.Errorf("contest %s still has %d pending payouts", contestID, result.PendingPayouts)
		}
	default:
		return apperrors.InvalidState("contest %s is %s and has nothing to settle", contestID, detail.Contest.Status)
	}
	return nil
}

// RecordQualifyingWorkout counts workout for its owner in an active contest. It returns false
// without error when the workout does not count.
func (s *contestService) RecordQualifyingWorkout(ctx context.Context, contestID uuid.UUID, workout *models.Workout) (bool, error) {
	if workout == nil {
		return false, apperrors.Validation("workout is required")
	}
	if err := workout.Validate(); err != nil {
		return false, err
	}

	return withRetry(ctx, s.retry, "record_contest_workout", func() (bool, error) {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return false, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		contest, err := s.lockContest(ctx, uow, contestID)
		if err != nil {
			return false, err
		}
		if !contest.IsActive() || !contest.InWindow(workout.PerformedAt) {
			return false, nil
		}
		if !qualification.Qualifies(*workout, qualification.ContestRule(contest)) {
			return false, nil
		}

		member, err := uow.ContestRepository().GetMemberForUpdate(ctx, contestID, workout.UserID)
		if err != nil {
			return false, fmt.Errorf("failed to get contest member: %w", err)
		}
		if member == nil || member.Status != models.MemberStatusInvested {
			return false, nil
		}

		if _, err := uow.WorkoutRepository().Insert(ctx, workout); err != nil {
			return false, fmt.Errorf("failed to store workout: %w", err)
		}
		fresh, err := uow.ContestRepository().RecordWorkout(ctx, contestID, workout.UserID, workout.ID)
		if err != nil {
			return false, fmt.Errorf("failed to record contest workout: %w", err)
		}
		if !fresh {
			return false, nil
		}

		member.CompletedWorkouts++
		if member.CompletedWorkouts >= contest.RequiredWorkouts {
			// Workouts can arrive out of order, so the stamp is always the time of the
			// requiredth earliest counted workout.
			metAt, err := uow.ContestRepository().NthCountedWorkoutAt(ctx, contestID, workout.UserID, contest.RequiredWorkouts)
			if err != nil {
				return false, fmt.Errorf("failed to find when requirement was met: %w", err)
			}
			member.RequirementMetAt = metAt
		}
		if err := uow.ContestRepository().UpdateMember(ctx, member); err != nil {
			return false, fmt.Errorf("failed to update contest member: %w", err)
		}

		if err := uow.Commit(); err != nil {
			return false, fmt.Errorf("failed to commit transaction: %w", err)
		}

		log.WithFields(log.Fields{
			"contestID": contestID,
			"userID":    workout.UserID,
			"workoutID": workout.ID,
			"completed": member.CompletedWorkouts,
			"required":  contest.RequiredWorkouts,
		}).Info("Workout counted toward contest")

		return true, nil
	})
}

func (s *contestService) GetContest(ctx context.Context, contestID uuid.UUID) (*models.ContestDetail, error) {
	return withRetry(ctx, s.retry, "get_contest", func() (*models.ContestDetail, error) {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		detail, err := uow.ContestRepository().GetDetail(ctx, contestID)
		if err != nil {
			return nil, fmt.Errorf("failed to get contest: %w", err)
		}
		if detail == nil {
			return nil, apperrors.NotFound("contest %s not found", contestID)
		}
		return detail, nil
	})
}

func (s *contestService) ListContests(ctx context.Context, userID string) ([]*models.Contest, error) {
	if userID == "" {
		return nil, apperrors.Validation("user id is required")
	}

	return withRetry(ctx, s.retry, "list_contests", func() ([]*models.Contest, error) {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		contests, err := uow.ContestRepository().ListByUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to list contests: %w", err)
		}
		return contests, nil
	})
}

func (s *contestService) lockContest(ctx context.Context, uow UnitOfWork, contestID uuid.UUID) (*models.Contest, error) {
	contest, err := uow.ContestRepository().GetByIDForUpdate(ctx, contestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get contest: %w", err)
	}
	if contest == nil {
		return nil, apperrors.NotFound("contest %s not found", contestID)
	}
	return contest, nil
}

func (s *contestService) loadMembers(ctx context.Context, contestID uuid.UUID) ([]*models.ContestMember, error) {
	return withRetry(ctx, s.retry, "get_contest_members", func() ([]*models.ContestMember, error) {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		members, err := uow.ContestRepository().GetMembers(ctx, contestID)
		if err != nil {
			return nil, fmt.Errorf("failed to get contest members: %w", err)
		}
		return members, nil
	})
}
