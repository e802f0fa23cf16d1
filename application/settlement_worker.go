package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fitpledge/apperrors"
	"fitpledge/service"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const settlementBatchSize = 100

// SettlementWorker periodically settles commitments and contests whose deadlines passed and
// re-sends withdrawal requests the provider has not answered
type SettlementWorker struct {
	uowFactory  service.UnitOfWorkFactory
	payments    service.PaymentService
	commitments service.CommitmentService
	contests    service.ContestService
	interval    time.Duration
	resendAfter time.Duration
	now         func() time.Time
}

// SweepResult counts what one settlement sweep did
type SweepResult struct {
	CommitmentsSettled int
	ContestsCompleted  int
	ContestsExpired    int
	ContestsResumed    int
	WithdrawalsResent  int
	Failures           int
}

// NewSettlementWorker creates a new settlement worker
func NewSettlementWorker(uowFactory service.UnitOfWorkFactory, payments service.PaymentService, commitments service.CommitmentService, contests service.ContestService, interval, resendAfter time.Duration) *SettlementWorker {
	return &SettlementWorker{
		uowFactory:  uowFactory,
		payments:    payments,
		commitments: commitments,
		contests:    contests,
		interval:    interval,
		resendAfter: resendAfter,
		now:         time.Now,
	}
}

// Start runs a sweep immediately and then every interval. The returned function stops the worker.
func (w *SettlementWorker) Start(ctx context.Context) func() {
	stopChan := make(chan struct{})

	go func() {
		log.WithField("interval", w.interval).Info("Settlement worker started")

		for {
			result := w.Sweep(ctx)
			if result.Failures > 0 {
				log.WithField("failures", result.Failures).Warn("Settlement sweep finished with failures")
			}

			select {
			case <-ctx.Done():
				log.Info("Settlement worker shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Settlement worker shutting down (stop requested)...")
				return
			case <-time.After(w.interval):
			}
		}
	}()

	return func() {
		close(stopChan)
	}
}

// Sweep runs one pass over every kind of due settlement. Failures are logged and counted; the
// next sweep picks the same records up again.
func (w *SettlementWorker) Sweep(ctx context.Context) SweepResult {
	var result SweepResult
	now := w.now().UTC()

	settleable, err := w.listDue(ctx, func(uow service.UnitOfWork) ([]uuid.UUID, error) {
		return uow.CommitmentRepository().ListSettleable(ctx, now, settlementBatchSize)
	})
	if err != nil {
		log.WithError(err).Error("Failed to list settleable commitments")
		result.Failures++
	}
	for _, id := range settleable {
		if _, err := w.commitments.Settle(ctx, id); err != nil {
			if errors.Is(err, apperrors.ErrInvalidState) {
				continue
			}
			log.WithField("commitmentID", id).WithError(err).Error("Failed to settle commitment")
			result.Failures++
			continue
		}
		result.CommitmentsSettled++
	}

	ended, err := w.listDue(ctx, func(uow service.UnitOfWork) ([]uuid.UUID, error) {
		return uow.ContestRepository().ListEnded(ctx, now, settlementBatchSize)
	})
	if err != nil {
		log.WithError(err).Error("Failed to list ended contests")
		result.Failures++
	}
	for _, id := range ended {
		completion, err := w.contests.Complete(ctx, id)
		if err != nil {
			if errors.Is(err, apperrors.ErrInvalidState) {
				continue
			}
			log.WithField("contestID", id).WithError(err).Error("Failed to complete contest")
			result.Failures++
			continue
		}
		result.ContestsCompleted++
		result.Failures += completion.PendingPayouts
	}

	expired, err := w.listDue(ctx, func(uow service.UnitOfWork) ([]uuid.UUID, error) {
		return uow.ContestRepository().ListExpiredPending(ctx, now, settlementBatchSize)
	})
	if err != nil {
		log.WithError(err).Error("Failed to list expired pending contests")
		result.Failures++
	}
	for _, id := range expired {
		cancelled, err := w.contests.ExpirePending(ctx, id)
		if err != nil {
			if errors.Is(err, apperrors.ErrInvalidState) {
				continue
			}
			log.WithField("contestID", id).WithError(err).Error("Failed to expire pending contest")
			result.Failures++
			continue
		}
		result.ContestsExpired++
		result.Failures += cancelled.PendingRefunds
	}

	unsettled, err := w.listDue(ctx, func(uow service.UnitOfWork) ([]uuid.UUID, error) {
		return uow.ContestRepository().ListWithUnsettledMembers(ctx, settlementBatchSize)
	})
	if err != nil {
		log.WithError(err).Error("Failed to list contests with unsettled members")
		result.Failures++
	}
	for _, id := range unsettled {
		if err := w.contests.ResumeSettlement(ctx, id); err != nil {
			log.WithField("contestID", id).WithError(err).Error("Failed to resume contest settlement")
			result.Failures++
			continue
		}
		result.ContestsResumed++
	}

	resent, err := w.payments.ResendPendingWithdrawals(ctx, now.Add(-w.resendAfter))
	if err != nil {
		log.WithError(err).Error("Failed to resend pending withdrawals")
		result.Failures++
	}
	result.WithdrawalsResent = resent

	log.WithFields(log.Fields{
		"commitmentsSettled": result.CommitmentsSettled,
		"contestsCompleted":  result.ContestsCompleted,
		"contestsExpired":    result.ContestsExpired,
		"contestsResumed":    result.ContestsResumed,
		"withdrawalsResent":  result.WithdrawalsResent,
		"failures":           result.Failures,
	}).Info("Settlement sweep finished")

	return result
}

// listDue runs a read-only query in its own short transaction
func (w *SettlementWorker) listDue(ctx context.Context, query func(service.UnitOfWork) ([]uuid.UUID, error)) ([]uuid.UUID, error) {
	uow := w.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return query(uow)
}
