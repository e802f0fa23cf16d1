package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fitpledge/apperrors"
	"fitpledge/config"
	"fitpledge/events"
	"fitpledge/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	currencyUSD            = "usd"
	defaultWithdrawalLimit = 20
	maxWithdrawalLimit     = 100
	withdrawalResendBatch  = 50
)

type paymentService struct {
	uowFactory UnitOfWorkFactory
	retry      RetryPolicy
	now        func() time.Time
}

// NewPaymentService creates a new payment service
func NewPaymentService(uowFactory UnitOfWorkFactory, cfg *config.Config) PaymentService {
	return &paymentService{
		uowFactory: uowFactory,
		retry:      RetryPolicyFromConfig(cfg),
		now:        time.Now,
	}
}

func withdrawalRequested(w *models.Withdrawal) events.WithdrawalRequestedEvent {
	return events.WithdrawalRequestedEvent{
		WithdrawalID: w.ID,
		UserID:       w.UserID,
		Amount:       w.Amount,
		Currency:     currencyUSD,
	}
}

// HandlePaymentConfirmed credits a deposit. The payment event row and the credit commit
// together, so a redelivered webhook can never credit twice.
func (s *paymentService) HandlePaymentConfirmed(ctx context.Context, event models.PaymentEvent) (*models.PaymentResult, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}
	event.Currency = strings.ToLower(event.Currency)

	return withRetry(ctx, s.retry, "payment_confirmed", func() (*models.PaymentResult, error) {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		inserted, err := uow.PaymentEventRepository().Insert(ctx, &event)
		if err != nil {
			return nil, fmt.Errorf("failed to record payment event: %w", err)
		}
		if !inserted {
			log.WithFields(log.Fields{
				"eventID": event.EventID,
				"userID":  event.UserID,
			}).Info("Ignoring duplicate payment event")
			return &models.PaymentResult{Duplicate: true}, nil
		}

		mutation := models.LedgerMutation{
			UserID:          event.UserID,
			DeltaFree:       event.Amount,
			TransactionType: models.TransactionTypeDeposit,
			Metadata: map[string]any{
				"currency":    event.Currency,
				"occurred_at": event.OccurredAt,
			},
		}.Related(event.EventID, models.RelatedTypePaymentEvent)

		ledger, err := ApplyLedgerMutation(ctx, uow, mutation)
		if err != nil {
			return nil, fmt.Errorf("failed to credit deposit: %w", err)
		}

		if err := uow.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}

		log.WithFields(log.Fields{
			"eventID": event.EventID,
			"userID":  event.UserID,
			"amount":  event.Amount,
		}).Info("Deposit credited")

		balances := ledger.Balances()
		return &models.PaymentResult{Balances: &balances}, nil
	})
}

func (s *paymentService) RequestWithdrawal(ctx context.Context, userID string, amount int64) (*models.Withdrawal, error) {
	if userID == "" {
		return nil, apperrors.Validation("user id is required")
	}
	if amount <= 0 {
		return nil, apperrors.Validation("withdrawal amount must be positive, got %d", amount)
	}

	return withRetry(ctx, s.retry, "request_withdrawal", func() (*models.Withdrawal, error) {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		withdrawal := &models.Withdrawal{
			ID:     uuid.New(),
			UserID: userID,
			Amount: amount,
			Status: models.WithdrawalStatusPending,
		}

		mutation := models.LedgerMutation{
			UserID:          userID,
			DeltaFree:       -amount,
			TransactionType: models.TransactionTypeWithdrawal,
		}.Related(withdrawal.ID.String(), models.RelatedTypeWithdrawal)

		if _, err := ApplyLedgerMutation(ctx, uow, mutation); err != nil {
			return nil, fmt.Errorf("failed to debit withdrawal: %w", err)
		}

		if err := uow.WithdrawalRepository().Create(ctx, withdrawal); err != nil {
			return nil, fmt.Errorf("failed to create withdrawal: %w", err)
		}

		if err := uow.EventBus().Publish(withdrawalRequested(withdrawal)); err != nil {
			return nil, fmt.Errorf("failed to queue withdrawal event: %w", err)
		}

		if err := uow.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}

		log.WithFields(log.Fields{
			"withdrawalID": withdrawal.ID,
			"userID":       userID,
			"amount":       amount,
		}).Info("Withdrawal requested")

		return withdrawal, nil
	})
}

func (s *paymentService) HandleWithdrawalResult(ctx context.Context, result models.WithdrawalResult) (bool, error) {
	if result.WithdrawalID == uuid.Nil {
		return false, apperrors.Validation("withdrawal id is required")
	}

	return withRetry(ctx, s.retry, "withdrawal_result", func() (bool, error) {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return false, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		withdrawal, err := uow.WithdrawalRepository().GetByIDForUpdate(ctx, result.WithdrawalID)
		if err != nil {
			return false, fmt.Errorf("failed to get withdrawal: %w", err)
		}
		if withdrawal == nil {
			return false, apperrors.NotFound("withdrawal %s not found", result.WithdrawalID)
		}
		if !withdrawal.IsPending() {
			log.WithFields(log.Fields{
				"withdrawalID": withdrawal.ID,
				"status":       withdrawal.Status,
			}).Info("Ignoring result for settled withdrawal")
			return true, nil
		}

		if result.Success {
			withdrawal.Status = models.WithdrawalStatusCompleted
			if result.TransferReference != "" {
				ref := result.TransferReference
				withdrawal.TransferReference = &ref
			}
		} else {
			withdrawal.Status = models.WithdrawalStatusFailed
			reason := result.FailureReason
			if reason == "" {
				reason = "unspecified"
			}
			withdrawal.FailureReason = &reason

			mutation := models.LedgerMutation{
				UserID:          withdrawal.UserID,
				DeltaFree:       withdrawal.Amount,
				TransactionType: models.TransactionTypeWithdrawalReversal,
				Metadata:        map[string]any{"failure_reason": reason},
			}.Related(withdrawal.ID.String(), models.RelatedTypeWithdrawal)

			if _, err := ApplyLedgerMutation(ctx, uow, mutation); err != nil {
				return false, fmt.Errorf("failed to reverse withdrawal: %w", err)
			}
		}

		if err := uow.WithdrawalRepository().Update(ctx, withdrawal); err != nil {
			return false, fmt.Errorf("failed to update withdrawal: %w", err)
		}

		if err := uow.Commit(); err != nil {
			return false, fmt.Errorf("failed to commit transaction: %w", err)
		}

		log.WithFields(log.Fields{
			"withdrawalID": withdrawal.ID,
			"userID":       withdrawal.UserID,
			"status":       withdrawal.Status,
		}).Info("Withdrawal result applied")

		return false, nil
	})
}

func (s *paymentService) ListWithdrawals(ctx context.Context, userID string, limit int) ([]*models.Withdrawal, error) {
	if userID == "" {
		return nil, apperrors.Validation("user id is required")
	}
	if limit <= 0 {
		limit = defaultWithdrawalLimit
	}
	limit = min(limit, maxWithdrawalLimit)

	return withRetry(ctx, s.retry, "list_withdrawals", func() ([]*models.Withdrawal, error) {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		withdrawals, err := uow.WithdrawalRepository().ListByUser(ctx, userID, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to list withdrawals: %w", err)
		}
		return withdrawals, nil
	})
}

// ResendPendingWithdrawals re-publishes the request for every withdrawal still pending since before
// cutoff. The provider dedupes on withdrawal id, so a request that did arrive is harmless to repeat.
func (s *paymentService) ResendPendingWithdrawals(ctx context.Context, cutoff time.Time) (int, error) {
	return withRetry(ctx, s.retry, "resend_withdrawals", func() (int, error) {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return 0, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		stale, err := uow.WithdrawalRepository().ListPendingRequestedBefore(ctx, cutoff, withdrawalResendBatch)
		if err != nil {
			return 0, fmt.Errorf("failed to list pending withdrawals: %w", err)
		}
		if len(stale) == 0 {
			return 0, nil
		}

		now := s.now().UTC()
		for _, w := range stale {
			if err := uow.WithdrawalRepository().MarkRequested(ctx, w, now); err != nil {
				return 0, fmt.Errorf("failed to mark withdrawal requested: %w", err)
			}
			if err := uow.EventBus().Publish(withdrawalRequested(w)); err != nil {
				return 0, fmt.Errorf("failed to queue withdrawal event: %w", err)
			}
		}

		if err := uow.Commit(); err != nil {
			return 0, fmt.Errorf("failed to commit transaction: %w", err)
		}

		for _, w := range stale {
			log.WithFields(log.Fields{
				"withdrawalID": w.ID,
				"userID":       w.UserID,
				"attempts":     w.RequestAttempts,
			}).Warn("Withdrawal still pending, request sent again")
		}

		return len(stale), nil
	})
}
