package service

import (
	"context"
	"fmt"

	"fitpledge/apperrors"
	"fitpledge/config"
	"fitpledge/events"
	"fitpledge/infrastructure/observability"
	"fitpledge/models"

	log "github.com/sirupsen/logrus"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type ledgerService struct {
	uowFactory UnitOfWorkFactory
	bus        *events.Bus
	retry      RetryPolicy
}

// NewLedgerService creates a new ledger service. Balance subscriptions are served from bus,
// which must be the bus committed units of work flush into.
func NewLedgerService(uowFactory UnitOfWorkFactory, bus *events.Bus, cfg *config.Config) LedgerService {
	return &ledgerService{
		uowFactory: uowFactory,
		bus:        bus,
		retry:      RetryPolicyFromConfig(cfg),
	}
}

// RegisterLedgerMetrics counts every committed ledger mutation
func RegisterLedgerMetrics(bus *events.Bus) (unsubscribe func()) {
	return bus.Subscribe(events.EventTypeBalanceChange, func(ctx context.Context, event events.Event) {
		e, ok := event.(events.BalanceChangeEvent)
		if !ok {
			return
		}
		observability.GetMetrics().RecordLedgerMutation(string(e.TransactionType), e.ChangeAmount)
	})
}

func (s *ledgerService) Credit(ctx context.Context, userID string, amount int64, bucket models.Bucket) (*models.Balances, error) {
	if err := validateBucketAmount(userID, amount, bucket); err != nil {
		return nil, err
	}

	deltaFree, deltaInvested := models.BucketDeltas(bucket, amount)
	return s.mutate(ctx, "credit", models.LedgerMutation{
		UserID:          userID,
		DeltaFree:       deltaFree,
		DeltaInvested:   deltaInvested,
		TransactionType: models.TransactionTypeCredit,
		Metadata:        map[string]any{"bucket": string(bucket)},
	})
}

func (s *ledgerService) Debit(ctx context.Context, userID string, amount int64, bucket models.Bucket) (*models.Balances, error) {
	if err := validateBucketAmount(userID, amount, bucket); err != nil {
		return nil, err
	}

	deltaFree, deltaInvested := models.BucketDeltas(bucket, -amount)
	return s.mutate(ctx, "debit", models.LedgerMutation{
		UserID:          userID,
		DeltaFree:       deltaFree,
		DeltaInvested:   deltaInvested,
		TransactionType: models.TransactionTypeDebit,
		Metadata:        map[string]any{"bucket": string(bucket)},
	})
}

func (s *ledgerService) Transfer(ctx context.Context, userID string, amount int64, from, to models.Bucket) (*models.Balances, error) {
	if err := validateBucketAmount(userID, amount, from); err != nil {
		return nil, err
	}
	if !to.Valid() {
		return nil, apperrors.Validation("unknown bucket %q", to)
	}
	if from == to {
		return nil, apperrors.Validation("cannot transfer from %s to itself", from)
	}

	outFree, outInvested := models.BucketDeltas(from, -amount)
	inFree, inInvested := models.BucketDeltas(to, amount)
	return s.mutate(ctx, "transfer", models.LedgerMutation{
		UserID:          userID,
		DeltaFree:       outFree + inFree,
		DeltaInvested:   outInvested + inInvested,
		TransactionType: models.TransactionTypeTransfer,
		Metadata: map[string]any{
			"from_bucket": string(from),
			"to_bucket":   string(to),
			"amount":      amount,
		},
	})
}

func (s *ledgerService) mutate(ctx context.Context, op string, mutation models.LedgerMutation) (*models.Balances, error) {
	return withRetry(ctx, s.retry, op, func() (*models.Balances, error) {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		ledger, err := ApplyLedgerMutation(ctx, uow, mutation)
		if err != nil {
			return nil, fmt.Errorf("failed to %s ledger: %w", op, err)
		}

		if err := uow.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}

		log.WithFields(log.Fields{
			"userID":        mutation.UserID,
			"operation":     op,
			"deltaFree":     mutation.DeltaFree,
			"deltaInvested": mutation.DeltaInvested,
			"version":       ledger.Version,
		}).Info("Ledger updated")

		balances := ledger.Balances()
		return &balances, nil
	})
}

func (s *ledgerService) GetBalances(ctx context.Context, userID string) (*models.Balances, error) {
	if userID == "" {
		return nil, apperrors.Validation("user id is required")
	}

	return withRetry(ctx, s.retry, "get_balances", func() (*models.Balances, error) {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		ledger, err := uow.LedgerRepository().Get(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to get ledger: %w", err)
		}
		if ledger == nil {
			return &models.Balances{UserID: userID}, nil
		}

		balances := ledger.Balances()
		return &balances, nil
	})
}

// Subscribe delivers balances asynchronously. Callers that care about ordering should drop
// updates whose Version is not newer than the last one they saw.
func (s *ledgerService) Subscribe(userID string, callback func(models.Balances)) func() {
	return s.bus.Subscribe(events.EventTypeBalanceChange, func(ctx context.Context, event events.Event) {
		e, ok := event.(events.BalanceChangeEvent)
		if !ok || e.UserID != userID {
			return
		}
		callback(e.Balances)
	})
}

func (s *ledgerService) History(ctx context.Context, userID string, limit int) ([]*models.BalanceHistory, error) {
	if userID == "" {
		return nil, apperrors.Validation("user id is required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	return withRetry(ctx, s.retry, "history", func() ([]*models.BalanceHistory, error) {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		history, err := uow.BalanceHistoryRepository().GetByUser(ctx, userID, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to get balance history: %w", err)
		}
		return history, nil
	})
}

func validateBucketAmount(userID string, amount int64, bucket models.Bucket) error {
	if userID == "" {
		return apperrors.Validation("user id is required")
	}
	if amount <= 0 {
		return apperrors.Validation("amount must be positive, got %d", amount)
	}
	if !bucket.Valid() {
		return apperrors.Validation("unknown bucket %q", bucket)
	}
	return nil
}
