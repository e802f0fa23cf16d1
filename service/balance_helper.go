package service

import (
	"context"
	"fmt"

	"fitpledge/events"
	"fitpledge/models"
)

// ApplyLedgerMutation changes a user's buckets, records the balance history entry and queues
// a balance change event for after commit. This is the single entry point for all ledger
// changes in the system.
func ApplyLedgerMutation(ctx context.Context, uow UnitOfWork, mutation models.LedgerMutation) (*models.Ledger, error) {
	if mutation.DeltaFree == 0 && mutation.DeltaInvested == 0 {
		return nil, fmt.Errorf("ledger mutation for %s changes nothing", mutation.UserID)
	}

	if err := uow.LedgerRepository().EnsureExists(ctx, mutation.UserID); err != nil {
		return nil, fmt.Errorf("failed to ensure ledger: %w", err)
	}

	ledger, err := uow.LedgerRepository().Apply(ctx, mutation.UserID, mutation.DeltaFree, mutation.DeltaInvested)
	if err != nil {
		return nil, err
	}

	history := &models.BalanceHistory{
		UserID:              mutation.UserID,
		FreeBefore:          ledger.Free - mutation.DeltaFree,
		FreeAfter:           ledger.Free,
		InvestedBefore:      ledger.Invested - mutation.DeltaInvested,
		InvestedAfter:       ledger.Invested,
		ChangeAmount:        mutation.ChangeAmount(),
		TransactionType:     mutation.TransactionType,
		TransactionMetadata: mutation.Metadata,
		RelatedID:           mutation.RelatedID,
		RelatedType:         mutation.RelatedType,
		LedgerVersion:       ledger.Version,
	}
	if err := uow.BalanceHistoryRepository().Record(ctx, history); err != nil {
		return nil, fmt.Errorf("failed to record balance history: %w", err)
	}

	// Flushed after the transaction commits
	event := events.BalanceChangeEvent{
		UserID:          mutation.UserID,
		Balances:        ledger.Balances(),
		TransactionType: mutation.TransactionType,
		ChangeAmount:    mutation.ChangeAmount(),
		DeltaFree:       mutation.DeltaFree,
		DeltaInvested:   mutation.DeltaInvested,
		RelatedID:       mutation.RelatedID,
		RelatedType:     mutation.RelatedType,
	}
	if err := uow.EventBus().Publish(event); err != nil {
		return nil, fmt.Errorf("failed to queue balance change event: %w", err)
	}

	return ledger, nil
}
