package repository

import (
	"context"
	"errors"
	"fmt"

	"fitpledge/database"
	"fitpledge/events"
	"fitpledge/service"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	db                 *database.DB
	tx                 pgx.Tx
	ctx                context.Context
	transactionalBus   *events.TransactionalBus
	ledgerRepo         service.LedgerRepository
	balanceHistoryRepo service.BalanceHistoryRepository
	paymentEventRepo   service.PaymentEventRepository
	withdrawalRepo     service.WithdrawalRepository
	commitmentRepo     service.CommitmentRepository
	contestRepo        service.ContestRepository
	workoutRepo        service.WorkoutRepository
	platformRepo       service.PlatformRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory. Committed events go to eventBus
// and, when remote is not nil, to the remote publisher.
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus, remote events.Publisher) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
		remote:   remote,
	}
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus *events.Bus
	remote   events.Publisher
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		transactionalBus: events.NewTransactionalBus(f.eventBus, f.remote),
	}
}

// Begin starts a new READ COMMITTED transaction; correctness relies on row locks and guarded updates
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return translateError(err, "failed to begin transaction")
	}

	u.tx = tx
	u.ctx = ctx

	// Create repositories with the transaction
	u.ledgerRepo = newLedgerRepositoryWithTx(tx)
	u.balanceHistoryRepo = newBalanceHistoryRepositoryWithTx(tx)
	u.paymentEventRepo = newPaymentEventRepositoryWithTx(tx)
	u.withdrawalRepo = newWithdrawalRepositoryWithTx(tx)
	u.commitmentRepo = newCommitmentRepositoryWithTx(tx)
	u.contestRepo = newContestRepositoryWithTx(tx)
	u.workoutRepo = newWorkoutRepositoryWithTx(tx)
	u.platformRepo = newPlatformRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction and flushes pending events
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	u.tx = nil
	if err != nil {
		u.transactionalBus.Discard()
		return translateError(err, "failed to commit transaction")
	}

	u.transactionalBus.Flush()
	return nil
}

// Rollback rolls back the transaction and discards pending events
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	err := u.tx.Rollback(u.ctx)
	u.tx = nil
	u.transactionalBus.Discard()

	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	return nil
}

// LedgerRepository returns the ledger repository for this unit of work
func (u *unitOfWork) LedgerRepository() service.LedgerRepository {
	if u.ledgerRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.ledgerRepo
}

// BalanceHistoryRepository returns the balance history repository for this unit of work
func (u *unitOfWork) BalanceHistoryRepository() service.BalanceHistoryRepository {
	if u.balanceHistoryRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.balanceHistoryRepo
}

// PaymentEventRepository returns the payment event repository for this unit of work
func (u *unitOfWork) PaymentEventRepository() service.PaymentEventRepository {
	if u.paymentEventRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.paymentEventRepo
}

// WithdrawalRepository returns the withdrawal repository for this unit of work
func (u *unitOfWork) WithdrawalRepository() service.WithdrawalRepository {
	if u.withdrawalRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.withdrawalRepo
}

// CommitmentRepository returns the commitment repository for this unit of work
func (u *unitOfWork) CommitmentRepository() service.CommitmentRepository {
	if u.commitmentRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.commitmentRepo
}

// ContestRepository returns the contest repository for this unit of work
func (u *unitOfWork) ContestRepository() service.ContestRepository {
	if u.contestRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.contestRepo
}

// WorkoutRepository returns the workout repository for this unit of work
func (u *unitOfWork) WorkoutRepository() service.WorkoutRepository {
	if u.workoutRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.workoutRepo
}

// PlatformRepository returns the platform ledger repository for this unit of work
func (u *unitOfWork) PlatformRepository() service.PlatformRepository {
	if u.platformRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.platformRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	if u.transactionalBus == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transactionalBus
}
