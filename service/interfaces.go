package service

import (
	"context"
	"time"

	"fitpledge/events"
	"fitpledge/models"

	"github.com/google/uuid"
)

// LedgerRepository defines the interface for ledger data access
type LedgerRepository interface {
	// Get returns the user's ledger, or nil if the user has none yet
	Get(ctx context.Context, userID string) (*models.Ledger, error)

	// EnsureExists creates an empty ledger for the user if none exists
	EnsureExists(ctx context.Context, userID string) error

	// Apply adds the deltas to the user's buckets in one guarded statement and returns the
	// updated ledger. Fails with InsufficientFunds if either bucket would go negative.
	Apply(ctx context.Context, userID string, deltaFree, deltaInvested int64) (*models.Ledger, error)
}

// BalanceHistoryRepository defines the interface for balance history tracking
type BalanceHistoryRepository interface {
	// Record creates a new balance history entry
	Record(ctx context.Context, history *models.BalanceHistory) error

	// GetByUser returns the most recent balance history for a user
	GetByUser(ctx context.Context, userID string, limit int) ([]*models.BalanceHistory, error)
}

// PaymentEventRepository defines the interface for processed payment webhooks
type PaymentEventRepository interface {
	// Insert records a payment event. Returns false if the event id was already recorded.
	Insert(ctx context.Context, event *models.PaymentEvent) (bool, error)

	// GetByID retrieves a processed payment event
	GetByID(ctx context.Context, eventID string) (*models.PaymentEvent, error)
}

// WithdrawalRepository defines the interface for withdrawal data access
type WithdrawalRepository interface {
	Create(ctx context.Context, withdrawal *models.Withdrawal) error
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	Update(ctx context.Context, withdrawal *models.Withdrawal) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.Withdrawal, error)

	// ListPendingRequestedBefore locks pending withdrawals last sent to the provider at or before cutoff
	ListPendingRequestedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.Withdrawal, error)

	// MarkRequested stamps a pending withdrawal as sent again
	MarkRequested(ctx context.Context, withdrawal *models.Withdrawal, at time.Time) error
}

// CommitmentRepository defines the interface for commitment data access
type CommitmentRepository interface {
	// Create persists a new commitment
	Create(ctx context.Context, commitment *models.Commitment) error

	// GetByID retrieves a commitment by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Commitment, error)

	// GetByIDForUpdate retrieves a commitment and locks its row for the rest of the transaction
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Commitment, error)

	// Update writes the commitment's progress and settlement fields
	Update(ctx context.Context, commitment *models.Commitment) error

	// ListByUser returns a user's commitments, newest period first
	ListByUser(ctx context.Context, userID string) ([]*models.Commitment, error)

	// ListOpenByUserAt returns the user's open commitments whose period contains at
	ListOpenByUserAt(ctx context.Context, userID string, at time.Time) ([]*models.Commitment, error)

	// ListSettleable returns open commitments whose period ended at or before now
	ListSettleable(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)

	// RecordWorkout marks a workout as counted. Returns false if it was already counted.
	RecordWorkout(ctx context.Context, commitmentID uuid.UUID, workoutID string) (bool, error)
}

// ContestRepository defines the interface for contest data access
type ContestRepository interface {
	// Create persists a contest together with its member sub-records
	Create(ctx context.Context, contest *models.Contest, members []*models.ContestMember) error

	// GetByID retrieves a contest by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Contest, error)

	// GetByIDForUpdate retrieves a contest and locks its row
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Contest, error)

	// GetDetail retrieves a contest with all member sub-records
	GetDetail(ctx context.Context, id uuid.UUID) (*models.ContestDetail, error)

	// GetMembers returns the member sub-records in join order
	GetMembers(ctx context.Context, contestID uuid.UUID) ([]*models.ContestMember, error)

	// GetMemberForUpdate retrieves one member sub-record and locks its row
	GetMemberForUpdate(ctx context.Context, contestID uuid.UUID, userID string) (*models.ContestMember, error)

	// Update writes the contest's status, counters and timestamps
	Update(ctx context.Context, contest *models.Contest) error

	// UpdateMember writes a member sub-record's status, progress and payout
	UpdateMember(ctx context.Context, member *models.ContestMember) error

	// ListByUser returns contests the user is a member of
	ListByUser(ctx context.Context, userID string) ([]*models.Contest, error)

	// ListActiveForMemberAt returns active contests where the user is invested and at is in the contest window
	ListActiveForMemberAt(ctx context.Context, userID string, at time.Time) ([]*models.Contest, error)

	// RecordWorkout marks a workout as counted for a contest. Returns false if it was already counted.
	RecordWorkout(ctx context.Context, contestID uuid.UUID, userID, workoutID string) (bool, error)

	// NthCountedWorkoutAt returns the performed-at time of the member's nth earliest counted workout,
	// or nil when fewer than n are counted
	NthCountedWorkoutAt(ctx context.Context, contestID uuid.UUID, userID string, n int) (*time.Time, error)

	// ListExpiredPending returns pending contests whose start date is at or before now
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)

	// ListEnded returns active contests whose end date is at or before now
	ListEnded(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)

	// ListWithUnsettledMembers returns cancelled or completed contests that still hold invested members
	ListWithUnsettledMembers(ctx context.Context, limit int) ([]uuid.UUID, error)
}

// WorkoutRepository defines the interface for ingested workouts
type WorkoutRepository interface {
	// Insert stores a workout. Returns false if a workout with the same id was already stored.
	Insert(ctx context.Context, workout *models.Workout) (bool, error)

	// GetByID retrieves a workout by its ID
	GetByID(ctx context.Context, id string) (*models.Workout, error)
}

// PlatformRepository records money flowing into and out of the platform pool
type PlatformRepository interface {
	// Record stores an entry. Recording the same kind for the same user and entity twice is a no-op.
	Record(ctx context.Context, entry *models.PlatformEntry) error

	// ListByRelated returns entries recorded for an entity
	ListByRelated(ctx context.Context, relatedType models.RelatedType, relatedID string) ([]*models.PlatformEntry, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event) error
}

// LedgerService defines the ledger store operations
type LedgerService interface {
	// Credit adds amount to a bucket, creating the ledger on first credit
	Credit(ctx context.Context, userID string, amount int64, bucket models.Bucket) (*models.Balances, error)

	// Debit subtracts amount from a bucket, failing with InsufficientFunds if the bucket is short
	Debit(ctx context.Context, userID string, amount int64, bucket models.Bucket) (*models.Balances, error)

	// Transfer moves amount between buckets, leaving the total unchanged
	Transfer(ctx context.Context, userID string, amount int64, from, to models.Bucket) (*models.Balances, error)

	// GetBalances returns the user's balances. A user with no ledger has zero balances.
	GetBalances(ctx context.Context, userID string) (*models.Balances, error)

	// Subscribe calls callback with the user's balances after every committed mutation
	Subscribe(userID string, callback func(models.Balances)) (unsubscribe func())

	// History returns the user's most recent balance changes
	History(ctx context.Context, userID string, limit int) ([]*models.BalanceHistory, error)
}

// PaymentService handles deposits and withdrawals reported by the payment provider
type PaymentService interface {
	// HandlePaymentConfirmed credits a confirmed deposit exactly once per event id
	HandlePaymentConfirmed(ctx context.Context, event models.PaymentEvent) (*models.PaymentResult, error)

	// RequestWithdrawal debits free balance and records a pending withdrawal
	RequestWithdrawal(ctx context.Context, userID string, amount int64) (*models.Withdrawal, error)

	// HandleWithdrawalResult completes or fails a pending withdrawal. Results for
	// withdrawals that are no longer pending are reported as duplicates.
	HandleWithdrawalResult(ctx context.Context, result models.WithdrawalResult) (duplicate bool, err error)

	// ListWithdrawals returns a user's most recent withdrawals
	ListWithdrawals(ctx context.Context, userID string, limit int) ([]*models.Withdrawal, error)

	// ResendPendingWithdrawals asks the provider again for withdrawals that have stayed pending
	// since before cutoff. It returns how many were sent.
	ResendPendingWithdrawals(ctx context.Context, cutoff time.Time) (int, error)
}

// CommitmentService defines the investment commitment operations
type CommitmentService interface {
	CreateCommitment(ctx context.Context, userID string, amount int64, workoutCount int, period models.Period) (*models.Commitment, error)
	RecordQualifyingWorkout(ctx context.Context, commitmentID uuid.UUID, workout *models.Workout) (bool, error)
	Settle(ctx context.Context, commitmentID uuid.UUID) (*models.Commitment, error)
	GetCommitment(ctx context.Context, commitmentID uuid.UUID) (*models.Commitment, error)
	ListCommitments(ctx context.Context, userID string) ([]*models.Commitment, error)
}

// ContestService defines the contest pot operations
type ContestService interface {
	CreateContest(ctx context.Context, organizerID, name string, members []string, amountPerMember int64, rules models.ContestRules) (*models.ContestDetail, error)
	Invest(ctx context.Context, contestID uuid.UUID, userID string) (*models.Contest, error)
	Decline(ctx context.Context, contestID uuid.UUID, userID string) (*models.Contest, error)
	Cancel(ctx context.Context, contestID uuid.UUID, organizerID string) (*models.CancelResult, error)
	GetContest(ctx context.Context, contestID uuid.UUID) (*models.ContestDetail, error)
	ListContests(ctx context.Context, userID string) ([]*models.Contest, error)

	// RecordQualifyingWorkout counts a workout toward the member's progress in an active contest
	RecordQualifyingWorkout(ctx context.Context, contestID uuid.UUID, workout *models.Workout) (bool, error)

	// ExpirePending cancels a pending contest whose start date has passed and refunds its members
	ExpirePending(ctx context.Context, contestID uuid.UUID) (*models.CancelResult, error)

	// Complete distributes the pot of an active contest whose end date has passed
	Complete(ctx context.Context, contestID uuid.UUID) (*models.CompletionResult, error)

	// ResumeSettlement finishes refund or payout passes left incomplete on a cancelled or completed contest
	ResumeSettlement(ctx context.Context, contestID uuid.UUID) error
}

// WorkoutService ingests workouts from the workout feed
type WorkoutService interface {
	// IngestWorkout stores a workout and applies it to the owner's open commitments and active contests
	IngestWorkout(ctx context.Context, workout models.Workout) (*models.WorkoutIngestResult, error)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction and flushes pending events
	Commit() error

	// Rollback rolls back the transaction and discards pending events
	Rollback() error

	// Repository getters
	LedgerRepository() LedgerRepository
	BalanceHistoryRepository() BalanceHistoryRepository
	PaymentEventRepository() PaymentEventRepository
	WithdrawalRepository() WithdrawalRepository
	CommitmentRepository() CommitmentRepository
	ContestRepository() ContestRepository
	WorkoutRepository() WorkoutRepository
	PlatformRepository() PlatformRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	// Create creates a new UnitOfWork instance
	Create() UnitOfWork
}
