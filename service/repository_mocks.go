package service

import (
	"context"
	"time"

	"fitpledge/events"
	"fitpledge/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}

// MockUnitOfWork is a mock implementation of UnitOfWork. Repository getters return the
// repositories installed with SetRepositories and are not recorded as calls.
type MockUnitOfWork struct {
	mock.Mock

	Ledgers     LedgerRepository
	History     BalanceHistoryRepository
	Payments    PaymentEventRepository
	Withdrawals WithdrawalRepository
	Commitments CommitmentRepository
	Contests    ContestRepository
	Workouts    WorkoutRepository
	Platform    PlatformRepository
	Events      EventPublisher
}

// MockRepositories bundles the repositories handed out by a MockUnitOfWork
type MockRepositories struct {
	Ledgers     *MockLedgerRepository
	History     *MockBalanceHistoryRepository
	Payments    *MockPaymentEventRepository
	Withdrawals *MockWithdrawalRepository
	Commitments *MockCommitmentRepository
	Contests    *MockContestRepository
	Workouts    *MockWorkoutRepository
	Platform    *MockPlatformRepository
	Events      *MockEventPublisher
}

// NewMockRepositories creates a fresh set of repository mocks
func NewMockRepositories() *MockRepositories {
	return &MockRepositories{
		Ledgers:     new(MockLedgerRepository),
		History:     new(MockBalanceHistoryRepository),
		Payments:    new(MockPaymentEventRepository),
		Withdrawals: new(MockWithdrawalRepository),
		Commitments: new(MockCommitmentRepository),
		Contests:    new(MockContestRepository),
		Workouts:    new(MockWorkoutRepository),
		Platform:    new(MockPlatformRepository),
		Events:      new(MockEventPublisher),
	}
}

// AssertExpectations asserts the expectations of every repository mock
func (r *MockRepositories) AssertExpectations(t mock.TestingT) {
	r.Ledgers.AssertExpectations(t)
	r.History.AssertExpectations(t)
	r.Payments.AssertExpectations(t)
	r.Withdrawals.AssertExpectations(t)
	r.Commitments.AssertExpectations(t)
	r.Contests.AssertExpectations(t)
	r.Workouts.AssertExpectations(t)
	r.Platform.AssertExpectations(t)
	r.Events.AssertExpectations(t)
}

// SetRepositories installs the repositories returned by the getters
func (m *MockUnitOfWork) SetRepositories(repos *MockRepositories) {
	m.Ledgers = repos.Ledgers
	m.History = repos.History
	m.Payments = repos.Payments
	m.Withdrawals = repos.Withdrawals
	m.Commitments = repos.Commitments
	m.Contests = repos.Contests
	m.Workouts = repos.Workouts
	m.Platform = repos.Platform
	m.Events = repos.Events
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) LedgerRepository() LedgerRepository                 { return m.Ledgers }
func (m *MockUnitOfWork) BalanceHistoryRepository() BalanceHistoryRepository { return m.History }
func (m *MockUnitOfWork) PaymentEventRepository() PaymentEventRepository     { return m.Payments }
func (m *MockUnitOfWork) WithdrawalRepository() WithdrawalRepository         { return m.Withdrawals }
func (m *MockUnitOfWork) CommitmentRepository() CommitmentRepository         { return m.Commitments }
func (m *MockUnitOfWork) ContestRepository() ContestRepository               { return m.Contests }
func (m *MockUnitOfWork) WorkoutRepository() WorkoutRepository               { return m.Workouts }
func (m *MockUnitOfWork) PlatformRepository() PlatformRepository             { return m.Platform }
func (m *MockUnitOfWork) EventBus() EventPublisher                           { return m.Events }

// MockLedgerRepository is a mock implementation of LedgerRepository
type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Get(ctx context.Context, userID string) (*models.Ledger, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ledger), args.Error(1)
}

func (m *MockLedgerRepository) EnsureExists(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockLedgerRepository) Apply(ctx context.Context, userID string, deltaFree, deltaInvested int64) (*models.Ledger, error) {
	args := m.Called(ctx, userID, deltaFree, deltaInvested)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ledger), args.Error(1)
}

// MockBalanceHistoryRepository is a mock implementation of BalanceHistoryRepository
type MockBalanceHistoryRepository struct {
	mock.Mock
}

func (m *MockBalanceHistoryRepository) Record(ctx context.Context, history *models.BalanceHistory) error {
	args := m.Called(ctx, history)
	return args.Error(0)
}

func (m *MockBalanceHistoryRepository) GetByUser(ctx context.Context, userID string, limit int) ([]*models.BalanceHistory, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BalanceHistory), args.Error(1)
}

// MockPaymentEventRepository is a mock implementation of PaymentEventRepository
type MockPaymentEventRepository struct {
	mock.Mock
}

func (m *MockPaymentEventRepository) Insert(ctx context.Context, event *models.PaymentEvent) (bool, error) {
	args := m.Called(ctx, event)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentEventRepository) GetByID(ctx context.Context, eventID string) (*models.PaymentEvent, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentEvent), args.Error(1)
}

// MockWithdrawalRepository is a mock implementation of WithdrawalRepository
type MockWithdrawalRepository struct {
	mock.Mock
}

func (m *MockWithdrawalRepository) Create(ctx context.Context, withdrawal *models.Withdrawal) error {
	args := m.Called(ctx, withdrawal)
	return args.Error(0)
}

func (m *MockWithdrawalRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Withdrawal), args.Error(1)
}

func (m *MockWithdrawalRepository) Update(ctx context.Context, withdrawal *models.Withdrawal) error {
	args := m.Called(ctx, withdrawal)
	return args.Error(0)
}

func (m *MockWithdrawalRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.Withdrawal, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Withdrawal), args.Error(1)
}

func (m *MockWithdrawalRepository) ListPendingRequestedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.Withdrawal, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Withdrawal), args.Error(1)
}

func (m *MockWithdrawalRepository) MarkRequested(ctx context.Context, withdrawal *models.Withdrawal, at time.Time) error {
	args := m.Called(ctx, withdrawal, at)
	return args.Error(0)
}

// MockCommitmentRepository is a mock implementation of CommitmentRepository
type MockCommitmentRepository struct {
	mock.Mock
}

func (m *MockCommitmentRepository) Create(ctx context.Context, commitment *models.Commitment) error {
	args := m.Called(ctx, commitment)
	return args.Error(0)
}

func (m *MockCommitmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Commitment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Commitment), args.Error(1)
}

func (m *MockCommitmentRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Commitment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Commitment), args.Error(1)
}

func (m *MockCommitmentRepository) Update(ctx context.Context, commitment *models.Commitment) error {
	args := m.Called(ctx, commitment)
	return args.Error(0)
}

func (m *MockCommitmentRepository) ListByUser(ctx context.Context, userID string) ([]*models.Commitment, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Commitment), args.Error(1)
}

func (m *MockCommitmentRepository) ListOpenByUserAt(ctx context.Context, userID string, at time.Time) ([]*models.Commitment, error) {
	args := m.Called(ctx, userID, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Commitment), args.Error(1)
}

func (m *MockCommitmentRepository) ListSettleable(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockCommitmentRepository) RecordWorkout(ctx context.Context, commitmentID uuid.UUID, workoutID string) (bool, error) {
	args := m.Called(ctx, commitmentID, workoutID)
	return args.Bool(0), args.Error(1)
}

// MockContestRepository is a mock implementation of ContestRepository
type MockContestRepository struct {
	mock.Mock
}

func (m *MockContestRepository) Create(ctx context.Context, contest *models.Contest, members []*models.ContestMember) error {
	args := m.Called(ctx, contest, members)
	return args.Error(0)
}

func (m *MockContestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Contest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contest), args.Error(1)
}

func (m *MockContestRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Contest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contest), args.Error(1)
}

func (m *MockContestRepository) GetDetail(ctx context.Context, id uuid.UUID) (*models.ContestDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ContestDetail), args.Error(1)
}

func (m *MockContestRepository) GetMembers(ctx context.Context, contestID uuid.UUID) ([]*models.ContestMember, error) {
	args := m.Called(ctx, contestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ContestMember), args.Error(1)
}

func (m *MockContestRepository) GetMemberForUpdate(ctx context.Context, contestID uuid.UUID, userID string) (*models.ContestMember, error) {
	args := m.Called(ctx, contestID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ContestMember), args.Error(1)
}

func (m *MockContestRepository) Update(ctx context.Context, contest *models.Contest) error {
	args := m.Called(ctx, contest)
	return args.Error(0)
}

func (m *MockContestRepository) UpdateMember(ctx context.Context, member *models.ContestMember) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

func (m *MockContestRepository) ListByUser(ctx context.Context, userID string) ([]*models.Contest, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Contest), args.Error(1)
}

func (m *MockContestRepository) ListActiveForMemberAt(ctx context.Context, userID string, at time.Time) ([]*models.Contest, error) {
	args := m.Called(ctx, userID, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Contest), args.Error(1)
}

func (m *MockContestRepository) RecordWorkout(ctx context.Context, contestID uuid.UUID, userID, workoutID string) (bool, error) {
	args := m.Called(ctx, contestID, userID, workoutID)
	return args.Bool(0), args.Error(1)
}

func (m *MockContestRepository) NthCountedWorkoutAt(ctx context.Context, contestID uuid.UUID, userID string, n int) (*time.Time, error) {
	args := m.Called(ctx, contestID, userID, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*time.Time), args.Error(1)
}

func (m *MockContestRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockContestRepository) ListEnded(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockContestRepository) ListWithUnsettledMembers(ctx context.Context, limit int) ([]uuid.UUID, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

// MockWorkoutRepository is a mock implementation of WorkoutRepository
type MockWorkoutRepository struct {
	mock.Mock
}

func (m *MockWorkoutRepository) Insert(ctx context.Context, workout *models.Workout) (bool, error) {
	args := m.Called(ctx, workout)
	return args.Bool(0), args.Error(1)
}

func (m *MockWorkoutRepository) GetByID(ctx context.Context, id string) (*models.Workout, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Workout), args.Error(1)
}

// MockPlatformRepository is a mock implementation of PlatformRepository
type MockPlatformRepository struct {
	mock.Mock
}

func (m *MockPlatformRepository) Record(ctx context.Context, entry *models.PlatformEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockPlatformRepository) ListByRelated(ctx context.Context, relatedType models.RelatedType, relatedID string) ([]*models.PlatformEntry, error) {
	args := m.Called(ctx, relatedType, relatedID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PlatformEntry), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) error {
	args := m.Called(event)
	return args.Error(0)
}
