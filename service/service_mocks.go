package service

import (
	"context"
	"time"

	"fitpledge/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockLedgerService is a mock implementation of LedgerService
type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) Credit(ctx context.Context, userID string, amount int64, bucket models.Bucket) (*models.Balances, error) {
	args := m.Called(ctx, userID, amount, bucket)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Balances), args.Error(1)
}

func (m *MockLedgerService) Debit(ctx context.Context, userID string, amount int64, bucket models.Bucket) (*models.Balances, error) {
	args := m.Called(ctx, userID, amount, bucket)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Balances), args.Error(1)
}

func (m *MockLedgerService) Transfer(ctx context.Context, userID string, amount int64, from, to models.Bucket) (*models.Balances, error) {
	args := m.Called(ctx, userID, amount, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Balances), args.Error(1)
}

func (m *MockLedgerService) GetBalances(ctx context.Context, userID string) (*models.Balances, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Balances), args.Error(1)
}

func (m *MockLedgerService) Subscribe(userID string, callback func(models.Balances)) func() {
	args := m.Called(userID, callback)
	return args.Get(0).(func())
}

func (m *MockLedgerService) History(ctx context.Context, userID string, limit int) ([]*models.BalanceHistory, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BalanceHistory), args.Error(1)
}

// MockPaymentService is a mock implementation of PaymentService
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) HandlePaymentConfirmed(ctx context.Context, event models.PaymentEvent) (*models.PaymentResult, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentResult), args.Error(1)
}

func (m *MockPaymentService) RequestWithdrawal(ctx context.Context, userID string, amount int64) (*models.Withdrawal, error) {
	args := m.Called(ctx, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Withdrawal), args.Error(1)
}

func (m *MockPaymentService) HandleWithdrawalResult(ctx context.Context, result models.WithdrawalResult) (bool, error) {
	args := m.Called(ctx, result)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentService) ListWithdrawals(ctx context.Context, userID string, limit int) ([]*models.Withdrawal, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Withdrawal), args.Error(1)
}

func (m *MockPaymentService) ResendPendingWithdrawals(ctx context.Context, cutoff time.Time) (int, error) {
	args := m.Called(ctx, cutoff)
	return args.Int(0), args.Error(1)
}

// MockCommitmentService is a mock implementation of CommitmentService
type MockCommitmentService struct {
	mock.Mock
}

func (m *MockCommitmentService) CreateCommitment(ctx context.Context, userID string, amount int64, workoutCount int, period models.Period) (*models.Commitment, error) {
	args := m.Called(ctx, userID, amount, workoutCount, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Commitment), args.Error(1)
}

func (m *MockCommitmentService) RecordQualifyingWorkout(ctx context.Context, commitmentID uuid.UUID, workout *models.Workout) (bool, error) {
	args := m.Called(ctx, commitmentID, workout)
	return args.Bool(0), args.Error(1)
}

func (m *MockCommitmentService) Settle(ctx context.Context, commitmentID uuid.UUID) (*models.Commitment, error) {
	args := m.Called(ctx, commitmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Commitment), args.Error(1)
}

func (m *MockCommitmentService) GetCommitment(ctx context.Context, commitmentID uuid.UUID) (*models.Commitment, error) {
	args := m.Called(ctx, commitmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Commitment), args.Error(1)
}

func (m *MockCommitmentService) ListCommitments(ctx context.Context, userID string) ([]*models.Commitment, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Commitment), args.Error(1)
}

// MockContestService is a mock implementation of ContestService
type MockContestService struct {
	mock.Mock
}

func (m *MockContestService) CreateContest(ctx context.Context, organizerID, name string, members []string, amountPerMember int64, rules models.ContestRules) (*models.ContestDetail, error) {
	args := m.Called(ctx, organizerID, name, members, amountPerMember, rules)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ContestDetail), args.Error(1)
}

func (m *MockContestService) Invest(ctx context.Context, contestID uuid.UUID, userID string) (*models.Contest, error) {
	args := m.Called(ctx, contestID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contest), args.Error(1)
}

func (m *MockContestService) Decline(ctx context.Context, contestID uuid.UUID, userID string) (*models.Contest, error) {
	args := m.Called(ctx, contestID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contest), args.Error(1)
}

func (m *MockContestService) Cancel(ctx context.Context, contestID uuid.UUID, organizerID string) (*models.CancelResult, error) {
	args := m.Called(ctx, contestID, organizerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CancelResult), args.Error(1)
}

func (m *MockContestService) GetContest(ctx context.Context, contestID uuid.UUID) (*models.ContestDetail, error) {
	args := m.Called(ctx, contestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ContestDetail), args.Error(1)
}

func (m *MockContestService) ListContests(ctx context.Context, userID string) ([]*models.Contest, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Contest), args.Error(1)
}

func (m *MockContestService) RecordQualifyingWorkout(ctx context.Context, contestID uuid.UUID, workout *models.Workout) (bool, error) {
	args := m.Called(ctx, contestID, workout)
	return args.Bool(0), args.Error(1)
}

func (m *MockContestService) ExpirePending(ctx context.Context, contestID uuid.UUID) (*models.CancelResult, error) {
	args := m.Called(ctx, contestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CancelResult), args.Error(1)
}

func (m *MockContestService) Complete(ctx context.Context, contestID uuid.UUID) (*models.CompletionResult, error) {
	args := m.Called(ctx, contestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CompletionResult), args.Error(1)
}

func (m *MockContestService) ResumeSettlement(ctx context.Context, contestID uuid.UUID) error {
	args := m.Called(ctx, contestID)
	return args.Error(0)
}

// MockWorkoutService is a mock implementation of WorkoutService
type MockWorkoutService struct {
	mock.Mock
}

func (m *MockWorkoutService) IngestWorkout(ctx context.Context, workout models.Workout) (*models.WorkoutIngestResult, error) {
	args := m.Called(ctx, workout)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WorkoutIngestResult), args.Error(1)
}
