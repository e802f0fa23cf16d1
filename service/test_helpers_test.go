package service

import (
	"time"

	"fitpledge/config"
	"fitpledge/events"
	"fitpledge/models"

	"github.com/stretchr/testify/mock"
)

// testEnv wires one MockUnitOfWork behind a factory. Every Create returns the same unit of work,
// so expectations on its repositories cover all transactions of an operation.
type testEnv struct {
	factory *MockUnitOfWorkFactory
	uow     *MockUnitOfWork
	repos   *MockRepositories
	cfg     *config.Config
}

func newTestEnv() *testEnv {
	env := &testEnv{
		factory: new(MockUnitOfWorkFactory),
		uow:     new(MockUnitOfWork),
		repos:   NewMockRepositories(),
		cfg:     config.NewTestConfig(),
	}
	env.uow.SetRepositories(env.repos)
	env.factory.On("Create").Return(env.uow)
	env.uow.On("Begin", mock.Anything).Return(nil)
	env.uow.On("Rollback").Return(nil).Maybe()
	return env
}

func (e *testEnv) expectCommit() {
	e.uow.On("Commit").Return(nil)
}

// expectMutation expects one successful ledger mutation and returns the ledger Apply hands back
func (e *testEnv) expectMutation(userID string, deltaFree, deltaInvested int64, after models.Ledger) *models.Ledger {
	after.UserID = userID
	after.Total = after.Free + after.Invested
	e.repos.Ledgers.On("EnsureExists", mock.Anything, userID).Return(nil).Once()
	e.repos.Ledgers.On("Apply", mock.Anything, userID, deltaFree, deltaInvested).Return(&after, nil).Once()
	e.repos.History.On("Record", mock.Anything, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.UserID == userID && h.FreeAfter-h.FreeBefore == deltaFree && h.InvestedAfter-h.InvestedBefore == deltaInvested
	})).Return(nil).Once()
	e.repos.Events.On("Publish", mock.MatchedBy(func(ev any) bool {
		return isBalanceChangeFor(ev, userID)
	})).Return(nil).Once()
	return &after
}

func (e *testEnv) assertExpectations(t mock.TestingT) {
	e.factory.AssertExpectations(t)
	e.uow.AssertExpectations(t)
	e.repos.AssertExpectations(t)
}

func isBalanceChangeFor(ev any, userID string) bool {
	e, ok := ev.(events.BalanceChangeEvent)
	return ok && e.UserID == userID
}

func ptr[T any](v T) *T {
	return &v
}

// qualifyingRun is a 5 km run in 25 minutes performed at at
func qualifyingRun(id, userID string, at time.Time) *models.Workout {
	return &models.Workout{
		ID:              id,
		UserID:          userID,
		ActivityType:    models.ActivityRunning,
		DistanceMeters:  5000,
		DurationSeconds: 1500,
		PerformedAt:     at,
	}
}
