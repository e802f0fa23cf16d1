package events

import (
	"fitpledge/models"

	"github.com/google/uuid"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange       EventType = "balance_change"
	EventTypeCommitmentSettled   EventType = "commitment_settled"
	EventTypeContestStateChange  EventType = "contest_state_change"
	EventTypeWithdrawalRequested EventType = "withdrawal_requested"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent carries a user's balances after a committed ledger mutation
type BalanceChangeEvent struct {
	UserID          string                 `json:"user_id"`
	Balances        models.Balances        `json:"balances"`
	TransactionType models.TransactionType `json:"transaction_type"`
	ChangeAmount    int64                  `json:"change_amount"`
	DeltaFree       int64                  `json:"delta_free"`
	DeltaInvested   int64                  `json:"delta_invested"`
	RelatedID       *string                `json:"related_id,omitempty"`
	RelatedType     *models.RelatedType    `json:"related_type,omitempty"`
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// CommitmentSettledEvent is published once per settled commitment
type CommitmentSettledEvent struct {
	CommitmentID      uuid.UUID `json:"commitment_id"`
	UserID            string    `json:"user_id"`
	Period            string    `json:"period"`
	Amount            int64     `json:"amount"`
	WorkoutCount      int       `json:"workout_count"`
	CompletedWorkouts int       `json:"completed_workouts"`
	Principal         int64     `json:"principal"`
	Bonus             int64     `json:"bonus"`
	Forfeited         int64     `json:"forfeited"`
}

func (e CommitmentSettledEvent) Type() EventType {
	return EventTypeCommitmentSettled
}

// ContestStateChangeEvent represents a contest status transition
type ContestStateChangeEvent struct {
	ContestID uuid.UUID            `json:"contest_id"`
	OldState  models.ContestStatus `json:"old_state"`
	NewState  models.ContestStatus `json:"new_state"`
	TotalPot  int64                `json:"total_pot"`
	Reason    string               `json:"reason,omitempty"`
}

func (e ContestStateChangeEvent) Type() EventType {
	return EventTypeContestStateChange
}

// WithdrawalRequestedEvent asks the payment provider to pay out a withdrawal
type WithdrawalRequestedEvent struct {
	WithdrawalID uuid.UUID `json:"withdrawal_id"`
	UserID       string    `json:"user_id"`
	Amount       int64     `json:"amount"`
	Currency     string    `json:"currency"`
}

func (e WithdrawalRequestedEvent) Type() EventType {
	return EventTypeWithdrawalRequested
}
