package models

import (
	"strings"
	"time"

	"fitpledge/apperrors"
	"github.com/google/uuid"
)

// PaymentEvent is a confirmed deposit delivered by the payment provider
type PaymentEvent struct {
	EventID     string    `db:"event_id" json:"event_id"`
	UserID      string    `db:"user_id" json:"user_id"`
	Amount      int64     `db:"amount" json:"amount"`
	Currency    string    `db:"currency" json:"currency"`
	OccurredAt  time.Time `db:"occurred_at" json:"occurred_at"`
	ProcessedAt time.Time `db:"processed_at" json:"-"`
}

// Validate rejects malformed webhook payloads
func (p *PaymentEvent) Validate() error {
	if strings.TrimSpace(p.EventID) == "" {
		return apperrors.Validation("payment event id is required")
	}
	if strings.TrimSpace(p.UserID) == "" {
		return apperrors.Validation("payment event %s has no user id", p.EventID)
	}
	if p.Amount <= 0 {
		return apperrors.Validation("payment event %s has non-positive amount %d", p.EventID, p.Amount)
	}
	if !strings.EqualFold(p.Currency, "usd") {
		return apperrors.Validation("payment event %s has unsupported currency %q", p.EventID, p.Currency)
	}
	return nil
}

// PaymentResult reports the outcome of handling a payment confirmation
type PaymentResult struct {
	Duplicate bool
	Balances  *Balances
}

// WithdrawalStatus represents the state of a withdrawal request
type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "pending"
	WithdrawalStatusCompleted WithdrawalStatus = "completed"
	WithdrawalStatusFailed    WithdrawalStatus = "failed"
)

// Withdrawal is a request to move free balance out to the user's payout account
type Withdrawal struct {
	ID                uuid.UUID        `db:"id"`
	UserID            string           `db:"user_id"`
	Amount            int64            `db:"amount"`
	Status            WithdrawalStatus `db:"status"`
	TransferReference *string          `db:"transfer_reference"`
	FailureReason     *string          `db:"failure_reason"`
	RequestedAt       time.Time        `db:"requested_at"`
	RequestAttempts   int              `db:"request_attempts"`
	CreatedAt         time.Time        `db:"created_at"`
	UpdatedAt         time.Time        `db:"updated_at"`
}

// IsPending checks if the provider has not reported on the withdrawal yet
func (w *Withdrawal) IsPending() bool {
	return w.Status == WithdrawalStatusPending
}

// WithdrawalResult is the payment provider's report on a withdrawal
type WithdrawalResult struct {
	WithdrawalID      uuid.UUID `json:"withdrawal_id"`
	Success           bool      `json:"success"`
	TransferReference string    `json:"transfer_reference"`
	FailureReason     string    `json:"failure_reason"`
}
