package models

import (
	"time"
)

// TransactionType represents the type of balance change
type TransactionType string

const (
	TransactionTypeDeposit            TransactionType = "deposit"
	TransactionTypeWithdrawal         TransactionType = "withdrawal"
	TransactionTypeWithdrawalReversal TransactionType = "withdrawal_reversal"
	TransactionTypeCredit             TransactionType = "credit"
	TransactionTypeDebit              TransactionType = "debit"
	TransactionTypeTransfer           TransactionType = "transfer"
	TransactionTypeCommitmentPledge   TransactionType = "commitment_pledge"
	TransactionTypeCommitmentSettle   TransactionType = "commitment_settlement"
	TransactionTypeContestInvest      TransactionType = "contest_invest"
	TransactionTypeContestRefund      TransactionType = "contest_refund"
	TransactionTypeContestPayout      TransactionType = "contest_payout"
)

// RelatedType represents what type of entity the related_id refers to
type RelatedType string

const (
	RelatedTypePaymentEvent RelatedType = "payment_event"
	RelatedTypeWithdrawal   RelatedType = "withdrawal"
	RelatedTypeCommitment   RelatedType = "commitment"
	RelatedTypeContest      RelatedType = "contest"
)

// BalanceHistory represents a historical balance change
type BalanceHistory struct {
	ID                  int64           `db:"id"`
	UserID              string          `db:"user_id"`
	FreeBefore          int64           `db:"free_before"`
	FreeAfter           int64           `db:"free_after"`
	InvestedBefore      int64           `db:"invested_before"`
	InvestedAfter       int64           `db:"invested_after"`
	ChangeAmount        int64           `db:"change_amount"`
	TransactionType     TransactionType `db:"transaction_type"`
	TransactionMetadata map[string]any  `db:"transaction_metadata"`
	RelatedID           *string         `db:"related_id"`
	RelatedType         *RelatedType    `db:"related_type"`
	LedgerVersion       int64           `db:"ledger_version"`
	CreatedAt           time.Time       `db:"created_at"`
}

// TotalBefore is the user's total before the change
func (h *BalanceHistory) TotalBefore() int64 {
	return h.FreeBefore + h.InvestedBefore
}

// TotalAfter is the user's total after the change
func (h *BalanceHistory) TotalAfter() int64 {
	return h.FreeAfter + h.InvestedAfter
}

// PlatformEntryKind classifies money entering or leaving the platform pool
type PlatformEntryKind string

const (
	PlatformEntryForfeit PlatformEntryKind = "forfeit"
	PlatformEntryBonus   PlatformEntryKind = "bonus"
)

// PlatformEntry records forfeited principal collected by, or bonus paid by, the platform
type PlatformEntry struct {
	ID          int64             `db:"id"`
	Kind        PlatformEntryKind `db:"kind"`
	Amount      int64             `db:"amount"`
	UserID      string            `db:"user_id"`
	RelatedID   string            `db:"related_id"`
	RelatedType RelatedType       `db:"related_type"`
	CreatedAt   time.Time         `db:"created_at"`
}
