package models

import (
	"time"

	"fitpledge/apperrors"
)

// Bucket names one side of a user's ledger
type Bucket string

const (
	BucketFree     Bucket = "free"
	BucketInvested Bucket = "invested"
)

// Valid reports whether b is a known bucket
func (b Bucket) Valid() bool {
	return b == BucketFree || b == BucketInvested
}

// Ledger is the durable balance record of one user. Total always equals Free + Invested.
type Ledger struct {
	UserID    string    `db:"user_id"`
	Total     int64     `db:"total"`
	Free      int64     `db:"free"`
	Invested  int64     `db:"invested"`
	Version   int64     `db:"version"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Balances is the read model of a ledger
type Balances struct {
	UserID   string `json:"user_id"`
	Total    int64  `json:"total"`
	Free     int64  `json:"free"`
	Invested int64  `json:"invested"`
	Version  int64  `json:"version"`
}

// Balances returns the read model of the ledger
func (l *Ledger) Balances() Balances {
	return Balances{
		UserID:   l.UserID,
		Total:    l.Total,
		Free:     l.Free,
		Invested: l.Invested,
		Version:  l.Version,
	}
}

// Validate rejects ledger rows that break the bucket invariants
func (l *Ledger) Validate() error {
	if l.UserID == "" {
		return apperrors.DataIntegrity("ledger row has empty user id")
	}
	if l.Free < 0 || l.Invested < 0 {
		return apperrors.DataIntegrity("ledger %s has negative bucket (free=%d invested=%d)", l.UserID, l.Free, l.Invested)
	}
	if l.Total != l.Free+l.Invested {
		return apperrors.DataIntegrity("ledger %s total %d != free %d + invested %d", l.UserID, l.Total, l.Free, l.Invested)
	}
	return nil
}

// LedgerMutation describes one atomic change to a user's buckets together with
// the audit information recorded alongside it.
type LedgerMutation struct {
	UserID          string
	DeltaFree       int64
	DeltaInvested   int64
	TransactionType TransactionType
	RelatedID       *string
	RelatedType     *RelatedType
	Metadata        map[string]any
}

// ChangeAmount is the signed effect of the mutation on the user's total
func (m LedgerMutation) ChangeAmount() int64 {
	return m.DeltaFree + m.DeltaInvested
}

// Related sets the entity the mutation belongs to
func (m LedgerMutation) Related(id string, relatedType RelatedType) LedgerMutation {
	m.RelatedID = &id
	m.RelatedType = &relatedType
	return m
}

// BucketDeltas converts a single-bucket change into free/invested deltas
func BucketDeltas(bucket Bucket, amount int64) (deltaFree, deltaInvested int64) {
	if bucket == BucketInvested {
		return 0, amount
	}
	return amount, 0
}
