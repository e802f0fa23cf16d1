package repository

import (
	"context"
	"errors"

	"fitpledge/apperrors"
	"fitpledge/database"
	"fitpledge/infrastructure/observability"
	"fitpledge/models"

	"github.com/jackc/pgx/v5"
)

const ledgerColumns = `user_id, total, free, invested, version, created_at, updated_at`

// LedgerRepository implements the LedgerRepository interface
type LedgerRepository struct {
	q queryable
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *database.DB) *LedgerRepository {
	return &LedgerRepository{q: db.Pool}
}

// newLedgerRepositoryWithTx creates a new ledger repository with a transaction
func newLedgerRepositoryWithTx(tx queryable) *LedgerRepository {
	return &LedgerRepository{q: tx}
}

func scanLedger(row pgx.Row) (*models.Ledger, error) {
	var ledger models.Ledger
	err := row.Scan(
		&ledger.UserID,
		&ledger.Total,
		&ledger.Free,
		&ledger.Invested,
		&ledger.Version,
		&ledger.CreatedAt,
		&ledger.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := ledger.Validate(); err != nil {
		return nil, err
	}
	return &ledger, nil
}

// Get retrieves a user's ledger
func (r *LedgerRepository) Get(ctx context.Context, userID string) (*models.Ledger, error) {
	defer observability.GetMetrics().MeasureDatabaseQuery("ledger", "Get")()

	query := `SELECT ` + ledgerColumns + ` FROM ledgers WHERE user_id = $1`

	ledger, err := scanLedger(r.q.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(err, "failed to get ledger for user %s", userID)
	}

	return ledger, nil
}

// EnsureExists creates an empty ledger for the user if none exists
func (r *LedgerRepository) EnsureExists(ctx context.Context, userID string) error {
	defer observability.GetMetrics().MeasureDatabaseQuery("ledger", "EnsureExists")()

	query := `INSERT INTO ledgers (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`

	if _, err := r.q.Exec(ctx, query, userID); err != nil {
		return translateError(err, "failed to create ledger for user %s", userID)
	}
	return nil
}

// Apply adds the deltas to the user's buckets. The non-negativity check is part of the
// UPDATE itself, so concurrent mutations can never overdraw a bucket.
func (r *LedgerRepository) Apply(ctx context.Context, userID string, deltaFree, deltaInvested int64) (*models.Ledger, error) {
	defer observability.GetMetrics().MeasureDatabaseQuery("ledger", "Apply")()

	query := `
		UPDATE ledgers
		SET free = free + $2,
		    invested = invested + $3,
		    total = total + $2 + $3,
		    version = version + 1,
		    updated_at = NOW()
		WHERE user_id = $1
		  AND free + $2 >= 0
		  AND invested + $3 >= 0
		RETURNING ` + ledgerColumns

	ledger, err := scanLedger(r.q.QueryRow(ctx, query, userID, deltaFree, deltaInvested))
	if err == nil {
		return ledger, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, translateError(err, "failed to update ledger for user %s", userID)
	}

	var exists bool
	if err := r.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM ledgers WHERE user_id = $1)`, userID).Scan(&exists); err != nil {
		return nil, translateError(err, "failed to check ledger for user %s", userID)
	}
	if !exists {
		return nil, apperrors.NotFound("no ledger for user %s", userID)
	}
	return nil, apperrors.InsufficientFunds("insufficient funds for user %s (free %+d, invested %+d)", userID, deltaFree, deltaInvested)
}
