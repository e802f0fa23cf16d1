package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fitpledge/database"
	"fitpledge/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const withdrawalColumns = `id, user_id, amount, status, transfer_reference, failure_reason, requested_at,
	request_attempts, created_at, updated_at`

// WithdrawalRepository implements the WithdrawalRepository interface
type WithdrawalRepository struct {
	q queryable
}

// NewWithdrawalRepository creates a new withdrawal repository
func NewWithdrawalRepository(db *database.DB) *WithdrawalRepository {
	return &WithdrawalRepository{q: db.Pool}
}

func newWithdrawalRepositoryWithTx(tx queryable) *WithdrawalRepository {
	return &WithdrawalRepository{q: tx}
}

func scanWithdrawal(row pgx.Row) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := row.Scan(
		&w.ID,
		&w.UserID,
		&w.Amount,
		&w.Status,
		&w.TransferReference,
		&w.FailureReason,
		&w.RequestedAt,
		&w.RequestAttempts,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Create persists a new withdrawal
func (r *WithdrawalRepository) Create(ctx context.Context, withdrawal *models.Withdrawal) error {
	if withdrawal.ID == uuid.Nil {
		withdrawal.ID = uuid.New()
	}

	query := `
		INSERT INTO withdrawals (id, user_id, amount, status)
		VALUES ($1, $2, $3, $4)
		RETURNING requested_at, request_attempts, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		withdrawal.ID,
		withdrawal.UserID,
		withdrawal.Amount,
		withdrawal.Status,
	).Scan(&withdrawal.RequestedAt, &withdrawal.RequestAttempts, &withdrawal.CreatedAt, &withdrawal.UpdatedAt)
	if err != nil {
		return translateError(err, "failed to create withdrawal for user %s", withdrawal.UserID)
	}

	return nil
}

// GetByIDForUpdate retrieves a withdrawal and locks its row
func (r *WithdrawalRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1 FOR UPDATE`

	w, err := scanWithdrawal(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(err, "failed to get withdrawal %s", id)
	}

	return w, nil
}

// Update writes the withdrawal's status and provider details
func (r *WithdrawalRepository) Update(ctx context.Context, withdrawal *models.Withdrawal) error {
	query := `
		UPDATE withdrawals
		SET status = $2, transfer_reference = $3, failure_reason = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.q.QueryRow(ctx, query,
		withdrawal.ID,
		withdrawal.Status,
		withdrawal.TransferReference,
		withdrawal.FailureReason,
	).Scan(&withdrawal.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("withdrawal %s not found", withdrawal.ID)
	}
	if err != nil {
		return translateError(err, "failed to update withdrawal %s", withdrawal.ID)
	}

	return nil
}

// ListByUser returns a user's most recent withdrawals
func (r *WithdrawalRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, translateError(err, "failed to list withdrawals for user %s", userID)
	}
	return collectWithdrawals(rows)
}

// ListPendingRequestedBefore returns pending withdrawals last sent to the provider at or before
// cutoff, oldest first. Rows are locked; rows another transaction holds are skipped.
func (r *WithdrawalRepository) ListPendingRequestedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.Withdrawal, error) {
	query := `
		SELECT ` + withdrawalColumns + `
		FROM withdrawals
		WHERE status = 'pending' AND requested_at <= $1
		ORDER BY requested_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`

	rows, err := r.q.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, translateError(err, "failed to list stale pending withdrawals")
	}
	return collectWithdrawals(rows)
}

// MarkRequested records that a pending withdrawal was sent to the provider again
func (r *WithdrawalRepository) MarkRequested(ctx context.Context, withdrawal *models.Withdrawal, at time.Time) error {
	query := `
		UPDATE withdrawals
		SET requested_at = $2, request_attempts = request_attempts + 1, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING requested_at, request_attempts, updated_at
	`

	err := r.q.QueryRow(ctx, query, withdrawal.ID, at).
		Scan(&withdrawal.RequestedAt, &withdrawal.RequestAttempts, &withdrawal.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("pending withdrawal %s not found", withdrawal.ID)
	}
	if err != nil {
		return translateError(err, "failed to mark withdrawal %s requested", withdrawal.ID)
	}

	return nil
}

func collectWithdrawals(rows pgx.Rows) ([]*models.Withdrawal, error) {
	defer rows.Close()

	var withdrawals []*models.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
		}
		withdrawals = append(withdrawals, w)
	}

	if err := rows.Err(); err != nil {
		return nil, translateError(err, "failed to iterate withdrawals")
	}

	return withdrawals, nil
}
