package repository

import (
	"context"
	"errors"

	"fitpledge/database"
	"fitpledge/models"

	"github.com/jackc/pgx/v5"
)

// PaymentEventRepository implements the PaymentEventRepository interface
type PaymentEventRepository struct {
	q queryable
}

// NewPaymentEventRepository creates a new payment event repository
func NewPaymentEventRepository(db *database.DB) *PaymentEventRepository {
	return &PaymentEventRepository{q: db.Pool}
}

func newPaymentEventRepositoryWithTx(tx queryable) *PaymentEventRepository {
	return &PaymentEventRepository{q: tx}
}

// Insert records a processed payment event. The primary key on event_id makes
// redelivered webhooks a no-op, reported as inserted == false.
func (r *PaymentEventRepository) Insert(ctx context.Context, event *models.PaymentEvent) (bool, error) {
	query := `
		INSERT INTO payment_events (event_id, user_id, amount, currency, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO NOTHING
		RETURNING processed_at
	`

	err := r.q.QueryRow(ctx, query,
		event.EventID,
		event.UserID,
		event.Amount,
		event.Currency,
		event.OccurredAt,
	).Scan(&event.ProcessedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, translateError(err, "failed to insert payment event %s", event.EventID)
	}

	return true, nil
}

// GetByID retrieves a processed payment event
func (r *PaymentEventRepository) GetByID(ctx context.Context, eventID string) (*models.PaymentEvent, error) {
	query := `
		SELECT event_id, user_id, amount, currency, occurred_at, processed_at
		FROM payment_events
		WHERE event_id = $1
	`

	var event models.PaymentEvent
	err := r.q.QueryRow(ctx, query, eventID).Scan(
		&event.EventID,
		&event.UserID,
		&event.Amount,
		&event.Currency,
		&event.OccurredAt,
		&event.ProcessedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(err, "failed to get payment event %s", eventID)
	}

	return &event, nil
}
