package repository

import (
	"context"
	"fmt"

	"fitpledge/database"
	"fitpledge/models"
)

// PlatformRepository implements the PlatformRepository interface
type PlatformRepository struct {
	q queryable
}

// NewPlatformRepository creates a new platform ledger repository
func NewPlatformRepository(db *database.DB) *PlatformRepository {
	return &PlatformRepository{q: db.Pool}
}

func newPlatformRepositoryWithTx(tx queryable) *PlatformRepository {
	return &PlatformRepository{q: tx}
}

// Record stores a platform entry; a repeated entry for the same kind, user and entity is ignored
func (r *PlatformRepository) Record(ctx context.Context, entry *models.PlatformEntry) error {
	query := `
		INSERT INTO platform_entries (kind, amount, user_id, related_id, related_type)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT ON CONSTRAINT platform_entries_once DO NOTHING
	`

	_, err := r.q.Exec(ctx, query, entry.Kind, entry.Amount, entry.UserID, entry.RelatedID, entry.RelatedType)
	if err != nil {
		return translateError(err, "failed to record %s platform entry for %s %s", entry.Kind, entry.RelatedType, entry.RelatedID)
	}

	return nil
}

// ListByRelated returns entries recorded for an entity
func (r *PlatformRepository) ListByRelated(ctx context.Context, relatedType models.RelatedType, relatedID string) ([]*models.PlatformEntry, error) {
	query := `
		SELECT id, kind, amount, user_id, related_id, related_type, created_at
		FROM platform_entries
		WHERE related_type = $1 AND related_id = $2
		ORDER BY id
	`

	rows, err := r.q.Query(ctx, query, relatedType, relatedID)
	if err != nil {
		return nil, translateError(err, "failed to list platform entries for %s %s", relatedType, relatedID)
	}
	defer rows.Close()

	var entries []*models.PlatformEntry
	for rows.Next() {
		var e models.PlatformEntry
		if err := rows.Scan(&e.ID, &e.Kind, &e.Amount, &e.UserID, &e.RelatedID, &e.RelatedType, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan platform entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err, "failed to iterate platform entries")
	}

	return entries, nil
}
