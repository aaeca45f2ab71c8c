package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/teleguard/agent/internal/models"
)

const journalSchema = `CREATE TABLE IF NOT EXISTS deliveries (
	artifact_id  TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	delivered_at TIMESTAMP NOT NULL
)`

// JournalRepository records confirmed deliveries in SQLite. The journal is an
// operator audit trail; the pending queue never depends on it.
type JournalRepository struct {
	db *sqlx.DB
}

// NewJournalRepository constructs the repository and ensures the schema.
func NewJournalRepository(db *sqlx.DB) (*JournalRepository, error) {
	if _, err := db.Exec(journalSchema); err != nil {
		return nil, fmt.Errorf("create deliveries table: %w", err)
	}
	return &JournalRepository{db: db}, nil
}

// Record inserts one confirmed delivery. A resend of the same artifact
// (at-least-once boundary case) upserts rather than fails.
func (r *JournalRepository) Record(ctx context.Context, artifact *models.Artifact, deliveredAt time.Time) error {
	const query = `INSERT INTO deliveries (artifact_id, kind, delivered_at) VALUES (?, ?, ?)
ON CONFLICT (artifact_id) DO UPDATE SET delivered_at = excluded.delivered_at`
	if _, err := r.db.ExecContext(ctx, query, artifact.ID, string(artifact.Kind), deliveredAt.UTC()); err != nil {
		return fmt.Errorf("record delivery %s: %w", artifact.ID, err)
	}
	return nil
}

// Recent returns the latest deliveries, newest first.
func (r *JournalRepository) Recent(ctx context.Context, limit int) ([]models.DeliveryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT artifact_id, kind, delivered_at FROM deliveries ORDER BY delivered_at DESC LIMIT ?`
	var records []models.DeliveryRecord
	if err := r.db.SelectContext(ctx, &records, query, limit); err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	return records, nil
}
