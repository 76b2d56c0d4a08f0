package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/talentboard/pipeline-api/internal/models"
)

// OutboxRepository persists outbox events. Events are appended inside the
// transaction that produced the change, so a consumed event is always
// backed by a durably committed write.
type OutboxRepository struct {
	db *sqlx.DB
}

// NewOutboxRepository constructs the repository.
func NewOutboxRepository(db *sqlx.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// AppendInTx writes an event within the caller's transaction.
func AppendInTx(ctx context.Context, tx *sqlx.Tx, event *models.OutboxEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO outbox_events (id, type, payload, created_at, processed_at)
VALUES (:id, :type, :payload, :created_at, :processed_at)`
	if _, err := tx.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("append outbox event: %w", err)
	}
	return nil
}

// Append writes an event in its own transaction. Used where the producing
// change has no surrounding transaction of its own.
func (r *OutboxRepository) Append(ctx context.Context, event *models.OutboxEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO outbox_events (id, type, payload, created_at, processed_at)
VALUES (:id, :type, :payload, :created_at, :processed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("append outbox event: %w", err)
	}
	return nil
}

// ListUnprocessed returns committed events awaiting dispatch, oldest first.
func (r *OutboxRepository) ListUnprocessed(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT id, type, payload, created_at, processed_at
FROM outbox_events WHERE processed_at IS NULL ORDER BY created_at ASC LIMIT $1`
	var events []models.OutboxEvent
	if err := r.db.SelectContext(ctx, &events, query, limit); err != nil {
		return nil, fmt.Errorf("list unprocessed outbox events: %w", err)
	}
	return events, nil
}

// MarkProcessed stamps an event as dispatched. Redelivery of an already
// stamped event is harmless; downstream handling is idempotent.
func (r *OutboxRepository) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE outbox_events SET processed_at = $2 WHERE id = $1 AND processed_at IS NULL`, id, at); err != nil {
		return fmt.Errorf("mark outbox event processed: %w", err)
	}
	return nil
}
