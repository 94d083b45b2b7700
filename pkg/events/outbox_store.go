package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrOutboxEventNotFound is returned when a status update matches no row.
var ErrOutboxEventNotFound = errors.New("outbox event not found")

const outboxColumns = `id, event_type, aggregate_id, payload, status, created_at, processed_at`

// PostgresOutboxRepository stores events in the outbox_events table every
// service migrates. It only works inside the caller's transaction, so domain
// writes and their events commit together.
type PostgresOutboxRepository struct{}

// NewPostgresOutboxRepository returns the shared outbox store.
func NewPostgresOutboxRepository() *PostgresOutboxRepository {
	return &PostgresOutboxRepository{}
}

// SaveEvent appends an event as part of tx.
func (r *PostgresOutboxRepository) SaveEvent(ctx context.Context, tx pgx.Tx, event *OutboxEvent) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox_events (`+outboxColumns+`)
		VALUES ($1, $2, $3, $4, $5::outbox_status, $6, $7)`,
		event.ID, event.EventType, event.AggregateID, event.Payload,
		event.Status, event.CreatedAt, event.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("save outbox event %s: %w", event.EventType, err)
	}
	return nil
}

// GetPendingEvents claims up to limit pending events, oldest first. Rows held
// by another relay are skipped, so concurrent relays never share a batch.
func (r *PostgresOutboxRepository) GetPendingEvents(ctx context.Context, tx pgx.Tx, limit int) ([]*OutboxEvent, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+outboxColumns+`
		FROM outbox_events
		WHERE status = 'pending'
		ORDER BY created_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, fmt.Errorf("claim pending events: %w", err)
	}
	pending, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[OutboxEvent])
	if err != nil {
		return nil, fmt.Errorf("claim pending events: %w", err)
	}
	return pending, nil
}

// UpdateEventStatus moves an event to status. Terminal statuses stamp
// processed_at with the database clock.
func (r *PostgresOutboxRepository) UpdateEventStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status OutboxStatus) error {
	tag, err := tx.Exec(ctx, `
		UPDATE outbox_events
		SET status = $1::outbox_status,
		    processed_at = CASE WHEN $1::outbox_status IN ('published', 'failed') THEN NOW() END
		WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update outbox event %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update outbox event %s: %w", id, ErrOutboxEventNotFound)
	}
	return nil
}
