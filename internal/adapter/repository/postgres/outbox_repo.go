package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/simaogato/folio-backend/internal/domain"
)

// outboxRepository implements domain.OutboxRepository
type outboxRepository struct {
	db *DB
}

// NewOutboxRepository creates a new outbox repository
func NewOutboxRepository(db *DB) domain.OutboxRepository {
	return &outboxRepository{db: db}
}

// Create stores a pending event, joining the transaction carried by ctx
func (r *outboxRepository) Create(ctx context.Context, event *domain.OutboxEvent) error {
	query := `
		INSERT INTO outbox_events (id, event_type, broker, payload, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.conn(ctx).ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.Broker,
		string(event.Payload),
		string(event.Status),
		event.Attempts,
		event.CreatedAt,
	)
	if err != nil {
		return storeError("failed to create outbox event", err)
	}

	return nil
}

// ClaimPending locks the oldest pending events for the transaction in ctx
func (r *outboxRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	query := `
		SELECT id, event_type, broker, payload, status, attempts, last_error, created_at, published_at
		FROM outbox_events
		WHERE status = $1 AND next_attempt_at <= now()
		ORDER BY created_at, id
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`

	rows, err := r.db.conn(ctx).QueryContext(ctx, query, string(domain.OutboxStatusPending), limit)
	if err != nil {
		return nil, storeError("failed to claim outbox events", err)
	}
	defer rows.Close()

	var events []*domain.OutboxEvent
	for rows.Next() {
		var event domain.OutboxEvent
		var payload []byte
		var lastError sql.NullString
		var publishedAt sql.NullTime

		if err := rows.Scan(
			&event.ID,
			&event.EventType,
			&event.Broker,
			&payload,
			&event.Status,
			&event.Attempts,
			&lastError,
			&event.CreatedAt,
			&publishedAt,
		); err != nil {
			return nil, storeError("failed to scan outbox event", err)
		}

		event.Payload = payload
		event.LastError = lastError.String
		if publishedAt.Valid {
			t := publishedAt.Time
			event.PublishedAt = &t
		}

		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, storeError("error iterating outbox events", err)
	}

	return events, nil
}

// MarkPublished flags an event as delivered
func (r *outboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE outbox_events
		SET status = $2, published_at = now(), last_error = NULL
		WHERE id = $1
	`

	if _, err := r.db.conn(ctx).ExecContext(ctx, query, id, string(domain.OutboxStatusPublished)); err != nil {
		return storeError(fmt.Sprintf("failed to mark outbox event %s published", id), err)
	}

	return nil
}

// MarkRetry records a failed delivery attempt and pushes the event's next claim back by delay
func (r *outboxRepository) MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, delay time.Duration) error {
	query := `
		UPDATE outbox_events
		SET attempts = attempts + 1,
			last_error = $2,
			next_attempt_at = now() + make_interval(secs => $3::double precision)
		WHERE id = $1
	`

	_, err := r.db.conn(ctx).ExecContext(ctx, query, id, errMsg, delay.Seconds())
	if err != nil {
		return storeError(fmt.Sprintf("failed to schedule retry for outbox event %s", id), err)
	}

	return nil
}

// MarkFailed parks an undeliverable event
func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	query := `
		UPDATE outbox_events
		SET status = $3, last_error = $2
		WHERE id = $1
	`

	_, err := r.db.conn(ctx).ExecContext(ctx, query, id, errMsg, string(domain.OutboxStatusFailed))
	if err != nil {
		return storeError(fmt.Sprintf("failed to mark outbox event %s failed", id), err)
	}

	return nil
}
