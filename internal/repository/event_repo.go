package repository

import (
	"context"

	"github.com/lib/pq"

	"github.com/GTDGit/catalog_api/internal/models"
)

// EventRepository is the catalog_events outbox.
type EventRepository struct {
	q querier
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(q querier) *EventRepository {
	return &EventRepository{q: q}
}

// Append inserts e.
func (r *EventRepository) Append(ctx context.Context, e *models.CatalogEvent) error {
	const q = `
        INSERT INTO catalog_events (event_type, aggregate_id, payload)
        VALUES ($1, $2, $3)
        RETURNING id, created_at`
	return r.q.QueryRowxContext(ctx, q, e.EventType, e.AggregateID, []byte(e.Payload)).
		Scan(&e.ID, &e.CreatedAt)
}

// ListUnpublished returns up to limit pending events in id order, locking
// them so concurrent workers skip rows already being published.
func (r *EventRepository) ListUnpublished(ctx context.Context, limit int) ([]models.CatalogEvent, error) {
	const q = `SELECT id, event_type, aggregate_id, payload, created_at, published_at
        FROM catalog_events
        WHERE published_at IS NULL
        ORDER BY id
        LIMIT $1
        FOR UPDATE SKIP LOCKED`
	out := []models.CatalogEvent{}
	if err := r.q.SelectContext(ctx, &out, q, limit); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkPublished stamps published_at on ids.
func (r *EventRepository) MarkPublished(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.q.ExecContext(ctx,
		`UPDATE catalog_events SET published_at = NOW() WHERE id = ANY($1)`, pq.Array(ids))
	return err
}
