package repository

import (
	"context"

	"github.com/GTDGit/catalog_api/internal/models"
)

// HistoryRepository is the append-only product_history log.
type HistoryRepository struct {
	q querier
}

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(q querier) *HistoryRepository {
	return &HistoryRepository{q: q}
}

// Append inserts h.
func (r *HistoryRepository) Append(ctx context.Context, h *models.ProductHistory) error {
	const q = `
        INSERT INTO product_history (base_product_id, product_id, previous_product_id, change_type,
            old_snapshot, new_snapshot, description)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at`
	return r.q.QueryRowxContext(ctx, q,
		h.BaseProductID, h.ProductID, h.PreviousProductID, h.ChangeType,
		h.OldSnapshot, h.NewSnapshot, h.Description,
	).Scan(&h.ID, &h.CreatedAt)
}

// ListByLineage returns the history of a lineage, oldest first.
func (r *HistoryRepository) ListByLineage(ctx context.Context, baseID int64) ([]models.ProductHistory, error) {
	const q = `SELECT id, base_product_id, product_id, previous_product_id, change_type,
            old_snapshot, new_snapshot, description, created_at
        FROM product_history WHERE base_product_id = $1 ORDER BY id`
	out := []models.ProductHistory{}
	if err := r.q.SelectContext(ctx, &out, q, baseID); err != nil {
		return nil, err
	}
	return out, nil
}
