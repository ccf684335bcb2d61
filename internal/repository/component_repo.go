package repository

import (
	"context"
	"fmt"

	"github.com/GTDGit/catalog_api/internal/models"
)

const componentColumns = `id, parent_product_id, component_product_id, quantity, is_required,
	is_included, price_override, sort_order, created_at`

// ComponentRepository handles the product_components edge list.
type ComponentRepository struct {
	q querier
}

// NewComponentRepository creates a new ComponentRepository.
func NewComponentRepository(q querier) *ComponentRepository {
	return &ComponentRepository{q: q}
}

// Exists reports whether the edge parentID -> componentID exists.
func (r *ComponentRepository) Exists(ctx context.Context, parentID, componentID int64) (bool, error) {
	const q = `SELECT EXISTS (
        SELECT 1 FROM product_components WHERE parent_product_id = $1 AND component_product_id = $2)`
	var ok bool
	err := r.q.GetContext(ctx, &ok, q, parentID, componentID)
	return ok, err
}

// Children returns the outgoing edges of parentID.
func (r *ComponentRepository) Children(ctx context.Context, parentID int64) ([]models.ComponentEdge, error) {
	const q = `SELECT ` + componentColumns + ` FROM product_components
        WHERE parent_product_id = $1
        ORDER BY sort_order, component_product_id`
	edges := []models.ComponentEdge{}
	if err := r.q.SelectContext(ctx, &edges, q, parentID); err != nil {
		return nil, err
	}
	return edges, nil
}

// Parents returns the incoming edges of componentID.
func (r *ComponentRepository) Parents(ctx context.Context, componentID int64) ([]models.ComponentEdge, error) {
	const q = `SELECT ` + componentColumns + ` FROM product_components
        WHERE component_product_id = $1
        ORDER BY parent_product_id`
	edges := []models.ComponentEdge{}
	if err := r.q.SelectContext(ctx, &edges, q, componentID); err != nil {
		return nil, err
	}
	return edges, nil
}

// Insert adds an edge. The unique constraint on (parent, component) backs up
// the duplicate check done by the graph rules.
func (r *ComponentRepository) Insert(ctx context.Context, e *models.ComponentEdge) error {
	const q = `
        INSERT INTO product_components (parent_product_id, component_product_id, quantity,
            is_required, is_included, price_override, sort_order)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at`

	err := r.q.QueryRowxContext(ctx, q,
		e.ParentProductID, e.ComponentProductID, e.Quantity,
		e.IsRequired, e.IsIncluded, e.PriceOverride, e.SortOrder,
	).Scan(&e.ID, &e.CreatedAt)
	if err == nil {
		return nil
	}

	switch code, _ := pqCode(err); code {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %d -> %d", models.ErrDuplicateEdge, e.ParentProductID, e.ComponentProductID)
	case codeCheckViolation:
		return fmt.Errorf("%w: %d", models.ErrSelfReference, e.ParentProductID)
	case codeForeignKeyViolation:
		return fmt.Errorf("%w: %d -> %d", models.ErrProductNotFound, e.ParentProductID, e.ComponentProductID)
	}
	return err
}

// Delete removes one edge and reports whether it existed.
func (r *ComponentRepository) Delete(ctx context.Context, parentID, componentID int64) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM product_components WHERE parent_product_id = $1 AND component_product_id = $2`,
		parentID, componentID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteByParent removes every outgoing edge of parentID.
func (r *ComponentRepository) DeleteByParent(ctx context.Context, parentID int64) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM product_components WHERE parent_product_id = $1`, parentID)
	return err
}
