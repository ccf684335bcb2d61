package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/GTDGit/catalog_api/internal/models"
)

const lineItemColumns = `id, order_id, product_id, sku, version, product_name, category, quantity,
	base_price, component_tree, snapshot_version, included_components_total,
	optional_components_total, line_total, created_at`

// OrderRepository persists orders and their frozen line items. Line items are
// insert-only.
type OrderRepository struct {
	q querier
}

// NewOrderRepository creates a new OrderRepository.
func NewOrderRepository(q querier) *OrderRepository {
	return &OrderRepository{q: q}
}

// Create inserts the order and every line item, filling generated columns.
func (r *OrderRepository) Create(ctx context.Context, o *models.Order) error {
	const orderQ = `
        INSERT INTO orders (order_number, status, customer_email, notes, item_count, subtotal)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at`

	err := r.q.QueryRowxContext(ctx, orderQ,
		o.OrderNumber, o.Status, o.CustomerEmail, o.Notes, o.ItemCount, o.Subtotal,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return err
	}

	const itemQ = `
        INSERT INTO order_line_items (order_id, product_id, sku, version, product_name, category,
            quantity, base_price, component_tree, snapshot_version, included_components_total,
            optional_components_total, line_total)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        RETURNING id, created_at`

	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		err := r.q.QueryRowxContext(ctx, itemQ,
			it.OrderID, it.ProductID, it.SKU, it.Version, it.ProductName, it.Category,
			it.Quantity, it.BasePrice, it.ComponentTree, it.SnapshotVersion, it.IncludedComponentsTotal,
			it.OptionalComponentsTotal, it.LineTotal,
		).Scan(&it.ID, &it.CreatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetByID returns an order with its line items.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	const q = `SELECT id, order_number, status, customer_email, notes, item_count, subtotal, created_at
        FROM orders WHERE id = $1`

	var o models.Order
	if err := r.q.GetContext(ctx, &o, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrOrderNotFound
		}
		return nil, err
	}

	o.Items = []models.OrderLineItem{}
	itemsQ := `SELECT ` + lineItemColumns + ` FROM order_line_items WHERE order_id = $1 ORDER BY id`
	if err := r.q.SelectContext(ctx, &o.Items, itemsQ, id); err != nil {
		return nil, err
	}
	return &o, nil
}
