package repository

import (
	"context"

	"github.com/huandu/go-sqlbuilder"

	"github.com/GTDGit/catalog_api/internal/models"
)

// UsageRepository is the order_product_usage reverse index.
type UsageRepository struct {
	q querier
}

// NewUsageRepository creates a new UsageRepository.
func NewUsageRepository(q querier) *UsageRepository {
	return &UsageRepository{q: q}
}

// Record inserts usage rows in one statement.
func (r *UsageRepository) Record(ctx context.Context, rows []models.ProductUsage) error {
	if len(rows) == 0 {
		return nil
	}
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("order_product_usage").Cols("order_id", "line_item_id", "product_id", "depth")
	for _, u := range rows {
		ib.Values(u.OrderID, u.LineItemID, u.ProductID, u.Depth)
	}
	ib.SQL("ON CONFLICT DO NOTHING")

	query, args := ib.Build()
	_, err := r.q.ExecContext(ctx, query, args...)
	return err
}

// Exists reports whether any order references productID at any depth.
func (r *UsageRepository) Exists(ctx context.Context, productID int64) (bool, error) {
	var ok bool
	err := r.q.GetContext(ctx, &ok,
		`SELECT EXISTS (SELECT 1 FROM order_product_usage WHERE product_id = $1)`, productID)
	return ok, err
}

// CountOrders returns the number of distinct orders referencing productID.
func (r *UsageRepository) CountOrders(ctx context.Context, productID int64) (int, error) {
	var n int
	err := r.q.GetContext(ctx, &n,
		`SELECT COUNT(DISTINCT order_id) FROM order_product_usage WHERE product_id = $1`, productID)
	return n, err
}
