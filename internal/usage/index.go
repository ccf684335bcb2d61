// Package usage answers whether a product is referenced by any stored order,
// at any depth of any line item's frozen component tree. It is backed by a
// reverse-index table filled in the same transaction that creates the order,
// so the answer is consistent with the snapshot isolation level.
package usage

import (
	"context"
	"sort"

	"github.com/GTDGit/catalog_api/internal/models"
	"github.com/GTDGit/catalog_api/internal/store"
)

// Index is the order usage index bound to one transaction.
type Index struct {
	src store.Usage
}

// New binds an Index to the usage table of tx.
func New(tx store.Tx) *Index {
	return &Index{src: tx.Usage()}
}

// IsUsed reports whether productID appears as a purchased product, component
// or sub-component in any order.
func (i *Index) IsUsed(ctx context.Context, productID int64) (bool, error) {
	return i.src.Exists(ctx, productID)
}

// OrderCount returns the number of distinct orders referencing productID.
func (i *Index) OrderCount(ctx context.Context, productID int64) (int, error) {
	return i.src.CountOrders(ctx, productID)
}

// Record indexes every product referenced by the line items of order.
// Line items must already carry their ids.
func (i *Index) Record(ctx context.Context, order *models.Order) error {
	var rows []models.ProductUsage
	for idx := range order.Items {
		rows = append(rows, Collect(order.ID, &order.Items[idx])...)
	}
	if len(rows) == 0 {
		return nil
	}
	return i.src.Record(ctx, rows)
}

// Collect flattens a line item into usage rows, one per distinct
// (product, depth) pair, sorted by depth then product id.
func Collect(orderID int64, item *models.OrderLineItem) []models.ProductUsage {
	type key struct {
		product int64
		depth   int
	}
	seen := map[key]bool{{item.ProductID, 0}: true}

	var walk func(nodes []models.ComponentSnapshot, depth int)
	walk = func(nodes []models.ComponentSnapshot, depth int) {
		for _, n := range nodes {
			seen[key{n.ComponentID, depth}] = true
			walk(n.Components, depth+1)
		}
	}
	walk(item.ComponentTree, 1)

	rows := make([]models.ProductUsage, 0, len(seen))
	for k := range seen {
		rows = append(rows, models.ProductUsage{
			OrderID:    orderID,
			LineItemID: item.ID,
			ProductID:  k.product,
			Depth:      k.depth,
		})
	}
	sort.Slice(rows, func(a, b int) bool {
		if rows[a].Depth != rows[b].Depth {
			return rows[a].Depth < rows[b].Depth
		}
		return rows[a].ProductID < rows[b].ProductID
	})
	return rows
}
