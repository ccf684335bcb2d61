// Package snapshot materializes a product's component tree, with prices
// resolved, into a value that carries no references back to the catalog.
package snapshot

import (
	"context"
	"fmt"

	"github.com/GTDGit/catalog_api/internal/graph"
	"github.com/GTDGit/catalog_api/internal/models"
	"github.com/GTDGit/catalog_api/internal/store"
)

// Builder reads the catalog through one transaction.
type Builder struct {
	products store.Products
	edges    store.Edges
}

// New binds a Builder to tx. Build must run in the same transaction that
// persists the resulting line item.
func New(tx store.Tx) *Builder {
	return &Builder{products: tx.Products(), edges: tx.Edges()}
}

// Tree returns the live tree of productID with totals for a single unit.
func (b *Builder) Tree(ctx context.Context, productID int64) (*models.ProductTree, error) {
	p, err := b.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	nodes, err := b.walk(ctx, productID, 1)
	if err != nil {
		return nil, err
	}
	included, optional := Totals(nodes)
	return &models.ProductTree{
		ProductID:               p.ID,
		SKU:                     p.SKU,
		Name:                    p.Name,
		Version:                 p.Version,
		Category:                p.Category,
		Status:                  p.Status,
		BasePrice:               p.BasePrice,
		Components:              nodes,
		IncludedComponentsTotal: included,
		OptionalComponentsTotal: optional,
		UnitTotal:               p.BasePrice + included + optional,
	}, nil
}

// Build freezes productID into an unsaved line item for quantity units.
// A component missing from the catalog fails the whole build.
func (b *Builder) Build(ctx context.Context, productID int64, quantity int) (*models.OrderLineItem, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", models.ErrInvalidRequest)
	}
	t, err := b.Tree(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &models.OrderLineItem{
		ProductID:               t.ProductID,
		SKU:                     t.SKU,
		Version:                 t.Version,
		ProductName:             t.Name,
		Category:                t.Category,
		Quantity:                quantity,
		BasePrice:               t.BasePrice,
		ComponentTree:           t.Components,
		SnapshotVersion:         models.SnapshotVersion,
		IncludedComponentsTotal: t.IncludedComponentsTotal,
		OptionalComponentsTotal: t.OptionalComponentsTotal,
		LineTotal:               int64(quantity) * t.UnitTotal,
	}, nil
}

// walk returns the children of parentID as snapshot nodes. Nodes at
// graph.MaxDepth are leaves and always get an empty Components slice.
func (b *Builder) walk(ctx context.Context, parentID int64, depth int) (models.ComponentTree, error) {
	edges, err := b.edges.Children(ctx, parentID)
	if err != nil {
		return nil, err
	}
	nodes := make(models.ComponentTree, 0, len(edges))
	for _, e := range edges {
		c, err := b.products.GetByID(ctx, e.ComponentProductID)
		if err != nil {
			return nil, fmt.Errorf("component %d of %d: %w", e.ComponentProductID, parentID, err)
		}
		node := models.ComponentSnapshot{
			ComponentID:      c.ID,
			ComponentSKU:     c.SKU,
			ComponentName:    c.Name,
			ComponentVersion: c.Version,
			Quantity:         e.Quantity,
			Price:            EffectivePrice(&e, c),
			IsRequired:       e.IsRequired,
			IsIncluded:       e.IsIncluded,
			Category:         c.Category,
			Components:       []models.ComponentSnapshot{},
		}
		if depth < graph.MaxDepth {
			sub, err := b.walk(ctx, c.ID, depth+1)
			if err != nil {
				return nil, err
			}
			node.Components = sub
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// EffectivePrice resolves the unit price of a component: the edge override,
// then the component price, then the base price.
func EffectivePrice(e *models.ComponentEdge, c *models.Product) int64 {
	if e.PriceOverride != nil {
		return *e.PriceOverride
	}
	return c.EffectiveComponentPrice()
}

// Totals sums price times edge quantity over the whole tree, split by each
// node's own isIncluded flag. Each node's quantity is relative to its direct
// parent; it is not scaled by the quantities above it.
func Totals(nodes []models.ComponentSnapshot) (included, optional int64) {
	for _, n := range nodes {
		if n.IsIncluded {
			included += n.Price * int64(n.Quantity)
		} else {
			optional += n.Price * int64(n.Quantity)
		}
		subIncluded, subOptional := Totals(n.Components)
		included += subIncluded
		optional += subOptional
	}
	return included, optional
}
