// Package graph enforces the structural rules of the product component graph:
// no self-loops, no cycles, no duplicate edges and no path longer than
// MaxDepth edges. All checks read through the transaction the caller supplies,
// so a check and the write that follows it see the same state.
package graph

import (
	"context"
	"fmt"

	"github.com/GTDGit/catalog_api/internal/models"
	"github.com/GTDGit/catalog_api/internal/store"
)

// MaxDepth is the longest allowed path: root -> component -> sub-component.
const MaxDepth = 2

// Graph is the component graph store bound to one transaction.
type Graph struct {
	products store.Products
	edges    store.Edges
}

// New binds a Graph to the tables of tx.
func New(tx store.Tx) *Graph {
	return &Graph{products: tx.Products(), edges: tx.Edges()}
}

// AddEdge attaches child to parent. Checks run in a fixed order so the
// reported error is stable: self reference, endpoints and flags, cycle,
// depth, duplicate. Only the live version of a parent can gain components.
func (g *Graph) AddEdge(ctx context.Context, parentID, childID int64, cfg models.EdgeConfig) (*models.ComponentEdge, error) {
	if parentID == childID {
		return nil, fmt.Errorf("%w: product %d cannot be a component of itself", models.ErrSelfReference, parentID)
	}

	parent, err := g.products.GetByID(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("parent %d: %w", parentID, err)
	}
	child, err := g.products.GetByID(ctx, childID)
	if err != nil {
		return nil, fmt.Errorf("component %d: %w", childID, err)
	}
	if err := parent.CheckEditable(); err != nil {
		return nil, err
	}
	if !parent.CanHaveComponents {
		return nil, fmt.Errorf("%w: product %s cannot have components", models.ErrInvalidComponent, parent.SKU)
	}
	if !child.CanBeComponent {
		return nil, fmt.Errorf("%w: product %s cannot be used as a component", models.ErrInvalidComponent, child.SKU)
	}
	if !child.IsActive() {
		return nil, fmt.Errorf("%w: component %s is %s", models.ErrProductUnavailable, child.SKU, child.Status)
	}

	cycle, err := g.HasPath(ctx, childID, parentID)
	if err != nil {
		return nil, err
	}
	if cycle {
		return nil, fmt.Errorf("%w: %s already contains %s", models.ErrCircularReference, child.SKU, parent.SKU)
	}

	above, err := g.height(ctx, parentID, g.parentsOf)
	if err != nil {
		return nil, err
	}
	below, err := g.height(ctx, childID, g.childrenOf)
	if err != nil {
		return nil, err
	}
	if depth := above + 1 + below; depth > MaxDepth {
		return nil, fmt.Errorf("%w: attaching %s under %s would create a path of length %d (max %d)",
			models.ErrMaxDepthExceeded, child.SKU, parent.SKU, depth, MaxDepth)
	}

	exists, err := g.edges.Exists(ctx, parentID, childID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s is already a component of %s", models.ErrDuplicateEdge, child.SKU, parent.SKU)
	}

	edge := cfg.Edge(parentID, childID)
	if err := g.edges.Insert(ctx, edge); err != nil {
		return nil, err
	}
	return edge, nil
}

// RemoveEdge detaches child from parent. Removing an edge never violates a
// structural rule, but the parent must still be the live version.
func (g *Graph) RemoveEdge(ctx context.Context, parentID, childID int64) error {
	parent, err := g.products.GetByID(ctx, parentID)
	if err != nil {
		return fmt.Errorf("parent %d: %w", parentID, err)
	}
	if err := parent.CheckEditable(); err != nil {
		return err
	}
	removed, err := g.edges.Delete(ctx, parentID, childID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: %d -> %d", models.ErrEdgeNotFound, parentID, childID)
	}
	return nil
}

// DirectChildren returns the outgoing edges of productID ordered by sort order.
func (g *Graph) DirectChildren(ctx context.Context, productID int64) ([]models.ComponentEdge, error) {
	return g.edges.Children(ctx, productID)
}

// HasPath reports whether a path of one or more edges leads from -> to.
func (g *Graph) HasPath(ctx context.Context, from, to int64) (bool, error) {
	seen := map[int64]bool{from: true}
	queue := []int64{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		next, err := g.childrenOf(ctx, cur)
		if err != nil {
			return false, err
		}
		for _, id := range next {
			if id == to {
				return true, nil
			}
			if !seen[id] {
				seen[id] = true
				queue = append(queue, id)
			}
		}
	}
	return false, nil
}

// DeleteProduct physically removes a product. A product that is still a
// component of another product is rejected; its own outgoing edges are removed
// with it.
func (g *Graph) DeleteProduct(ctx context.Context, productID int64) error {
	p, err := g.products.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	parents, err := g.edges.Parents(ctx, productID)
	if err != nil {
		return err
	}
	if len(parents) > 0 {
		return fmt.Errorf("%w: %s is a component of %d product(s), first parent %d",
			models.ErrComponentInUse, p.SKU, len(parents), parents[0].ParentProductID)
	}
	if err := g.edges.DeleteByParent(ctx, productID); err != nil {
		return err
	}
	return g.products.Delete(ctx, productID)
}

// CopyOutgoing duplicates every outgoing edge of fromID onto toID with the same
// configuration. Incoming edges are not touched.
func (g *Graph) CopyOutgoing(ctx context.Context, fromID, toID int64) (int, error) {
	children, err := g.edges.Children(ctx, fromID)
	if err != nil {
		return 0, err
	}
	for _, e := range children {
		cp := e
		cp.ID = 0
		cp.ParentProductID = toID
		if e.PriceOverride != nil {
			v := *e.PriceOverride
			cp.PriceOverride = &v
		}
		if err := g.edges.Insert(ctx, &cp); err != nil {
			return 0, fmt.Errorf("copy edge %d -> %d: %w", toID, e.ComponentProductID, err)
		}
	}
	return len(children), nil
}

// LongestPathFrom returns the length of the longest path starting at productID.
func (g *Graph) LongestPathFrom(ctx context.Context, productID int64) (int, error) {
	return g.height(ctx, productID, g.childrenOf)
}

// height walks in one direction and returns the longest chain length found.
// The walk stops one level past MaxDepth, which is enough to detect a
// violation without traversing an arbitrarily large graph.
func (g *Graph) height(ctx context.Context, start int64, next func(context.Context, int64) ([]int64, error)) (int, error) {
	type item struct {
		id    int64
		depth int
	}
	longest := 0
	stack := []item{{start, 0}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.depth > longest {
			longest = cur.depth
		}
		if cur.depth > MaxDepth {
			continue
		}
		ids, err := next(ctx, cur.id)
		if err != nil {
			return 0, err
		}
		for _, id := range ids {
			stack = append(stack, item{id, cur.depth + 1})
		}
	}
	return longest, nil
}

func (g *Graph) childrenOf(ctx context.Context, id int64) ([]int64, error) {
	edges, err := g.edges.Children(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(edges))
	for i, e := range edges {
		ids[i] = e.ComponentProductID
	}
	return ids, nil
}

func (g *Graph) parentsOf(ctx context.Context, id int64) ([]int64, error) {
	edges, err := g.edges.Parents(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(edges))
	for i, e := range edges {
		ids[i] = e.ParentProductID
	}
	return ids, nil
}
