// Package versioning decides whether a product edit mutates the row in place
// or forks a new version, and carries out the fork. A product that appears in
// any stored order is never mutated: its edits produce a new version and the
// old one is sunset.
package versioning

import (
	"context"
	"fmt"

	"github.com/GTDGit/catalog_api/internal/graph"
	"github.com/GTDGit/catalog_api/internal/models"
	"github.com/GTDGit/catalog_api/internal/store"
	"github.com/GTDGit/catalog_api/internal/usage"
	"github.com/GTDGit/catalog_api/pkg/sku"
)

// Manager is the version manager bound to one transaction.
type Manager struct {
	products store.Products
	edges    store.Edges
	history  store.History
	events   store.Events
	graph    *graph.Graph
	usage    *usage.Index
}

// New binds a Manager to tx.
func New(tx store.Tx) *Manager {
	return &Manager{
		products: tx.Products(),
		edges:    tx.Edges(),
		history:  tx.History(),
		events:   tx.Events(),
		graph:    graph.New(tx),
		usage:    usage.New(tx),
	}
}

// UpdateResult is the outcome of ApplyUpdate. Previous is set only when a new
// version was forked.
type UpdateResult struct {
	Versioned bool            `json:"versioned"`
	Product   *models.Product `json:"product"`
	Previous  *models.Product `json:"previous,omitempty"`
	// OrderCount is the number of orders that forced the fork.
	OrderCount int `json:"orderCount,omitempty"`
}

// DiscontinueResult is the outcome of Discontinue. Deleted is true when the
// product was never ordered and has been removed from the catalog.
type DiscontinueResult struct {
	Deleted bool            `json:"deleted"`
	Product *models.Product `json:"product"`
}

type versionedPayload struct {
	Previous *models.Product `json:"previous"`
	Product  *models.Product `json:"product"`
}

// ShouldVersion reports whether productID is referenced by any order at any
// depth.
func (m *Manager) ShouldVersion(ctx context.Context, productID int64) (bool, error) {
	return m.usage.IsUsed(ctx, productID)
}

// ApplyUpdate merges changes over productID. When expectedVersion is set it
// must match the stored version. Only the active version of a lineage can be
// edited. Component flags cannot be switched off while edges still rely on
// them.
func (m *Manager) ApplyUpdate(ctx context.Context, productID int64, changes models.ProductChanges, expectedVersion *int) (*UpdateResult, error) {
	current, err := m.products.GetByIDForUpdate(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := checkEditable(current, expectedVersion); err != nil {
		return nil, err
	}
	if changes.IsEmpty() {
		return &UpdateResult{Product: current}, nil
	}
	if err := m.checkFlagChanges(ctx, current, changes); err != nil {
		return nil, err
	}

	used, err := m.ShouldVersion(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !used {
		return m.updateInPlace(ctx, current, changes)
	}
	return m.fork(ctx, current, changes)
}

func checkEditable(p *models.Product, expectedVersion *int) error {
	if err := p.CheckEditable(); err != nil {
		return err
	}
	if expectedVersion != nil && *expectedVersion != p.Version {
		return fmt.Errorf("%w: %s is at version %d, expected %d",
			models.ErrStaleVersion, p.SKU, p.Version, *expectedVersion)
	}
	return nil
}

func (m *Manager) checkFlagChanges(ctx context.Context, p *models.Product, changes models.ProductChanges) error {
	if changes.CanHaveComponents != nil && !*changes.CanHaveComponents && p.CanHaveComponents {
		children, err := m.edges.Children(ctx, p.ID)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return fmt.Errorf("%w: %s still has %d component(s)", models.ErrInvalidComponent, p.SKU, len(children))
		}
	}
	if changes.CanBeComponent != nil && !*changes.CanBeComponent && p.CanBeComponent {
		parents, err := m.edges.Parents(ctx, p.ID)
		if err != nil {
			return err
		}
		if len(parents) > 0 {
			return fmt.Errorf("%w: %s is a component of %d product(s)", models.ErrInvalidComponent, p.SKU, len(parents))
		}
	}
	return nil
}

func (m *Manager) updateInPlace(ctx context.Context, current *models.Product, changes models.ProductChanges) (*UpdateResult, error) {
	before := *current
	changes.Apply(current)
	if err := m.products.Update(ctx, current); err != nil {
		return nil, err
	}

	err := m.record(ctx, &models.ProductHistory{
		BaseProductID: current.LineageID(),
		ProductID:     current.ID,
		ChangeType:    models.ChangeUpdate,
		OldSnapshot:   &models.JSONB[models.Product]{Data: before},
		NewSnapshot:   &models.JSONB[models.Product]{Data: *current},
		Description:   fmt.Sprintf("updated %s in place", current.SKU),
	}, models.EventProductUpdated, current)
	if err != nil {
		return nil, err
	}
	return &UpdateResult{Product: current}, nil
}

// fork creates version N+1 from current, copies its outgoing edges and sunsets
// current. Incoming edges keep pointing at the old version.
func (m *Manager) fork(ctx context.Context, current *models.Product, changes models.ProductChanges) (*UpdateResult, error) {
	nextSKU, err := sku.IncrementVersion(current.SKU)
	if err != nil {
		return nil, err
	}
	orders, err := m.usage.OrderCount(ctx, current.ID)
	if err != nil {
		return nil, err
	}

	next := *current
	changes.Apply(&next)
	lineage := current.LineageID()
	prev := current.ID
	next.ID = 0
	next.SKU = nextSKU
	next.Version = current.Version + 1
	next.BaseProductID = &lineage
	next.PreviousVersionID = &prev
	next.ReplacedBy = nil
	next.Status = models.StatusActive
	next.DiscontinuedReason = nil

	// The lineage may hold one active row at a time, so sunset first.
	old := *current
	current.Status = models.StatusSunset
	if err := m.products.Update(ctx, current); err != nil {
		return nil, err
	}
	if err := m.products.Create(ctx, &next); err != nil {
		return nil, err
	}
	current.ReplacedBy = &next.ID
	if err := m.products.Update(ctx, current); err != nil {
		return nil, err
	}
	if _, err := m.graph.CopyOutgoing(ctx, current.ID, next.ID); err != nil {
		return nil, err
	}

	err = m.record(ctx, &models.ProductHistory{
		BaseProductID:     lineage,
		ProductID:         next.ID,
		PreviousProductID: &prev,
		ChangeType:        models.ChangeVersion,
		OldSnapshot:       &models.JSONB[models.Product]{Data: old},
		NewSnapshot:       &models.JSONB[models.Product]{Data: next},
		Description: fmt.Sprintf("%s is used in %d order(s); created %s instead of modifying it",
			current.SKU, orders, next.SKU),
	}, models.EventProductVersioned, versionedPayload{Previous: current, Product: &next})
	if err != nil {
		return nil, err
	}
	return &UpdateResult{Versioned: true, Product: &next, Previous: current, OrderCount: orders}, nil
}

// Discontinue retires productID. An ordered product is kept and moved to
// discontinued; a product no order references is deleted, which fails with
// models.ErrComponentInUse while another product still uses it as a component.
func (m *Manager) Discontinue(ctx context.Context, productID int64, reason string) (*DiscontinueResult, error) {
	current, err := m.products.GetByIDForUpdate(ctx, productID)
	if err != nil {
		return nil, err
	}
	used, err := m.ShouldVersion(ctx, productID)
	if err != nil {
		return nil, err
	}

	if !used {
		if err := m.graph.DeleteProduct(ctx, productID); err != nil {
			return nil, err
		}
		err := m.record(ctx, &models.ProductHistory{
			BaseProductID: current.LineageID(),
			ProductID:     current.ID,
			ChangeType:    models.ChangeDelete,
			OldSnapshot:   &models.JSONB[models.Product]{Data: *current},
			Description:   fmt.Sprintf("deleted %s: %s", current.SKU, reason),
		}, models.EventProductDeleted, current)
		if err != nil {
			return nil, err
		}
		return &DiscontinueResult{Deleted: true, Product: current}, nil
	}

	if !current.Status.CanTransition(models.StatusDiscontinued) {
		return nil, fmt.Errorf("%w: %s is already %s", models.ErrInvalidTransition, current.SKU, current.Status)
	}
	before := *current
	current.Status = models.StatusDiscontinued
	if reason != "" {
		current.DiscontinuedReason = &reason
	}
	if err := m.products.Update(ctx, current); err != nil {
		return nil, err
	}

	err = m.record(ctx, &models.ProductHistory{
		BaseProductID: current.LineageID(),
		ProductID:     current.ID,
		ChangeType:    models.ChangeDiscontinue,
		OldSnapshot:   &models.JSONB[models.Product]{Data: before},
		NewSnapshot:   &models.JSONB[models.Product]{Data: *current},
		Description:   fmt.Sprintf("discontinued %s: %s", current.SKU, reason),
	}, models.EventProductDiscontinued, current)
	if err != nil {
		return nil, err
	}
	return &DiscontinueResult{Product: current}, nil
}

// record appends a history row and the matching outbox event.
func (m *Manager) record(ctx context.Context, h *models.ProductHistory, eventType string, payload any) error {
	if err := m.history.Append(ctx, h); err != nil {
		return err
	}
	ev, err := models.NewCatalogEvent(eventType, h.ProductID, payload)
	if err != nil {
		return err
	}
	return m.events.Append(ctx, ev)
}
