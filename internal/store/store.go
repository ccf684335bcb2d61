// Package store defines the storage ports used by the catalog core. The
// PostgreSQL implementation lives in internal/repository and an in-memory one
// in internal/store/memstore.
package store

import (
	"context"
	"database/sql"

	"github.com/GTDGit/catalog_api/internal/models"
)

// Products is the product table.
type Products interface {
	// GetByID returns models.ErrProductNotFound when the row does not exist.
	GetByID(ctx context.Context, id int64) (*models.Product, error)
	// GetByIDForUpdate is GetByID with a row lock held until the transaction ends.
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Product, error)
	GetBySKU(ctx context.Context, sku string) (*models.Product, error)
	// Create fills ID, CreatedAt and UpdatedAt. Returns models.ErrSKUExists on conflict.
	Create(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter models.ProductFilter) ([]models.Product, int, error)
	ListLineage(ctx context.Context, baseID int64) ([]models.Product, error)
	// DecrementStock lowers a tracked stock level. Untracked (NULL) stock is
	// left alone. Returns models.ErrInsufficientStock if the level would go negative.
	DecrementStock(ctx context.Context, id int64, qty int) error
}

// Edges is the parent -> component edge list.
type Edges interface {
	Exists(ctx context.Context, parentID, componentID int64) (bool, error)
	// Children returns outgoing edges ordered by sort_order, then component id.
	Children(ctx context.Context, parentID int64) ([]models.ComponentEdge, error)
	// Parents returns incoming edges ordered by parent id.
	Parents(ctx context.Context, componentID int64) ([]models.ComponentEdge, error)
	// Insert returns models.ErrDuplicateEdge when (parent, component) exists.
	Insert(ctx context.Context, e *models.ComponentEdge) error
	// Delete reports whether a row was removed.
	Delete(ctx context.Context, parentID, componentID int64) (bool, error)
	DeleteByParent(ctx context.Context, parentID int64) error
}

// Orders persists orders and their line items.
type Orders interface {
	// Create inserts the order and all of o.Items, filling ids.
	Create(ctx context.Context, o *models.Order) error
	GetByID(ctx context.Context, id int64) (*models.Order, error)
}

// Usage is the order usage reverse index.
type Usage interface {
	Record(ctx context.Context, rows []models.ProductUsage) error
	Exists(ctx context.Context, productID int64) (bool, error)
	CountOrders(ctx context.Context, productID int64) (int, error)
}

// History is the append-only product change log.
type History interface {
	Append(ctx context.Context, h *models.ProductHistory) error
	ListByLineage(ctx context.Context, baseID int64) ([]models.ProductHistory, error)
}

// Events is the catalog outbox.
type Events interface {
	Append(ctx context.Context, e *models.CatalogEvent) error
	ListUnpublished(ctx context.Context, limit int) ([]models.CatalogEvent, error)
	MarkPublished(ctx context.Context, ids []int64) error
}

// Tx is a set of tables bound to one transaction.
type Tx interface {
	Products() Products
	Edges() Edges
	Orders() Orders
	Usage() Usage
	History() History
	Events() Events
}

// TxOptions selects isolation for InTx.
type TxOptions struct {
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

var (
	// Serializable is used for every catalog mutation and checkout.
	Serializable = TxOptions{Isolation: sql.LevelSerializable}
	// RepeatableRead is used for reads spanning several queries, such as tree
	// projections, that must see one consistent catalog state.
	RepeatableRead = TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	// ReadCommitted is used for plain reads.
	ReadCommitted = TxOptions{Isolation: sql.LevelReadCommitted, ReadOnly: true}
)

// Store opens transactions.
type Store interface {
	// InTx runs fn in a transaction. The transaction commits when fn returns
	// nil and rolls back otherwise.
	InTx(ctx context.Context, opts TxOptions, fn func(ctx context.Context, tx Tx) error) error
	// IsRetryable reports whether err is a transient failure (serialization
	// conflict, deadlock, lost connection) worth retrying at the transaction boundary.
	IsRetryable(err error) bool
	Ping(ctx context.Context) error
}
