package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/catalog_api/internal/cache"
	"github.com/GTDGit/catalog_api/internal/config"
	"github.com/GTDGit/catalog_api/internal/graph"
	"github.com/GTDGit/catalog_api/internal/metrics"
	"github.com/GTDGit/catalog_api/internal/models"
	"github.com/GTDGit/catalog_api/internal/snapshot"
	"github.com/GTDGit/catalog_api/internal/store"
	"github.com/GTDGit/catalog_api/internal/versioning"
	"github.com/GTDGit/catalog_api/pkg/sku"
)

// CatalogService orchestrates catalog edits and checkout. It owns the
// transaction boundary: every operation runs in one transaction, retried on
// transient failures.
type CatalogService struct {
	store       store.Store
	trees       *cache.TreeCache
	maxAttempts int
	backoff     time.Duration
}

// NewCatalogService constructs a CatalogService. trees may be nil.
func NewCatalogService(st store.Store, trees *cache.TreeCache, cfg config.CatalogConfig) *CatalogService {
	attempts := cfg.TxMaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &CatalogService{
		store:       st,
		trees:       trees,
		maxAttempts: attempts,
		backoff:     cfg.TxBackoff,
	}
}

// Ping checks the backing store.
func (s *CatalogService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// CreateProduct creates version 1 of a new product lineage.
func (s *CatalogService) CreateProduct(ctx context.Context, req *CreateProductRequest) (*models.Product, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	code, err := sku.Encode(req.Prefix, req.Category, req.Code, 1)
	if err != nil {
		return nil, err
	}
	parts, err := sku.Decode(code)
	if err != nil {
		return nil, err
	}

	var product *models.Product
	err = s.inTx(ctx, "create_product", store.Serializable, func(ctx context.Context, tx store.Tx) error {
		product = &models.Product{
			SKU:               code,
			Name:              req.Name,
			Category:          parts.Category,
			Description:       req.Description,
			BasePrice:         req.BasePrice,
			ComponentPrice:    req.ComponentPrice,
			CanBeComponent:    req.CanBeComponent,
			CanHaveComponents: req.CanHaveComponents,
			StockQuantity:     req.StockQuantity,
			Version:           1,
			Status:            models.StatusActive,
		}
		if err := tx.Products().Create(ctx, product); err != nil {
			return err
		}
		return appendEvent(ctx, tx, models.EventProductCreated, product.ID, product)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("product_id", product.ID).Str("sku", product.SKU).Msg("product created")
	return product, nil
}

// UpdateProduct applies a partial update. A product referenced by any order
// is never modified: a new version is forked and returned with Versioned set.
func (s *CatalogService) UpdateProduct(ctx context.Context, id int64, req *UpdateProductRequest) (*versioning.UpdateResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var res *versioning.UpdateResult
	err := s.inTx(ctx, "update_product", store.Serializable, func(ctx context.Context, tx store.Tx) error {
		var err error
		res, err = versioning.New(tx).ApplyUpdate(ctx, id, req.ProductChanges, req.ExpectedVersion)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.trees.Invalidate(ctx)

	if res.Versioned {
		metrics.ProductsVersionedTotal.Inc()
		log.Info().
			Int64("product_id", res.Previous.ID).
			Str("sku", res.Previous.SKU).
			Int64("new_product_id", res.Product.ID).
			Str("new_sku", res.Product.SKU).
			Int("version", res.Product.Version).
			Int("order_count", res.OrderCount).
			Msg("product used in orders, new version created")
	}
	return res, nil
}

// DiscontinueProduct retires a product: ordered products are kept with status
// discontinued, others are deleted.
func (s *CatalogService) DiscontinueProduct(ctx context.Context, id int64, reason string) (*versioning.DiscontinueResult, error) {
	var res *versioning.DiscontinueResult
	err := s.inTx(ctx, "discontinue_product", store.Serializable, func(ctx context.Context, tx store.Tx) error {
		var err error
		res, err = versioning.New(tx).Discontinue(ctx, id, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.trees.Invalidate(ctx)

	log.Info().Int64("product_id", id).Str("sku", res.Product.SKU).Bool("deleted", res.Deleted).Msg("product discontinued")
	return res, nil
}

// GetProduct returns a product by id.
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var p *models.Product
	err := s.inTx(ctx, "get_product", store.ReadCommitted, func(ctx context.Context, tx store.Tx) error {
		var err error
		p, err = tx.Products().GetByID(ctx, id)
		return err
	})
	return p, err
}

// GetProductBySKU returns the product carrying code. A malformed code is
// rejected before the store is touched.
func (s *CatalogService) GetProductBySKU(ctx context.Context, code string) (*models.Product, error) {
	if err := sku.Validate(code); err != nil {
		return nil, err
	}
	var p *models.Product
	err := s.inTx(ctx, "get_product_by_sku", store.ReadCommitted, func(ctx context.Context, tx store.Tx) error {
		var err error
		p, err = tx.Products().GetBySKU(ctx, code)
		return err
	})
	return p, err
}

// ListProducts returns one page of products and the total count.
func (s *CatalogService) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, int, error) {
	var (
		products []models.Product
		total    int
	)
	err := s.inTx(ctx, "list_products", store.ReadCommitted, func(ctx context.Context, tx store.Tx) error {
		var err error
		products, total, err = tx.Products().List(ctx, filter)
		return err
	})
	return products, total, err
}

// ListVersions returns every version in the lineage of id, oldest first.
func (s *CatalogService) ListVersions(ctx context.Context, id int64) ([]models.Product, error) {
	var versions []models.Product
	err := s.inTx(ctx, "list_versions", store.RepeatableRead, func(ctx context.Context, tx store.Tx) error {
		p, err := tx.Products().GetByID(ctx, id)
		if err != nil {
			return err
		}
		versions, err = tx.Products().ListLineage(ctx, p.LineageID())
		return err
	})
	return versions, err
}

// GetProductHistory returns the change log of the lineage of id.
func (s *CatalogService) GetProductHistory(ctx context.Context, id int64) ([]models.ProductHistory, error) {
	var history []models.ProductHistory
	err := s.inTx(ctx, "get_product_history", store.RepeatableRead, func(ctx context.Context, tx store.Tx) error {
		p, err := tx.Products().GetByID(ctx, id)
		if err != nil {
			return err
		}
		history, err = tx.History().ListByLineage(ctx, p.LineageID())
		return err
	})
	return history, err
}

// AddComponent attaches a component to parentID.
func (s *CatalogService) AddComponent(ctx context.Context, parentID int64, req *AddComponentRequest) (*models.ComponentEdge, error) {
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var edge *models.ComponentEdge
	err := s.inTx(ctx, "add_component", store.Serializable, func(ctx context.Context, tx store.Tx) error {
		var err error
		edge, err = graph.New(tx).AddEdge(ctx, parentID, req.ComponentID, req.EdgeConfig)
		if err != nil {
			return err
		}
		return appendEvent(ctx, tx, models.EventComponentAdded, parentID, edge)
	})
	if err != nil {
		if reason := rejectionReason(err); reason != "" {
			metrics.GraphRejectionsTotal.WithLabelValues(reason).Inc()
		}
		return nil, err
	}
	s.trees.Invalidate(ctx)
	return edge, nil
}

// RemoveComponent detaches componentID from parentID.
func (s *CatalogService) RemoveComponent(ctx context.Context, parentID, componentID int64) error {
	err := s.inTx(ctx, "remove_component", store.Serializable, func(ctx context.Context, tx store.Tx) error {
		if err := graph.New(tx).RemoveEdge(ctx, parentID, componentID); err != nil {
			return err
		}
		return appendEvent(ctx, tx, models.EventComponentRemoved, parentID, map[string]int64{
			"parentProductId":    parentID,
			"componentProductId": componentID,
		})
	})
	if err != nil {
		return err
	}
	s.trees.Invalidate(ctx)
	return nil
}

// GetProductTree returns the live component tree of id with unit pricing.
// The result reflects current catalog state and is not frozen.
func (s *CatalogService) GetProductTree(ctx context.Context, id int64) (*models.ProductTree, error) {
	cached, gen, ok := s.trees.Get(ctx, id)
	if ok {
		return cached, nil
	}

	var tree *models.ProductTree
	err := s.inTx(ctx, "get_product_tree", store.RepeatableRead, func(ctx context.Context, tx store.Tx) error {
		var err error
		tree, err = snapshot.New(tx).Tree(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.trees.Set(ctx, gen, tree)
	return tree, nil
}

func appendEvent(ctx context.Context, tx store.Tx, eventType string, aggregateID int64, payload any) error {
	ev, err := models.NewCatalogEvent(eventType, aggregateID, payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}
	return tx.Events().Append(ctx, ev)
}

var graphRejections = []error{
	models.ErrSelfReference,
	models.ErrCircularReference,
	models.ErrMaxDepthExceeded,
	models.ErrDuplicateEdge,
	models.ErrInvalidComponent,
	models.ErrProductUnavailable,
}

// rejectionReason returns the code of a graph rule violation, or "".
func rejectionReason(err error) string {
	for _, target := range graphRejections {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return ""
}
