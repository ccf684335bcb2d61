package models

import "errors"

// Catalog errors. Callers wrap them with detail via fmt.Errorf("%w: ...") and
// match with errors.Is.
var (
	// Structural violations of the component graph.
	ErrSelfReference     = errors.New("SELF_REFERENCE")
	ErrCircularReference = errors.New("CIRCULAR_REFERENCE")
	ErrMaxDepthExceeded  = errors.New("MAX_DEPTH_EXCEEDED")
	ErrDuplicateEdge     = errors.New("DUPLICATE_EDGE")
	ErrInvalidComponent  = errors.New("INVALID_COMPONENT")
	ErrEdgeNotFound      = errors.New("EDGE_NOT_FOUND")

	// Referential violations.
	ErrComponentInUse     = errors.New("COMPONENT_IN_USE")
	ErrProductNotFound    = errors.New("PRODUCT_NOT_FOUND")
	ErrProductUnavailable = errors.New("PRODUCT_UNAVAILABLE")
	ErrInvalidTransition  = errors.New("INVALID_STATUS_TRANSITION")
	ErrSKUExists          = errors.New("SKU_EXISTS")

	// Concurrency conflicts.
	ErrStaleVersion = errors.New("STALE_VERSION")

	// Checkout.
	ErrInsufficientStock = errors.New("INSUFFICIENT_STOCK")
	ErrItemUnavailable   = errors.New("ITEM_UNAVAILABLE")
	ErrOrderNotFound     = errors.New("ORDER_NOT_FOUND")

	ErrInvalidRequest     = errors.New("INVALID_REQUEST")
	ErrCatalogUnavailable = errors.New("CATALOG_UNAVAILABLE")
)
