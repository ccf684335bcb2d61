package models

import "time"

// ComponentEdge links a parent product to one of its components.
type ComponentEdge struct {
	ID                 int64     `db:"id" json:"id"`
	ParentProductID    int64     `db:"parent_product_id" json:"parentProductId"`
	ComponentProductID int64     `db:"component_product_id" json:"componentProductId"`
	Quantity           int       `db:"quantity" json:"quantity"`
	IsRequired         bool      `db:"is_required" json:"isRequired"`
	IsIncluded         bool      `db:"is_included" json:"isIncluded"`
	PriceOverride      *int64    `db:"price_override" json:"priceOverride,omitempty"`
	SortOrder          int       `db:"sort_order" json:"sortOrder"`
	CreatedAt          time.Time `db:"created_at" json:"createdAt"`
}

// EdgeConfig is the per-edge configuration supplied when attaching a component.
type EdgeConfig struct {
	Quantity      int    `json:"quantity" validate:"gte=1"`
	IsRequired    bool   `json:"isRequired"`
	IsIncluded    bool   `json:"isIncluded"`
	PriceOverride *int64 `json:"priceOverride" validate:"omitempty,gte=0"`
	SortOrder     int    `json:"sortOrder"`
}

// Edge builds the edge row for this config.
func (c EdgeConfig) Edge(parentID, componentID int64) *ComponentEdge {
	e := &ComponentEdge{
		ParentProductID:    parentID,
		ComponentProductID: componentID,
		Quantity:           c.Quantity,
		IsRequired:         c.IsRequired,
		IsIncluded:         c.IsIncluded,
		SortOrder:          c.SortOrder,
	}
	if c.PriceOverride != nil {
		v := *c.PriceOverride
		e.PriceOverride = &v
	}
	return e
}
