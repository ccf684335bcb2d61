package models

import (
	"fmt"
	"strconv"
	"time"
)

// ProductStatus is the lifecycle state of a product version.
type ProductStatus string

const (
	StatusActive       ProductStatus = "active"
	StatusSunset       ProductStatus = "sunset"
	StatusDiscontinued ProductStatus = "discontinued"
)

// CanTransition reports whether a version may move from one status to another.
// Transitions only go forward: active -> sunset -> discontinued.
func (s ProductStatus) CanTransition(to ProductStatus) bool {
	switch s {
	case StatusActive:
		return to == StatusSunset || to == StatusDiscontinued
	case StatusSunset:
		return to == StatusDiscontinued
	default:
		return false
	}
}

// Product is a catalog entry. It can be sold standalone, used as a component
// of another product, or both. Each edit of an ordered product produces a new
// row (version) in the same lineage.
type Product struct {
	ID                 int64         `db:"id" json:"id"`
	SKU                string        `db:"sku" json:"sku"`
	Name               string        `db:"name" json:"name"`
	Category           string        `db:"category" json:"category"`
	Description        string        `db:"description" json:"description"`
	BasePrice          int64         `db:"base_price" json:"basePrice"`
	ComponentPrice     *int64        `db:"component_price" json:"componentPrice,omitempty"`
	CanBeComponent     bool          `db:"can_be_component" json:"canBeComponent"`
	CanHaveComponents  bool          `db:"can_have_components" json:"canHaveComponents"`
	StockQuantity      *int          `db:"stock_quantity" json:"stockQuantity,omitempty"`
	Version            int           `db:"version" json:"version"`
	BaseProductID      *int64        `db:"base_product_id" json:"baseProductId,omitempty"`
	PreviousVersionID  *int64        `db:"previous_version_id" json:"previousVersionId,omitempty"`
	ReplacedBy         *int64        `db:"replaced_by" json:"replacedBy,omitempty"`
	Status             ProductStatus `db:"status" json:"status"`
	DiscontinuedReason *string       `db:"discontinued_reason" json:"discontinuedReason,omitempty"`
	CreatedAt          time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updatedAt"`
}

// LineageID returns the id of the first version in this product's lineage.
func (p *Product) LineageID() int64 {
	if p.BaseProductID != nil {
		return *p.BaseProductID
	}
	return p.ID
}

// IsActive reports whether the product is the live version of its lineage.
func (p *Product) IsActive() bool {
	return p.Status == StatusActive
}

// CheckEditable rejects changes to a version that is no longer live. A
// sunset version reports its replacement.
func (p *Product) CheckEditable() error {
	switch p.Status {
	case StatusSunset:
		head := "unknown"
		if p.ReplacedBy != nil {
			head = strconv.FormatInt(*p.ReplacedBy, 10)
		}
		return fmt.Errorf("%w: %s was replaced by product %s", ErrStaleVersion, p.SKU, head)
	case StatusDiscontinued:
		return fmt.Errorf("%w: %s is discontinued", ErrProductUnavailable, p.SKU)
	}
	return nil
}

// EffectiveComponentPrice is the price of the product when sold as a sub-part.
func (p *Product) EffectiveComponentPrice() int64 {
	if p.ComponentPrice != nil {
		return *p.ComponentPrice
	}
	return p.BasePrice
}

// ProductChanges is a partial update. Nil fields are left untouched.
type ProductChanges struct {
	Name                *string `json:"name" validate:"omitempty,min=1,max=255"`
	Description         *string `json:"description"`
	BasePrice           *int64  `json:"basePrice" validate:"omitempty,gte=0"`
	ComponentPrice      *int64  `json:"componentPrice" validate:"omitempty,gte=0"`
	ClearComponentPrice bool    `json:"clearComponentPrice"`
	CanBeComponent      *bool   `json:"canBeComponent"`
	CanHaveComponents   *bool   `json:"canHaveComponents"`
	StockQuantity       *int    `json:"stockQuantity" validate:"omitempty,gte=0"`
}

// IsEmpty reports whether the changes would modify nothing.
func (c *ProductChanges) IsEmpty() bool {
	return c.Name == nil && c.Description == nil && c.BasePrice == nil &&
		c.ComponentPrice == nil && !c.ClearComponentPrice && c.CanBeComponent == nil &&
		c.CanHaveComponents == nil && c.StockQuantity == nil
}

// Apply merges the changes over p.
func (c *ProductChanges) Apply(p *Product) {
	if c.Name != nil {
		p.Name = *c.Name
	}
	if c.Description != nil {
		p.Description = *c.Description
	}
	if c.BasePrice != nil {
		p.BasePrice = *c.BasePrice
	}
	if c.ClearComponentPrice {
		p.ComponentPrice = nil
	}
	if c.ComponentPrice != nil {
		v := *c.ComponentPrice
		p.ComponentPrice = &v
	}
	if c.CanBeComponent != nil {
		p.CanBeComponent = *c.CanBeComponent
	}
	if c.CanHaveComponents != nil {
		p.CanHaveComponents = *c.CanHaveComponents
	}
	if c.StockQuantity != nil {
		v := *c.StockQuantity
		p.StockQuantity = &v
	}
}

// ProductFilter holds admin listing filters.
type ProductFilter struct {
	Status *ProductStatus
	Page   int
	Limit  int
}
