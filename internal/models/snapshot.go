package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ComponentSnapshot is one frozen node of a component tree. Depth-2 nodes
// always carry an empty, non-nil Components slice.
type ComponentSnapshot struct {
	ComponentID      int64               `json:"componentId"`
	ComponentSKU     string              `json:"componentSku"`
	ComponentName    string              `json:"componentName"`
	ComponentVersion int                 `json:"componentVersion"`
	Quantity         int                 `json:"quantity"`
	Price            int64               `json:"price"`
	IsRequired       bool                `json:"isRequired"`
	IsIncluded       bool                `json:"isIncluded"`
	Category         string              `json:"category"`
	Components       []ComponentSnapshot `json:"components"`
}

// ComponentTree is the depth-1 list of a frozen tree, stored as JSON.
type ComponentTree []ComponentSnapshot

// Value implements driver.Valuer.
func (t ComponentTree) Value() (driver.Value, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t)
}

// Scan implements sql.Scanner.
func (t *ComponentTree) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*t = ComponentTree{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("ComponentTree.Scan: expected []byte, got %T", src)
	}
	var out ComponentTree
	if err := json.Unmarshal(b, &out); err != nil {
		return err
	}
	if out == nil {
		out = ComponentTree{}
	}
	*t = out
	return nil
}

// Clone returns a deep copy of the tree.
func (t ComponentTree) Clone() ComponentTree {
	out := make(ComponentTree, len(t))
	for i, n := range t {
		out[i] = n
		out[i].Components = ComponentTree(n.Components).Clone()
	}
	return out
}

// ProductTree is the live (unfrozen) projection of a product's component tree
// used for admin previews. Same node shape as a snapshot.
type ProductTree struct {
	ProductID               int64         `json:"productId"`
	SKU                     string        `json:"sku"`
	Name                    string        `json:"name"`
	Version                 int           `json:"version"`
	Category                string        `json:"category"`
	Status                  ProductStatus `json:"status"`
	BasePrice               int64         `json:"basePrice"`
	Components              ComponentTree `json:"components"`
	IncludedComponentsTotal int64         `json:"includedComponentsTotal"`
	OptionalComponentsTotal int64         `json:"optionalComponentsTotal"`
	UnitTotal               int64         `json:"unitTotal"`
}

// JSONB wraps a value stored in a jsonb column.
type JSONB[T any] struct {
	Data T
}

// Scan implements sql.Scanner.
func (p *JSONB[T]) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, &p.Data)
	case string:
		return json.Unmarshal([]byte(v), &p.Data)
	default:
		return fmt.Errorf("JSONB.Scan: expected []byte, got %T", src)
	}
}

// Value implements driver.Valuer.
func (p JSONB[T]) Value() (driver.Value, error) {
	return json.Marshal(p.Data)
}

// MarshalJSON writes the wrapped value directly.
func (p JSONB[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Data)
}

// UnmarshalJSON reads the wrapped value directly.
func (p *JSONB[T]) UnmarshalJSON(b []byte) error {
	return json.Unmarshal(b, &p.Data)
}
