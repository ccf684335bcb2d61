package models

import "time"

// SnapshotVersion identifies the layout of ComponentTree stored on line items.
const SnapshotVersion = 1

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is a placed order with its frozen line items.
type Order struct {
	ID            int64           `db:"id" json:"id"`
	OrderNumber   string          `db:"order_number" json:"orderNumber"`
	Status        OrderStatus     `db:"status" json:"status"`
	CustomerEmail string          `db:"customer_email" json:"customerEmail"`
	Notes         *string         `db:"notes" json:"notes,omitempty"`
	ItemCount     int             `db:"item_count" json:"itemCount"`
	Subtotal      int64           `db:"subtotal" json:"subtotal"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
	Items         []OrderLineItem `db:"-" json:"items"`
}

// OrderLineItem is the immutable record of one purchased product. Product
// identity and the whole component tree are copied by value; ProductID is a
// reporting reference only and is never dereferenced to interpret the item.
type OrderLineItem struct {
	ID                      int64         `db:"id" json:"id"`
	OrderID                 int64         `db:"order_id" json:"orderId"`
	ProductID               int64         `db:"product_id" json:"productId"`
	SKU                     string        `db:"sku" json:"sku"`
	Version                 int           `db:"version" json:"version"`
	ProductName             string        `db:"product_name" json:"productName"`
	Category                string        `db:"category" json:"category"`
	Quantity                int           `db:"quantity" json:"quantity"`
	BasePrice               int64         `db:"base_price" json:"basePrice"`
	ComponentTree           ComponentTree `db:"component_tree" json:"componentTree"`
	SnapshotVersion         int           `db:"snapshot_version" json:"snapshotVersion"`
	IncludedComponentsTotal int64         `db:"included_components_total" json:"includedComponentsTotal"`
	OptionalComponentsTotal int64         `db:"optional_components_total" json:"optionalComponentsTotal"`
	LineTotal               int64         `db:"line_total" json:"lineTotal"`
	CreatedAt               time.Time     `db:"created_at" json:"createdAt"`
}

// OrderItemRequest is one cart entry submitted at checkout.
type OrderItemRequest struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gte=1"`
}

// ProductUsage is one row of the order usage reverse index: product ProductID
// appears at Depth (0 = purchased root) in a line item of OrderID.
type ProductUsage struct {
	OrderID    int64 `db:"order_id" json:"orderId"`
	LineItemID int64 `db:"line_item_id" json:"lineItemId"`
	ProductID  int64 `db:"product_id" json:"productId"`
	Depth      int   `db:"depth" json:"depth"`
}
