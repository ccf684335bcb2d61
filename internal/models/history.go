package models

import (
	"encoding/json"
	"time"
)

type ChangeType string

const (
	ChangeUpdate      ChangeType = "update"
	ChangeVersion     ChangeType = "version"
	ChangeDiscontinue ChangeType = "discontinue"
	ChangeDelete      ChangeType = "delete"
)

// ProductHistory records one change applied to a product lineage.
type ProductHistory struct {
	ID                int64           `db:"id" json:"id"`
	BaseProductID     int64           `db:"base_product_id" json:"baseProductId"`
	ProductID         int64           `db:"product_id" json:"productId"`
	PreviousProductID *int64          `db:"previous_product_id" json:"previousProductId,omitempty"`
	ChangeType        ChangeType      `db:"change_type" json:"changeType"`
	OldSnapshot       *JSONB[Product] `db:"old_snapshot" json:"oldSnapshot,omitempty"`
	NewSnapshot       *JSONB[Product] `db:"new_snapshot" json:"newSnapshot,omitempty"`
	Description       string          `db:"description" json:"description"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
}

// Event types appended to the catalog outbox.
const (
	EventProductCreated      = "product.created"
	EventProductUpdated      = "product.updated"
	EventProductVersioned    = "product.versioned"
	EventProductDiscontinued = "product.discontinued"
	EventProductDeleted      = "product.deleted"
	EventComponentAdded      = "component.added"
	EventComponentRemoved    = "component.removed"
	EventOrderCreated        = "order.created"
)

// CatalogEvent is an outbox row written in the same transaction as the change
// it describes and published asynchronously.
type CatalogEvent struct {
	ID          int64           `db:"id" json:"id"`
	EventType   string          `db:"event_type" json:"eventType"`
	AggregateID int64           `db:"aggregate_id" json:"aggregateId"`
	Payload     json.RawMessage `db:"payload" json:"payload"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	PublishedAt *time.Time      `db:"published_at" json:"publishedAt,omitempty"`
}

// NewCatalogEvent marshals payload into an event row.
func NewCatalogEvent(eventType string, aggregateID int64, payload any) (*CatalogEvent, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &CatalogEvent{EventType: eventType, AggregateID: aggregateID, Payload: b}, nil
}
