package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/catalog_api/internal/metrics"
	"github.com/GTDGit/catalog_api/internal/models"
	"github.com/GTDGit/catalog_api/internal/snapshot"
	"github.com/GTDGit/catalog_api/internal/store"
	"github.com/GTDGit/catalog_api/internal/usage"
)

type orderCreatedPayload struct {
	OrderID     int64   `json:"orderId"`
	OrderNumber string  `json:"orderNumber"`
	ItemCount   int     `json:"itemCount"`
	Subtotal    int64   `json:"subtotal"`
	ProductIDs  []int64 `json:"productIds"`
}

// CreateOrder freezes every requested product into a line item and stores the
// order, in one serializable transaction. Any item that cannot be sold fails
// the whole order with models.ErrItemUnavailable; the cause is only logged.
func (s *CatalogService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*models.Order, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var order *models.Order
	err := s.inTx(ctx, "create_order", store.Serializable, func(ctx context.Context, tx store.Tx) error {
		order = &models.Order{
			OrderNumber:   newOrderNumber(),
			Status:        models.OrderStatusPending,
			CustomerEmail: req.CustomerEmail,
			Notes:         req.Notes,
			Items:         make([]models.OrderLineItem, 0, len(req.Items)),
		}
		builder := snapshot.New(tx)
		productIDs := make([]int64, 0, len(req.Items))

		for i, it := range req.Items {
			item, err := s.lineItem(ctx, tx, builder, it)
			if err != nil {
				if !isUnavailable(err) {
					return err
				}
				log.Warn().Err(err).Int("item", i).Int64("product_id", it.ProductID).Msg("checkout item unavailable")
				return fmt.Errorf("%w: item %d", models.ErrItemUnavailable, i+1)
			}
			order.Items = append(order.Items, *item)
			order.ItemCount += item.Quantity
			order.Subtotal += item.LineTotal
			productIDs = append(productIDs, item.ProductID)
		}

		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}
		if err := usage.New(tx).Record(ctx, order); err != nil {
			return err
		}
		return appendEvent(ctx, tx, models.EventOrderCreated, order.ID, orderCreatedPayload{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			ItemCount:   order.ItemCount,
			Subtotal:    order.Subtotal,
			ProductIDs:  productIDs,
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.OrdersCreatedTotal.Inc()
	log.Info().
		Int64("order_id", order.ID).
		Str("order_number", order.OrderNumber).
		Int("items", len(order.Items)).
		Int64("subtotal", order.Subtotal).
		Msg("order created")
	return order, nil
}

// lineItem snapshots one cart entry and reserves its stock.
func (s *CatalogService) lineItem(ctx context.Context, tx store.Tx, b *snapshot.Builder, it models.OrderItemRequest) (*models.OrderLineItem, error) {
	p, err := tx.Products().GetByID(ctx, it.ProductID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive() {
		return nil, fmt.Errorf("%w: %s is %s", models.ErrProductUnavailable, p.SKU, p.Status)
	}

	start := time.Now()
	item, err := b.Build(ctx, p.ID, it.Quantity)
	metrics.SnapshotBuildDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	if err := tx.Products().DecrementStock(ctx, p.ID, it.Quantity); err != nil {
		return nil, err
	}
	return item, nil
}

func isUnavailable(err error) bool {
	return errors.Is(err, models.ErrProductNotFound) ||
		errors.Is(err, models.ErrProductUnavailable) ||
		errors.Is(err, models.ErrInsufficientStock)
}

// GetOrder returns an order with its frozen line items.
func (s *CatalogService) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	var order *models.Order
	err := s.inTx(ctx, "get_order", store.RepeatableRead, func(ctx context.Context, tx store.Tx) error {
		var err error
		order, err = tx.Orders().GetByID(ctx, id)
		return err
	})
	return order, err
}

func newOrderNumber() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("ORD-%s-%s", time.Now().UTC().Format("20060102"), id[:10])
}
