package usage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/catalog_api/internal/models"
	"github.com/GTDGit/catalog_api/internal/store"
	"github.com/GTDGit/catalog_api/internal/store/memstore"
)

func lineItem() models.OrderLineItem {
	return models.OrderLineItem{
		ID:        7,
		ProductID: 1,
		ComponentTree: models.ComponentTree{
			{ComponentID: 2, Components: []models.ComponentSnapshot{
				{ComponentID: 4, Components: []models.ComponentSnapshot{}},
				{ComponentID: 5, Components: []models.ComponentSnapshot{}},
			}},
			{ComponentID: 3, Components: []models.ComponentSnapshot{
				{ComponentID: 4, Components: []models.ComponentSnapshot{}},
			}},
		},
	}
}

func TestCollect(t *testing.T) {
	item := lineItem()
	rows := Collect(9, &item)

	expected := []models.ProductUsage{
		{OrderID: 9, LineItemID: 7, ProductID: 1, Depth: 0},
		{OrderID: 9, LineItemID: 7, ProductID: 2, Depth: 1},
		{OrderID: 9, LineItemID: 7, ProductID: 3, Depth: 1},
		{OrderID: 9, LineItemID: 7, ProductID: 4, Depth: 2},
		{OrderID: 9, LineItemID: 7, ProductID: 5, Depth: 2},
	}
	assert.Equal(t, expected, rows)
}

func TestIndexAnyDepth(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	err := s.InTx(ctx, store.Serializable, func(ctx context.Context, tx store.Tx) error {
		order := &models.Order{OrderNumber: "ORD-1", Items: []models.OrderLineItem{lineItem()}}
		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}
		return New(tx).Record(ctx, order)
	})
	require.NoError(t, err)

	err = s.InTx(ctx, store.ReadCommitted, func(ctx context.Context, tx store.Tx) error {
		idx := New(tx)
		for _, id := range []int64{1, 2, 3, 4, 5} {
			used, err := idx.IsUsed(ctx, id)
			require.NoError(t, err)
			assert.True(t, used, "product %d", id)
		}
		used, err := idx.IsUsed(ctx, 6)
		require.NoError(t, err)
		assert.False(t, used)

		n, err := idx.OrderCount(ctx, 4)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		return nil
	})
	require.NoError(t, err)
}
