package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/catalog_api/internal/config"
	"github.com/GTDGit/catalog_api/internal/models"
	"github.com/GTDGit/catalog_api/internal/store"
	"github.com/GTDGit/catalog_api/internal/store/memstore"
	"github.com/GTDGit/catalog_api/pkg/sku"
)

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }

func newService(t *testing.T) (*CatalogService, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	return NewCatalogService(st, nil, config.CatalogConfig{TxMaxAttempts: 3}), st
}

func mustCreate(t *testing.T, svc *CatalogService, code string, price int64) *models.Product {
	t.Helper()
	p, err := svc.CreateProduct(context.Background(), &CreateProductRequest{
		Prefix: "TPC", Category: "PUMP", Code: code, Name: "product " + code,
		BasePrice: price, CanBeComponent: true, CanHaveComponents: true,
	})
	require.NoError(t, err)
	return p
}

func mustAttach(t *testing.T, svc *CatalogService, parent, child int64, included bool) {
	t.Helper()
	_, err := svc.AddComponent(context.Background(), parent, &AddComponentRequest{
		ComponentID: child,
		EdgeConfig:  models.EdgeConfig{IsIncluded: included},
	})
	require.NoError(t, err)
}

func mustOrder(t *testing.T, svc *CatalogService, items ...models.OrderItemRequest) *models.Order {
	t.Helper()
	o, err := svc.CreateOrder(context.Background(), &CreateOrderRequest{Items: items, CustomerEmail: "buyer@example.com"})
	require.NoError(t, err)
	return o
}

func price(v int64) *UpdateProductRequest {
	return &UpdateProductRequest{ProductChanges: models.ProductChanges{BasePrice: int64Ptr(v)}}
}

func TestCreateProductDerivesSKU(t *testing.T) {
	svc, _ := newService(t)
	p := mustCreate(t, svc, "a01", 10)

	assert.Equal(t, "TPC-PUMP-A01-V01", p.SKU)
	assert.Equal(t, "PUMP", p.Category)
	assert.Equal(t, 1, p.Version)
	assert.Equal(t, models.StatusActive, p.Status)

	_, err := svc.CreateProduct(context.Background(), &CreateProductRequest{
		Prefix: "TPC", Category: "PUMP", Code: "A01", Name: "again", BasePrice: 1,
	})
	assert.ErrorIs(t, err, models.ErrSKUExists)
}

func TestGetProductBySKU(t *testing.T) {
	svc, st := newService(t)
	p := mustCreate(t, svc, "A01", 10)

	got, err := svc.GetProductBySKU(context.Background(), "TPC-PUMP-A01-V01")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = svc.GetProductBySKU(context.Background(), "TPC-PUMP-B01-V01")
	assert.ErrorIs(t, err, models.ErrProductNotFound)

	// A malformed code never opens a transaction.
	st.FailNext(errors.New("store must not be reached"))
	_, err = svc.GetProductBySKU(context.Background(), "TPC-PUMP-A01-V00")
	assert.ErrorIs(t, err, sku.ErrMalformedSKU)
}

func TestCreateProductValidation(t *testing.T) {
	svc, _ := newService(t)

	testCases := []struct {
		name string
		req  CreateProductRequest
	}{
		{"prefix too long", CreateProductRequest{Prefix: "TPCX", Category: "PUMP", Code: "A01", Name: "x"}},
		{"missing name", CreateProductRequest{Prefix: "TPC", Category: "PUMP", Code: "A01"}},
		{"negative price", CreateProductRequest{Prefix: "TPC", Category: "PUMP", Code: "A01", Name: "x", BasePrice: -1}},
		{"bad characters", CreateProductRequest{Prefix: "T-C", Category: "PUMP", Code: "A01", Name: "x"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateProduct(context.Background(), &tc.req)
			assert.ErrorIs(t, err, models.ErrInvalidRequest)
		})
	}
}

func TestNoVersionWhenUnused(t *testing.T) {
	svc, _ := newService(t)
	p := mustCreate(t, svc, "A01", 10)

	res, err := svc.UpdateProduct(context.Background(), p.ID, price(20))
	require.NoError(t, err)

	assert.False(t, res.Versioned)
	assert.Equal(t, p.ID, res.Product.ID)
	assert.Equal(t, p.SKU, res.Product.SKU)
	assert.Equal(t, int64(20), res.Product.BasePrice)
}

func TestVersionWhenUsed(t *testing.T) {
	svc, _ := newService(t)
	p := mustCreate(t, svc, "A01", 10)
	mustOrder(t, svc, models.OrderItemRequest{ProductID: p.ID, Quantity: 1})

	res, err := svc.UpdateProduct(context.Background(), p.ID, price(20))
	require.NoError(t, err)

	require.True(t, res.Versioned)
	assert.NotEqual(t, p.ID, res.Product.ID)
	assert.Equal(t, "TPC-PUMP-A01-V02", res.Product.SKU)

	old, err := svc.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSunset, old.Status)
	require.NotNil(t, old.ReplacedBy)
	assert.Equal(t, res.Product.ID, *old.ReplacedBy)

	versions, err := svc.ListVersions(context.Background(), res.Product.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 1, versions[0].Version)
	assert.Equal(t, 2, versions[1].Version)

	history, err := svc.GetProductHistory(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.ChangeVersion, history[0].ChangeType)
}

func TestStaleExpectedVersion(t *testing.T) {
	svc, _ := newService(t)
	p := mustCreate(t, svc, "A01", 10)

	req := price(20)
	req.ExpectedVersion = intPtr(3)
	_, err := svc.UpdateProduct(context.Background(), p.ID, req)
	assert.ErrorIs(t, err, models.ErrStaleVersion)
}

func TestSnapshotImmutability(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	parent := mustCreate(t, svc, "A01", 100)
	child := mustCreate(t, svc, "C01", 50)
	mustAttach(t, svc, parent.ID, child.ID, true)

	order := mustOrder(t, svc, models.OrderItemRequest{ProductID: parent.ID, Quantity: 1})
	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(150), order.Items[0].LineTotal)

	_, err := svc.UpdateProduct(ctx, parent.ID, price(200))
	require.NoError(t, err)
	_, err = svc.UpdateProduct(ctx, child.ID, price(80))
	require.NoError(t, err)

	stored, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	item := stored.Items[0]
	assert.Equal(t, int64(100), item.BasePrice)
	assert.Equal(t, "TPC-PUMP-A01-V01", item.SKU)
	require.Len(t, item.ComponentTree, 1)
	assert.Equal(t, int64(50), item.ComponentTree[0].Price)
	assert.Equal(t, "TPC-PUMP-C01-V01", item.ComponentTree[0].ComponentSKU)
	assert.Equal(t, int64(50), item.IncludedComponentsTotal)
	assert.Equal(t, int64(150), item.LineTotal)
}

func TestForkKeepsComponentConfiguration(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	parent := mustCreate(t, svc, "A01", 100)
	child := mustCreate(t, svc, "C01", 50)
	mustAttach(t, svc, parent.ID, child.ID, true)
	mustOrder(t, svc, models.OrderItemRequest{ProductID: parent.ID, Quantity: 1})

	res, err := svc.UpdateProduct(ctx, parent.ID, price(200))
	require.NoError(t, err)
	require.True(t, res.Versioned)

	tree, err := svc.GetProductTree(ctx, res.Product.ID)
	require.NoError(t, err)
	require.Len(t, tree.Components, 1)
	assert.Equal(t, child.ID, tree.Components[0].ComponentID)
	assert.Equal(t, int64(250), tree.UnitTotal)

	// the sunset version can no longer be purchased
	_, err = svc.CreateOrder(ctx, &CreateOrderRequest{
		Items:         []models.OrderItemRequest{{ProductID: parent.ID, Quantity: 1}},
		CustomerEmail: "buyer@example.com",
	})
	assert.ErrorIs(t, err, models.ErrItemUnavailable)
}

func TestSunsetVersionStructureIsFrozen(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	parent := mustCreate(t, svc, "A01", 100)
	first := mustCreate(t, svc, "B01", 10)
	second := mustCreate(t, svc, "C01", 20)
	mustAttach(t, svc, parent.ID, first.ID, true)
	mustOrder(t, svc, models.OrderItemRequest{ProductID: parent.ID, Quantity: 1})

	res, err := svc.UpdateProduct(ctx, parent.ID, price(200))
	require.NoError(t, err)
	require.True(t, res.Versioned)

	_, err = svc.AddComponent(ctx, parent.ID, &AddComponentRequest{ComponentID: second.ID})
	assert.ErrorIs(t, err, models.ErrStaleVersion)
	assert.ErrorIs(t, svc.RemoveComponent(ctx, parent.ID, first.ID), models.ErrStaleVersion)

	old, err := svc.GetProductTree(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, old.Components, 1)
	assert.Equal(t, first.ID, old.Components[0].ComponentID)

	// the live version is still editable
	_, err = svc.AddComponent(ctx, res.Product.ID, &AddComponentRequest{ComponentID: second.ID})
	assert.NoError(t, err)
}

func TestSubComponentUsageBlocksInPlaceEdit(t *testing.T) {
	svc, _ := newService(t)
	root := mustCreate(t, svc, "A01", 100)
	mid := mustCreate(t, svc, "B01", 20)
	leaf := mustCreate(t, svc, "C01", 5)
	mustAttach(t, svc, mid.ID, leaf.ID, true)
	mustAttach(t, svc, root.ID, mid.ID, true)
	mustOrder(t, svc, models.OrderItemRequest{ProductID: root.ID, Quantity: 2})

	res, err := svc.UpdateProduct(context.Background(), leaf.ID, price(6))
	require.NoError(t, err)
	assert.True(t, res.Versioned)
}

func TestAddComponentRejections(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	a := mustCreate(t, svc, "A01", 1)
	b := mustCreate(t, svc, "B01", 1)
	c := mustCreate(t, svc, "C01", 1)
	d := mustCreate(t, svc, "D01", 1)

	mustAttach(t, svc, a.ID, b.ID, true)
	_, err := svc.AddComponent(ctx, b.ID, &AddComponentRequest{ComponentID: a.ID})
	assert.ErrorIs(t, err, models.ErrCircularReference)

	mustAttach(t, svc, b.ID, c.ID, true)
	_, err = svc.AddComponent(ctx, c.ID, &AddComponentRequest{ComponentID: d.ID})
	assert.ErrorIs(t, err, models.ErrMaxDepthExceeded)

	_, err = svc.AddComponent(ctx, a.ID, &AddComponentRequest{ComponentID: a.ID})
	assert.ErrorIs(t, err, models.ErrSelfReference)

	_, err = svc.AddComponent(ctx, a.ID, &AddComponentRequest{ComponentID: d.ID, EdgeConfig: models.EdgeConfig{Quantity: -1}})
	assert.ErrorIs(t, err, models.ErrInvalidRequest)

	tree, err := svc.GetProductTree(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, tree.Components, 1)
	assert.Equal(t, c.ID, tree.Components[0].ComponentID)
}

func TestRemoveComponent(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	a := mustCreate(t, svc, "A01", 1)
	b := mustCreate(t, svc, "B01", 1)
	mustAttach(t, svc, a.ID, b.ID, true)

	require.NoError(t, svc.RemoveComponent(ctx, a.ID, b.ID))
	assert.ErrorIs(t, svc.RemoveComponent(ctx, a.ID, b.ID), models.ErrEdgeNotFound)
}

func TestCreateOrderStock(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	stocked, err := svc.CreateProduct(ctx, &CreateProductRequest{
		Prefix: "TPC", Category: "PUMP", Code: "S01", Name: "stocked", BasePrice: 10, StockQuantity: intPtr(3),
	})
	require.NoError(t, err)
	free := mustCreate(t, svc, "F01", 5)

	order := mustOrder(t, svc,
		models.OrderItemRequest{ProductID: free.ID, Quantity: 4},
		models.OrderItemRequest{ProductID: stocked.ID, Quantity: 2},
	)
	assert.Equal(t, 6, order.ItemCount)
	assert.Equal(t, int64(4*5+2*10), order.Subtotal)

	p, err := svc.GetProduct(ctx, stocked.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, *p.StockQuantity)

	_, err = svc.CreateOrder(ctx, &CreateOrderRequest{
		Items:         []models.OrderItemRequest{{ProductID: stocked.ID, Quantity: 1}, {ProductID: stocked.ID, Quantity: 1}},
		CustomerEmail: "buyer@example.com",
	})
	assert.ErrorIs(t, err, models.ErrItemUnavailable)

	// the failed order left stock untouched
	p, err = svc.GetProduct(ctx, stocked.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, *p.StockQuantity)
}

func TestCreateOrderValidation(t *testing.T) {
	svc, _ := newService(t)
	p := mustCreate(t, svc, "A01", 10)

	_, err := svc.CreateOrder(context.Background(), &CreateOrderRequest{CustomerEmail: "buyer@example.com"})
	assert.ErrorIs(t, err, models.ErrInvalidRequest)

	_, err = svc.CreateOrder(context.Background(), &CreateOrderRequest{
		Items:         []models.OrderItemRequest{{ProductID: p.ID, Quantity: 1}},
		CustomerEmail: "not-an-email",
	})
	assert.ErrorIs(t, err, models.ErrInvalidRequest)

	_, err = svc.CreateOrder(context.Background(), &CreateOrderRequest{
		Items:         []models.OrderItemRequest{{ProductID: 999, Quantity: 1}},
		CustomerEmail: "buyer@example.com",
	})
	assert.ErrorIs(t, err, models.ErrItemUnavailable)
}

func TestDiscontinueProduct(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	unused := mustCreate(t, svc, "A01", 10)
	used := mustCreate(t, svc, "B01", 10)
	mustOrder(t, svc, models.OrderItemRequest{ProductID: used.ID, Quantity: 1})

	res, err := svc.DiscontinueProduct(ctx, unused.ID, "typo")
	require.NoError(t, err)
	assert.True(t, res.Deleted)
	_, err = svc.GetProduct(ctx, unused.ID)
	assert.ErrorIs(t, err, models.ErrProductNotFound)

	res, err = svc.DiscontinueProduct(ctx, used.ID, "end of life")
	require.NoError(t, err)
	assert.False(t, res.Deleted)
	assert.Equal(t, models.StatusDiscontinued, res.Product.Status)
}

func TestTransientFailuresAreRetried(t *testing.T) {
	svc, st := newService(t)

	st.FailNext(memstore.ErrConflict, memstore.ErrConflict)
	p := mustCreate(t, svc, "A01", 10)
	assert.NotZero(t, p.ID)

	st.FailNext(memstore.ErrConflict, memstore.ErrConflict, memstore.ErrConflict)
	_, err := svc.UpdateProduct(context.Background(), p.ID, price(20))
	assert.ErrorIs(t, err, models.ErrCatalogUnavailable)

	got, err := svc.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.BasePrice)
}

func TestPermanentFailuresAreNotRetried(t *testing.T) {
	svc, st := newService(t)
	boom := errors.New("disk on fire")

	st.FailNext(boom)
	_, err := svc.CreateProduct(context.Background(), &CreateProductRequest{
		Prefix: "TPC", Category: "PUMP", Code: "A01", Name: "x",
	})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, models.ErrCatalogUnavailable)
}

func TestMutationsAppendEvents(t *testing.T) {
	svc, st := newService(t)
	a := mustCreate(t, svc, "A01", 10)
	b := mustCreate(t, svc, "B01", 10)
	mustAttach(t, svc, a.ID, b.ID, false)
	mustOrder(t, svc, models.OrderItemRequest{ProductID: a.ID, Quantity: 1})
	_, err := svc.UpdateProduct(context.Background(), a.ID, price(11))
	require.NoError(t, err)

	var types []string
	err = st.InTx(context.Background(), store.ReadCommitted, func(ctx context.Context, tx store.Tx) error {
		evs, err := tx.Events().ListUnpublished(ctx, 0)
		for _, e := range evs {
			types = append(types, e.EventType)
		}
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		models.EventProductCreated,
		models.EventProductCreated,
		models.EventComponentAdded,
		models.EventOrderCreated,
		models.EventProductVersioned,
	}, types)
}
