package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/catalog_api/internal/config"
	"github.com/GTDGit/catalog_api/internal/service"
	"github.com/GTDGit/catalog_api/internal/store/memstore"
	"github.com/GTDGit/catalog_api/internal/utils"
)

type envelope struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Data    json.RawMessage  `json:"data"`
	Error   *utils.ErrorInfo `json:"error"`
	Meta    utils.Meta       `json:"meta"`
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := memstore.New()
	svc := service.NewCatalogService(st, nil, config.CatalogConfig{TxMaxAttempts: 1})
	catalog := NewCatalogHandler(svc)
	orders := NewOrderHandler(svc)

	r := gin.New()
	r.GET("/v1/health", NewHealthHandler(st).GetHealth)
	admin := r.Group("/v1/admin/products")
	admin.POST("", catalog.CreateProduct)
	admin.GET("", catalog.ListProducts)
	admin.GET("/:id", catalog.GetProduct)
	admin.PUT("/:id", catalog.UpdateProduct)
	admin.DELETE("/:id", catalog.DiscontinueProduct)
	admin.GET("/:id/tree", catalog.GetProductTree)
	admin.GET("/:id/versions", catalog.ListVersions)
	admin.GET("/:id/history", catalog.GetProductHistory)
	admin.POST("/:id/components", catalog.AddComponent)
	admin.DELETE("/:id/components/:componentId", catalog.RemoveComponent)
	r.GET("/v1/admin/skus/:sku", catalog.GetProductBySKU)
	r.POST("/v1/orders", orders.CreateOrder)
	r.GET("/v1/orders/:id", orders.GetOrder)

	return &testServer{t: t, router: r}
}

func (s *testServer) do(method, path string, body any) (int, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func (s *testServer) createProduct(code string, price int64) int64 {
	s.t.Helper()
	status, env := s.do(http.MethodPost, "/v1/admin/products", gin.H{
		"prefix": "TPC", "category": "PUMP", "code": code, "name": "product " + code,
		"basePrice": price, "canBeComponent": true, "canHaveComponents": true,
	})
	require.Equal(s.t, http.StatusCreated, status, env.Message)
	var p struct {
		ID int64 `json:"id"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &p))
	return p.ID
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	status, env := s.do(http.MethodGet, "/v1/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
}

func TestCreateProductEndpoint(t *testing.T) {
	s := newTestServer(t)
	id := s.createProduct("A01", 100)

	status, env := s.do(http.MethodGet, fmt.Sprintf("/v1/admin/products/%d", id), nil)
	require.Equal(t, http.StatusOK, status)
	var p struct {
		SKU    string `json:"sku"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "TPC-PUMP-A01-V01", p.SKU)
	assert.Equal(t, "active", p.Status)

	status, env = s.do(http.MethodPost, "/v1/admin/products", gin.H{"prefix": "TOOLONG"})
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_REQUEST", env.Error.Code)

	status, env = s.do(http.MethodGet, "/v1/admin/products/999", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "PRODUCT_NOT_FOUND", env.Error.Code)

	status, _ = s.do(http.MethodGet, "/v1/admin/products/abc", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGetProductBySKUEndpoint(t *testing.T) {
	s := newTestServer(t)
	id := s.createProduct("A01", 100)

	tests := []struct {
		name   string
		sku    string
		status int
		code   string
	}{
		{"found", "TPC-PUMP-A01-V01", http.StatusOK, ""},
		{"unknown", "TPC-PUMP-A01-V02", http.StatusNotFound, "PRODUCT_NOT_FOUND"},
		{"lower case", "tpc-pump-a01-v01", http.StatusBadRequest, "MALFORMED_SKU"},
		{"missing version", "TPC-PUMP-A01", http.StatusBadRequest, "MALFORMED_SKU"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := s.do(http.MethodGet, "/v1/admin/skus/"+tt.sku, nil)
			require.Equal(t, tt.status, status)
			if tt.code != "" {
				require.NotNil(t, env.Error)
				assert.Equal(t, tt.code, env.Error.Code)
				return
			}
			var p struct {
				ID  int64  `json:"id"`
				SKU string `json:"sku"`
			}
			require.NoError(t, json.Unmarshal(env.Data, &p))
			assert.Equal(t, id, p.ID)
			assert.Equal(t, tt.sku, p.SKU)
		})
	}
}

func TestListProductsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.createProduct("A01", 1)
	s.createProduct("B01", 1)
	s.createProduct("C01", 1)

	status, env := s.do(http.MethodGet, "/v1/admin/products?page=1&limit=2&status=active", nil)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, env.Meta.Pagination)
	assert.Equal(t, 3, env.Meta.Pagination.TotalItems)
	assert.Equal(t, 2, env.Meta.Pagination.TotalPages)

	var data struct {
		Products []json.RawMessage `json:"products"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Len(t, data.Products, 2)
}

func TestComponentEndpoints(t *testing.T) {
	s := newTestServer(t)
	a := s.createProduct("A01", 100)
	b := s.createProduct("B01", 50)

	status, _ := s.do(http.MethodPost, fmt.Sprintf("/v1/admin/products/%d/components", a), gin.H{
		"componentId": b, "quantity": 2, "isIncluded": true,
	})
	require.Equal(t, http.StatusCreated, status)

	status, env := s.do(http.MethodPost, fmt.Sprintf("/v1/admin/products/%d/components", b), gin.H{"componentId": a})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CIRCULAR_REFERENCE", env.Error.Code)

	status, env = s.do(http.MethodGet, fmt.Sprintf("/v1/admin/products/%d/tree", a), nil)
	require.Equal(t, http.StatusOK, status)
	var tree struct {
		UnitTotal  int64             `json:"unitTotal"`
		Components []json.RawMessage `json:"components"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tree))
	assert.Equal(t, int64(200), tree.UnitTotal)
	assert.Len(t, tree.Components, 1)

	status, _ = s.do(http.MethodDelete, fmt.Sprintf("/v1/admin/products/%d/components/%d", a, b), nil)
	assert.Equal(t, http.StatusOK, status)
	status, env = s.do(http.MethodDelete, fmt.Sprintf("/v1/admin/products/%d/components/%d", a, b), nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "EDGE_NOT_FOUND", env.Error.Code)
}

func TestOrderAndVersioningEndpoints(t *testing.T) {
	s := newTestServer(t)
	p := s.createProduct("A01", 100)

	status, env := s.do(http.MethodPost, "/v1/orders", gin.H{
		"customerEmail": "buyer@example.com",
		"items":         []gin.H{{"productId": p, "quantity": 2}},
	})
	require.Equal(t, http.StatusCreated, status, env.Message)
	var order struct {
		ID       int64 `json:"id"`
		Subtotal int64 `json:"subtotal"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, int64(200), order.Subtotal)

	status, env = s.do(http.MethodPut, fmt.Sprintf("/v1/admin/products/%d", p), gin.H{"basePrice": 150})
	require.Equal(t, http.StatusOK, status)
	var upd struct {
		Versioned bool `json:"versioned"`
		Product   struct {
			SKU string `json:"sku"`
		} `json:"product"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &upd))
	assert.True(t, upd.Versioned)
	assert.Equal(t, "TPC-PUMP-A01-V02", upd.Product.SKU)

	status, env = s.do(http.MethodGet, fmt.Sprintf("/v1/orders/%d", order.ID), nil)
	require.Equal(t, http.StatusOK, status)
	var stored struct {
		Items []struct {
			BasePrice int64  `json:"basePrice"`
			SKU       string `json:"sku"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stored))
	require.Len(t, stored.Items, 1)
	assert.Equal(t, int64(100), stored.Items[0].BasePrice)
	assert.Equal(t, "TPC-PUMP-A01-V01", stored.Items[0].SKU)

	// the sunset version is no longer sold and the reason is not disclosed
	status, env = s.do(http.MethodPost, "/v1/orders", gin.H{
		"customerEmail": "buyer@example.com",
		"items":         []gin.H{{"productId": p, "quantity": 1}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "ITEM_UNAVAILABLE", env.Error.Code)
	assert.NotContains(t, env.Message, "sunset")

	status, env = s.do(http.MethodGet, fmt.Sprintf("/v1/admin/products/%d/versions", p), nil)
	require.Equal(t, http.StatusOK, status)
	var versions struct {
		Versions []json.RawMessage `json:"versions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &versions))
	assert.Len(t, versions.Versions, 2)

	status, _ = s.do(http.MethodGet, fmt.Sprintf("/v1/admin/products/%d/history", p), nil)
	assert.Equal(t, http.StatusOK, status)

	status, env = s.do(http.MethodGet, "/v1/orders/999", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "ORDER_NOT_FOUND", env.Error.Code)
}

func TestDiscontinueEndpoint(t *testing.T) {
	s := newTestServer(t)
	p := s.createProduct("A01", 100)

	status, env := s.do(http.MethodDelete, fmt.Sprintf("/v1/admin/products/%d", p), gin.H{"reason": "duplicate"})
	require.Equal(t, http.StatusOK, status)
	var res struct {
		Deleted bool `json:"deleted"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.True(t, res.Deleted)

	status, _ = s.do(http.MethodGet, fmt.Sprintf("/v1/admin/products/%d", p), nil)
	assert.Equal(t, http.StatusNotFound, status)
}
