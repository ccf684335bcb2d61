package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/catalog_api/internal/models"
	"github.com/GTDGit/catalog_api/internal/service"
	"github.com/GTDGit/catalog_api/internal/utils"
)

// CatalogHandler serves the admin product and component endpoints.
type CatalogHandler struct {
	catalog *service.CatalogService
}

// NewCatalogHandler constructs a CatalogHandler.
func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

type discontinueRequest struct {
	Reason string `json:"reason"`
}

// CreateProduct handles POST /v1/admin/products
func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var req service.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	product, err := h.catalog.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, http.StatusCreated, "Product created successfully", product)
}

// ListProducts handles GET /v1/admin/products
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	filter := models.ProductFilter{
		Page:  queryInt(c, "page", 1),
		Limit: queryInt(c, "limit", utils.DefaultPageLimit),
	}
	if v := c.Query("status"); v != "" {
		status := models.ProductStatus(v)
		filter.Status = &status
	}

	products, total, err := h.catalog.ListProducts(c.Request.Context(), filter)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessWithPagination(c, http.StatusOK, "Products retrieved successfully", gin.H{
		"products": products,
	}, filter.Page, filter.Limit, total)
}

// GetProduct handles GET /v1/admin/products/:id
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	product, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Product retrieved successfully", product)
}

// GetProductBySKU handles GET /v1/admin/skus/:sku
func (h *CatalogHandler) GetProductBySKU(c *gin.Context) {
	product, err := h.catalog.GetProductBySKU(c.Request.Context(), c.Param("sku"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Product retrieved successfully", product)
}

// UpdateProduct handles PUT /v1/admin/products/:id. The response says whether
// the edit was applied in place or produced a new version.
func (h *CatalogHandler) UpdateProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	res, err := h.catalog.UpdateProduct(c.Request.Context(), id, &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	message := "Product updated successfully"
	data := gin.H{"product": res.Product, "versioned": res.Versioned}
	if res.Versioned {
		message = fmt.Sprintf("Product is used in %d order(s); created version %d", res.OrderCount, res.Product.Version)
		data["previousProductId"] = res.Previous.ID
		data["previousSku"] = res.Previous.SKU
	}
	utils.Success(c, http.StatusOK, message, data)
}

// DiscontinueProduct handles DELETE /v1/admin/products/:id. The reason is
// read from the JSON body or the reason query parameter.
func (h *CatalogHandler) DiscontinueProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	reason := c.Query("reason")
	if c.Request.ContentLength > 0 {
		var req discontinueRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
			return
		}
		if req.Reason != "" {
			reason = req.Reason
		}
	}

	res, err := h.catalog.DiscontinueProduct(c.Request.Context(), id, reason)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if res.Deleted {
		utils.Success(c, http.StatusOK, "Product deleted", gin.H{"deleted": true, "product": res.Product})
		return
	}
	utils.Success(c, http.StatusOK, "Product is used in orders and was discontinued", gin.H{"deleted": false, "product": res.Product})
}

// GetProductTree handles GET /v1/admin/products/:id/tree
func (h *CatalogHandler) GetProductTree(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	tree, err := h.catalog.GetProductTree(c.Request.Context(), id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Product tree retrieved successfully", tree)
}

// ListVersions handles GET /v1/admin/products/:id/versions
func (h *CatalogHandler) ListVersions(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	versions, err := h.catalog.ListVersions(c.Request.Context(), id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Product versions retrieved successfully", gin.H{"versions": versions})
}

// GetProductHistory handles GET /v1/admin/products/:id/history
func (h *CatalogHandler) GetProductHistory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	history, err := h.catalog.GetProductHistory(c.Request.Context(), id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Product history retrieved successfully", gin.H{"history": history})
}

// AddComponent handles POST /v1/admin/products/:id/components
func (h *CatalogHandler) AddComponent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.AddComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	edge, err := h.catalog.AddComponent(c.Request.Context(), id, &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, http.StatusCreated, "Component added successfully", edge)
}

// RemoveComponent handles DELETE /v1/admin/products/:id/components/:componentId
func (h *CatalogHandler) RemoveComponent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	componentID, ok := pathID(c, "componentId")
	if !ok {
		return
	}
	if err := h.catalog.RemoveComponent(c.Request.Context(), id, componentID); err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Component removed successfully", nil)
}

// pathID parses a positive int64 path parameter, writing a 400 when invalid.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("Invalid %s", name))
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) int {
	if v := c.Query(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
