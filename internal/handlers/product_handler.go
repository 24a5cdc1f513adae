package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"go-retail-core/internal/models"
)

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return uint(id), true
}

// GET /api/products
func (h *Handler) GetProducts(c *gin.Context) {
	products, err := h.Catalog.ListProducts()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

// GET /api/products/:id
func (h *Handler) GetProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	product, err := h.Catalog.GetProduct(id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

type ProductRequest struct {
	models.Product
	OpeningStock float64 `json:"opening_stock"`
}

// POST /api/products
func (h *Handler) AddProduct(c *gin.Context) {
	var input ProductRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	if input.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Product name is required"})
		return
	}

	product := input.Product
	product.ID = 0
	if err := h.Catalog.CreateProduct(&product, input.OpeningStock); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, product)
}

// PUT /api/products/:id
func (h *Handler) UpdateProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var input models.Product
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	input.ID = id

	if err := h.Catalog.UpdateProduct(&input); err != nil {
		h.respondError(c, err)
		return
	}

	product, err := h.Catalog.GetProduct(id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// DELETE /api/products/:id
func (h *Handler) DeleteProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Catalog.DeleteProduct(id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}

type StockAdjustmentRequest struct {
	Change float64 `json:"change" binding:"required"`
	Reason string  `json:"reason"`
}

// POST /api/products/:id/stock - manual stock correction through the ledger.
func (h *Handler) AdjustStock(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var input StockAdjustmentRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if err := h.Catalog.AdjustStock(id, input.Change, input.Reason); err != nil {
		h.respondError(c, err)
		return
	}

	stock, err := h.Ledger.CurrentStock(id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"current_stock": stock})
}

// GET /api/products/:id/history
func (h *Handler) GetStockHistory(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	entries, err := h.Ledger.History(id, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// GET /api/products/:id/recompute - reconciliation check: the ledger sum must
// match the cached stock level.
func (h *Handler) RecomputeStock(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	sum, err := h.Ledger.Recompute(id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product_id": id, "current_stock": sum, "consistent": true})
}

// GET /api/products/low-stock
func (h *Handler) GetLowStock(c *gin.Context) {
	products, err := h.Catalog.LowStock()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}
