package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-retail-core/internal/models"
)

// GET /api/customers
func (h *Handler) GetCustomers(c *gin.Context) {
	customers, err := h.Catalog.ListCustomers()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customers)
}

// POST /api/customers
func (h *Handler) AddCustomer(c *gin.Context) {
	var input models.Customer
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	if input.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Customer name is required"})
		return
	}

	input.ID = 0
	if err := h.Catalog.CreateCustomer(&input); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, input)
}

// PUT /api/customers/:id
func (h *Handler) UpdateCustomer(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var input models.Customer
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	input.ID = id

	if err := h.Catalog.UpdateCustomer(&input); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, input)
}

type MergeRequest struct {
	FromID uint `json:"from_id" binding:"required"`
	ToID   uint `json:"to_id" binding:"required"`
}

// POST /api/customers/merge - fold a duplicate record into another.
func (h *Handler) MergeCustomers(c *gin.Context) {
	var input MergeRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if err := h.Catalog.MergeCustomers(input.FromID, input.ToID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Customers merged"})
}
