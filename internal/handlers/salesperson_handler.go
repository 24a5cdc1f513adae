package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-retail-core/internal/models"
)

// GET /api/sales-persons
func (h *Handler) GetSalesPersons(c *gin.Context) {
	persons, err := h.Catalog.ListSalesPersons()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, persons)
}

// POST /api/sales-persons
func (h *Handler) AddSalesPerson(c *gin.Context) {
	var input models.SalesPerson
	if err := c.ShouldBindJSON(&input); err != nil || input.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Sales person name is required"})
		return
	}

	input.ID = 0
	if err := h.Catalog.CreateSalesPerson(&input); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, input)
}

type SalesPersonUpdateRequest struct {
	Name     *string `json:"name"`
	IsActive *bool   `json:"is_active"`
}

// PUT /api/sales-persons/:id - rename and/or flip the active flag. There is
// no delete: historical bills keep their attribution.
func (h *Handler) UpdateSalesPerson(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var input SalesPersonUpdateRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if input.Name != nil {
		if err := h.Catalog.RenameSalesPerson(id, *input.Name); err != nil {
			h.respondError(c, err)
			return
		}
	}
	if input.IsActive != nil {
		if err := h.Catalog.SetSalesPersonActive(id, *input.IsActive); err != nil {
			h.respondError(c, err)
			return
		}
	}

	person, err := h.Catalog.GetSalesPerson(id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, person)
}
