package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"go-retail-core/internal/invoice"
)

// POST /api/bills - commit a sale. Stock validation, pricing and the atomic
// write all happen in the engine; this handler only shapes the request.
func (h *Handler) CreateBill(c *gin.Context) {
	var req invoice.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	bill, err := h.Engine.Create(req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, bill)
}

// GET /api/bills
func (h *Handler) GetBills(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	bills, err := h.Engine.List(limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bills)
}

// GET /api/bills/:id
func (h *Handler) GetBill(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	bill, err := h.Engine.Get(id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bill)
}

// POST /api/bills/:id/reverse - corrections are reversing invoices, never
// edits or deletes.
func (h *Handler) ReverseBill(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	reversal, err := h.Engine.Reverse(id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reversal)
}

// GET /api/bills/next-number - preview the next invoice number.
func (h *Handler) GetNextInvoiceNumber(c *gin.Context) {
	number, err := h.Engine.NextInvoiceNumber()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoice_number": number})
}
