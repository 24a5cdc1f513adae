package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"go-retail-core/internal/models"
)

// ReportData is the sales analytics payload.
type ReportData struct {
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalBills   int64           `json:"total_bills"`
	RecentBills  []models.Bill   `json:"recent_bills"`
}

// GET /api/reports/sales
func (h *Handler) GetSalesReport(c *gin.Context) {
	var data ReportData

	// COALESCE ensures we get 0 instead of NULL if no bills exist
	var revenue float64
	err := h.DB.Model(&models.Bill{}).
		Select("COALESCE(SUM(grand_total), 0)").
		Scan(&revenue).Error
	if err != nil {
		h.respondError(c, err)
		return
	}
	data.TotalRevenue = decimal.NewFromFloat(revenue).Round(2)

	if err := h.DB.Model(&models.Bill{}).Count(&data.TotalBills).Error; err != nil {
		h.respondError(c, err)
		return
	}

	bills, err := h.Engine.List(10)
	if err != nil {
		h.respondError(c, err)
		return
	}
	data.RecentBills = bills

	c.JSON(http.StatusOK, data)
}

// ValuationItem is one row of the stock valuation table.
type ValuationItem struct {
	Name      string          `json:"name"`
	Quantity  float64         `json:"quantity"`
	CostPrice decimal.Decimal `json:"cost_price"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

// CategoryGroup groups valuation rows by product category.
type CategoryGroup struct {
	CategoryName string          `json:"category_name"`
	Items        []ValuationItem `json:"items"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

// ValuationResponse is the full valuation report.
type ValuationResponse struct {
	Categories []CategoryGroup `json:"categories"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// GET /api/reports/valuation - monetary value of physical inventory at
// purchase price, grouped by category.
func (h *Handler) GetStockValuation(c *gin.Context) {
	products, err := h.Catalog.ListProducts()
	if err != nil {
		h.respondError(c, err)
		return
	}

	grandTotal := decimal.Zero
	grouped := make(map[string]*CategoryGroup)

	for _, p := range products {
		catName := p.Category
		if catName == "" {
			catName = "Uncategorized"
		}
		if _, exists := grouped[catName]; !exists {
			grouped[catName] = &CategoryGroup{
				CategoryName: catName,
				Items:        []ValuationItem{},
				Subtotal:     decimal.Zero,
			}
		}

		itemTotal := p.PurchasePrice.Mul(decimal.NewFromFloat(p.CurrentStock)).Round(2)
		grouped[catName].Items = append(grouped[catName].Items, ValuationItem{
			Name:      p.Name,
			Quantity:  p.CurrentStock,
			CostPrice: p.PurchasePrice,
			TotalCost: itemTotal,
		})
		grouped[catName].Subtotal = grouped[catName].Subtotal.Add(itemTotal)
		grandTotal = grandTotal.Add(itemTotal)
	}

	response := ValuationResponse{GrandTotal: grandTotal}
	for _, group := range grouped {
		response.Categories = append(response.Categories, *group)
	}

	c.JSON(http.StatusOK, response)
}
