// Package invoice is the consistency engine: on every sale it validates
// stock and master data, prices the bill, and commits the invoice row plus
// its ledger entries as one atomic unit. A committed bill is immutable;
// corrections go through Reverse.
package invoice

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"go-retail-core/internal/catalog"
	"go-retail-core/internal/ledger"
	"go-retail-core/internal/models"
	"go-retail-core/internal/settings"
	"go-retail-core/internal/tax"
)

// Engine orchestrates invoice creation against the catalog, the tax
// calculator and the ledger.
type Engine struct {
	db       *gorm.DB
	ledger   *ledger.Store
	catalog  *catalog.Service
	settings *settings.Store
	log      *logrus.Logger

	// Serializes number generation with the insert that claims it.
	numberMu sync.Mutex

	// commitHook runs inside the commit transaction after all writes; tests
	// use it to inject failures and prove the unit rolls back whole.
	commitHook func(tx *gorm.DB) error
}

func NewEngine(db *gorm.DB, led *ledger.Store, cat *catalog.Service, set *settings.Store, log *logrus.Logger) *Engine {
	return &Engine{db: db, ledger: led, catalog: cat, settings: set, log: log}
}

// LineRequest is one requested sale line. Rate and discount default to the
// product's catalog values when nil.
type LineRequest struct {
	ProductID       uint             `json:"product_id" binding:"required"`
	Quantity        float64          `json:"quantity" binding:"required"`
	Rate            *decimal.Decimal `json:"rate"`
	DiscountPercent *decimal.Decimal `json:"discount_percent"`
}

// CreateRequest describes a sale to commit. An empty InvoiceNumber asks the
// engine to issue the next number in the financial-year sequence. InterState
// overrides the GSTIN-based jurisdiction detection when set.
type CreateRequest struct {
	InvoiceNumber string        `json:"invoice_number"`
	CustomerID    uint          `json:"customer_id" binding:"required"`
	SalesPersonID uint          `json:"sales_person_id" binding:"required"`
	IsGSTBill     bool          `json:"is_gst_bill"`
	InterState    *bool         `json:"inter_state"`
	Lines         []LineRequest `json:"lines"`
}

// Create walks a sale through validation, pricing and the atomic commit, and
// returns the persisted bill. Per-product locks are held from the stock
// check until the transaction ends, so two concurrent sales cannot both pass
// validation against the same stale stock level.
func (e *Engine) Create(req CreateRequest) (*models.Bill, error) {
	if len(req.Lines) == 0 {
		return nil, tax.ErrEmptyInvoice
	}

	ids := make([]uint, 0, len(req.Lines))
	for _, line := range req.Lines {
		ids = append(ids, line.ProductID)
	}
	unlock := e.ledger.LockProducts(ids)
	defer unlock()

	// Validating
	customer, err := e.catalog.GetCustomer(req.CustomerID)
	if err != nil {
		return nil, err
	}
	person, err := e.catalog.GetSalesPerson(req.SalesPersonID)
	if err != nil {
		return nil, err
	}
	if !person.IsActive {
		return nil, fmt.Errorf("%w: %s (id %d)", ErrInactiveSalesPerson, person.Name, person.ID)
	}

	taxLines := make([]tax.Line, 0, len(req.Lines))
	items := make(models.BillItems, 0, len(req.Lines))
	requested := make(map[uint]float64)
	productsByID := make(map[uint]*models.Product)

	for _, line := range req.Lines {
		product, ok := productsByID[line.ProductID]
		if !ok {
			product, err = e.catalog.GetProduct(line.ProductID)
			if err != nil {
				return nil, err
			}
			productsByID[line.ProductID] = product
		}

		rate := product.SellingPrice
		if line.Rate != nil {
			rate = *line.Rate
		}
		discount := product.DiscountPercent
		if line.DiscountPercent != nil {
			discount = *line.DiscountPercent
		}
		qty := decimal.NewFromFloat(line.Quantity)

		taxLines = append(taxLines, tax.Line{
			ProductID:       product.ID,
			Quantity:        qty,
			UnitPrice:       rate,
			DiscountPercent: discount,
			GSTRate:         product.GSTRate,
		})
		items = append(items, models.BillItem{
			ProductID:       product.ID,
			ProductName:     product.Name,
			HSNCode:         product.HSNCode,
			Quantity:        line.Quantity,
			MRP:             product.MRP,
			Rate:            rate,
			DiscountPercent: discount,
			GSTRate:         product.GSTRate,
			Amount:          qty.Mul(rate).Mul(decimal.NewFromInt(100).Sub(discount)).Div(decimal.NewFromInt(100)).Round(2),
			BatchNumber:     product.BatchNumber,
			ExpiryDate:      product.ExpiryDate,
		})
		requested[product.ID] += line.Quantity
	}

	for _, line := range req.Lines {
		product := productsByID[line.ProductID]
		want, checked := requested[product.ID]
		if !checked {
			continue // already reported for an earlier line
		}
		if product.CurrentStock < want {
			return nil, &InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Requested:   want,
				Available:   product.CurrentStock,
			}
		}
		delete(requested, product.ID)
	}

	// Pricing (pure, freely retriable)
	interState := false
	if req.IsGSTBill {
		interState = tax.InterState(customer.GSTIN, e.settings.StateCode())
	}
	if req.InterState != nil {
		interState = *req.InterState
	}
	totals, err := tax.Calculate(taxLines, req.IsGSTBill, interState)
	if err != nil {
		return nil, err
	}

	// Committing
	e.numberMu.Lock()
	defer e.numberMu.Unlock()

	now := time.Now().UTC()
	bill := &models.Bill{
		InvoiceNumber:   req.InvoiceNumber,
		Date:            now.Format(time.RFC3339),
		CustomerID:      customer.ID,
		CustomerName:    customer.Name,
		CustomerPhone:   customer.Phone,
		CustomerAddress: customer.Address,
		CustomerGSTIN:   customer.GSTIN,
		SalesPersonID:   person.ID,
		SalesPersonName: person.Name,
		IsGSTBill:       req.IsGSTBill,
		SubTotal:        totals.SubTotal,
		TaxableAmount:   totals.TaxableAmount,
		CGSTAmount:      totals.CGST,
		SGSTAmount:      totals.SGST,
		IGSTAmount:      totals.IGST,
		TotalTax:        totals.TotalTax,
		RoundOff:        totals.RoundOff,
		GrandTotal:      totals.GrandTotal,
		Items:           items,
	}

	err = e.db.Transaction(func(tx *gorm.DB) error {
		if bill.InvoiceNumber == "" {
			number, err := e.nextNumber(tx, now)
			if err != nil {
				return err
			}
			bill.InvoiceNumber = number
		}

		var count int64
		if err := tx.Model(&models.Bill{}).Where("invoice_number = ?", bill.InvoiceNumber).Count(&count).Error; err != nil {
			return fmt.Errorf("check invoice number: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("%w: %s", ErrDuplicateInvoiceNumber, bill.InvoiceNumber)
		}

		if err := tx.Create(bill).Error; err != nil {
			return fmt.Errorf("persist bill: %w", err)
		}
		for _, item := range bill.Items {
			if _, err := e.ledger.Append(tx, item.ProductID, -item.Quantity, ledger.ReasonSale, bill.InvoiceNumber); err != nil {
				return err
			}
		}
		if e.commitHook != nil {
			return e.commitHook(tx)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"invoice_number": bill.InvoiceNumber,
		"customer_id":    bill.CustomerID,
		"grand_total":    bill.GrandTotal,
		"lines":          len(bill.Items),
	}).Info("invoice committed")

	return bill, nil
}

// Reverse creates a new bill with negated quantities and amounts and appends
// positive ledger entries referencing the original invoice number. The
// original row is never touched.
func (e *Engine) Reverse(billID uint) (*models.Bill, error) {
	original, err := e.Get(billID)
	if err != nil {
		return nil, err
	}
	for _, item := range original.Items {
		if item.Quantity < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotReversible, original.InvoiceNumber)
		}
	}

	ids := make([]uint, 0, len(original.Items))
	for _, item := range original.Items {
		ids = append(ids, item.ProductID)
	}
	unlock := e.ledger.LockProducts(ids)
	defer unlock()

	e.numberMu.Lock()
	defer e.numberMu.Unlock()

	now := time.Now().UTC()
	reversal := &models.Bill{
		Date:            now.Format(time.RFC3339),
		CustomerID:      original.CustomerID,
		CustomerName:    original.CustomerName,
		CustomerPhone:   original.CustomerPhone,
		CustomerAddress: original.CustomerAddress,
		CustomerGSTIN:   original.CustomerGSTIN,
		SalesPersonID:   original.SalesPersonID,
		SalesPersonName: original.SalesPersonName,
		IsGSTBill:       original.IsGSTBill,
		SubTotal:        original.SubTotal.Neg(),
		TaxableAmount:   original.TaxableAmount.Neg(),
		CGSTAmount:      original.CGSTAmount.Neg(),
		SGSTAmount:      original.SGSTAmount.Neg(),
		IGSTAmount:      original.IGSTAmount.Neg(),
		TotalTax:        original.TotalTax.Neg(),
		RoundOff:        original.RoundOff.Neg(),
		GrandTotal:      original.GrandTotal.Neg(),
	}
	for _, item := range original.Items {
		item.Quantity = -item.Quantity
		item.Amount = item.Amount.Neg()
		reversal.Items = append(reversal.Items, item)
	}

	err = e.db.Transaction(func(tx *gorm.DB) error {
		// Checked under the product locks and inside the transaction, so two
		// concurrent reversals of the same bill cannot both pass.
		var reversed int64
		err := tx.Model(&models.StockHistoryEntry{}).
			Where("reason = ? AND reference_id = ?", ledger.ReasonReversal, original.InvoiceNumber).
			Count(&reversed).Error
		if err != nil {
			return fmt.Errorf("check reversal state: %w", err)
		}
		if reversed > 0 {
			return fmt.Errorf("%w: %s", ErrAlreadyReversed, original.InvoiceNumber)
		}

		number, err := e.nextNumber(tx, now)
		if err != nil {
			return err
		}
		reversal.InvoiceNumber = number

		if err := tx.Create(reversal).Error; err != nil {
			return fmt.Errorf("persist reversing bill: %w", err)
		}
		for _, item := range original.Items {
			if _, err := e.ledger.Append(tx, item.ProductID, item.Quantity, ledger.ReasonReversal, original.InvoiceNumber); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"invoice_number": reversal.InvoiceNumber,
		"reverses":       original.InvoiceNumber,
	}).Info("invoice reversed")

	return reversal, nil
}

// Get loads one bill by id.
func (e *Engine) Get(id uint) (*models.Bill, error) {
	var bill models.Bill
	if err := e.db.First(&bill, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrUnknownInvoice, id)
		}
		return nil, fmt.Errorf("load bill %d: %w", id, err)
	}
	return &bill, nil
}

// List returns bills newest first. limit <= 0 means all.
func (e *Engine) List(limit int) ([]models.Bill, error) {
	q := e.db.Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var bills []models.Bill
	if err := q.Find(&bills).Error; err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	return bills, nil
}

// NextInvoiceNumber previews the number the next sale would be issued.
func (e *Engine) NextInvoiceNumber() (string, error) {
	return e.nextNumber(e.db, time.Now().UTC())
}

// nextNumber issues PREFIX/NNNN/YY-YY, where the sequence restarts every
// financial year (April to March) and never goes below the configured start
// number.
func (e *Engine) nextNumber(tx *gorm.DB, now time.Time) (string, error) {
	prefix := e.settings.InvoicePrefix()

	fyStart := now.Year()
	if now.Month() < time.April {
		fyStart--
	}
	fyShort := fmt.Sprintf("%02d-%02d", fyStart%100, (fyStart+1)%100)

	var numbers []string
	err := tx.Model(&models.Bill{}).
		Where("invoice_number LIKE ?", prefix+"/%/"+fyShort).
		Pluck("invoice_number", &numbers).Error
	if err != nil {
		return "", fmt.Errorf("scan invoice numbers: %w", err)
	}

	maxNum := 0
	for _, number := range numbers {
		parts := strings.Split(number, "/")
		if len(parts) != 3 {
			continue
		}
		if n, err := strconv.Atoi(parts[1]); err == nil && n > maxNum {
			maxNum = n
		}
	}

	next := maxNum + 1
	if start := e.settings.InvoiceStartNumber(); next < start {
		next = start
	}

	return fmt.Sprintf("%s/%04d/%s", prefix, next, fyShort), nil
}
