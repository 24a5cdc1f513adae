// Package ledger is the append-only record of stock movements. It is the
// only writer of products.current_stock: every change to a stock level goes
// through Append, which records the movement and advances the cached
// projection in the same transaction.
package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"go-retail-core/internal/models"
)

// Movement reasons. Free text is allowed but these cover every flow the
// system itself produces.
const (
	ReasonInitialStock = "initial_stock"
	ReasonSale         = "sale"
	ReasonAdjustment   = "manual_adjustment"
	ReasonReversal     = "bill_reversed"
)

// ErrUnknownProduct is returned when a movement references a product id that
// does not exist.
var ErrUnknownProduct = errors.New("unknown product")

// DriftError reports a divergence between the cached stock projection and the
// ledger sum. It should never happen outside an in-flight transaction; seeing
// one means the dataset is corrupt.
type DriftError struct {
	ProductID uint
	Cached    float64
	LedgerSum float64
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("stock projection drift for product %d: cached %v, ledger sum %v",
		e.ProductID, e.Cached, e.LedgerSum)
}

// Store reads and appends stock movements.
type Store struct {
	db    *gorm.DB
	locks *productLocks

	// gate lets a snapshot restore exclude all stock-affecting work at once:
	// LockProducts holds it shared, Freeze holds it exclusive.
	gate sync.RWMutex
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, locks: newProductLocks()}
}

// LockProducts serializes stock-affecting work on the given products. The
// returned function releases the locks. Ids are locked in sorted order so two
// overlapping invoices cannot deadlock.
func (s *Store) LockProducts(ids []uint) func() {
	s.gate.RLock()
	unlock := s.locks.lock(ids)
	return func() {
		unlock()
		s.gate.RUnlock()
	}
}

// Freeze blocks until no product locks are held and excludes new ones until
// the returned function is called. A dataset restore runs under it so an
// in-flight sale validated against pre-restore stock cannot commit onto the
// restored data.
func (s *Store) Freeze() func() {
	s.gate.Lock()
	return s.gate.Unlock
}

// Append records one stock movement inside the caller's transaction and
// moves the cached projection with it. It does no business validation:
// sufficiency checks belong to the caller, before this call, in the same
// transaction.
func (s *Store) Append(tx *gorm.DB, productID uint, change float64, reason, referenceID string) (uint, error) {
	var product models.Product
	if err := tx.First(&product, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("%w: id %d", ErrUnknownProduct, productID)
		}
		return 0, fmt.Errorf("load product %d: %w", productID, err)
	}

	entry := models.StockHistoryEntry{
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		ProductID:    productID,
		ProductName:  product.Name,
		ChangeAmount: change,
		Reason:       reason,
		ReferenceID:  referenceID,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return 0, fmt.Errorf("append stock history: %w", err)
	}

	err := tx.Model(&models.Product{}).
		Where("id = ?", productID).
		Update("current_stock", gorm.Expr("current_stock + ?", change)).Error
	if err != nil {
		return 0, fmt.Errorf("advance stock projection: %w", err)
	}

	return entry.ID, nil
}

// CurrentStock returns the cached stock level for a product.
func (s *Store) CurrentStock(productID uint) (float64, error) {
	var product models.Product
	if err := s.db.First(&product, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("%w: id %d", ErrUnknownProduct, productID)
		}
		return 0, fmt.Errorf("load product %d: %w", productID, err)
	}
	return product.CurrentStock, nil
}

// Recompute sums the product's ledger entries and checks them against the
// cached projection. A mismatch is returned as a *DriftError.
func (s *Store) Recompute(productID uint) (float64, error) {
	cached, err := s.CurrentStock(productID)
	if err != nil {
		return 0, err
	}

	var sum float64
	err = s.db.Model(&models.StockHistoryEntry{}).
		Where("product_id = ?", productID).
		Select("COALESCE(SUM(change_amount), 0)").
		Scan(&sum).Error
	if err != nil {
		return 0, fmt.Errorf("sum stock history for product %d: %w", productID, err)
	}

	if sum != cached {
		return sum, &DriftError{ProductID: productID, Cached: cached, LedgerSum: sum}
	}
	return sum, nil
}

// History lists a product's movements, newest first. limit <= 0 means all.
func (s *Store) History(productID uint, limit int) ([]models.StockHistoryEntry, error) {
	q := s.db.Where("product_id = ?", productID).Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var entries []models.StockHistoryEntry
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list stock history for product %d: %w", productID, err)
	}
	return entries, nil
}

// RecentHistory lists movements across all products, newest first.
func (s *Store) RecentHistory(limit int) ([]models.StockHistoryEntry, error) {
	q := s.db.Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var entries []models.StockHistoryEntry
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list stock history: %w", err)
	}
	return entries, nil
}
