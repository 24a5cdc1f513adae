// Package catalog holds the mutable master records: products, customers and
// sales persons. Stock levels are not mutable data here; every stock change
// routes through the ledger so the projection invariant holds from the moment
// a product is born.
package catalog

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"go-retail-core/internal/ledger"
	"go-retail-core/internal/models"
)

var (
	ErrUnknownProduct     = errors.New("unknown product")
	ErrUnknownCustomer    = errors.New("unknown customer")
	ErrUnknownSalesPerson = errors.New("unknown sales person")
)

type Service struct {
	db     *gorm.DB
	ledger *ledger.Store
}

func NewService(db *gorm.DB, ledger *ledger.Store) *Service {
	return &Service{db: db, ledger: ledger}
}

// --- Products ---

// CreateProduct registers a product. Opening stock is recorded as an
// initial_stock ledger entry rather than written to the row, so the cached
// level and the ledger agree from the first row.
func (s *Service) CreateProduct(product *models.Product, openingStock float64) error {
	product.CurrentStock = 0
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(product).Error; err != nil {
			return fmt.Errorf("create product: %w", err)
		}
		if openingStock != 0 {
			if _, err := s.ledger.Append(tx, product.ID, openingStock, ledger.ReasonInitialStock, ""); err != nil {
				return err
			}
			product.CurrentStock = openingStock
		}
		return nil
	})
}

// UpdateProduct edits master data. current_stock is explicitly omitted: the
// ledger owns it.
func (s *Service) UpdateProduct(product *models.Product) error {
	if err := s.requireProduct(product.ID); err != nil {
		return err
	}
	err := s.db.Model(&models.Product{ID: product.ID}).
		Select("name", "category", "hsn_code", "unit", "package_size", "batch_number",
			"expiry_date", "mrp", "discount_percent", "selling_price", "purchase_price",
			"gst_rate", "min_stock_level").
		Updates(product).Error
	if err != nil {
		return fmt.Errorf("update product %d: %w", product.ID, err)
	}
	return nil
}

// AdjustStock records a manual stock correction through the ledger.
func (s *Service) AdjustStock(productID uint, change float64, reason string) error {
	if reason == "" {
		reason = ledger.ReasonAdjustment
	}
	unlock := s.ledger.LockProducts([]uint{productID})
	defer unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		_, err := s.ledger.Append(tx, productID, change, reason, "")
		return err
	})
}

func (s *Service) GetProduct(id uint) (*models.Product, error) {
	var product models.Product
	if err := s.db.First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrUnknownProduct, id)
		}
		return nil, fmt.Errorf("load product %d: %w", id, err)
	}
	return &product, nil
}

func (s *Service) ListProducts() ([]models.Product, error) {
	var products []models.Product
	if err := s.db.Order("name").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// LowStock lists products at or below their minimum stock level.
func (s *Service) LowStock() ([]models.Product, error) {
	var products []models.Product
	err := s.db.Where("current_stock <= min_stock_level").Order("name").Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("list low stock products: %w", err)
	}
	return products, nil
}

func (s *Service) DeleteProduct(id uint) error {
	if err := s.requireProduct(id); err != nil {
		return err
	}
	if err := s.db.Delete(&models.Product{}, id).Error; err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	return nil
}

func (s *Service) requireProduct(id uint) error {
	var count int64
	if err := s.db.Model(&models.Product{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("load product %d: %w", id, err)
	}
	if count == 0 {
		return fmt.Errorf("%w: id %d", ErrUnknownProduct, id)
	}
	return nil
}

// --- Customers ---

func (s *Service) CreateCustomer(customer *models.Customer) error {
	if err := s.db.Create(customer).Error; err != nil {
		return fmt.Errorf("create customer: %w", err)
	}
	return nil
}

func (s *Service) UpdateCustomer(customer *models.Customer) error {
	if _, err := s.GetCustomer(customer.ID); err != nil {
		return err
	}
	err := s.db.Model(&models.Customer{ID: customer.ID}).
		Select("name", "phone", "email", "address", "gstin").
		Updates(customer).Error
	if err != nil {
		return fmt.Errorf("update customer %d: %w", customer.ID, err)
	}
	return nil
}

func (s *Service) GetCustomer(id uint) (*models.Customer, error) {
	var customer models.Customer
	if err := s.db.First(&customer, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrUnknownCustomer, id)
		}
		return nil, fmt.Errorf("load customer %d: %w", id, err)
	}
	return &customer, nil
}

func (s *Service) ListCustomers() ([]models.Customer, error) {
	var customers []models.Customer
	if err := s.db.Order("name").Find(&customers).Error; err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return customers, nil
}

// MergeCustomers folds a duplicate customer into another: historical bills
// are re-pointed at the surviving record (with its snapshot fields) and the
// duplicate row is removed.
func (s *Service) MergeCustomers(fromID, toID uint) error {
	if fromID == toID {
		return fmt.Errorf("cannot merge customer %d into itself", fromID)
	}
	target, err := s.GetCustomer(toID)
	if err != nil {
		return err
	}
	if _, err := s.GetCustomer(fromID); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Bill{}).Where("customer_id = ?", fromID).Updates(map[string]interface{}{
			"customer_id":      target.ID,
			"customer_name":    target.Name,
			"customer_phone":   target.Phone,
			"customer_address": target.Address,
			"customer_gstin":   target.GSTIN,
		}).Error
		if err != nil {
			return fmt.Errorf("repoint bills from customer %d: %w", fromID, err)
		}
		if err := tx.Delete(&models.Customer{}, fromID).Error; err != nil {
			return fmt.Errorf("delete merged customer %d: %w", fromID, err)
		}
		return nil
	})
}

// --- Sales persons ---

func (s *Service) CreateSalesPerson(person *models.SalesPerson) error {
	person.IsActive = true
	if err := s.db.Create(person).Error; err != nil {
		return fmt.Errorf("create sales person: %w", err)
	}
	return nil
}

func (s *Service) GetSalesPerson(id uint) (*models.SalesPerson, error) {
	var person models.SalesPerson
	if err := s.db.First(&person, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrUnknownSalesPerson, id)
		}
		return nil, fmt.Errorf("load sales person %d: %w", id, err)
	}
	return &person, nil
}

func (s *Service) ListSalesPersons() ([]models.SalesPerson, error) {
	var persons []models.SalesPerson
	if err := s.db.Order("id").Find(&persons).Error; err != nil {
		return nil, fmt.Errorf("list sales persons: %w", err)
	}
	return persons, nil
}

func (s *Service) RenameSalesPerson(id uint, name string) error {
	if _, err := s.GetSalesPerson(id); err != nil {
		return err
	}
	err := s.db.Model(&models.SalesPerson{}).Where("id = ?", id).Update("name", name).Error
	if err != nil {
		return fmt.Errorf("rename sales person %d: %w", id, err)
	}
	return nil
}

// SetSalesPersonActive flips the active flag. Rows are never deleted so old
// bills keep their attribution.
func (s *Service) SetSalesPersonActive(id uint, active bool) error {
	if _, err := s.GetSalesPerson(id); err != nil {
		return err
	}
	err := s.db.Model(&models.SalesPerson{}).Where("id = ?", id).Update("is_active", active).Error
	if err != nil {
		return fmt.Errorf("set sales person %d active=%v: %w", id, active, err)
	}
	return nil
}

// EnsureDefaultSalesPersons seeds the two stock rows a fresh install expects.
func (s *Service) EnsureDefaultSalesPersons() error {
	var count int64
	if err := s.db.Model(&models.SalesPerson{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count sales persons: %w", err)
	}
	if count > 0 {
		return nil
	}
	defaults := []models.SalesPerson{
		{Name: "Admin", IsActive: true},
		{Name: "Counter Sale", IsActive: true},
	}
	if err := s.db.Create(&defaults).Error; err != nil {
		return fmt.Errorf("seed sales persons: %w", err)
	}
	return nil
}
