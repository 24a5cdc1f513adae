package settings

import (
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"go-retail-core/internal/models"
)

// Well-known keys. Names match what the billing screens have always stored.
const (
	KeyInvoicePrefix      = "invoicePrefix"
	KeyInvoiceStartNumber = "invoiceStartNumber"
	KeyStateCode          = "stateCode"
	KeyCompanyName        = "companyName"
	KeyCompanyGSTIN       = "gstin"
)

const (
	defaultInvoicePrefix = "INV"
	defaultStateCode     = "19" // West Bengal
)

// Store is the key/value settings table.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get returns the stored value, or ok=false when the key was never set.
func (s *Store) Get(key string) (string, bool, error) {
	var setting models.Setting
	err := s.db.Where("key = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read setting %q: %w", key, err)
	}
	return setting.Value, true, nil
}

// Set upserts a value by key.
func (s *Store) Set(key, value string) error {
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&models.Setting{Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("write setting %q: %w", key, err)
	}
	return nil
}

// List returns every stored setting.
func (s *Store) List() ([]models.Setting, error) {
	var all []models.Setting
	if err := s.db.Order("key").Find(&all).Error; err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return all, nil
}

func (s *Store) getDefault(key, def string) string {
	value, ok, err := s.Get(key)
	if err != nil || !ok || value == "" {
		return def
	}
	return value
}

// InvoicePrefix is the leading segment of generated invoice numbers.
func (s *Store) InvoicePrefix() string {
	return s.getDefault(KeyInvoicePrefix, defaultInvoicePrefix)
}

// InvoiceStartNumber is the lowest sequence number ever issued in a
// financial year.
func (s *Store) InvoiceStartNumber() int {
	raw := s.getDefault(KeyInvoiceStartNumber, "1")
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// StateCode is the company's two-digit GST state code, used to decide the
// jurisdiction split against customer GSTINs.
func (s *Store) StateCode() string {
	return s.getDefault(KeyStateCode, defaultStateCode)
}
