// Package backup produces and restores point-in-time snapshots of the whole
// dataset. A snapshot is a JSON payload of every table tagged with the schema
// version it was taken under; restore validates the payload before touching
// live data and replaces the dataset in one transaction.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"go-retail-core/internal/database"
	"go-retail-core/internal/ledger"
	"go-retail-core/internal/models"
)

const (
	TypeAuto   = "auto"
	TypeManual = "manual"

	// retainCount snapshots are kept; older ones are pruned after every
	// successful create.
	retainCount = 7
)

var (
	ErrCorruptSnapshot = errors.New("snapshot payload is corrupt")
	ErrUnknownSnapshot = errors.New("unknown snapshot")
)

// payloadUser mirrors models.User with the hash included: the model hides it
// from API responses, but a snapshot without hashes could not be restored.
type payloadUser struct {
	Username     string      `json:"username"`
	PasswordHash string      `json:"passwordHash"`
	Role         models.Role `json:"role"`
	LastLogin    *string     `json:"lastLogin"`
}

type payload struct {
	SchemaVersion int                        `json:"schemaVersion"`
	Settings      []models.Setting           `json:"settings"`
	Products      []models.Product           `json:"products"`
	Customers     []models.Customer          `json:"customers"`
	Bills         []models.Bill              `json:"bills"`
	SalesPersons  []models.SalesPerson       `json:"salesPersons"`
	StockHistory  []models.StockHistoryEntry `json:"stockHistory"`
	Users         []payloadUser              `json:"users"`
}

type Manager struct {
	db     *gorm.DB
	ledger *ledger.Store
	log    *logrus.Logger

	// Serializes snapshot creation so the daily auto check cannot race.
	mu sync.Mutex
}

func NewManager(db *gorm.DB, led *ledger.Store, log *logrus.Logger) *Manager {
	return &Manager{db: db, ledger: led, log: log}
}

// Create serializes the dataset into a new snapshot record and prunes old
// ones. Invoice commits may run concurrently; the export reads every table
// inside one transaction so it sees a consistent point-in-time view. Auto
// snapshots are throttled to one per calendar day; the existing record is
// returned when today already has one.
func (m *Manager) Create(kind string) (*models.BackupRecord, error) {
	if kind != TypeAuto && kind != TypeManual {
		return nil, fmt.Errorf("unknown snapshot type %q", kind)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var record *models.BackupRecord
	reused := false
	err := m.db.Transaction(func(tx *gorm.DB) error {
		if kind == TypeAuto {
			today := time.Now().UTC().Format(time.DateOnly)
			var existing models.BackupRecord
			err := tx.Where("type = ? AND timestamp LIKE ?", TypeAuto, today+"%").First(&existing).Error
			if err == nil {
				record = &existing
				reused = true
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("check daily snapshot: %w", err)
			}
		}

		data, err := m.export(tx)
		if err != nil {
			return err
		}

		record = &models.BackupRecord{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Type:      kind,
			Size:      int64(len(data)),
			Data:      string(data),
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("persist snapshot: %w", err)
		}

		return tx.Exec(
			"DELETE FROM backups WHERE id NOT IN (SELECT id FROM backups ORDER BY timestamp DESC, id DESC LIMIT ?)",
			retainCount,
		).Error
	})
	if err != nil {
		return nil, err
	}
	if reused {
		return record, nil
	}

	m.log.WithFields(logrus.Fields{
		"snapshot_id": record.ID,
		"type":        record.Type,
		"size":        record.Size,
	}).Info("snapshot created")

	return record, nil
}

// AutoBackup creates at most one auto snapshot per calendar day. It returns
// the existing day's record when one is already present.
func (m *Manager) AutoBackup() (*models.BackupRecord, error) {
	return m.Create(TypeAuto)
}

// List returns snapshot metadata newest first, payloads omitted.
func (m *Manager) List() ([]models.BackupRecord, error) {
	var records []models.BackupRecord
	err := m.db.Select("id", "timestamp", "type", "size").
		Order("timestamp desc, id desc").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return records, nil
}

// Restore replaces the live dataset with the snapshot's payload. The payload
// is validated first; a corrupt or version-mismatched snapshot is rejected
// with the live data untouched. The backups table itself survives so another
// snapshot can still be restored afterwards.
func (m *Manager) Restore(id uint) error {
	var record models.BackupRecord
	if err := m.db.First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: id %d", ErrUnknownSnapshot, id)
		}
		return fmt.Errorf("load snapshot %d: %w", id, err)
	}

	currentVersion, err := database.SchemaVersion(m.db)
	if err != nil {
		return err
	}

	var p payload
	if err := json.Unmarshal([]byte(record.Data), &p); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if err := validate(&p, currentVersion); err != nil {
		return err
	}

	// No sale may commit across the wipe: wait out in-flight product locks and
	// hold off new ones until the dataset is swapped.
	unfreeze := m.ledger.Freeze()
	defer unfreeze()

	err = m.db.Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"settings", "products", "customers", "bills", "sales_persons", "stock_history", "users"} {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}

		if len(p.Settings) > 0 {
			if err := tx.Create(&p.Settings).Error; err != nil {
				return fmt.Errorf("restore settings: %w", err)
			}
		}
		if len(p.Products) > 0 {
			if err := tx.Create(&p.Products).Error; err != nil {
				return fmt.Errorf("restore products: %w", err)
			}
		}
		if len(p.Customers) > 0 {
			if err := tx.Create(&p.Customers).Error; err != nil {
				return fmt.Errorf("restore customers: %w", err)
			}
		}
		if len(p.Bills) > 0 {
			if err := tx.Create(&p.Bills).Error; err != nil {
				return fmt.Errorf("restore bills: %w", err)
			}
		}
		if len(p.SalesPersons) > 0 {
			if err := tx.Create(&p.SalesPersons).Error; err != nil {
				return fmt.Errorf("restore sales persons: %w", err)
			}
		}
		if len(p.StockHistory) > 0 {
			if err := tx.Create(&p.StockHistory).Error; err != nil {
				return fmt.Errorf("restore stock history: %w", err)
			}
		}
		for _, u := range p.Users {
			user := models.User{
				Username:     u.Username,
				PasswordHash: u.PasswordHash,
				Role:         u.Role,
				LastLogin:    u.LastLogin,
			}
			if err := tx.Create(&user).Error; err != nil {
				return fmt.Errorf("restore users: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.log.WithFields(logrus.Fields{
		"snapshot_id": record.ID,
		"taken_at":    record.Timestamp,
	}).Warn("dataset restored from snapshot")

	return nil
}

func (m *Manager) export(tx *gorm.DB) ([]byte, error) {
	version, err := database.SchemaVersion(tx)
	if err != nil {
		return nil, err
	}
	p := payload{SchemaVersion: version}

	if err := tx.Order("key").Find(&p.Settings).Error; err != nil {
		return nil, fmt.Errorf("export settings: %w", err)
	}
	if err := tx.Order("id").Find(&p.Products).Error; err != nil {
		return nil, fmt.Errorf("export products: %w", err)
	}
	if err := tx.Order("id").Find(&p.Customers).Error; err != nil {
		return nil, fmt.Errorf("export customers: %w", err)
	}
	if err := tx.Order("id").Find(&p.Bills).Error; err != nil {
		return nil, fmt.Errorf("export bills: %w", err)
	}
	if err := tx.Order("id").Find(&p.SalesPersons).Error; err != nil {
		return nil, fmt.Errorf("export sales persons: %w", err)
	}
	if err := tx.Order("id").Find(&p.StockHistory).Error; err != nil {
		return nil, fmt.Errorf("export stock history: %w", err)
	}

	var users []models.User
	if err := tx.Order("username").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("export users: %w", err)
	}
	for _, u := range users {
		p.Users = append(p.Users, payloadUser{
			Username:     u.Username,
			PasswordHash: u.PasswordHash,
			Role:         u.Role,
			LastLogin:    u.LastLogin,
		})
	}

	return json.Marshal(p)
}

// validate performs the structural checks that must pass before any live row
// is deleted.
func validate(p *payload, currentVersion int) error {
	if p.SchemaVersion != currentVersion {
		return fmt.Errorf("%w: schema version %d does not match database version %d",
			ErrCorruptSnapshot, p.SchemaVersion, currentVersion)
	}
	for _, product := range p.Products {
		if product.ID == 0 || product.Name == "" {
			return fmt.Errorf("%w: product with missing id or name", ErrCorruptSnapshot)
		}
	}
	for _, bill := range p.Bills {
		if bill.ID == 0 || bill.InvoiceNumber == "" {
			return fmt.Errorf("%w: bill with missing id or invoice number", ErrCorruptSnapshot)
		}
	}
	for _, u := range p.Users {
		if u.Username == "" || u.PasswordHash == "" {
			return fmt.Errorf("%w: user with missing username or password hash", ErrCorruptSnapshot)
		}
		if !u.Role.Valid() {
			return fmt.Errorf("%w: user %s has unknown role %q", ErrCorruptSnapshot, u.Username, u.Role)
		}
	}
	for _, s := range p.Settings {
		if strings.TrimSpace(s.Key) == "" {
			return fmt.Errorf("%w: setting with empty key", ErrCorruptSnapshot)
		}
	}
	return nil
}
