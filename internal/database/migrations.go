package database

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Migrations are append-only and forward-only: new schema changes get a new
// entry at the end of the list, existing entries are frozen. A database whose
// recorded version is ahead of this list belongs to a newer build and is
// refused rather than downgraded.
type migration struct {
	Version int
	Name    string
	SQL     string
}

var migrations = []migration{
	{
		Version: 1,
		Name:    "create initial tables",
		SQL: `
        CREATE TABLE IF NOT EXISTS settings (
          key TEXT PRIMARY KEY,
          value TEXT NOT NULL
        );

        CREATE TABLE IF NOT EXISTS products (
          id INTEGER PRIMARY KEY AUTOINCREMENT,
          name TEXT NOT NULL,
          category TEXT NOT NULL DEFAULT '',
          hsn_code TEXT NOT NULL DEFAULT '',
          unit TEXT NOT NULL DEFAULT 'Nos',
          package_size TEXT,
          batch_number TEXT,
          expiry_date TEXT,
          mrp REAL NOT NULL DEFAULT 0,
          discount_percent REAL NOT NULL DEFAULT 0,
          selling_price REAL NOT NULL DEFAULT 0,
          purchase_price REAL NOT NULL DEFAULT 0,
          gst_rate REAL NOT NULL DEFAULT 0,
          current_stock REAL NOT NULL DEFAULT 0,
          min_stock_level REAL NOT NULL DEFAULT 0
        );

        CREATE TABLE IF NOT EXISTS customers (
          id INTEGER PRIMARY KEY AUTOINCREMENT,
          name TEXT NOT NULL,
          phone TEXT NOT NULL DEFAULT '',
          email TEXT,
          address TEXT,
          gstin TEXT
        );

        CREATE TABLE IF NOT EXISTS bills (
          id INTEGER PRIMARY KEY AUTOINCREMENT,
          invoice_number TEXT NOT NULL,
          date TEXT NOT NULL,
          customer_id INTEGER NOT NULL,
          customer_name TEXT NOT NULL DEFAULT '',
          customer_phone TEXT NOT NULL DEFAULT '',
          customer_address TEXT,
          customer_gstin TEXT,
          sales_person_id INTEGER NOT NULL DEFAULT 0,
          sales_person_name TEXT NOT NULL DEFAULT '',
          is_gst_bill INTEGER NOT NULL DEFAULT 1,
          sub_total REAL NOT NULL DEFAULT 0,
          taxable_amount REAL NOT NULL DEFAULT 0,
          cgst_amount REAL NOT NULL DEFAULT 0,
          sgst_amount REAL NOT NULL DEFAULT 0,
          igst_amount REAL NOT NULL DEFAULT 0,
          total_tax REAL NOT NULL DEFAULT 0,
          round_off REAL NOT NULL DEFAULT 0,
          grand_total REAL NOT NULL DEFAULT 0,
          items TEXT NOT NULL DEFAULT '[]'
        );

        CREATE TABLE IF NOT EXISTS sales_persons (
          id INTEGER PRIMARY KEY AUTOINCREMENT,
          name TEXT NOT NULL,
          is_active INTEGER NOT NULL DEFAULT 1
        );

        CREATE TABLE IF NOT EXISTS stock_history (
          id INTEGER PRIMARY KEY AUTOINCREMENT,
          timestamp TEXT NOT NULL,
          product_id INTEGER NOT NULL,
          product_name TEXT NOT NULL DEFAULT '',
          change_amount REAL NOT NULL DEFAULT 0,
          reason TEXT NOT NULL DEFAULT '',
          reference_id TEXT
        );

        CREATE TABLE IF NOT EXISTS backups (
          id INTEGER PRIMARY KEY AUTOINCREMENT,
          timestamp TEXT NOT NULL,
          type TEXT NOT NULL DEFAULT 'auto',
          size INTEGER NOT NULL DEFAULT 0,
          data TEXT NOT NULL DEFAULT ''
        );

        CREATE TABLE IF NOT EXISTS users (
          username TEXT PRIMARY KEY,
          password_hash TEXT NOT NULL,
          role TEXT NOT NULL DEFAULT 'user',
          last_login TEXT
        );
      `,
	},
}

// Migrate applies every pending migration inside its own transaction and
// records it in schema_migrations.
func Migrate(db *gorm.DB) error {
	err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
          version INTEGER PRIMARY KEY,
          applied_at TEXT NOT NULL
        )`).Error
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}

	latest := migrations[len(migrations)-1].Version
	if current > latest {
		return fmt.Errorf("database schema version %d is newer than this build (supports up to %d)", current, latest)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(m.SQL).Error; err != nil {
				return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
			}
			return tx.Exec(
				"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
				m.Version, time.Now().UTC().Format(time.RFC3339),
			).Error
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// SchemaVersion reports the highest applied migration version.
func SchemaVersion(db *gorm.DB) (int, error) {
	var version int
	err := db.Raw("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version).Error
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}
