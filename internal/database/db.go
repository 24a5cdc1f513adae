package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the shared handle used by the server wiring. Tests and libraries
// should prefer Open and pass the handle around explicitly.
var DB *gorm.DB

// Open opens (or creates) the embedded SQLite database at path and brings the
// schema up to date. The busy timeout keeps concurrent writers queued instead
// of failing with SQLITE_BUSY.
func Open(path string) (*gorm.DB, error) {
	dsn := path + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %q: %w", path, err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Connect opens the database at path and installs it as the shared handle.
func Connect(path string) error {
	db, err := Open(path)
	if err != nil {
		return err
	}
	DB = db
	return nil
}
