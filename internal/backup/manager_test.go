package backup_test

import (
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"go-retail-core/internal/backup"
	"go-retail-core/internal/database"
	"go-retail-core/internal/ledger"
	"go-retail-core/internal/models"
)

func newManager(t *testing.T) (*backup.Manager, *gorm.DB) {
	mgr, db, _ := newManagerWithLedger(t)
	return mgr, db
}

func newManagerWithLedger(t *testing.T) (*backup.Manager, *gorm.DB, *ledger.Store) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)
	led := ledger.NewStore(db)
	return backup.NewManager(db, led, log), db, led
}

func seedDataset(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Create(&models.Setting{Key: "companyName", Value: "Nature Herbal Wellness"}).Error)
	require.NoError(t, db.Create(&models.Product{
		Name:         "Herbal Soap",
		SellingPrice: decimal.NewFromInt(100),
		GSTRate:      decimal.NewFromInt(18),
		CurrentStock: 10,
	}).Error)
	require.NoError(t, db.Create(&models.Customer{Name: "Rahul Sharma", Phone: "9830000000"}).Error)
	require.NoError(t, db.Create(&models.SalesPerson{Name: "Counter Sale", IsActive: true}).Error)
	require.NoError(t, db.Create(&models.Bill{
		InvoiceNumber: "INV/0001/25-26",
		Date:          "2026-04-01T10:00:00Z",
		CustomerID:    1,
		CustomerName:  "Rahul Sharma",
		GrandTotal:    decimal.NewFromInt(354),
	}).Error)
	require.NoError(t, db.Create(&models.StockHistoryEntry{
		Timestamp:    "2026-04-01T10:00:00Z",
		ProductID:    1,
		ProductName:  "Herbal Soap",
		ChangeAmount: 10,
		Reason:       "initial_stock",
	}).Error)
	require.NoError(t, db.Create(&models.User{
		Username:     "admin",
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		Role:         models.RoleAdmin,
	}).Error)
}

func TestCreateAndRestore_RoundTrip(t *testing.T) {
	mgr, db := newManager(t)
	seedDataset(t, db)

	record, err := mgr.Create(backup.TypeManual)
	require.NoError(t, err)
	require.NotZero(t, record.ID)
	assert.Equal(t, backup.TypeManual, record.Type)
	assert.EqualValues(t, len(record.Data), record.Size)

	// Mutate the live dataset after the snapshot.
	require.NoError(t, db.Create(&models.Product{Name: "Intruder"}).Error)
	require.NoError(t, db.Model(&models.Setting{}).
		Where("key = ?", "companyName").Update("value", "Renamed Ltd").Error)
	require.NoError(t, db.Delete(&models.Bill{}, 1).Error)

	require.NoError(t, mgr.Restore(record.ID))

	var productCount int64
	require.NoError(t, db.Model(&models.Product{}).Count(&productCount).Error)
	assert.EqualValues(t, 1, productCount)

	var setting models.Setting
	require.NoError(t, db.Where("key = ?", "companyName").First(&setting).Error)
	assert.Equal(t, "Nature Herbal Wellness", setting.Value)

	var bill models.Bill
	require.NoError(t, db.First(&bill).Error)
	assert.Equal(t, "INV/0001/25-26", bill.InvoiceNumber)
	assert.Equal(t, "354.00", bill.GrandTotal.StringFixed(2))

	var user models.User
	require.NoError(t, db.Where("username = ?", "admin").First(&user).Error)
	assert.Equal(t, "$2a$10$abcdefghijklmnopqrstuv", user.PasswordHash, "password hash must survive the round trip")

	// The snapshot itself survives its own restore.
	var backups int64
	require.NoError(t, db.Model(&models.BackupRecord{}).Count(&backups).Error)
	assert.EqualValues(t, 1, backups)
}

func TestRestore_CorruptPayloadLeavesDataUntouched(t *testing.T) {
	mgr, db := newManager(t)
	seedDataset(t, db)

	record := &models.BackupRecord{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Type:      backup.TypeManual,
		Data:      "{ this is not json",
	}
	require.NoError(t, db.Create(record).Error)

	err := mgr.Restore(record.ID)
	assert.ErrorIs(t, err, backup.ErrCorruptSnapshot)

	var products, bills int64
	require.NoError(t, db.Model(&models.Product{}).Count(&products).Error)
	require.NoError(t, db.Model(&models.Bill{}).Count(&bills).Error)
	assert.EqualValues(t, 1, products)
	assert.EqualValues(t, 1, bills)
}

func TestRestore_RejectsSchemaVersionMismatch(t *testing.T) {
	mgr, db := newManager(t)
	seedDataset(t, db)

	record := &models.BackupRecord{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Type:      backup.TypeManual,
		Data:      `{"schemaVersion":99}`,
	}
	require.NoError(t, db.Create(record).Error)

	err := mgr.Restore(record.ID)
	assert.ErrorIs(t, err, backup.ErrCorruptSnapshot)
	assert.Contains(t, err.Error(), "schema version")

	var products int64
	require.NoError(t, db.Model(&models.Product{}).Count(&products).Error)
	assert.EqualValues(t, 1, products)
}

func TestRestore_UnknownSnapshot(t *testing.T) {
	mgr, _ := newManager(t)
	assert.ErrorIs(t, mgr.Restore(42), backup.ErrUnknownSnapshot)
}

func TestCreate_PrunesToSevenSnapshots(t *testing.T) {
	mgr, db := newManager(t)
	seedDataset(t, db)

	for i := 0; i < 10; i++ {
		_, err := mgr.Create(backup.TypeManual)
		require.NoError(t, err, "snapshot %d", i)
	}

	records, err := mgr.List()
	require.NoError(t, err)
	require.Len(t, records, 7)

	// Newest first, oldest three gone.
	for i, record := range records {
		assert.EqualValues(t, 10-i, record.ID)
		assert.Empty(t, record.Data, "list must not ship payloads")
	}
}

func TestCreate_RejectsUnknownType(t *testing.T) {
	mgr, _ := newManager(t)
	_, err := mgr.Create("weekly")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown snapshot type")
}

func TestAutoBackup_OncePerDay(t *testing.T) {
	mgr, db := newManager(t)
	seedDataset(t, db)

	first, err := mgr.AutoBackup()
	require.NoError(t, err)
	assert.Equal(t, backup.TypeAuto, first.Type)

	second, err := mgr.AutoBackup()
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same day must reuse the snapshot")

	var count int64
	require.NoError(t, db.Model(&models.BackupRecord{}).
		Where("type = ?", backup.TypeAuto).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	// A stale snapshot from yesterday does not satisfy today.
	yesterday := time.Now().UTC().AddDate(0, 0, -1).Format(time.RFC3339)
	require.NoError(t, db.Model(&models.BackupRecord{}).
		Where("id = ?", first.ID).Update("timestamp", yesterday).Error)

	third, err := mgr.AutoBackup()
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestAutoBackup_ConcurrentCallersShareOneSnapshot(t *testing.T) {
	mgr, db := newManager(t)
	seedDataset(t, db)

	var wg sync.WaitGroup
	ids := make([]uint, 4)
	errs := make([]error, 4)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			record, err := mgr.AutoBackup()
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = record.ID
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "caller %d", i)
	}
	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id)
	}

	var count int64
	require.NoError(t, db.Model(&models.BackupRecord{}).
		Where("type = ?", backup.TypeAuto).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestRestore_WaitsForInFlightStockWork(t *testing.T) {
	mgr, db, led := newManagerWithLedger(t)
	seedDataset(t, db)

	record, err := mgr.Create(backup.TypeManual)
	require.NoError(t, err)

	// a sale in its validation-through-commit window holds the product lock
	unlock := led.LockProducts([]uint{1})

	done := make(chan error, 1)
	go func() { done <- mgr.Restore(record.ID) }()

	select {
	case err := <-done:
		t.Fatalf("restore ran while a sale held the product lock: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	require.NoError(t, <-done)

	var products int64
	require.NoError(t, db.Model(&models.Product{}).Count(&products).Error)
	assert.EqualValues(t, 1, products)
}
