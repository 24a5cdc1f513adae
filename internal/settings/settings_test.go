package settings_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-retail-core/internal/database"
	"go-retail-core/internal/settings"
)

func newStore(t *testing.T) *settings.Store {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return settings.NewStore(db)
}

func TestGetSet(t *testing.T) {
	store := newStore(t)

	_, ok, err := store.Get("companyName")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set("companyName", "Nature Herbal Wellness"))

	value, ok, err := store.Get("companyName")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Nature Herbal Wellness", value)

	// second Set is an upsert, not a duplicate row
	require.NoError(t, store.Set("companyName", "NHW"))
	value, _, err = store.Get("companyName")
	require.NoError(t, err)
	assert.Equal(t, "NHW", value)

	all, err := store.List()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestTypedAccessorsFallBackToDefaults(t *testing.T) {
	store := newStore(t)

	assert.Equal(t, "INV", store.InvoicePrefix())
	assert.Equal(t, 1, store.InvoiceStartNumber())
	assert.Equal(t, "19", store.StateCode())

	require.NoError(t, store.Set(settings.KeyInvoicePrefix, "NHW"))
	require.NoError(t, store.Set(settings.KeyInvoiceStartNumber, "100"))
	require.NoError(t, store.Set(settings.KeyStateCode, "27"))

	assert.Equal(t, "NHW", store.InvoicePrefix())
	assert.Equal(t, 100, store.InvoiceStartNumber())
	assert.Equal(t, "27", store.StateCode())
}

func TestInvoiceStartNumber_IgnoresGarbage(t *testing.T) {
	store := newStore(t)

	require.NoError(t, store.Set(settings.KeyInvoiceStartNumber, "not-a-number"))
	assert.Equal(t, 1, store.InvoiceStartNumber())

	require.NoError(t, store.Set(settings.KeyInvoiceStartNumber, "0"))
	assert.Equal(t, 1, store.InvoiceStartNumber())
}
