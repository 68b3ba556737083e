package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chri75252/simpler-fba/internal/models"
)

func supplierProduct(url string) *models.SupplierProduct {
	return &models.SupplierProduct{
		Title: "Product " + url,
		Price: 2.99,
		URL:   url,
	}
}

func TestSupplierCacheDedupByURL(t *testing.T) {
	file := filepath.Join(t.TempDir(), "supplier_cache.json")

	// Seed a legacy file that already contains duplicate URLs.
	existing := []*models.SupplierProduct{
		supplierProduct("https://supplier.test/a"),
		supplierProduct("https://supplier.test/b"),
		supplierProduct("https://supplier.test/a"),
	}
	data, err := json.Marshal(existing)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(file, data, 0644))

	sc, err := NewSupplierCache(file, 1, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, 2, sc.Len(), "loading collapses duplicate URLs")

	// Two new products, one of which duplicates an existing URL.
	added, err := sc.Add(
		supplierProduct("https://supplier.test/b"),
		supplierProduct("https://supplier.test/c"),
	)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, 3, sc.Len(), "existing-unique plus genuinely-new")

	// The re-saved file must be deduplicated too.
	saved, err := os.ReadFile(file)
	require.NoError(t, err)
	var list []*models.SupplierProduct
	require.NoError(t, json.Unmarshal(saved, &list))
	assert.Len(t, list, 3)
}

func TestSupplierCacheDedupByEAN(t *testing.T) {
	file := filepath.Join(t.TempDir(), "supplier_cache.json")
	sc, err := NewSupplierCache(file, 1, slog.Default())
	require.NoError(t, err)

	a := supplierProduct("https://supplier.test/a")
	a.EAN = "5012345678900"
	b := supplierProduct("https://supplier.test/a-relisted")
	b.EAN = "5012345678900"

	added, err := sc.Add(a, b)
	require.NoError(t, err)
	assert.Equal(t, 1, added, "same EAN under different URLs is one product")
}

func TestSupplierCacheBatchedFlush(t *testing.T) {
	file := filepath.Join(t.TempDir(), "supplier_cache.json")
	sc, err := NewSupplierCache(file, 3, slog.Default())
	require.NoError(t, err)

	_, err = sc.Add(supplierProduct("https://supplier.test/1"))
	require.NoError(t, err)
	_, err = sc.Add(supplierProduct("https://supplier.test/2"))
	require.NoError(t, err)

	_, statErr := os.Stat(file)
	assert.True(t, os.IsNotExist(statErr), "below batch size nothing is written")

	_, err = sc.Add(supplierProduct("https://supplier.test/3"))
	require.NoError(t, err)

	_, statErr = os.Stat(file)
	assert.NoError(t, statErr, "reaching batch size triggers a flush")
}

func TestSupplierCacheExplicitFlush(t *testing.T) {
	file := filepath.Join(t.TempDir(), "supplier_cache.json")
	sc, err := NewSupplierCache(file, 100, slog.Default())
	require.NoError(t, err)

	_, err = sc.Add(supplierProduct("https://supplier.test/1"))
	require.NoError(t, err)
	require.NoError(t, sc.Flush())

	_, statErr := os.Stat(file)
	assert.NoError(t, statErr)

	// Flushing with nothing pending is a no-op.
	require.NoError(t, sc.Flush())
}

func TestSupplierCacheStartFlusherWritesOnInterval(t *testing.T) {
	file := filepath.Join(t.TempDir(), "supplier_cache.json")
	sc, err := NewSupplierCache(file, 100, slog.Default())
	require.NoError(t, err)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		sc.StartFlusher(10*time.Millisecond, stop)
		close(done)
	}()

	// Batch size 100, so only the ticker can get this onto disk.
	_, err = sc.Add(supplierProduct("https://supplier.test/1"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, statErr := os.Stat(file)
		return statErr == nil
	}, time.Second, 5*time.Millisecond, "ticker flushes pending products")

	close(stop)
	<-done
}

func TestSupplierCachePreservesInsertionOrder(t *testing.T) {
	file := filepath.Join(t.TempDir(), "supplier_cache.json")
	sc, err := NewSupplierCache(file, 1, slog.Default())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := sc.Add(supplierProduct(fmt.Sprintf("https://supplier.test/%d", i)))
		require.NoError(t, err)
	}

	all := sc.All()
	require.Len(t, all, 5)
	for i, p := range all {
		assert.Equal(t, fmt.Sprintf("https://supplier.test/%d", i), p.URL)
	}
}

func TestSupplierCacheStampsExtractionTimestamp(t *testing.T) {
	file := filepath.Join(t.TempDir(), "supplier_cache.json")
	sc, err := NewSupplierCache(file, 1, slog.Default())
	require.NoError(t, err)

	p := supplierProduct("https://supplier.test/a")
	_, err = sc.Add(p)
	require.NoError(t, err)

	got, ok := sc.Get("https://supplier.test/a")
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), got.ExtractionTimestamp, time.Minute)
}
