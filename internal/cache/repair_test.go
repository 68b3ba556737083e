package cache

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chri75252/simpler-fba/internal/models"
)

// writeLegacyFile plants a snapshot under an ASIN-only file name regardless
// of the EAN in its body, the way pre-full-key runs wrote entries.
func writeLegacyFile(t *testing.T, dir string, snap *models.AmazonSnapshot) {
	t.Helper()
	data, err := json.MarshalIndent(snap, "", "  ")
	require.NoError(t, err)
	path := filepath.Join(dir, "amazon_"+snap.ASIN+".json")
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestRepairRenamesLegacyEntries(t *testing.T) {
	dir := t.TempDir()
	c, err := NewAmazonCache(dir, time.Hour, slog.Default())
	require.NoError(t, err)

	// Legacy entry: ASIN-only file name, EAN present in the body.
	writeLegacyFile(t, dir, &models.AmazonSnapshot{
		ASIN: "B07BODYEAN", EAN: "5012345678900", ScrapedAt: time.Now(),
	})

	// Legacy entry with no EAN anywhere but known to the linking map.
	require.NoError(t, c.Put(&models.AmazonSnapshot{
		ASIN: "B07FROMLINK", ScrapedAt: time.Now(),
	}))

	// Legacy entry nobody can resolve stays as is.
	require.NoError(t, c.Put(&models.AmazonSnapshot{
		ASIN: "B07ORPHAN00", ScrapedAt: time.Now(),
	}))

	result, err := c.Repair(map[string]string{"B07FROMLINK": "4006381333931"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Renamed)
	assert.Zero(t, result.Dropped)

	assert.FileExists(t, filepath.Join(dir, "amazon_B07BODYEAN_5012345678900.json"))
	assert.NoFileExists(t, filepath.Join(dir, "amazon_B07BODYEAN.json"))
	assert.FileExists(t, filepath.Join(dir, "amazon_B07FROMLINK_4006381333931.json"))
	assert.FileExists(t, filepath.Join(dir, "amazon_B07ORPHAN00.json"))

	// The upgraded file carries the EAN in its body too.
	upgraded, err := c.Get("B07FROMLINK", "4006381333931")
	require.NoError(t, err)
	assert.Equal(t, "4006381333931", upgraded.EAN)
}

func TestRepairDropsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	c, err := NewAmazonCache(dir, time.Hour, slog.Default())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "amazon_B07BROKEN00.json"), []byte("{not json"), 0644))
	require.NoError(t, c.Put(&models.AmazonSnapshot{
		ASIN: "B07INTACT00", EAN: "5012345678900", ScrapedAt: time.Now(),
	}))

	result, err := c.Repair(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Dropped)
	assert.Zero(t, result.Renamed)

	assert.NoFileExists(t, filepath.Join(dir, "amazon_B07BROKEN00.json"))
	assert.FileExists(t, filepath.Join(dir, "amazon_B07INTACT00_5012345678900.json"))
}

func TestRepairEmptyCache(t *testing.T) {
	c, err := NewAmazonCache(t.TempDir(), time.Hour, slog.Default())
	require.NoError(t, err)

	result, err := c.Repair(nil)
	require.NoError(t, err)
	assert.Zero(t, result.Renamed)
	assert.Zero(t, result.Dropped)
}
