package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/chri75252/simpler-fba/internal/models"
)

var (
	// ErrNotCached means no usable entry exists for the key.
	ErrNotCached = errors.New("not cached")
	// ErrStale means an entry exists but is older than the TTL.
	ErrStale = errors.New("cache entry stale")
)

// AmazonCache is a file-per-entry cache of Amazon listing snapshots. Files are
// named amazon_{ASIN}_{EAN}.json; legacy entries written before EANs were part
// of the key are amazon_{ASIN}.json and are still readable.
type AmazonCache struct {
	dir    string
	ttl    time.Duration
	logger *slog.Logger
}

func NewAmazonCache(dir string, ttl time.Duration, logger *slog.Logger) (*AmazonCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	return &AmazonCache{
		dir:    dir,
		ttl:    ttl,
		logger: logger.With("component", "amazon_cache"),
	}, nil
}

// FileName returns the cache file name for the fullest known key. An invalid
// EAN is dropped rather than encoded into the name.
func FileName(asin, ean string) string {
	if ValidEAN(ean) {
		return fmt.Sprintf("amazon_%s_%s.json", asin, ean)
	}
	return fmt.Sprintf("amazon_%s.json", asin)
}

// Get looks up a snapshot. Lookup order: exact (ASIN, EAN) file, then any
// ASIN-only match, then miss. Entries older than the TTL count as a miss.
func (c *AmazonCache) Get(asin, ean string) (*models.AmazonSnapshot, error) {
	path, err := c.resolve(asin, ean)
	if err != nil {
		return nil, err
	}

	snap, err := c.read(path)
	if err != nil {
		return nil, err
	}

	if c.ttl > 0 && time.Since(snap.ScrapedAt) > c.ttl {
		return nil, fmt.Errorf("%w: %s scraped %s ago", ErrStale, asin, time.Since(snap.ScrapedAt).Round(time.Hour))
	}

	return snap, nil
}

// Put persists a snapshot under the fullest known key, atomically.
func (c *AmazonCache) Put(snap *models.AmazonSnapshot) error {
	if snap.ASIN == "" {
		return fmt.Errorf("ASIN is required")
	}
	if snap.ScrapedAt.IsZero() {
		snap.ScrapedAt = time.Now()
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	path := filepath.Join(c.dir, FileName(snap.ASIN, snap.EAN))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return os.Rename(tmp, path)
}

// resolve finds the cache file for (asin, ean), preferring an exact match over
// an ASIN-only one.
func (c *AmazonCache) resolve(asin, ean string) (string, error) {
	if asin == "" {
		return "", fmt.Errorf("ASIN is required")
	}

	if ValidEAN(ean) {
		exact := filepath.Join(c.dir, fmt.Sprintf("amazon_%s_%s.json", asin, ean))
		if _, err := os.Stat(exact); err == nil {
			return exact, nil
		}
	}

	matches, err := filepath.Glob(filepath.Join(c.dir, fmt.Sprintf("amazon_%s*.json", asin)))
	if err != nil {
		return "", fmt.Errorf("glob failed: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNotCached, asin)
	}

	// Deterministic pick when several legacy files exist for one ASIN.
	sort.Strings(matches)
	return matches[0], nil
}

func (c *AmazonCache) read(path string) (*models.AmazonSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	snap := &models.AmazonSnapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("corrupt cache file %s: %w", filepath.Base(path), err)
	}
	return snap, nil
}

// RepairResult summarizes a cache repair pass.
type RepairResult struct {
	Renamed int
	Dropped int
}

// Repair upgrades legacy ASIN-only entries to full (ASIN, EAN) keys and
// removes files that no longer decode. eanByASIN supplies EANs for entries
// whose body predates the field; the linking map is the usual source.
func (c *AmazonCache) Repair(eanByASIN map[string]string) (RepairResult, error) {
	var result RepairResult

	matches, err := filepath.Glob(filepath.Join(c.dir, "amazon_*.json"))
	if err != nil {
		return result, err
	}

	for _, path := range matches {
		snap, err := c.read(path)
		if err != nil {
			c.logger.Warn("dropping corrupt cache file", "file", filepath.Base(path), "error", err)
			if err := os.Remove(path); err != nil {
				return result, err
			}
			result.Dropped++
			continue
		}

		key := ParseFileName(filepath.Base(path))
		if key == nil || key.EAN != "" {
			continue
		}

		ean := snap.EAN
		if !ValidEAN(ean) {
			ean = eanByASIN[key.ASIN]
		}
		if !ValidEAN(ean) {
			continue
		}

		snap.EAN = ean
		if err := c.Put(snap); err != nil {
			return result, err
		}
		if err := os.Remove(path); err != nil {
			return result, err
		}
		result.Renamed++
		c.logger.Info("cache entry upgraded to full key", "asin", key.ASIN, "ean", ean)
	}

	return result, nil
}

// Stats returns entry counts by key completeness.
func (c *AmazonCache) Stats() (map[string]int, error) {
	matches, err := filepath.Glob(filepath.Join(c.dir, "amazon_*.json"))
	if err != nil {
		return nil, err
	}

	stats := map[string]int{"total": len(matches)}
	for _, m := range matches {
		if parsed := ParseFileName(filepath.Base(m)); parsed != nil && parsed.EAN != "" {
			stats["full_key"]++
		} else {
			stats["asin_only"]++
		}
	}
	return stats, nil
}

// FileKey is the (ASIN, EAN) pair decoded from a cache file name.
type FileKey struct {
	ASIN string
	EAN  string
}

// ParseFileName decodes amazon_{ASIN}.json or amazon_{ASIN}_{EAN}.json.
// Returns nil for names that are not cache entries.
func ParseFileName(name string) *FileKey {
	const prefix, suffix = "amazon_", ".json"
	if len(name) <= len(prefix)+len(suffix) || name[:len(prefix)] != prefix || name[len(name)-len(suffix):] != suffix {
		return nil
	}

	body := name[len(prefix) : len(name)-len(suffix)]
	for i := len(body) - 1; i > 0; i-- {
		if body[i] == '_' {
			asin, ean := body[:i], body[i+1:]
			if ValidEAN(ean) {
				return &FileKey{ASIN: asin, EAN: ean}
			}
			break
		}
	}
	return &FileKey{ASIN: body}
}
