package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chri75252/simpler-fba/internal/models"
)

// SupplierCache holds the scraped products of one supplier, backed by a JSON
// array on disk. Products are deduplicated by EAN when present, else URL.
// Writes go through a pending buffer that is flushed on a timer, when the
// batch size is reached, or explicitly.
type SupplierCache struct {
	mu       sync.RWMutex
	products map[string]*models.SupplierProduct
	order    []string // insertion order, preserved across saves
	pending  int
	filename string
	batch    int
	logger   *slog.Logger
}

func NewSupplierCache(filename string, batch int, logger *slog.Logger) (*SupplierCache, error) {
	if batch < 1 {
		batch = 1
	}
	sc := &SupplierCache{
		products: make(map[string]*models.SupplierProduct),
		filename: filename,
		batch:    batch,
		logger:   logger.With("component", "supplier_cache", "file", filepath.Base(filename)),
	}

	if err := sc.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return sc, nil
}

// Add merges products into the cache. Duplicates (same EAN, or same URL when
// no EAN) are dropped; the first-seen entry wins, matching the legacy files.
// Returns the number of genuinely new products.
func (sc *SupplierCache) Add(products ...*models.SupplierProduct) (int, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	added := 0
	for _, p := range products {
		if p == nil || p.URL == "" {
			continue
		}
		key := p.Key()
		if _, exists := sc.products[key]; exists {
			continue
		}
		if p.ExtractionTimestamp.IsZero() {
			p.ExtractionTimestamp = time.Now()
		}
		sc.products[key] = p
		sc.order = append(sc.order, key)
		added++
	}

	sc.pending += added
	if sc.pending >= sc.batch {
		if err := sc.save(); err != nil {
			return added, err
		}
	}
	return added, nil
}

// Flush writes the cache to disk if anything is pending.
func (sc *SupplierCache) Flush() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.pending == 0 {
		return nil
	}
	return sc.save()
}

// StartFlusher flushes on the given interval until stop is closed. A final
// flush runs on shutdown.
func (sc *SupplierCache) StartFlusher(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			if err := sc.Flush(); err != nil {
				sc.logger.Error("final flush failed", "error", err)
			}
			return
		case <-ticker.C:
			if err := sc.Flush(); err != nil {
				sc.logger.Error("periodic flush failed", "error", err)
			}
		}
	}
}

// Get returns the product stored under key (EAN or URL).
func (sc *SupplierCache) Get(key string) (*models.SupplierProduct, bool) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	p, ok := sc.products[key]
	return p, ok
}

// All returns products in insertion order.
func (sc *SupplierCache) All() []*models.SupplierProduct {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	out := make([]*models.SupplierProduct, 0, len(sc.order))
	for _, key := range sc.order {
		out = append(out, sc.products[key])
	}
	return out
}

// Len returns the number of unique products.
func (sc *SupplierCache) Len() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return len(sc.products)
}

// save must be called with the lock held.
func (sc *SupplierCache) save() error {
	list := make([]*models.SupplierProduct, 0, len(sc.order))
	for _, key := range sc.order {
		list = append(list, sc.products[key])
	}

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal supplier cache: %w", err)
	}

	if dir := filepath.Dir(sc.filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create cache dir: %w", err)
		}
	}

	tmp := sc.filename + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write supplier cache: %w", err)
	}
	if err := os.Rename(tmp, sc.filename); err != nil {
		return err
	}

	sc.pending = 0
	sc.logger.Debug("supplier cache flushed", "products", len(list))
	return nil
}

func (sc *SupplierCache) load() error {
	data, err := os.ReadFile(sc.filename)
	if err != nil {
		return err
	}

	var list []*models.SupplierProduct
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("corrupt supplier cache %s: %w", sc.filename, err)
	}

	// The legacy files occasionally contain duplicates; collapse them here so
	// a re-save repairs the file.
	for _, p := range list {
		if p == nil || p.URL == "" {
			continue
		}
		key := p.Key()
		if _, exists := sc.products[key]; exists {
			continue
		}
		sc.products[key] = p
		sc.order = append(sc.order, key)
	}
	return nil
}
