package linking

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chri75252/simpler-fba/internal/models"
)

// ErrInconsistentEntry means match_method and confidence disagree. The legacy
// linking maps accumulated entries whose method claimed an EAN match for what
// was really a title fallback; this store refuses to record those.
var ErrInconsistentEntry = errors.New("match method inconsistent with confidence")

// Store is the linking map: supplier product identifier to chosen ASIN.
// On-disk format is the legacy JSON array so existing maps load unchanged.
type Store struct {
	mu       sync.RWMutex
	entries  map[string]*models.LinkingEntry
	order    []string
	filename string
}

func NewStore(filename string) (*Store, error) {
	s := &Store{
		entries:  make(map[string]*models.LinkingEntry),
		filename: filename,
	}
	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return s, nil
}

// Put records a resolution. Inconsistent entries are rejected; an existing
// entry is only replaced by one with higher confidence.
func (s *Store) Put(entry *models.LinkingEntry) error {
	if entry.SupplierProductID == "" || entry.ASIN == "" {
		return fmt.Errorf("supplier product identifier and ASIN are required")
	}
	if !entry.Consistent() {
		return fmt.Errorf("%w: method=%s confidence=%.3f",
			ErrInconsistentEntry, entry.MatchMethod, entry.Confidence)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.LinkedAt.IsZero() {
		entry.LinkedAt = time.Now()
	}

	existing, ok := s.entries[entry.SupplierProductID]
	if ok && existing.Confidence >= entry.Confidence {
		return nil
	}
	if !ok {
		s.order = append(s.order, entry.SupplierProductID)
	}
	s.entries[entry.SupplierProductID] = entry

	return s.save()
}

// Get returns the entry for a supplier product identifier.
func (s *Store) Get(supplierProductID string) (*models.LinkingEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[supplierProductID]
	return e, ok
}

// All returns entries in insertion order.
func (s *Store) All() []*models.LinkingEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.LinkingEntry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entries[id])
	}
	return out
}

// Len returns the number of linked products.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Inconsistent returns the entries loaded from disk that violate the
// method/confidence invariant. cmd/cachefix reports and repairs these.
func (s *Store) Inconsistent() []*models.LinkingEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var bad []*models.LinkingEntry
	for _, id := range s.order {
		if e := s.entries[id]; !e.Consistent() {
			bad = append(bad, e)
		}
	}
	return bad
}

// Repair rewrites inconsistent entries: anything claiming an EAN match with a
// sub-threshold confidence is re-labeled as a title match, and entries with no
// usable confidence are dropped. Returns relabeled and dropped counts.
func (s *Store) Repair() (relabeled, dropped int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.order[:0]
	for _, id := range s.order {
		e := s.entries[id]
		if e.Consistent() {
			kept = append(kept, id)
			continue
		}

		if e.Confidence > 0 && e.Confidence < models.EANMatchConfidence {
			e.MatchMethod = models.MatchMethodTitle
			relabeled++
			kept = append(kept, id)
			continue
		}
		if e.Confidence >= models.EANMatchConfidence {
			e.MatchMethod = models.MatchMethodEAN
			relabeled++
			kept = append(kept, id)
			continue
		}

		delete(s.entries, id)
		dropped++
	}
	s.order = kept

	return relabeled, dropped, s.save()
}

// save must be called with the lock held.
func (s *Store) save() error {
	list := make([]*models.LinkingEntry, 0, len(s.order))
	for _, id := range s.order {
		list = append(list, s.entries[id])
	}

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal linking map: %w", err)
	}

	if dir := filepath.Dir(s.filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	tmp := s.filename + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write linking map: %w", err)
	}
	return os.Rename(tmp, s.filename)
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.filename)
	if err != nil {
		return err
	}

	var list []*models.LinkingEntry
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("corrupt linking map %s: %w", s.filename, err)
	}

	// Loading tolerates inconsistent legacy entries; Put refuses new ones and
	// Repair fixes the backlog.
	for _, e := range list {
		if e == nil || e.SupplierProductID == "" {
			continue
		}
		if _, exists := s.entries[e.SupplierProductID]; exists {
			continue
		}
		s.entries[e.SupplierProductID] = e
		s.order = append(s.order, e.SupplierProductID)
	}
	return nil
}
