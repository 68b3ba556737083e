package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/chri75252/simpler-fba/internal/cache"
	"github.com/chri75252/simpler-fba/internal/config"
	"github.com/chri75252/simpler-fba/internal/models"
	"github.com/chri75252/simpler-fba/internal/parser"
)

// ErrNoMatch means neither EAN search nor title fallback produced a usable
// Amazon listing.
var ErrNoMatch = errors.New("no amazon match found")

// Searcher runs an Amazon search query. Implemented by scraper.AmazonClient.
type Searcher interface {
	Search(ctx context.Context, query string) ([]*parser.SearchResult, error)
}

// Matcher resolves supplier products to Amazon listings: barcode search
// first, title-token fallback second. The resulting entry always records
// which path actually produced the ASIN.
type Matcher struct {
	searcher  Searcher
	threshold float64
	bonus     float64
	logger    *slog.Logger
}

func New(searcher Searcher, cfg config.MatchingConfig, logger *slog.Logger) *Matcher {
	return &Matcher{
		searcher:  searcher,
		threshold: cfg.TitleThreshold,
		bonus:     cfg.BrandBonus,
		logger:    logger.With("component", "matcher"),
	}
}

// Resolve finds the Amazon listing for a supplier product.
func (m *Matcher) Resolve(ctx context.Context, product *models.SupplierProduct) (*models.LinkingEntry, error) {
	if cache.ValidEAN(product.EAN) {
		entry, err := m.resolveByEAN(ctx, product)
		if err == nil {
			return entry, nil
		}
		if !errors.Is(err, ErrNoMatch) {
			return nil, err
		}
		m.logger.Debug("ean search missed, falling back to title",
			"ean", product.EAN, "title", product.Title)
	}

	return m.resolveByTitle(ctx, product)
}

func (m *Matcher) resolveByEAN(ctx context.Context, product *models.SupplierProduct) (*models.LinkingEntry, error) {
	results, err := m.searcher.Search(ctx, product.EAN)
	if err != nil {
		return nil, fmt.Errorf("ean search failed: %w", err)
	}
	if len(results) == 0 {
		return nil, ErrNoMatch
	}

	// A barcode query that returns multiple hits is usually bundles and
	// multipacks around the same product; take the best title fit among them.
	best := results[0]
	if len(results) > 1 {
		bestScore := -1.0
		for _, r := range results {
			if score := m.score(product, r); score > bestScore {
				best, bestScore = r, score
			}
		}
	}

	return &models.LinkingEntry{
		SupplierProductID: product.Key(),
		ASIN:              best.ASIN,
		MatchMethod:       models.MatchMethodEAN,
		Confidence:        models.EANMatchConfidence,
		LinkedAt:          time.Now(),
	}, nil
}

func (m *Matcher) resolveByTitle(ctx context.Context, product *models.SupplierProduct) (*models.LinkingEntry, error) {
	if strings.TrimSpace(product.Title) == "" {
		return nil, ErrNoMatch
	}

	results, err := m.searcher.Search(ctx, product.Title)
	if err != nil {
		return nil, fmt.Errorf("title search failed: %w", err)
	}

	var best *parser.SearchResult
	bestScore := 0.0
	for _, r := range results {
		if score := m.score(product, r); score > bestScore {
			best, bestScore = r, score
		}
	}

	if best == nil || bestScore < m.threshold {
		return nil, ErrNoMatch
	}

	// Title confidence stays strictly below the EAN band so the linking
	// store can tell the two apart.
	confidence := bestScore
	if confidence >= models.EANMatchConfidence {
		confidence = models.EANMatchConfidence - 0.01
	}

	return &models.LinkingEntry{
		SupplierProductID: product.Key(),
		ASIN:              best.ASIN,
		MatchMethod:       models.MatchMethodTitle,
		Confidence:        confidence,
		LinkedAt:          time.Now(),
	}, nil
}

// score combines token overlap with a bonus when the leading token (usually
// the brand) agrees.
func (m *Matcher) score(product *models.SupplierProduct, result *parser.SearchResult) float64 {
	a := tokenize(product.Title)
	b := tokenize(result.Title)
	score := jaccard(a, b)

	if len(a) > 0 && len(b) > 0 && a[0] == b[0] {
		score += m.bonus
	}
	if score > 1 {
		score = 1
	}
	return score
}

var nonWordRe = regexp.MustCompile(`[^a-z0-9]+`)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "and": true,
	"for": true, "with": true, "in": true, "pack": true, "new": true,
}

func tokenize(title string) []string {
	parts := nonWordRe.Split(strings.ToLower(title), -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" || stopwords[p] {
			continue
		}
		out = append(out, p)
	}
	return out
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	setA := make(map[string]bool, len(a))
	for _, t := range a {
		setA[t] = true
	}

	setB := make(map[string]bool, len(b))
	inter := 0
	for _, t := range b {
		if setB[t] {
			continue
		}
		setB[t] = true
		if setA[t] {
			inter++
		}
	}

	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
