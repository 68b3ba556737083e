package scraper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chri75252/simpler-fba/internal/cache"
	"github.com/chri75252/simpler-fba/internal/config"
	"github.com/chri75252/simpler-fba/internal/fetch"
	"github.com/chri75252/simpler-fba/internal/parser"
)

// SupplierScraper walks one supplier's category listings and feeds the
// supplier cache. Fetch failures on a page are logged and the category
// continues with what it has.
type SupplierScraper struct {
	fetcher fetch.Fetcher
	parser  *parser.SupplierParser
	cache   *cache.SupplierCache
	site    config.SupplierSite
	logger  *slog.Logger
}

func NewSupplierScraper(fetcher fetch.Fetcher, site config.SupplierSite, sc *cache.SupplierCache, logger *slog.Logger) *SupplierScraper {
	return &SupplierScraper{
		fetcher: fetcher,
		parser:  parser.NewSupplierParser(site),
		cache:   sc,
		site:    site,
		logger:  logger.With("component", "supplier_scraper", "supplier", site.Name),
	}
}

// ScrapeCategory pages through one category until there is no next page, the
// product limit is reached, or the context ends. maxProducts <= 0 means no
// limit. Returns the number of new products added to the cache.
func (s *SupplierScraper) ScrapeCategory(ctx context.Context, categoryURL string, maxProducts int) (int, error) {
	added := 0
	pageURL := categoryURL

	for pageURL != "" {
		if err := ctx.Err(); err != nil {
			return added, err
		}
		if maxProducts > 0 && added >= maxProducts {
			break
		}

		html, err := s.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			if added > 0 {
				s.logger.Warn("page fetch failed mid-category, keeping partial results",
					"url", pageURL, "error", err)
				break
			}
			return 0, fmt.Errorf("category fetch failed: %w", err)
		}

		products, next, err := s.parser.ParseCategoryPage(html, pageURL)
		if err != nil {
			return added, fmt.Errorf("category parse failed: %w", err)
		}

		if maxProducts > 0 && added+len(products) > maxProducts {
			products = products[:maxProducts-added]
		}

		n, err := s.cache.Add(products...)
		if err != nil {
			return added, fmt.Errorf("cache write failed: %w", err)
		}
		added += n

		s.logger.Info("category page scraped",
			"url", pageURL, "found", len(products), "new", n)

		if next == pageURL {
			// Broken pagination loops back on itself on some shops.
			break
		}
		pageURL = next
	}

	return added, nil
}

// ScrapeAll runs every configured category for the supplier.
func (s *SupplierScraper) ScrapeAll(ctx context.Context, maxPerCategory int) (int, error) {
	total := 0
	for _, categoryURL := range s.site.CategoryURLs {
		n, err := s.ScrapeCategory(ctx, categoryURL, maxPerCategory)
		total += n
		if err != nil {
			if ctx.Err() != nil {
				return total, err
			}
			s.logger.Error("category failed, continuing", "url", categoryURL, "error", err)
		}
	}
	return total, s.cache.Flush()
}
