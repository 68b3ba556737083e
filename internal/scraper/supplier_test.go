package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chri75252/simpler-fba/internal/cache"
	"github.com/chri75252/simpler-fba/internal/config"
)

// fakeFetcher serves canned pages by URL.
type fakeFetcher struct {
	pages map[string]string
	errs  map[string]error
	calls []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.calls = append(f.calls, url)
	if err, ok := f.errs[url]; ok {
		return "", err
	}
	page, ok := f.pages[url]
	if !ok {
		return "", errors.New("no such page")
	}
	return page, nil
}

func scraperSite() config.SupplierSite {
	return config.SupplierSite{
		Name:    "clearance-king",
		BaseURL: "https://supplier.test",
		Selectors: config.SupplierSelectors{
			ProductCard: ".item",
			Title:       ".name",
			Price:       ".price",
			URL:         "a",
			NextPage:    "a.next",
		},
	}
}

func listingPage(names []string, next string) string {
	page := "<html><body>"
	for _, n := range names {
		page += fmt.Sprintf(`<div class="item"><a href="/p/%s"></a><span class="name">%s</span><span class="price">£1.00</span></div>`, n, n)
	}
	if next != "" {
		page += fmt.Sprintf(`<a class="next" href="%s">Next</a>`, next)
	}
	return page + "</body></html>"
}

func newSupplierScraper(t *testing.T, f *fakeFetcher) (*SupplierScraper, *cache.SupplierCache) {
	t.Helper()
	sc, err := cache.NewSupplierCache(filepath.Join(t.TempDir(), "supplier_cache.json"), 1, slog.Default())
	require.NoError(t, err)
	return NewSupplierScraper(f, scraperSite(), sc, slog.Default()), sc
}

func TestScrapeCategoryFollowsPagination(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://supplier.test/cat":     listingPage([]string{"a", "b"}, "https://supplier.test/cat?p=2"),
		"https://supplier.test/cat?p=2": listingPage([]string{"c"}, ""),
	}}
	s, sc := newSupplierScraper(t, f)

	added, err := s.ScrapeCategory(context.Background(), "https://supplier.test/cat", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, added)
	assert.Equal(t, 3, sc.Len())
	assert.Len(t, f.calls, 2)
}

func TestScrapeCategoryHonorsLimit(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://supplier.test/cat":     listingPage([]string{"a", "b", "c"}, "https://supplier.test/cat?p=2"),
		"https://supplier.test/cat?p=2": listingPage([]string{"d"}, ""),
	}}
	s, sc := newSupplierScraper(t, f)

	added, err := s.ScrapeCategory(context.Background(), "https://supplier.test/cat", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, 2, sc.Len())
	assert.Len(t, f.calls, 1, "limit reached before the second page")
}

func TestScrapeCategoryKeepsPartialResultsOnMidwayFailure(t *testing.T) {
	f := &fakeFetcher{
		pages: map[string]string{
			"https://supplier.test/cat": listingPage([]string{"a"}, "https://supplier.test/cat?p=2"),
		},
		errs: map[string]error{
			"https://supplier.test/cat?p=2": errors.New("blocked"),
		},
	}
	s, sc := newSupplierScraper(t, f)

	added, err := s.ScrapeCategory(context.Background(), "https://supplier.test/cat", 0)
	require.NoError(t, err, "mid-category failure is not fatal")
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, sc.Len())
}

func TestScrapeCategoryFirstPageFailureIsAnError(t *testing.T) {
	f := &fakeFetcher{errs: map[string]error{
		"https://supplier.test/cat": errors.New("blocked"),
	}}
	s, _ := newSupplierScraper(t, f)

	_, err := s.ScrapeCategory(context.Background(), "https://supplier.test/cat", 0)
	assert.Error(t, err)
}

func TestScrapeCategoryBreaksPaginationLoop(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		// Next page points back at itself.
		"https://supplier.test/cat": listingPage([]string{"a"}, "https://supplier.test/cat"),
	}}
	s, _ := newSupplierScraper(t, f)

	added, err := s.ScrapeCategory(context.Background(), "https://supplier.test/cat", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Len(t, f.calls, 1)
}

func TestScrapeAllContinuesPastBrokenCategory(t *testing.T) {
	site := scraperSite()
	site.CategoryURLs = []string{
		"https://supplier.test/bad",
		"https://supplier.test/good",
	}

	f := &fakeFetcher{
		pages: map[string]string{
			"https://supplier.test/good": listingPage([]string{"a", "b"}, ""),
		},
		errs: map[string]error{
			"https://supplier.test/bad": errors.New("404"),
		},
	}

	sc, err := cache.NewSupplierCache(filepath.Join(t.TempDir(), "supplier_cache.json"), 1, slog.Default())
	require.NoError(t, err)
	s := NewSupplierScraper(f, site, sc, slog.Default())

	total, err := s.ScrapeAll(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}
