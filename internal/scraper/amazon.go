package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/chri75252/simpler-fba/internal/cache"
	"github.com/chri75252/simpler-fba/internal/config"
	"github.com/chri75252/simpler-fba/internal/fetch"
	"github.com/chri75252/simpler-fba/internal/models"
	"github.com/chri75252/simpler-fba/internal/parser"
)

// AmazonClient runs searches and takes listing snapshots against one Amazon
// marketplace.
type AmazonClient struct {
	fetcher fetch.Fetcher
	parser  *parser.AmazonParser
	baseURL string
	logger  *slog.Logger
}

func NewAmazonClient(fetcher fetch.Fetcher, cfg config.AmazonConfig, logger *slog.Logger) *AmazonClient {
	return &AmazonClient{
		fetcher: fetcher,
		parser:  parser.NewAmazonParser(),
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:  logger.With("component", "amazon_client"),
	}
}

// Search runs a keyword or barcode query and returns the organic results.
func (c *AmazonClient) Search(ctx context.Context, query string) ([]*parser.SearchResult, error) {
	searchURL := fmt.Sprintf("%s/s?k=%s", c.baseURL, url.QueryEscape(query))

	html, err := c.fetcher.Fetch(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("search fetch failed: %w", err)
	}

	results, err := c.parser.ParseSearchResults(html)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("search complete", "query", query, "results", len(results))
	return results, nil
}

// Snapshot fetches and parses one listing page. The EAN is recorded on the
// snapshot so the cache can persist under the full key.
func (c *AmazonClient) Snapshot(ctx context.Context, asin, ean string) (*models.AmazonSnapshot, error) {
	productURL := fmt.Sprintf("%s/dp/%s", c.baseURL, asin)

	html, err := c.fetcher.Fetch(ctx, productURL)
	if err != nil {
		return nil, fmt.Errorf("product fetch failed: %w", err)
	}

	snap, err := c.parser.ParseProductPage(html, asin)
	if err != nil {
		return nil, err
	}

	if cache.ValidEAN(ean) {
		snap.EAN = ean
	}
	snap.ScrapedAt = time.Now()
	return snap, nil
}
