package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/chri75252/simpler-fba/internal/cache"
	"github.com/chri75252/simpler-fba/internal/config"
	"github.com/chri75252/simpler-fba/internal/fetch"
	"github.com/chri75252/simpler-fba/internal/linking"
	"github.com/chri75252/simpler-fba/internal/matching"
	"github.com/chri75252/simpler-fba/internal/scraper"
	"github.com/chri75252/simpler-fba/pkg/logger"
)

// analyze walks the supplier cache, resolves each product to an ASIN, and
// fills the Amazon cache and the linking map. Financials come later from
// cmd/report.
func main() {
	var (
		configPath = flag.String("config", "", "Path to config file (default: config/system_config.json)")
		supplier   = flag.String("supplier", "clearance-king", "Supplier name from the config")
		limit      = flag.Int("limit", 0, "Analyze at most N products (0 = all)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	site, ok := cfg.Suppliers[*supplier]
	if !ok {
		fmt.Printf("Unknown supplier %q, configure it under suppliers.%s\n", *supplier, *supplier)
		os.Exit(1)
	}

	supplierCache, err := cache.NewSupplierCache(
		filepath.Join(cfg.Cache.Dir, site.Name+"_products_cache.json"),
		cfg.Cache.FlushBatch, logger)
	if err != nil {
		logger.Error("Failed to open supplier cache", "error", err)
		os.Exit(1)
	}
	amazonCache, err := cache.NewAmazonCache(
		filepath.Join(cfg.Cache.Dir, "amazon"), cfg.Cache.AmazonTTL, logger)
	if err != nil {
		logger.Error("Failed to open Amazon cache", "error", err)
		os.Exit(1)
	}
	links, err := linking.NewStore(filepath.Join(cfg.Cache.Dir, "linking_map.json"))
	if err != nil {
		logger.Error("Failed to open linking map", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	client := fetch.NewClient(cfg.Fetch, logger)
	amazon := scraper.NewAmazonClient(client, cfg.Amazon, logger)
	matcher := matching.New(amazon, cfg.Matching, logger)

	products := supplierCache.All()
	if *limit > 0 && *limit < len(products) {
		products = products[:*limit]
	}

	logger.Info("Starting analysis", "supplier", site.Name, "products", len(products))

	var matched, missed, failed int
	for _, product := range products {
		if ctx.Err() != nil {
			break
		}

		entry, err := matcher.Resolve(ctx, product)
		if errors.Is(err, matching.ErrNoMatch) {
			missed++
			continue
		}
		if err != nil {
			failed++
			logger.Warn("Resolution failed", "title", product.Title, "error", err)
			continue
		}

		if _, err := amazonCache.Get(entry.ASIN, product.EAN); err != nil {
			snap, err := amazon.Snapshot(ctx, entry.ASIN, product.EAN)
			if err != nil {
				failed++
				logger.Warn("Snapshot failed", "asin", entry.ASIN, "error", err)
				continue
			}
			if err := amazonCache.Put(snap); err != nil {
				logger.Warn("Cache write failed", "asin", entry.ASIN, "error", err)
			}
		}

		if err := links.Put(entry); err != nil {
			logger.Warn("Linking write failed", "asin", entry.ASIN, "error", err)
			continue
		}
		matched++
	}

	logger.Info("Analysis complete",
		"matched", matched, "no_match", missed, "failed", failed,
		"links_total", links.Len())
}
