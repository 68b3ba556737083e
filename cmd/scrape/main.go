package main

import (
	"context"
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
	"github.com/chri75252/simpler-fba/internal/scraper"
	"github.com/chri75252/simpler-fba/pkg/logger"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to config file (default: config/system_config.json)")
		supplier    = flag.String("supplier", "clearance-king", "Supplier name from the config")
		categoryURL = flag.String("url", "", "Scrape a single category URL instead of all configured ones")
		maxPerCat   = flag.Int("max", 0, "Maximum products per category (0 = unlimited)")
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	// Interval flushing on top of the batch-size flushes, so a long category
	// crawl leaves recent products on disk even between batches.
	if cfg.Cache.FlushInterval > 0 {
		flushStop := make(chan struct{})
		defer close(flushStop)
		go supplierCache.StartFlusher(cfg.Cache.FlushInterval, flushStop)
	}

	client := fetch.NewClient(cfg.Fetch, logger)
	s := scraper.NewSupplierScraper(client, site, supplierCache, logger)

	logger.Info("Starting supplier scrape", "supplier", site.Name)

	var total int
	if *categoryURL != "" {
		total, err = s.ScrapeCategory(ctx, *categoryURL, *maxPerCat)
		if flushErr := supplierCache.Flush(); flushErr != nil && err == nil {
			err = flushErr
		}
	} else {
		total, err = s.ScrapeAll(ctx, *maxPerCat)
	}
	if err != nil {
		logger.Error("Scrape finished with errors", "products", total, "error", err)
		os.Exit(1)
	}

	logger.Info("Scrape complete", "products", total, "cached", supplierCache.Len())
}
