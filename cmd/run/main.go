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
	"github.com/chri75252/simpler-fba/internal/database"
	"github.com/chri75252/simpler-fba/internal/fees"
	"github.com/chri75252/simpler-fba/internal/fetch"
	"github.com/chri75252/simpler-fba/internal/linking"
	"github.com/chri75252/simpler-fba/internal/matching"
	"github.com/chri75252/simpler-fba/internal/pipeline"
	"github.com/chri75252/simpler-fba/internal/report"
	"github.com/chri75252/simpler-fba/internal/scraper"
	"github.com/chri75252/simpler-fba/pkg/logger"
)

// run is the full hybrid pass: scrape a chunk of categories, analyze the new
// products, repeat. Interrupted runs resume from the persisted position.
func main() {
	var (
		configPath = flag.String("config", "", "Path to config file (default: config/system_config.json)")
		supplier   = flag.String("supplier", "clearance-king", "Supplier name from the config")
		restart    = flag.Bool("restart", false, "Discard the persisted position and start over")
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
		logger.Info("Shutdown signal received, position is saved after each chunk")
		cancel()
	}()

	// Interval flushing on top of the batch-size flushes, so long chunks do
	// not hold scraped products in memory only.
	if cfg.Cache.FlushInterval > 0 {
		flushStop := make(chan struct{})
		defer close(flushStop)
		go supplierCache.StartFlusher(cfg.Cache.FlushInterval, flushStop)
	}

	client := fetch.NewClient(cfg.Fetch, logger)
	amazon := scraper.NewAmazonClient(client, cfg.Amazon, logger)

	// Deal alerts and the link mirror need Postgres; without it the pipeline
	// just skips both.
	var publisher pipeline.DealPublisher
	var linkSink pipeline.LinkSink
	if cfg.Database.Enabled {
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			logger.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			logger.Error("Failed to migrate database", "error", err)
			os.Exit(1)
		}
		publisher = database.NewDealPublisher(db, logger)
		linkSink = database.NewLinkingRepository(db)
	}

	p := pipeline.New(pipeline.Deps{
		Site:          site,
		Config:        cfg.Pipeline,
		Scraper:       scraper.NewSupplierScraper(client, site, supplierCache, logger),
		Matcher:       matching.New(amazon, cfg.Matching, logger),
		Amazon:        amazon,
		SupplierCache: supplierCache,
		AmazonCache:   amazonCache,
		Links:         links,
		LinkSink:      linkSink,
		Calculator:    fees.NewCalculator(cfg.Fees),
		Publisher:     publisher,
		Logger:        logger,
	})

	rows, err := p.Run(ctx, *restart)
	if err != nil {
		logger.Error("Pipeline stopped", "rows_so_far", len(rows), "error", err)
	}

	if len(rows) > 0 {
		writer, werr := report.NewWriter(cfg.Report.OutputDir)
		if werr != nil {
			logger.Error("Failed to create report writer", "error", werr)
			os.Exit(1)
		}
		path, werr := writer.Write(rows)
		if werr != nil {
			logger.Error("Failed to write report", "error", werr)
			os.Exit(1)
		}
		logger.Info("Report written", "path", path, "rows", len(rows))
	}

	if err != nil {
		os.Exit(1)
	}
}
