package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/chri75252/simpler-fba/internal/cache"
	"github.com/chri75252/simpler-fba/internal/config"
	"github.com/chri75252/simpler-fba/internal/fees"
	"github.com/chri75252/simpler-fba/internal/linking"
	"github.com/chri75252/simpler-fba/internal/report"
	"github.com/chri75252/simpler-fba/pkg/logger"
)

// report joins the three stores offline: no network traffic, just the
// supplier cache, the linking map, and whatever the Amazon cache holds.
func main() {
	var (
		configPath = flag.String("config", "", "Path to config file (default: config/system_config.json)")
		supplier   = flag.String("supplier", "clearance-king", "Supplier name from the config")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
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

	calc := fees.NewCalculator(cfg.Fees)

	var rows []report.Row
	var unlinked, unpriced int
	for _, product := range supplierCache.All() {
		entry, ok := links.Get(product.Key())
		if !ok {
			unlinked++
			continue
		}

		snap, err := amazonCache.Get(entry.ASIN, product.EAN)
		if err != nil {
			unpriced++
			continue
		}
		if snap.Price <= 0 || product.Price <= 0 {
			unpriced++
			continue
		}

		breakdown, err := calc.Calculate(fees.Input{
			SellPrice:    snap.Price,
			SupplierCost: product.Price,
		})
		if err != nil {
			unpriced++
			continue
		}

		rows = append(rows, report.NewRow(site.Name, product, snap, entry, breakdown))
	}

	writer, err := report.NewWriter(cfg.Report.OutputDir)
	if err != nil {
		logger.Error("Failed to create report writer", "error", err)
		os.Exit(1)
	}

	path, err := writer.Write(rows)
	if err != nil {
		logger.Error("Failed to write report", "error", err)
		os.Exit(1)
	}

	logger.Info("Report written",
		"path", path,
		"rows", len(rows),
		"unlinked", unlinked,
		"unpriced", unpriced)
}
