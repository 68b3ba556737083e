package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/chri75252/simpler-fba/internal/cache"
	"github.com/chri75252/simpler-fba/internal/config"
	"github.com/chri75252/simpler-fba/internal/linking"
	"github.com/chri75252/simpler-fba/pkg/logger"
)

// cachefix upgrades data written by earlier versions: Amazon cache files keyed
// by ASIN alone are renamed to full (ASIN, EAN) keys using the linking map,
// corrupt files are dropped, and linking entries whose match_method disagrees
// with their confidence are relabeled or removed.
func main() {
	configPath := flag.String("config", "", "Path to config file (default: config/system_config.json)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)

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

	// EAN-matched entries carry the EAN as the supplier product identifier;
	// that is what lets legacy ASIN-only files gain a full key.
	eanByASIN := make(map[string]string)
	for _, entry := range links.All() {
		if cache.ValidEAN(entry.SupplierProductID) {
			eanByASIN[entry.ASIN] = entry.SupplierProductID
		}
	}

	result, err := amazonCache.Repair(eanByASIN)
	if err != nil {
		logger.Error("Cache repair failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Amazon cache repaired",
		"renamed", result.Renamed, "dropped", result.Dropped)

	relabeled, droppedLinks, err := links.Repair()
	if err != nil {
		logger.Error("Linking map repair failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Linking map repaired",
		"relabeled", relabeled, "dropped", droppedLinks, "remaining", links.Len())
}
