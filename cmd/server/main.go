package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chri75252/simpler-fba/internal/api"
	"github.com/chri75252/simpler-fba/internal/cache"
	"github.com/chri75252/simpler-fba/internal/config"
	"github.com/chri75252/simpler-fba/internal/database"
	"github.com/chri75252/simpler-fba/internal/fees"
	"github.com/chri75252/simpler-fba/internal/fetch"
	"github.com/chri75252/simpler-fba/internal/linking"
	"github.com/chri75252/simpler-fba/internal/matching"
	"github.com/chri75252/simpler-fba/internal/pipeline"
	"github.com/chri75252/simpler-fba/internal/scraper"
	"github.com/chri75252/simpler-fba/pkg/logger"
)

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
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	site, ok := cfg.Suppliers[*supplier]
	if !ok {
		logger.Error("Unknown supplier", "supplier", *supplier)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	// Jobs can run for hours; the interval flusher keeps the supplier cache
	// on disk between batch-size flushes.
	if cfg.Cache.FlushInterval > 0 {
		flushStop := make(chan struct{})
		defer close(flushStop)
		go supplierCache.StartFlusher(cfg.Cache.FlushInterval, flushStop)
	}

	client := fetch.NewClient(cfg.Fetch, logger)
	amazon := scraper.NewAmazonClient(client, cfg.Amazon, logger)

	// With Postgres enabled the server also runs the outbox relay, so deal
	// alerts reach their Redis stream while the API is up.
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

		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}

		relay := database.NewRelay(db, redisClient, logger, database.RelayConfig{
			PollInterval: 5 * time.Second,
			BatchSize:    100,
		})
		go func() {
			if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Relay stopped with error", "error", err)
			}
		}()
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

	handlers := api.NewHandlers(amazonCache, links, api.NewJobManager(p, logger), logger)

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(handlers),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down server")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", "error", err)
		}
	}()

	logger.Info("Server listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
