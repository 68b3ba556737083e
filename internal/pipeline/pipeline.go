package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chri75252/simpler-fba/internal/cache"
	"github.com/chri75252/simpler-fba/internal/config"
	"github.com/chri75252/simpler-fba/internal/fees"
	"github.com/chri75252/simpler-fba/internal/linking"
	"github.com/chri75252/simpler-fba/internal/matching"
	"github.com/chri75252/simpler-fba/internal/models"
	"github.com/chri75252/simpler-fba/internal/report"
)

// CategoryScraper is the supplier side of a chunk. Implemented by
// scraper.SupplierScraper.
type CategoryScraper interface {
	ScrapeCategory(ctx context.Context, categoryURL string, maxProducts int) (int, error)
}

// Snapshotter is the Amazon side. Implemented by scraper.AmazonClient.
type Snapshotter interface {
	Snapshot(ctx context.Context, asin, ean string) (*models.AmazonSnapshot, error)
}

// DealPublisher receives rows that clear the profitability floors. Optional.
type DealPublisher interface {
	PublishDeal(ctx context.Context, row report.Row) error
}

// LinkSink mirrors linking entries into secondary storage. Optional;
// implemented by database.LinkingRepository.
type LinkSink interface {
	Upsert(ctx context.Context, entry *models.LinkingEntry) error
}

// Pipeline alternates supplier scraping and Amazon analysis in category-sized
// chunks, persisting its position after every chunk so an interrupted run
// resumes instead of restarting.
type Pipeline struct {
	site          config.SupplierSite
	cfg           config.PipelineConfig
	scraper       CategoryScraper
	matcher       *matching.Matcher
	amazon        Snapshotter
	supplierCache *cache.SupplierCache
	amazonCache   *cache.AmazonCache
	links         *linking.Store
	linkSink      LinkSink
	calc          *fees.Calculator
	publisher     DealPublisher
	logger        *slog.Logger

	// attempted tracks cache keys analyzed during the current run, so a
	// product that failed or missed is retried next run, not next chunk.
	attempted map[string]bool
}

type Deps struct {
	Site          config.SupplierSite
	Config        config.PipelineConfig
	Scraper       CategoryScraper
	Matcher       *matching.Matcher
	Amazon        Snapshotter
	SupplierCache *cache.SupplierCache
	AmazonCache   *cache.AmazonCache
	Links         *linking.Store
	LinkSink      LinkSink
	Calculator    *fees.Calculator
	Publisher     DealPublisher
	Logger        *slog.Logger
}

func New(d Deps) *Pipeline {
	return &Pipeline{
		site:          d.Site,
		cfg:           d.Config,
		scraper:       d.Scraper,
		matcher:       d.Matcher,
		amazon:        d.Amazon,
		supplierCache: d.SupplierCache,
		amazonCache:   d.AmazonCache,
		links:         d.Links,
		linkSink:      d.LinkSink,
		calc:          d.Calculator,
		publisher:     d.Publisher,
		logger:        d.Logger.With("component", "pipeline", "supplier", d.Site.Name),
		attempted:     make(map[string]bool),
	}
}

// Run processes the supplier's categories in chunks and returns the report
// rows. With restart true the persisted position is discarded first.
func (p *Pipeline) Run(ctx context.Context, restart bool) ([]report.Row, error) {
	if restart {
		if err := Reset(p.cfg.StateFile); err != nil {
			return nil, fmt.Errorf("failed to reset state: %w", err)
		}
	}

	state, err := LoadState(p.cfg.StateFile, p.site.Name)
	if err != nil {
		return nil, err
	}
	p.attempted = make(map[string]bool)

	categories := p.categories(state)
	if state.NextCategory > 0 {
		p.logger.Info("resuming from persisted state",
			"next_category", state.NextCategory, "chunks_done", state.ChunksDone)
	}

	var rows []report.Row
	for state.NextCategory < len(categories) {
		if err := ctx.Err(); err != nil {
			return rows, err
		}

		end := state.NextCategory + p.cfg.ChunkSize
		if end > len(categories) {
			end = len(categories)
		}
		chunk := categories[state.NextCategory:end]

		chunkRows, err := p.runChunk(ctx, chunk, state)
		rows = append(rows, chunkRows...)
		if err != nil {
			// State already reflects completed work; the next run resumes.
			saveErr := state.Save(p.cfg.StateFile)
			return rows, errors.Join(err, saveErr)
		}

		state.NextCategory = end
		state.ChunksDone++
		if err := state.Save(p.cfg.StateFile); err != nil {
			return rows, fmt.Errorf("failed to save state: %w", err)
		}

		if end < len(categories) && p.cfg.ChunkPause > 0 {
			select {
			case <-ctx.Done():
				return rows, ctx.Err()
			case <-time.After(p.cfg.ChunkPause):
			}
		}
	}

	p.logger.Info("pipeline finished",
		"chunks", state.ChunksDone,
		"products_found", state.ProductsFound,
		"products_analyzed", state.ProductsDone,
	)
	return rows, nil
}

// categories applies the finite-mode category cap.
func (p *Pipeline) categories(state *State) []string {
	categories := p.site.CategoryURLs
	if needed := CategoriesNeeded(p.cfg.MaxProducts, p.cfg.MaxProductsPerCategory); needed > 0 && needed < len(categories) {
		categories = categories[:needed]
	}
	return categories
}

// runChunk scrapes a slice of categories, then analyzes the unlinked cached
// products. Selecting work by linking-map absence rather than by cache growth
// matters on resume: re-scraping an interrupted chunk adds nothing new (the
// cache dedups by key), but its stranded products still need analysis.
func (p *Pipeline) runChunk(ctx context.Context, chunk []string, state *State) ([]report.Row, error) {
	perCategory := 0
	if !InfiniteMode(p.cfg.MaxProducts, p.cfg.MaxProductsPerCategory) {
		perCategory = p.cfg.MaxProductsPerCategory
	}

	for _, categoryURL := range chunk {
		n, err := p.scraper.ScrapeCategory(ctx, categoryURL, perCategory)
		state.ProductsFound += n
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			p.logger.Error("category scrape failed, continuing chunk",
				"url", categoryURL, "error", err)
		}
	}
	if err := p.supplierCache.Flush(); err != nil {
		return nil, fmt.Errorf("supplier cache flush failed: %w", err)
	}

	return p.analyze(ctx, p.unresolved(), state)
}

// unresolved returns cached products with no linking entry that have not yet
// been attempted during this run.
func (p *Pipeline) unresolved() []*models.SupplierProduct {
	var out []*models.SupplierProduct
	for _, product := range p.supplierCache.All() {
		key := product.Key()
		if p.attempted[key] {
			continue
		}
		if _, ok := p.links.Get(key); ok {
			continue
		}
		out = append(out, product)
	}
	return out
}

func (p *Pipeline) analyze(ctx context.Context, products []*models.SupplierProduct, state *State) ([]report.Row, error) {
	var rows []report.Row

	for _, product := range products {
		if err := ctx.Err(); err != nil {
			return rows, err
		}

		row, err := p.analyzeOne(ctx, product)
		p.attempted[product.Key()] = true
		if err != nil {
			p.logger.Warn("product analysis failed",
				"title", product.Title, "key", product.Key(), "error", err)
			continue
		}
		state.ProductsDone++
		if row != nil {
			rows = append(rows, *row)
		}
	}

	return rows, nil
}

// analyzeOne resolves, snapshots, links, and prices one product. A nil row
// with nil error means the product was skipped (no match, or no price).
func (p *Pipeline) analyzeOne(ctx context.Context, product *models.SupplierProduct) (*report.Row, error) {
	entry, err := p.matcher.Resolve(ctx, product)
	if errors.Is(err, matching.ErrNoMatch) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	entry.SupplierName = p.site.Name

	snap, err := p.amazonCache.Get(entry.ASIN, product.EAN)
	if err != nil {
		// Miss or stale: fetch fresh and persist under the fullest key.
		snap, err = p.amazon.Snapshot(ctx, entry.ASIN, product.EAN)
		if err != nil {
			return nil, err
		}
		if err := p.amazonCache.Put(snap); err != nil {
			p.logger.Warn("cache write failed", "asin", snap.ASIN, "error", err)
		}
	}

	if err := p.links.Put(entry); err != nil {
		return nil, err
	}
	if p.linkSink != nil {
		if err := p.linkSink.Upsert(ctx, entry); err != nil {
			p.logger.Warn("link mirror write failed", "asin", entry.ASIN, "error", err)
		}
	}

	if snap.Price <= 0 || product.Price <= 0 {
		return nil, nil
	}

	breakdown, err := p.calc.Calculate(fees.Input{
		SellPrice:    snap.Price,
		SupplierCost: product.Price,
	})
	if err != nil {
		return nil, err
	}

	row := report.NewRow(p.site.Name, product, snap, entry, breakdown)

	if p.publisher != nil && p.calc.Profitable(breakdown) {
		if err := p.publisher.PublishDeal(ctx, row); err != nil {
			p.logger.Error("deal publish failed", "asin", entry.ASIN, "error", err)
		}
	}

	return &row, nil
}
