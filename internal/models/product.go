package models

import (
	"time"
)

// SupplierProduct is one product scraped from a supplier category page.
// Identity key is the EAN when present, otherwise the product URL. Entries are
// created during category scraping and never mutated afterwards.
type SupplierProduct struct {
	Title               string    `json:"title"`
	Price               float64   `json:"price"`
	Currency            string    `json:"currency,omitempty"`
	URL                 string    `json:"url"`
	EAN                 string    `json:"ean,omitempty"`
	UPC                 string    `json:"upc,omitempty"`
	SKU                 string    `json:"sku,omitempty"`
	ImageURL            string    `json:"image_url,omitempty"`
	SourceCategoryURL   string    `json:"source_category_url,omitempty"`
	ExtractionTimestamp time.Time `json:"extraction_timestamp"`
}

// Key returns the identity key used for deduplication.
func (p *SupplierProduct) Key() string {
	if p.EAN != "" {
		return p.EAN
	}
	return p.URL
}

// AmazonSnapshot is the scraped state of one Amazon listing, cached on disk
// under amazon_{ASIN}_{EAN}.json.
type AmazonSnapshot struct {
	ASIN              string    `json:"asin"`
	EAN               string    `json:"ean,omitempty"`
	Title             string    `json:"title"`
	Brand             string    `json:"brand,omitempty"`
	Price             float64   `json:"price"`
	Currency          string    `json:"currency"`
	SalesRank         int       `json:"sales_rank,omitempty"`
	Category          string    `json:"category,omitempty"`
	BoughtInPastMonth int       `json:"bought_in_past_month,omitempty"`
	FBASellerCount    int       `json:"fba_seller_count,omitempty"`
	FBMSellerCount    int       `json:"fbm_seller_count,omitempty"`
	TotalOfferCount   int       `json:"total_offer_count,omitempty"`
	Keepa             *KeepaData `json:"keepa,omitempty"`
	ScrapedAt         time.Time `json:"scraped_at"`
}

// KeepaData holds the historical price/rank fields when the listing page
// exposes them. All fields are optional.
type KeepaData struct {
	AvgPrice90d   float64 `json:"avg_price_90d,omitempty"`
	AvgRank90d    int     `json:"avg_rank_90d,omitempty"`
	PriceDrops90d int     `json:"price_drops_90d,omitempty"`
	OutOfStockPct float64 `json:"out_of_stock_pct,omitempty"`
}

// MatchMethod records how a supplier product was resolved to an ASIN.
type MatchMethod string

const (
	MatchMethodEAN   MatchMethod = "ean_lookup"
	MatchMethodTitle MatchMethod = "title_search"
)

// EANMatchConfidence is the confidence assigned to a barcode match. Title
// matches carry their computed similarity, which is always below this.
const EANMatchConfidence = 0.95

// LinkingEntry connects a supplier product to its chosen Amazon listing.
type LinkingEntry struct {
	SupplierProductID string      `json:"supplier_product_identifier"`
	SupplierName      string      `json:"supplier_name,omitempty"`
	ASIN              string      `json:"chosen_amazon_asin"`
	MatchMethod       MatchMethod `json:"match_method"`
	Confidence        float64     `json:"confidence_score"`
	LinkedAt          time.Time   `json:"linked_at"`
}

// Consistent reports whether match_method and confidence agree. Historically
// title fallbacks were recorded as EAN matches; the stores reject that now.
func (e *LinkingEntry) Consistent() bool {
	switch e.MatchMethod {
	case MatchMethodEAN:
		return e.Confidence >= EANMatchConfidence
	case MatchMethodTitle:
		return e.Confidence > 0 && e.Confidence < EANMatchConfidence
	default:
		return false
	}
}
