package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/chri75252/simpler-fba/internal/fees"
	"github.com/chri75252/simpler-fba/internal/models"
)

// Row is one supplier product / Amazon listing pair with its profitability.
type Row struct {
	SupplierName      string             `json:"supplier_name"`
	SupplierTitle     string             `json:"supplier_title"`
	SupplierURL       string             `json:"supplier_url"`
	EAN               string             `json:"ean,omitempty"`
	ASIN              string             `json:"asin"`
	AmazonTitle       string             `json:"amazon_title"`
	MatchMethod       models.MatchMethod `json:"match_method"`
	Confidence        float64            `json:"confidence_score"`
	SupplierPrice     float64            `json:"supplier_price"`
	AmazonPrice       float64            `json:"amazon_price"`
	SalesRank         int                `json:"sales_rank"`
	BoughtInPastMonth int                `json:"bought_in_past_month"`
	FBASellerCount    int                `json:"fba_seller_count"`
	FBMSellerCount    int                `json:"fbm_seller_count"`
	TotalOfferCount   int                `json:"total_offer_count"`
	ReferralFee       float64            `json:"referral_fee"`
	FulfillmentFee    float64            `json:"fulfillment_fee"`
	Profit            float64            `json:"profit"`
	ROI               float64            `json:"roi"`
}

// NewRow assembles a row from the three stores plus the fee breakdown.
func NewRow(supplierName string, p *models.SupplierProduct, snap *models.AmazonSnapshot, entry *models.LinkingEntry, b *fees.Breakdown) Row {
	return Row{
		SupplierName:      supplierName,
		SupplierTitle:     p.Title,
		SupplierURL:       p.URL,
		EAN:               p.EAN,
		ASIN:              entry.ASIN,
		AmazonTitle:       snap.Title,
		MatchMethod:       entry.MatchMethod,
		Confidence:        entry.Confidence,
		SupplierPrice:     p.Price,
		AmazonPrice:       snap.Price,
		SalesRank:         snap.SalesRank,
		BoughtInPastMonth: snap.BoughtInPastMonth,
		FBASellerCount:    snap.FBASellerCount,
		FBMSellerCount:    snap.FBMSellerCount,
		TotalOfferCount:   snap.TotalOfferCount,
		ReferralFee:       b.ReferralFee,
		FulfillmentFee:    b.FulfillmentFee,
		Profit:            b.Profit,
		ROI:               b.ROI,
	}
}

var csvHeader = []string{
	"supplier_name", "supplier_title", "supplier_url", "ean", "asin",
	"amazon_title", "match_method", "confidence_score",
	"supplier_price", "amazon_price", "sales_rank", "bought_in_past_month",
	"fba_seller_count", "fbm_seller_count", "total_offer_count",
	"referral_fee", "fulfillment_fee", "profit", "roi",
}

// Writer produces the CSV report and a JSON summary next to it.
type Writer struct {
	dir string
}

func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report dir: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Write emits fba_report_{timestamp}.csv and .json, rows sorted by ROI
// descending. Returns the CSV path.
func (w *Writer) Write(rows []Row) (string, error) {
	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ROI > sorted[j].ROI
	})

	stamp := time.Now().Format("20060102_150405")
	csvPath := filepath.Join(w.dir, fmt.Sprintf("fba_report_%s.csv", stamp))

	if err := w.writeCSV(csvPath, sorted); err != nil {
		return "", err
	}

	jsonPath := filepath.Join(w.dir, fmt.Sprintf("fba_report_%s.json", stamp))
	if err := w.writeSummary(jsonPath, sorted); err != nil {
		return "", err
	}

	return csvPath, nil
}

func (w *Writer) writeCSV(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, r := range rows {
		record := []string{
			r.SupplierName, r.SupplierTitle, r.SupplierURL, r.EAN, r.ASIN,
			r.AmazonTitle, string(r.MatchMethod), formatFloat(r.Confidence),
			formatFloat(r.SupplierPrice), formatFloat(r.AmazonPrice),
			strconv.Itoa(r.SalesRank), strconv.Itoa(r.BoughtInPastMonth),
			strconv.Itoa(r.FBASellerCount), strconv.Itoa(r.FBMSellerCount),
			strconv.Itoa(r.TotalOfferCount),
			formatFloat(r.ReferralFee), formatFloat(r.FulfillmentFee),
			formatFloat(r.Profit), formatFloat(r.ROI),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// Summary is the JSON companion to the CSV.
type Summary struct {
	GeneratedAt time.Time `json:"generated_at"`
	TotalRows   int       `json:"total_rows"`
	Profitable  int       `json:"profitable"`
	BestROI     float64   `json:"best_roi,omitempty"`
	Rows        []Row     `json:"rows"`
}

func (w *Writer) writeSummary(path string, rows []Row) error {
	summary := Summary{
		GeneratedAt: time.Now(),
		TotalRows:   len(rows),
		Rows:        rows,
	}
	for _, r := range rows {
		if r.Profit > 0 {
			summary.Profitable++
		}
	}
	if len(rows) > 0 {
		summary.BestROI = rows[0].ROI
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
