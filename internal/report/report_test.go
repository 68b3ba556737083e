package report

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chri75252/simpler-fba/internal/fees"
	"github.com/chri75252/simpler-fba/internal/models"
)

func sampleRows() []Row {
	return []Row{
		{
			SupplierName:      "clearance-king",
			SupplierTitle:     "Blue Widget",
			SupplierURL:       "https://supplier.test/widget",
			EAN:               "5012345678900",
			ASIN:              "B07XYZ1234",
			AmazonTitle:       "Blue Widget 500ml",
			MatchMethod:       models.MatchMethodEAN,
			Confidence:        0.95,
			SupplierPrice:     2.99,
			AmazonPrice:       9.99,
			BoughtInPastMonth: 2000,
			TotalOfferCount:   12,
			Profit:            3.0915,
			ROI:               1.0340,
		},
		{
			SupplierName:  "clearance-king",
			SupplierTitle: "Loss Maker",
			ASIN:          "B0LOSS0001",
			MatchMethod:   models.MatchMethodTitle,
			Confidence:    0.61,
			SupplierPrice: 5.00,
			AmazonPrice:   5.50,
			Profit:        -1.40,
			ROI:           -0.28,
		},
	}
}

func TestWriterProducesCSVAndSummary(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	csvPath, err := w.Write(sampleRows())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(csvPath, ".csv"))

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3, "header plus two rows")

	header := records[0]
	assert.Contains(t, header, "bought_in_past_month")
	assert.Contains(t, header, "fba_seller_count")
	assert.Contains(t, header, "fbm_seller_count")
	assert.Contains(t, header, "total_offer_count")

	// Rows are sorted by ROI descending.
	assert.Equal(t, "B07XYZ1234", records[1][4])
	assert.Equal(t, "B0LOSS0001", records[2][4])

	matches, err := filepath.Glob(filepath.Join(dir, "fba_report_*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)

	var summary Summary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, 2, summary.TotalRows)
	assert.Equal(t, 1, summary.Profitable)
	assert.InDelta(t, 1.0340, summary.BestROI, 1e-9)
}

func TestWriterEmptyReport(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)

	csvPath, err := w.Write(nil)
	require.NoError(t, err)

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "supplier_name")
}

func TestNewRow(t *testing.T) {
	p := &models.SupplierProduct{Title: "Widget", URL: "u", EAN: "5012345678900", Price: 2.99}
	snap := &models.AmazonSnapshot{ASIN: "B07XYZ1234", Title: "Widget 500ml", Price: 9.99, FBASellerCount: 3, FBMSellerCount: 2, TotalOfferCount: 5}
	entry := &models.LinkingEntry{ASIN: "B07XYZ1234", MatchMethod: models.MatchMethodEAN, Confidence: 0.95}
	b := &fees.Breakdown{ReferralFee: 1.4985, FulfillmentFee: 2.41, Profit: 3.0915, ROI: 1.0340}

	row := NewRow("clearance-king", p, snap, entry, b)
	assert.Equal(t, "B07XYZ1234", row.ASIN)
	assert.Equal(t, 3, row.FBASellerCount)
	assert.Equal(t, 2, row.FBMSellerCount)
	assert.InDelta(t, 3.0915, row.Profit, 1e-9)
}
