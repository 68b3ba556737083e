package fees

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chri75252/simpler-fba/internal/config"
)

func defaultFeeConfig() config.FeesConfig {
	return config.FeesConfig{
		ReferralFeeRate:       0.15,
		FulfillmentFeeMinimum: 2.41,
		MinROI:                0.3,
		MinProfit:             1.0,
	}
}

func TestCalculateWidgetExample(t *testing.T) {
	// Supplier widget at £2.99 matched to an Amazon listing at £9.99.
	c := NewCalculator(defaultFeeConfig())

	b, err := c.Calculate(Input{SellPrice: 9.99, SupplierCost: 2.99})
	require.NoError(t, err)

	assert.InDelta(t, 1.4985, b.ReferralFee, 1e-9)
	assert.InDelta(t, 2.41, b.FulfillmentFee, 1e-9)
	assert.InDelta(t, 3.0915, b.Profit, 1e-9)
	assert.InDelta(t, 3.0915/2.99, b.ROI, 1e-9)
	assert.True(t, c.Profitable(b))
}

func TestCalculateIsDeterministic(t *testing.T) {
	c := NewCalculator(defaultFeeConfig())
	in := Input{SellPrice: 9.99, SupplierCost: 2.99}

	first, err := c.Calculate(in)
	require.NoError(t, err)
	second, err := c.Calculate(in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCalculateRejectsZeroCost(t *testing.T) {
	c := NewCalculator(defaultFeeConfig())

	_, err := c.Calculate(Input{SellPrice: 9.99, SupplierCost: 0})
	assert.ErrorIs(t, err, ErrNoCost)

	_, err = c.Calculate(Input{SellPrice: 9.99, SupplierCost: -1})
	assert.ErrorIs(t, err, ErrNoCost)
}

func TestCalculateLossMaker(t *testing.T) {
	c := NewCalculator(defaultFeeConfig())

	b, err := c.Calculate(Input{SellPrice: 3.00, SupplierCost: 2.99})
	require.NoError(t, err)
	assert.Negative(t, b.Profit)
	assert.Negative(t, b.ROI)
	assert.False(t, c.Profitable(b))
}

func TestFulfillmentFeeWeightBands(t *testing.T) {
	c := NewCalculator(defaultFeeConfig())

	tests := []struct {
		name     string
		weight   float64
		expected float64
	}{
		{"unknown weight uses minimum", 0, 2.41},
		{"small parcel", 0.2, 2.41},
		{"half kilo", 0.5, 2.77},
		{"one kilo", 1.0, 3.23},
		{"two kilos", 2.0, 3.75},
		{"heavy adds per-kilo surcharge", 4.0, 3.75 + 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, c.fulfillmentFee(tt.weight), 1e-9)
		})
	}
}

func TestProfitableThresholds(t *testing.T) {
	cfg := defaultFeeConfig()
	cfg.MinROI = 1.0
	cfg.MinProfit = 5.0
	c := NewCalculator(cfg)

	b, err := c.Calculate(Input{SellPrice: 9.99, SupplierCost: 2.99})
	require.NoError(t, err)
	// ROI clears 1.0 but absolute profit is below the £5 floor.
	assert.False(t, c.Profitable(b))

	assert.False(t, c.Profitable(nil))
}
