package fees

import (
	"errors"
	"math"

	"github.com/chri75252/simpler-fba/internal/config"
)

// ErrNoCost means the supplier cost is missing or non-positive, so ROI is
// undefined.
var ErrNoCost = errors.New("supplier cost must be positive")

// Input is everything the calculator needs for one product pair.
type Input struct {
	SellPrice    float64 // current Amazon price
	SupplierCost float64 // unit cost at the supplier
	WeightKG     float64 // optional, 0 means unknown
}

// Breakdown is the itemized result. All amounts are in the marketplace
// currency.
type Breakdown struct {
	SellPrice      float64 `json:"sell_price"`
	SupplierCost   float64 `json:"supplier_cost"`
	ReferralFee    float64 `json:"referral_fee"`
	FulfillmentFee float64 `json:"fulfillment_fee"`
	PrepFee        float64 `json:"prep_fee"`
	Profit         float64 `json:"profit"`
	ROI            float64 `json:"roi"`
}

// Calculator computes FBA profitability from the configured fee schedule.
type Calculator struct {
	referralRate   float64
	fulfillmentMin float64
	prepFee        float64
	minROI         float64
	minProfit      float64
}

func NewCalculator(cfg config.FeesConfig) *Calculator {
	return &Calculator{
		referralRate:   cfg.ReferralFeeRate,
		fulfillmentMin: cfg.FulfillmentFeeMinimum,
		prepFee:        cfg.PrepFeePerUnit,
		minROI:         cfg.MinROI,
		minProfit:      cfg.MinProfit,
	}
}

// Calculate returns the fee breakdown for one product.
//
//	referral_fee    = sell_price * referral_fee_rate
//	fulfillment_fee = max(minimum, weight-banded fee)
//	profit          = sell_price - referral - fulfillment - prep - cost
//	roi             = profit / cost
func (c *Calculator) Calculate(in Input) (*Breakdown, error) {
	if in.SupplierCost <= 0 {
		return nil, ErrNoCost
	}

	referral := in.SellPrice * c.referralRate
	fulfillment := c.fulfillmentFee(in.WeightKG)

	profit := in.SellPrice - referral - fulfillment - c.prepFee - in.SupplierCost

	// Nothing is rounded here so the breakdown stays reproducible from the
	// formula; the report layer formats for display.
	return &Breakdown{
		SellPrice:      in.SellPrice,
		SupplierCost:   in.SupplierCost,
		ReferralFee:    referral,
		FulfillmentFee: fulfillment,
		PrepFee:        c.prepFee,
		Profit:         profit,
		ROI:            profit / in.SupplierCost,
	}, nil
}

// Profitable applies the configured ROI and absolute-profit floors.
func (c *Calculator) Profitable(b *Breakdown) bool {
	return b != nil && b.ROI >= c.minROI && b.Profit >= c.minProfit
}

// fulfillmentFee uses the UK small-parcel weight bands. With no weight data
// the configured minimum applies.
func (c *Calculator) fulfillmentFee(weightKG float64) float64 {
	switch {
	case weightKG <= 0:
		return c.fulfillmentMin
	case weightKG <= 0.25:
		return c.fulfillmentMin
	case weightKG <= 0.5:
		return c.fulfillmentMin + 0.36
	case weightKG <= 1.0:
		return c.fulfillmentMin + 0.82
	case weightKG <= 2.0:
		return c.fulfillmentMin + 1.34
	default:
		return c.fulfillmentMin + 1.34 + 0.25*math.Ceil(weightKG-2.0)
	}
}
