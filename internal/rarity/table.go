package rarity

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/threadline/loyalty-engine/internal/model"
)

// sumTolerance absorbs binary-representation slack when checking that
// percentage tables sum to 100 and delta rows sum to 0.
const sumTolerance = 1e-9

// DrawOrder is the fixed walk order for cumulative bucket selection, most
// to least probable.
var DrawOrder = []model.Rarity{
	model.RarityCommon,
	model.RarityUncommon,
	model.RarityRare,
	model.RarityEpic,
	model.RarityLegendary,
}

// Table is the static rarity configuration: base tier percentages, the
// boosted first-draw table, per-loyalty-tier bonus deltas, and the coupon
// template pool owned by each rarity.
type Table struct {
	Base    map[model.Rarity]float64
	Boosted map[model.Rarity]float64
	Bonus   map[model.LoyaltyTier]map[model.Rarity]float64
	Pools   map[model.Rarity][]model.CouponTemplate
}

// Default returns the production rarity table.
func Default() *Table {
	return &Table{
		Base: map[model.Rarity]float64{
			model.RarityCommon:    55,
			model.RarityUncommon:  25,
			model.RarityRare:      15,
			model.RarityEpic:      4.8,
			model.RarityLegendary: 0.2,
		},
		// First-draw table replaces Base entirely; mass shifted off common.
		Boosted: map[model.Rarity]float64{
			model.RarityCommon:    40,
			model.RarityUncommon:  35,
			model.RarityRare:      20,
			model.RarityEpic:      4.5,
			model.RarityLegendary: 0.5,
		},
		// Each delta row is pre-balanced to sum to zero so the adjusted
		// percentages still cover exactly 100.
		Bonus: map[model.LoyaltyTier]map[model.Rarity]float64{
			model.TierBronze: {
				model.RarityCommon:    -2,
				model.RarityUncommon:  1.5,
				model.RarityRare:      0.5,
				model.RarityEpic:      0,
				model.RarityLegendary: 0,
			},
			model.TierSilver: {
				model.RarityCommon:    -5,
				model.RarityUncommon:  3,
				model.RarityRare:      1.5,
				model.RarityEpic:      0.4,
				model.RarityLegendary: 0.1,
			},
			model.TierGold: {
				model.RarityCommon:    -9,
				model.RarityUncommon:  5,
				model.RarityRare:      3,
				model.RarityEpic:      0.8,
				model.RarityLegendary: 0.2,
			},
			model.TierPlatinum: {
				model.RarityCommon:    -14,
				model.RarityUncommon:  7,
				model.RarityRare:      5,
				model.RarityEpic:      1.5,
				model.RarityLegendary: 0.5,
			},
		},
		Pools: map[model.Rarity][]model.CouponTemplate{
			model.RarityCommon: {
				{Description: "5% off your order", DiscountType: model.DiscountPercentage, Value: decimal.NewFromInt(5), Weight: 37.5},
				{Description: "Flat 50 off orders over 499", DiscountType: model.DiscountFixed, Value: decimal.NewFromInt(50), Weight: 37.5, MinOrderValue: decimal.NewFromInt(499)},
				{Description: "Flat 75 off orders over 999", DiscountType: model.DiscountFixed, Value: decimal.NewFromInt(75), Weight: 25, MinOrderValue: decimal.NewFromInt(999)},
			},
			model.RarityUncommon: {
				{Description: "10% off your order", DiscountType: model.DiscountPercentage, Value: decimal.NewFromInt(10), Weight: 50},
				{Description: "Flat 150 off orders over 999", DiscountType: model.DiscountFixed, Value: decimal.NewFromInt(150), Weight: 33.3, MinOrderValue: decimal.NewFromInt(999)},
				{Description: "12% off when you buy 2 or more tees", DiscountType: model.DiscountPercentage, Value: decimal.NewFromInt(12), Weight: 16.7, MinItems: 2, SpecialType: "multi-buy"},
			},
			model.RarityRare: {
				{Description: "20% off your order", DiscountType: model.DiscountPercentage, Value: decimal.NewFromInt(20), Weight: 60},
				{Description: "Flat 300 off orders over 1499", DiscountType: model.DiscountFixed, Value: decimal.NewFromInt(300), Weight: 40, MinOrderValue: decimal.NewFromInt(1499)},
			},
			model.RarityEpic: {
				{Description: "30% off your order", DiscountType: model.DiscountPercentage, Value: decimal.NewFromInt(30), Weight: 70, ShortValidity: true},
				{Description: "Flat 500 off orders over 1999", DiscountType: model.DiscountFixed, Value: decimal.NewFromInt(500), Weight: 30, MinOrderValue: decimal.NewFromInt(1999), ShortValidity: true},
			},
			model.RarityLegendary: {
				{Description: "50% off your entire order", DiscountType: model.DiscountPercentage, Value: decimal.NewFromInt(50), Weight: 100, ShortValidity: true},
			},
		},
	}
}

// Validate checks the probability-space invariants. It is called once at
// startup; a failed check is a configuration error and aborts boot.
func (t *Table) Validate() error {
	if err := checkSum("base", t.Base, 100); err != nil {
		return err
	}
	if err := checkSum("boosted", t.Boosted, 100); err != nil {
		return err
	}
	for tier, deltas := range t.Bonus {
		if err := checkSum(fmt.Sprintf("bonus[%s]", tier), deltas, 0); err != nil {
			return err
		}
		for _, r := range DrawOrder {
			adjusted := t.Base[r] + deltas[r]
			if adjusted < 0 || adjusted > 100 {
				return fmt.Errorf("bonus[%s] pushes %s to %.2f, outside [0,100]", tier, r, adjusted)
			}
		}
	}
	for _, r := range DrawOrder {
		pool := t.Pools[r]
		if len(pool) == 0 {
			return fmt.Errorf("rarity %s has an empty template pool", r)
		}
		for i, tmpl := range pool {
			if tmpl.Weight <= 0 {
				return fmt.Errorf("rarity %s template %d (%q) has non-positive weight %.2f", r, i, tmpl.Description, tmpl.Weight)
			}
		}
	}
	return nil
}

func checkSum(name string, values map[model.Rarity]float64, want float64) error {
	var sum float64
	for _, r := range DrawOrder {
		sum += values[r]
	}
	if math.Abs(sum-want) > sumTolerance {
		return fmt.Errorf("%s percentages sum to %.6f, want %.0f", name, sum, want)
	}
	return nil
}
