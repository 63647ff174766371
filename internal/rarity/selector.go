package rarity

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/threadline/loyalty-engine/internal/model"
)

// ErrNoTemplates is returned when every pool the selector could fall back
// to is empty. Unreachable when Table.Validate passed at startup.
var ErrNoTemplates = errors.New("no coupon templates available in any pool")

// FloatSource yields uniform values in [0, 1). *rand.Rand satisfies it;
// tests inject fixed sequences.
type FloatSource interface {
	Float64() float64
}

// PityState carries the anti-frustration counters for a draw. The
// storefront tracks streaks client-side and submits them with the claim.
type PityState struct {
	FirstDraw      bool
	CommonStreak   int
	DrawsSinceRare int
}

const (
	commonStreakLimit   = 5
	drawsSinceRareLimit = 10
)

// Drawn is the outcome of a rarity draw: the selected tier and template.
type Drawn struct {
	Rarity   model.Rarity
	Template model.CouponTemplate
}

// Selector draws coupon templates from a rarity table.
type Selector struct {
	table *Table
	rng   FloatSource
}

// NewSelector creates a Selector over the given table and random source.
func NewSelector(table *Table, rng FloatSource) *Selector {
	return &Selector{table: table, rng: rng}
}

// Draw selects a rarity by cumulative-percentage walk and then a template
// from that rarity's pool by cumulative weight. When bonusEligible and the
// loyalty tier has a bonus row, the pre-balanced deltas are added to the
// base percentages first.
func (s *Selector) Draw(tier model.LoyaltyTier, bonusEligible bool) (Drawn, error) {
	rarity := s.drawRarity(s.percentages(tier, bonusEligible))
	return s.pickFromPool(rarity)
}

// DrawWithPity applies the anti-frustration rules before drawing. Exactly
// one rule fires per draw, evaluated in priority order: first-draw boost,
// common-streak force, draws-since-rare force.
func (s *Selector) DrawWithPity(tier model.LoyaltyTier, bonusEligible bool, pity PityState) (Drawn, error) {
	switch {
	case pity.FirstDraw:
		return s.pickFromPool(s.drawRarity(s.table.Boosted))
	case pity.CommonStreak >= commonStreakLimit:
		forced := model.RarityUncommon
		if tier == model.TierGold || tier == model.TierPlatinum {
			forced = model.RarityRare
		}
		return s.pickFromPool(forced)
	case pity.DrawsSinceRare >= drawsSinceRareLimit:
		forced := model.RarityRare
		if tier == model.TierPlatinum {
			forced = model.RarityEpic
		}
		return s.pickFromPool(forced)
	default:
		return s.Draw(tier, bonusEligible)
	}
}

func (s *Selector) percentages(tier model.LoyaltyTier, bonusEligible bool) map[model.Rarity]float64 {
	deltas, known := s.table.Bonus[tier]
	if !bonusEligible || !known {
		return s.table.Base
	}
	adjusted := make(map[model.Rarity]float64, len(DrawOrder))
	for _, r := range DrawOrder {
		adjusted[r] = s.table.Base[r] + deltas[r]
	}
	return adjusted
}

// drawRarity walks the tiers in fixed order accumulating percentages and
// selects the first bucket whose cumulative sum meets the draw. Rounding
// slack at the top end falls back to common rather than failing.
func (s *Selector) drawRarity(percentages map[model.Rarity]float64) model.Rarity {
	roll := s.rng.Float64() * 100
	var cumulative float64
	for _, r := range DrawOrder {
		cumulative += percentages[r]
		if roll < cumulative {
			return r
		}
	}
	return model.RarityCommon
}

// pickFromPool selects a template from the rarity's pool by cumulative
// weight, falling back to the last template on floating-point slack. An
// empty pool steps down toward common so a claim never fails on a
// misconfigured table.
func (s *Selector) pickFromPool(rarity model.Rarity) (Drawn, error) {
	pool := s.table.Pools[rarity]
	if len(pool) == 0 {
		log.Warn().Str("rarity", string(rarity)).Msg("empty rarity pool, falling back toward common")
		return s.fallback(rarity)
	}

	var total float64
	for _, tmpl := range pool {
		total += tmpl.Weight
	}
	if total <= 0 {
		log.Warn().Str("rarity", string(rarity)).Msg("rarity pool weights sum to zero, falling back toward common")
		return s.fallback(rarity)
	}

	roll := s.rng.Float64() * total
	var cumulative float64
	for _, tmpl := range pool {
		cumulative += tmpl.Weight
		if roll < cumulative {
			return Drawn{Rarity: rarity, Template: tmpl}, nil
		}
	}
	return Drawn{Rarity: rarity, Template: pool[len(pool)-1]}, nil
}

// fallback retries pool selection on the next lower rarity, ending at
// common. Only a fully empty table errors.
func (s *Selector) fallback(rarity model.Rarity) (Drawn, error) {
	idx := 0
	for i, r := range DrawOrder {
		if r == rarity {
			idx = i
			break
		}
	}
	for i := idx - 1; i >= 0; i-- {
		if len(s.table.Pools[DrawOrder[i]]) > 0 {
			return s.pickFromPool(DrawOrder[i])
		}
	}
	return Drawn{}, ErrNoTemplates
}
