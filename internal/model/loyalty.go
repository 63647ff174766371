package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoyaltyTier is the user's loyalty standing, derived from completed cycles.
type LoyaltyTier string

const (
	TierBronze   LoyaltyTier = "bronze"
	TierSilver   LoyaltyTier = "silver"
	TierGold     LoyaltyTier = "gold"
	TierPlatinum LoyaltyTier = "platinum"
)

// TierForCycles derives the loyalty tier from the number of completed
// stamp cycles. Bronze 0-4, Silver 5-9, Gold 10-29, Platinum 30+.
func TierForCycles(cycles int) LoyaltyTier {
	switch {
	case cycles >= 30:
		return TierPlatinum
	case cycles >= 10:
		return TierGold
	case cycles >= 5:
		return TierSilver
	default:
		return TierBronze
	}
}

// NextTierProgress reports the tier above the current one and how many
// completed cycles remain to reach it. Platinum is terminal: nil, 0.
func NextTierProgress(cycles int) (*LoyaltyTier, int) {
	switch {
	case cycles >= 30:
		return nil, 0
	case cycles >= 10:
		next := TierPlatinum
		return &next, 30 - cycles
	case cycles >= 5:
		next := TierGold
		return &next, 10 - cycles
	default:
		next := TierSilver
		return &next, 5 - cycles
	}
}

// Rarity is the draw tier of a generated coupon.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// DiscountType distinguishes percentage-of-total from fixed-amount coupons.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// CouponTemplate is a configured reward inside a rarity pool. Weight is
// relative within the pool only and need not sum to anything.
type CouponTemplate struct {
	Description   string
	DiscountType  DiscountType
	Value         decimal.Decimal
	Weight        float64
	MinOrderValue decimal.Decimal
	MinItems      int    // 0 means unconstrained
	MaxItems      int    // 0 means unconstrained
	SpecialType   string // tag for compound offers, empty for plain discounts
	ShortValidity bool   // high-value offers expire on the reduced window
}

// ClaimedCoupon is a concrete coupon instance held by a user. Rows are
// append-only: expiry and usage are enforced by comparison, never by delete.
type ClaimedCoupon struct {
	Code          string           `json:"code"`
	UserID        uuid.UUID        `json:"-"`
	Description   string           `json:"description"`
	DiscountType  DiscountType     `json:"discount_type"`
	Value         decimal.Decimal  `json:"value"`
	MinOrderValue decimal.Decimal  `json:"min_order_value"`
	Rarity        Rarity           `json:"rarity"`
	ClaimedAt     time.Time        `json:"claimed_at"`
	ExpiresAt     time.Time        `json:"expires_at"`
	AppliedAt     *time.Time       `json:"applied_at,omitempty"`
	AppliedTotal  *decimal.Decimal `json:"applied_total,omitempty"`
	UsedAt        *time.Time       `json:"used_at,omitempty"`
}

// Redeemable reports whether the coupon can still be applied or used.
// AppliedAt is advisory UI state and never gates redemption.
func (c *ClaimedCoupon) Redeemable(now time.Time) bool {
	return c.UsedAt == nil && !now.After(c.ExpiresAt)
}

// Ledger is a user's loyalty state. Tier is always derived from
// CyclesCompleted and never stored.
type Ledger struct {
	UserID               uuid.UUID `json:"user_id"`
	Email                string    `json:"email"`
	Name                 string    `json:"name"`
	Stamps               int       `json:"stamps"`
	CyclesCompleted      int       `json:"cycles_completed"`
	WelcomeCouponGranted bool      `json:"welcome_coupon_granted"`
}

// Tier returns the loyalty tier derived from the ledger's cycle count.
func (l *Ledger) Tier() LoyaltyTier {
	return TierForCycles(l.CyclesCompleted)
}

// HistoryEntry is one row of the append-only claim audit trail.
type HistoryEntry struct {
	UserID      uuid.UUID `json:"-"`
	Cycle       int       `json:"cycle"`
	Description string    `json:"description"`
	Code        string    `json:"code"`
	Rarity      Rarity    `json:"rarity"`
	CreatedAt   time.Time `json:"created_at"`
}

// OrderStatus values this core cares about. The storefront owns the full set.
const (
	OrderStatusPlaced    = "placed"
	OrderStatusPaid      = "paid"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// Order is the slice of the order subsystem the loyalty core reads and
// writes. LoyaltyStampAdded is set exactly once and never reset.
type Order struct {
	ID                uuid.UUID       `json:"id"`
	UserID            uuid.UUID       `json:"user_id"`
	Status            string          `json:"status"`
	Total             decimal.Decimal `json:"total"`
	IsDelivered       bool            `json:"is_delivered"`
	DeliveredAt       *time.Time      `json:"delivered_at,omitempty"`
	ReturnStatus      *string         `json:"return_status,omitempty"`
	CouponCode        *string         `json:"coupon_code,omitempty"`
	TotalQuantity     int             `json:"total_quantity"`
	LoyaltyStampAdded bool            `json:"loyalty_stamp_added"`
	CreatedAt         time.Time       `json:"created_at"`
}
