package model

import "github.com/shopspring/decimal"

// StatusResponse is the DTO for GET /api/loyalty/status. NextTier is
// omitted once the user reaches platinum.
type StatusResponse struct {
	Stamps           int             `json:"stamps"`
	CyclesCompleted  int             `json:"cycles_completed"`
	Tier             LoyaltyTier     `json:"tier"`
	NextTier         *LoyaltyTier    `json:"next_tier,omitempty"`
	CyclesToNextTier int             `json:"cycles_to_next_tier"`
	ValidCoupons     []ClaimedCoupon `json:"valid_coupons"`
}

// PityStateRequest carries the storefront's streak counters into a claim.
type PityStateRequest struct {
	FirstDraw      bool `json:"first_draw"`
	CommonStreak   int  `json:"common_streak"`
	DrawsSinceRare int  `json:"draws_since_rare"`
}

// ClaimRequest is the DTO for POST /api/loyalty/claim.
type ClaimRequest struct {
	Pity *PityStateRequest `json:"pity,omitempty"`
}

// ClaimResponse is the DTO returned on a successful loyalty claim.
type ClaimResponse struct {
	Coupon       ClaimedCoupon `json:"coupon"`
	Tier         LoyaltyTier   `json:"tier"`
	TierUpgraded bool          `json:"tier_upgraded"`
}

// ApplyCouponRequest is the DTO for POST /api/coupons/apply.
type ApplyCouponRequest struct {
	Code       string          `json:"code" validate:"required,notblank,max=32"`
	OrderTotal decimal.Decimal `json:"order_total" validate:"required"`
}

// ApplyCouponResponse reports the previewed discount. Amounts are rounded
// to 2 decimal places.
type ApplyCouponResponse struct {
	Code     string          `json:"code"`
	Discount decimal.Decimal `json:"discount"`
	NewTotal decimal.Decimal `json:"new_total"`
	Message  string          `json:"message"`
}

// RemoveCouponRequest is the DTO for POST /api/coupons/remove.
type RemoveCouponRequest struct {
	Code string `json:"code" validate:"required,notblank,max=32"`
}

// CreateOrderRequest is the DTO for POST /api/orders/cod. The coupon code
// is optional; when present it is re-validated server-side before the
// discounted total is stored.
type CreateOrderRequest struct {
	Total         decimal.Decimal `json:"total" validate:"required"`
	TotalQuantity int             `json:"total_quantity" validate:"required,gte=1"`
	CouponCode    string          `json:"coupon_code" validate:"omitempty,notblank,max=32"`
}

// OrderResponse is the DTO returned by the order endpoints.
type OrderResponse struct {
	Order        Order           `json:"order"`
	Discount     decimal.Decimal `json:"discount"`
	CouponMarked bool            `json:"coupon_marked"`
}
