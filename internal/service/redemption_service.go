package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/threadline/loyalty-engine/internal/model"
)

// RedeemableCouponRepository defines the data access needed by redemption.
// MarkUsed must be an atomic conditional write: it may only flip used_at
// when it is still null, and reports whether this call flipped it.
type RedeemableCouponRepository interface {
	GetByCode(ctx context.Context, userID uuid.UUID, code string) (*model.ClaimedCoupon, error)
	MarkApplied(ctx context.Context, userID uuid.UUID, code string, at time.Time, total decimal.Decimal) error
	ClearApplied(ctx context.Context, userID uuid.UUID, code string) error
	MarkUsed(ctx context.Context, userID uuid.UUID, code string, at time.Time) (bool, error)
}

// RedemptionService validates coupons at checkout preview and marks them
// used at order finalization. All three order paths (COD creation,
// gateway verification, admin mark-paid) funnel through Redeem.
type RedemptionService struct {
	coupons RedeemableCouponRepository
	now     func() time.Time
}

// NewRedemptionService creates a RedemptionService.
func NewRedemptionService(coupons RedeemableCouponRepository) *RedemptionService {
	return &RedemptionService{coupons: coupons, now: time.Now}
}

// Apply previews a coupon against a candidate order total. It validates
// ownership, usage, expiry and the coupon's minimum, computes the discount
// from the structured type/value fields, and records applied_at as
// advisory state. It never marks the coupon used.
func (s *RedemptionService) Apply(ctx context.Context, userID uuid.UUID, code string, orderTotal decimal.Decimal) (*model.ApplyCouponResponse, error) {
	if !orderTotal.IsPositive() {
		return nil, ErrInvalidOrderTotal
	}

	coupon, err := s.coupons.GetByCode(ctx, userID, code)
	if err != nil {
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	if coupon == nil {
		return nil, ErrCouponNotFound
	}
	if coupon.UsedAt != nil {
		return nil, ErrCouponUsed
	}
	now := s.now()
	if now.After(coupon.ExpiresAt) {
		return nil, ErrCouponExpired
	}
	if orderTotal.LessThan(coupon.MinOrderValue) {
		return nil, ErrMinOrderNotMet
	}

	discount := Discount(coupon, orderTotal)
	newTotal := orderTotal.Sub(discount).Round(2)

	if err := s.coupons.MarkApplied(ctx, userID, code, now, orderTotal); err != nil {
		return nil, fmt.Errorf("mark applied: %w", err)
	}

	return &model.ApplyCouponResponse{
		Code:     coupon.Code,
		Discount: discount,
		NewTotal: newTotal,
		Message:  coupon.Description,
	}, nil
}

// Redeem marks the coupon used, exactly once. The conditional write makes
// repeat invocations no-ops, so each of the three order-finalization paths
// can call it without coordinating with the others. Returns whether this
// call performed the marking.
func (s *RedemptionService) Redeem(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	marked, err := s.coupons.MarkUsed(ctx, userID, code, s.now())
	if err != nil {
		return false, fmt.Errorf("mark used: %w", err)
	}
	if !marked {
		log.Debug().
			Str("user_id", userID.String()).
			Str("code", code).
			Msg("coupon already used or unknown, redeem is a no-op")
	}
	return marked, nil
}

// Remove clears the advisory applied state so the user can back out of a
// coupon before finalizing. It never touches used_at.
func (s *RedemptionService) Remove(ctx context.Context, userID uuid.UUID, code string) error {
	coupon, err := s.coupons.GetByCode(ctx, userID, code)
	if err != nil {
		return fmt.Errorf("get coupon: %w", err)
	}
	if coupon == nil {
		return ErrCouponNotFound
	}
	if err := s.coupons.ClearApplied(ctx, userID, code); err != nil {
		return fmt.Errorf("clear applied: %w", err)
	}
	return nil
}

var hundred = decimal.NewFromInt(100)

// Discount computes the discount for a coupon against an order total using
// only the structured discount fields; the description plays no part. The
// discount never exceeds the total and the result is rounded to 2 places.
func Discount(coupon *model.ClaimedCoupon, orderTotal decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch coupon.DiscountType {
	case model.DiscountPercentage:
		amount = orderTotal.Mul(coupon.Value).Div(hundred)
	case model.DiscountFixed:
		amount = coupon.Value
	default:
		return decimal.Zero
	}

	amount = decimal.Min(amount, orderTotal)
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return amount.Round(2)
}
