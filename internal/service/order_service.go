package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/threadline/loyalty-engine/internal/model"
)

// OrderRepositoryInterface defines the order data access needed by the
// finalization paths.
type OrderRepositoryInterface interface {
	Insert(ctx context.Context, order *model.Order) error
	Get(ctx context.Context, orderID uuid.UUID) (*model.Order, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID) error
}

// Redeemer is the slice of RedemptionService the order paths need.
type Redeemer interface {
	Apply(ctx context.Context, userID uuid.UUID, code string, orderTotal decimal.Decimal) (*model.ApplyCouponResponse, error)
	Redeem(ctx context.Context, userID uuid.UUID, code string) (bool, error)
}

// OrderService owns the three order-finalization paths: COD creation,
// gateway payment verification, and admin mark-paid. Exactly one of them
// fires per order, and each funnels coupon marking through the same
// idempotent Redeem.
type OrderService struct {
	orders     OrderRepositoryInterface
	redemption Redeemer
	now        func() time.Time
}

// NewOrderService creates an OrderService.
func NewOrderService(orders OrderRepositoryInterface, redemption Redeemer) *OrderService {
	return &OrderService{orders: orders, redemption: redemption, now: time.Now}
}

// CreateCOD creates a cash-on-delivery order. COD orders are considered
// placed immediately, so an attached coupon is re-validated server-side,
// marked used, and only then is the order stored with the discounted
// total. Redeeming first means a coupon that loses a race to a concurrent
// order fails the whole request instead of discounting a second order.
func (s *OrderService) CreateCOD(ctx context.Context, userID uuid.UUID, req *model.CreateOrderRequest) (*model.OrderResponse, error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}

	total := req.Total
	discount := decimal.Zero
	marked := false
	var couponCode *string

	if req.CouponCode != "" {
		applied, err := s.redemption.Apply(ctx, userID, req.CouponCode, req.Total)
		if err != nil {
			return nil, err
		}
		marked, err = s.redemption.Redeem(ctx, userID, req.CouponCode)
		if err != nil {
			return nil, fmt.Errorf("redeem coupon: %w", err)
		}
		if !marked {
			// Consumed between validation and marking.
			return nil, ErrCouponUsed
		}
		total = applied.NewTotal
		discount = applied.Discount
		couponCode = &req.CouponCode
	}

	order := model.Order{
		ID:            uuid.New(),
		UserID:        userID,
		Status:        model.OrderStatusPlaced,
		Total:         total,
		CouponCode:    couponCode,
		TotalQuantity: req.TotalQuantity,
		CreatedAt:     s.now(),
	}
	if err := s.orders.Insert(ctx, &order); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	return &model.OrderResponse{Order: order, Discount: discount, CouponMarked: marked}, nil
}

// VerifyPayment finalizes a gateway-paid order. The gateway callback is
// trusted to have verified the payment signature upstream; here the order
// transitions to paid and its coupon, if any, is marked used.
func (s *OrderService) VerifyPayment(ctx context.Context, userID, orderID uuid.UUID) (*model.OrderResponse, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil || order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return s.finalize(ctx, order)
}

// AdminMarkPaid finalizes an order on behalf of an administrator, the
// manual override for payments confirmed out of band.
func (s *OrderService) AdminMarkPaid(ctx context.Context, orderID uuid.UUID) (*model.OrderResponse, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return s.finalize(ctx, order)
}

func (s *OrderService) finalize(ctx context.Context, order *model.Order) (*model.OrderResponse, error) {
	if err := s.orders.MarkPaid(ctx, order.ID); err != nil {
		return nil, fmt.Errorf("mark order paid: %w", err)
	}
	order.Status = model.OrderStatusPaid

	marked := false
	if order.CouponCode != nil {
		var err error
		marked, err = s.redemption.Redeem(ctx, order.UserID, *order.CouponCode)
		if err != nil {
			return nil, fmt.Errorf("redeem coupon: %w", err)
		}
	}
	return &model.OrderResponse{Order: *order, Discount: decimal.Zero, CouponMarked: marked}, nil
}
