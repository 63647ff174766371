package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/threadline/loyalty-engine/internal/model"
	"github.com/threadline/loyalty-engine/internal/service"
)

// RedemptionServiceInterface defines the interface for coupon
// apply/remove logic at checkout.
type RedemptionServiceInterface interface {
	Apply(ctx context.Context, userID uuid.UUID, code string, orderTotal decimal.Decimal) (*model.ApplyCouponResponse, error)
	Remove(ctx context.Context, userID uuid.UUID, code string) error
}

// CouponHandler handles HTTP requests for checkout coupon operations.
type CouponHandler struct {
	service   RedemptionServiceInterface
	validator *validator.Validate
}

// NewCouponHandler creates a new CouponHandler with the given service and validator.
func NewCouponHandler(svc RedemptionServiceInterface, v *validator.Validate) *CouponHandler {
	return &CouponHandler{service: svc, validator: v}
}

// couponErrorReason maps redemption failures to the specific reasons the
// storefront UI distinguishes. Unknown errors return empty.
func couponErrorReason(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrCouponNotFound):
		return fiber.StatusNotFound, "coupon not found"
	case errors.Is(err, service.ErrCouponUsed):
		return fiber.StatusConflict, "coupon already used"
	case errors.Is(err, service.ErrCouponExpired):
		return fiber.StatusBadRequest, "coupon expired"
	case errors.Is(err, service.ErrMinOrderNotMet):
		return fiber.StatusBadRequest, "order total below coupon minimum"
	case errors.Is(err, service.ErrInvalidOrderTotal):
		return fiber.StatusBadRequest, "order total must be positive"
	default:
		return 0, ""
	}
}

// Apply handles POST /api/coupons/apply: a non-destructive discount
// preview against a candidate order total.
func (h *CouponHandler) Apply(c *fiber.Ctx) error {
	userID := currentUser(c)

	var req model.ApplyCouponRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	resp, err := h.service.Apply(c.Context(), userID, req.Code, req.OrderTotal)
	if err != nil {
		if status, reason := couponErrorReason(err); status != 0 {
			return c.Status(status).JSON(fiber.Map{"error": reason})
		}
		log.Error().
			Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("user_id", userID.String()).
			Str("code", req.Code).
			Msg("failed to apply coupon")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("code", req.Code).
		Str("discount", resp.Discount.String()).
		Msg("coupon applied")
	return c.JSON(resp)
}

// Remove handles POST /api/coupons/remove: clears the advisory applied
// state so the user can back out before finalizing.
func (h *CouponHandler) Remove(c *fiber.Ctx) error {
	userID := currentUser(c)

	var req model.RemoveCouponRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	if err := h.service.Remove(c.Context(), userID, req.Code); err != nil {
		if errors.Is(err, service.ErrCouponNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "coupon not found"})
		}
		log.Error().Err(err).Str("user_id", userID.String()).Str("code", req.Code).Msg("failed to remove coupon")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.Status(fiber.StatusOK).Send(nil)
}

// formatValidationError converts validator errors into the storefront's
// "invalid request: <field> <problem>" messages.
func formatValidationError(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			field := fe.Field()
			switch fe.Tag() {
			case "required":
				return "invalid request: " + field + " is required"
			case "notblank":
				return "invalid request: " + field + " cannot be whitespace only"
			case "max":
				return "invalid request: " + field + " exceeds maximum length"
			case "gte":
				return "invalid request: " + field + " is too small"
			default:
				return "invalid request: " + field + " is invalid"
			}
		}
	}
	return "invalid request"
}
