package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/threadline/loyalty-engine/internal/model"
	"github.com/threadline/loyalty-engine/internal/service"
)

// OrderServiceInterface defines the interface for the three order
// finalization paths.
type OrderServiceInterface interface {
	CreateCOD(ctx context.Context, userID uuid.UUID, req *model.CreateOrderRequest) (*model.OrderResponse, error)
	VerifyPayment(ctx context.Context, userID, orderID uuid.UUID) (*model.OrderResponse, error)
	AdminMarkPaid(ctx context.Context, orderID uuid.UUID) (*model.OrderResponse, error)
}

// OrderHandler handles HTTP requests for order finalization.
type OrderHandler struct {
	service   OrderServiceInterface
	validator *validator.Validate
}

// NewOrderHandler creates a new OrderHandler with the given service and validator.
func NewOrderHandler(svc OrderServiceInterface, v *validator.Validate) *OrderHandler {
	return &OrderHandler{service: svc, validator: v}
}

// CreateCOD handles POST /api/orders/cod. Cash-on-delivery orders are
// finalized at creation, so the attached coupon is validated and marked
// used here.
func (h *OrderHandler) CreateCOD(c *fiber.Ctx) error {
	userID := currentUser(c)

	var req model.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	resp, err := h.service.CreateCOD(c.Context(), userID, &req)
	if err != nil {
		if status, reason := couponErrorReason(err); status != 0 {
			return c.Status(status).JSON(fiber.Map{"error": reason})
		}
		if errors.Is(err, service.ErrInvalidRequest) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
		}
		log.Error().
			Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("user_id", userID.String()).
			Msg("failed to create COD order")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("order_id", resp.Order.ID.String()).
		Bool("coupon_marked", resp.CouponMarked).
		Msg("COD order created")
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// VerifyPayment handles POST /api/orders/:id/verify-payment, the gateway
// callback path.
func (h *OrderHandler) VerifyPayment(c *fiber.Ctx) error {
	userID := currentUser(c)

	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid order id"})
	}

	resp, err := h.service.VerifyPayment(c.Context(), userID, orderID)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order not found"})
		}
		log.Error().
			Err(err).
			Str("user_id", userID.String()).
			Str("order_id", orderID.String()).
			Msg("failed to verify payment")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	log.Info().
		Str("order_id", orderID.String()).
		Bool("coupon_marked", resp.CouponMarked).
		Msg("payment verified")
	return c.JSON(resp)
}

// AdminMarkPaid handles PUT /api/admin/orders/:id/mark-paid, the manual
// override for payments confirmed out of band.
func (h *OrderHandler) AdminMarkPaid(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid order id"})
	}

	resp, err := h.service.AdminMarkPaid(c.Context(), orderID)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order not found"})
		}
		log.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to mark order paid")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	log.Info().
		Str("order_id", orderID.String()).
		Bool("coupon_marked", resp.CouponMarked).
		Msg("order marked paid by admin")
	return c.JSON(resp)
}
