package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/threadline/loyalty-engine/internal/model"
	"github.com/threadline/loyalty-engine/internal/rarity"
	"github.com/threadline/loyalty-engine/internal/service"
)

// LoyaltyServiceInterface defines the interface for loyalty business logic.
type LoyaltyServiceInterface interface {
	Status(ctx context.Context, userID uuid.UUID) (*model.StatusResponse, error)
	History(ctx context.Context, userID uuid.UUID) ([]model.HistoryEntry, error)
	AddStamp(ctx context.Context, userID uuid.UUID) (int, error)
	Claim(ctx context.Context, userID uuid.UUID, pity *rarity.PityState) (*model.ClaimResponse, error)
	GrantWelcomeCoupon(ctx context.Context, userID uuid.UUID) (*model.ClaimedCoupon, error)
}

// LoyaltyHandler handles HTTP requests for the stamp-card program.
type LoyaltyHandler struct {
	service LoyaltyServiceInterface
}

// NewLoyaltyHandler creates a new LoyaltyHandler with the given service.
func NewLoyaltyHandler(svc LoyaltyServiceInterface) *LoyaltyHandler {
	return &LoyaltyHandler{service: svc}
}

// Status handles GET /api/loyalty/status.
func (h *LoyaltyHandler) Status(c *fiber.Ctx) error {
	userID := currentUser(c)

	status, err := h.service.Status(c.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
		}
		log.Error().Err(err).Str("user_id", userID.String()).Msg("failed to read loyalty status")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.JSON(status)
}

// History handles GET /api/loyalty/history.
func (h *LoyaltyHandler) History(c *fiber.Ctx) error {
	userID := currentUser(c)

	entries, err := h.service.History(c.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
		}
		log.Error().Err(err).Str("user_id", userID.String()).Msg("failed to read loyalty history")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.JSON(fiber.Map{"history": entries})
}

// AddStamp handles POST /api/loyalty/stamps.
func (h *LoyaltyHandler) AddStamp(c *fiber.Ctx) error {
	userID := currentUser(c)

	stamps, err := h.service.AddStamp(c.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
		}
		if errors.Is(err, service.ErrStampsFull) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "stamp card full, claim your reward first"})
		}
		log.Error().Err(err).Str("user_id", userID.String()).Msg("failed to add stamp")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.JSON(fiber.Map{"stamps": stamps})
}

// Claim handles POST /api/loyalty/claim. An optional pity block in the
// body carries the storefront's streak counters.
func (h *LoyaltyHandler) Claim(c *fiber.Ctx) error {
	userID := currentUser(c)

	var req model.ClaimRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
	}

	var pity *rarity.PityState
	if req.Pity != nil {
		pity = &rarity.PityState{
			FirstDraw:      req.Pity.FirstDraw,
			CommonStreak:   req.Pity.CommonStreak,
			DrawsSinceRare: req.Pity.DrawsSinceRare,
		}
	}

	claim, err := h.service.Claim(c.Context(), userID, pity)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
		}
		if errors.Is(err, service.ErrNotEnoughStamps) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "not enough stamps"})
		}
		log.Error().
			Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("user_id", userID.String()).
			Msg("failed to claim loyalty reward")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("code", claim.Coupon.Code).
		Str("rarity", string(claim.Coupon.Rarity)).
		Bool("tier_upgraded", claim.TierUpgraded).
		Msg("loyalty reward claimed")
	return c.Status(fiber.StatusCreated).JSON(claim)
}

// Welcome handles POST /api/loyalty/welcome. Safe to call from every
// sign-in path; a repeat grant returns 200 with granted=false.
func (h *LoyaltyHandler) Welcome(c *fiber.Ctx) error {
	userID := currentUser(c)

	coupon, err := h.service.GrantWelcomeCoupon(c.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
		}
		log.Error().Err(err).Str("user_id", userID.String()).Msg("failed to grant welcome coupon")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	if coupon == nil {
		return c.JSON(fiber.Map{"granted": false})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"granted": true, "coupon": coupon})
}
