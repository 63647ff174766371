package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// userIDKey is the fiber.Locals key holding the authenticated user id.
const userIDKey = "userID"

// RequireUser extracts the authenticated user id from the X-User-ID
// header. Authentication itself happens upstream (gateway middleware);
// this core trusts the identifier it is handed.
func RequireUser(c *fiber.Ctx) error {
	raw := c.Get("X-User-ID")
	if raw == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user identity"})
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid user identity"})
	}
	c.Locals(userIDKey, userID)
	return c.Next()
}

// currentUser returns the user id stored by RequireUser.
func currentUser(c *fiber.Ctx) uuid.UUID {
	userID, _ := c.Locals(userIDKey).(uuid.UUID)
	return userID
}
