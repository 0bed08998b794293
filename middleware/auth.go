// middleware/auth.go
package middleware

import (
	"strings"

	"promoverse/logger"
	"promoverse/services"

	"github.com/gofiber/fiber/v2"
)

const (
	LocalUserID    = "user_id"
	LocalUserRoles = "user_roles"
)

// UserContextMiddleware reads the identity the gateway forwards in X-User-ID / X-User-Roles.
// Requests without an identity are rejected.
func UserContextMiddleware(log *logger.Logger) fiber.Handler {
	if log == nil {
		log = logger.Nop()
	}
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))
		if userID == "" {
			log.Warn("❌ [USER_CTX] X-User-ID required but missing", "path", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID, request must come through gateway with auth context",
			})
		}

		var roles []string
		for _, r := range strings.Split(c.Get("X-User-Roles"), ",") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, r)
			}
		}

		c.Locals(LocalUserID, userID)
		c.Locals(LocalUserRoles, roles)
		return c.Next()
	}
}

// EnsureAccountMiddleware creates the local account for the caller on first sight,
// so ledger and achievement writes always have a row to update.
func EnsureAccountMiddleware(accounts *services.AccountService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := accounts.Ensure(c.UserContext(), UserID(c), c.Get("X-Username")); err != nil {
			accounts.Log.Error("[USER_CTX] ensure account failed", "user_id", UserID(c), "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load account"})
		}
		return c.Next()
	}
}

// RequireRole allows the request only if the caller holds role.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		for _, r := range Roles(c) {
			if r == role {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
	}
}

func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}

func Roles(c *fiber.Ctx) []string {
	roles, _ := c.Locals(LocalUserRoles).([]string)
	return roles
}
