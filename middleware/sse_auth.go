// middleware/sse_auth.go
package middleware

import (
	"strings"

	"promoverse/logger"
	"promoverse/services"

	"github.com/gofiber/fiber/v2"
)

// SSEAuthMiddleware authenticates EventSource clients, which cannot set headers,
// from the `token` and `device_id` query params via the auth service.
//
// Usage:
//
//	app.Get("/notifications/stream", middleware.SSEAuthMiddleware(authClient, log), h.Stream)
func SSEAuthMiddleware(authClient *services.AuthServiceClient, log *logger.Logger) fiber.Handler {
	if log == nil {
		log = logger.Nop()
	}
	return func(c *fiber.Ctx) error {
		accessToken := strings.TrimSpace(c.Query("token"))
		deviceID := strings.TrimSpace(c.Query("device_id"))
		if accessToken == "" || deviceID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Missing token or device_id in query",
			})
		}

		resp, err := authClient.ValidateToken(c.UserContext(), accessToken, deviceID)
		if err != nil {
			log.Warn("[SSEAuth] ❌ validation failed", "device_id", deviceID, "error", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		c.Locals(LocalUserID, resp.UserID)
		c.Locals(LocalUserRoles, resp.Roles)
		return c.Next()
	}
}
