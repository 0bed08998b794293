// middleware/gateway.go
package middleware

import (
	"strings"

	"promoverse/logger"

	"github.com/gofiber/fiber/v2"
)

// GatewayAuthMiddleware accepts only requests carrying the gateway's service token
// as "Authorization: Bearer <token>". Paths in open are let through untouched.
func GatewayAuthMiddleware(expectedToken string, log *logger.Logger, open ...string) fiber.Handler {
	if log == nil {
		log = logger.Nop()
	}
	if expectedToken == "" {
		log.Fatal("❌ SERVICE_TOKEN is not set, service cannot authenticate Gateway")
	}
	skip := make(map[string]struct{}, len(open))
	for _, p := range open {
		skip[p] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		if _, ok := skip[c.Path()]; ok {
			return c.Next()
		}

		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			log.Warn("🚫 [GATEWAY_AUTH] missing Authorization header", "path", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "gateway authentication token missing",
			})
		}

		// raw token is accepted too
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token != expectedToken {
			log.Warn("❌ [GATEWAY_AUTH] invalid token", "path", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid gateway authentication token",
			})
		}
		return c.Next()
	}
}
