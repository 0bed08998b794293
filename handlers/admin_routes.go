// handlers/admin_routes.go
package handlers

import (
	"promoverse/logger"

	"github.com/gofiber/fiber/v2"
)

// SetupAdminRoutes registers moderation endpoints. The router must already enforce the admin role.
func SetupAdminRoutes(admin fiber.Router, svc *Services, log *logger.Logger) {
	admin.Post("/promotions/:id/deboost", func(c *fiber.Ctx) error {
		if err := svc.Boosts.Deboost(c.UserContext(), c.Params("id")); err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(fiber.Map{"message": "promotion deboosted", "id": c.Params("id")})
	})

	admin.Post("/promotions/:id/flag", func(c *fiber.Ctx) error {
		if err := svc.Promotions.SetFlagged(c.UserContext(), c.Params("id"), true); err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(fiber.Map{"message": "promotion flagged", "id": c.Params("id")})
	})

	admin.Post("/promotions/:id/unflag", func(c *fiber.Ctx) error {
		if err := svc.Promotions.SetFlagged(c.UserContext(), c.Params("id"), false); err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(fiber.Map{"message": "promotion unflagged", "id": c.Params("id")})
	})

	admin.Get("/accounts", func(c *fiber.Ctx) error {
		list, err := svc.Accounts.Search(c.UserContext(), c.Query("q"), queryInt(c, "limit", 50))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(list)
	})

	admin.Get("/ledger/:accountId/audit", func(c *fiber.Ctx) error {
		res, err := svc.Ledger.Audit(c.UserContext(), c.Params("accountId"))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(res)
	})

	admin.Post("/accounts/:id/evaluate", func(c *fiber.Ctx) error {
		newly, err := svc.Achievements.EvaluateAccount(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(fiber.Map{"newly_completed": newly})
	})

	admin.Post("/publish-due", func(c *fiber.Ctx) error {
		n, err := svc.Promotions.PublishDue(c.UserContext())
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(fiber.Map{"published": n})
	})
}
