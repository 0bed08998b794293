// handlers/achievement_routes.go
package handlers

import (
	"promoverse/logger"
	"promoverse/middleware"
	"promoverse/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAchievementRoutes(public, secured fiber.Router, svc *Services, log *logger.Logger) {
	public.Get("/achievements", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"achievements": svc.Achievements.Definitions(),
			"ranks":        services.CosmicRanks(),
		})
	})

	public.Get("/users/:id", func(c *fiber.Ctx) error {
		view, err := svc.Accounts.Profile(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(view)
	})

	public.Get("/users/:id/achievements", func(c *fiber.Ctx) error {
		progress, metrics, err := svc.Achievements.Progress(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(fiber.Map{
			"achievements": progress,
			"metrics":      metrics,
		})
	})

	secured.Get("/me", func(c *fiber.Ctx) error {
		view, err := svc.Accounts.Profile(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(view)
	})
}
