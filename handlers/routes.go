// handlers/routes.go
package handlers

import (
	"context"
	"mime/multipart"

	"promoverse/logger"
	"promoverse/middleware"
	"promoverse/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// MediaUploader stores an uploaded file and returns its public URL.
type MediaUploader interface {
	Upload(ctx context.Context, fileHeader *multipart.FileHeader, key string) (string, error)
}

// Services bundles everything the HTTP layer talks to.
type Services struct {
	DB              *gorm.DB
	Accounts        *services.AccountService
	Ledger          *services.LedgerService
	Boosts          *services.BoostService
	Trending        *services.TrendingService
	Recommendations *services.RecommendationService
	Analytics       *services.AnalyticsService
	Verses          *services.VerseService
	Achievements    *services.AchievementService
	Promotions      *services.PromotionService
	Stars           *services.StarService
	Notifications   *services.NotificationService
	AuthClient      *services.AuthServiceClient // optional, enables the SSE stream
	Media           MediaUploader               // optional, enables uploads
}

// SetupRoutes registers every route. Public routes sit at the root, caller-scoped
// routes under /s and moderation under /s/admin, matching the gateway's forwarding.
func SetupRoutes(app *fiber.App, svc *Services, log *logger.Logger) {
	if log == nil {
		log = logger.Nop()
	}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		sqlDB, err := svc.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "db unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	if svc.AuthClient != nil {
		app.Get("/notifications/stream",
			middleware.SSEAuthMiddleware(svc.AuthClient, log),
			middleware.EnsureAccountMiddleware(svc.Accounts),
			streamNotifications(svc.Notifications),
		)
	}

	public := app.Group("")
	secured := app.Group("/s", middleware.UserContextMiddleware(log), middleware.EnsureAccountMiddleware(svc.Accounts))
	admin := secured.Group("/admin", middleware.RequireRole("admin"))

	SetupPromotionRoutes(public, secured, svc, log)
	SetupAnalyticsRoutes(public, secured, svc, log)
	SetupWalletRoutes(secured, svc, log)
	SetupAchievementRoutes(public, secured, svc, log)
	SetupNotificationRoutes(secured, svc, log)
	SetupAdminRoutes(admin, svc, log)
}
