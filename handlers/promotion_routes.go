// handlers/promotion_routes.go
package handlers

import (
	"strings"
	"time"

	"promoverse/logger"
	"promoverse/middleware"
	"promoverse/services"
	"promoverse/utils"

	"github.com/gofiber/fiber/v2"
)

func SetupPromotionRoutes(public, secured fiber.Router, svc *Services, log *logger.Logger) {
	// 🔓 Public
	public.Get("/promotions", func(c *fiber.Ctx) error {
		list, err := svc.Promotions.List(c.UserContext(), services.PromotionQuery{
			Category: c.Query("category"),
			Verse:    c.Query("verse"),
			AuthorID: c.Query("author"),
			Boosted:  c.QueryBool("boosted", false),
			Limit:    queryInt(c, "limit", 20),
			Offset:   queryInt(c, "offset", 0),
		})
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(list)
	})

	public.Get("/promotions/:id", func(c *fiber.Ctx) error {
		promo, err := svc.Promotions.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(promo)
	})

	public.Get("/trending", func(c *fiber.Ctx) error {
		items, err := svc.Trending.Trending(c.UserContext(), services.TrendingQuery{
			Verse:    c.Query("verse"),
			Category: c.Query("category"),
			Limit:    queryInt(c, "limit", 20),
		})
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(items)
	})

	public.Get("/boost/tiers", func(c *fiber.Ctx) error {
		return c.JSON(svc.Boosts.Tiers())
	})

	public.Get("/verses", func(c *fiber.Ctx) error {
		list, err := svc.Verses.List(c.UserContext())
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(list)
	})

	public.Get("/verses/:verse/stats", func(c *fiber.Ctx) error {
		stats, err := svc.Verses.Stats(c.UserContext(), c.Params("verse"))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(stats)
	})

	// 🔐 Caller-scoped
	secured.Get("/recommendations", func(c *fiber.Ctx) error {
		recs, err := svc.Recommendations.Recommend(c.UserContext(), middleware.UserID(c), queryInt(c, "limit", 10))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(fiber.Map{"recommendations": recs})
	})

	secured.Post("/promotions", func(c *fiber.Ctx) error {
		userID := middleware.UserID(c)
		in, err := parseCreatePromotion(c)
		if err != nil {
			return badRequest(c, err.Error())
		}

		if fh, ferr := c.FormFile("media"); ferr == nil {
			if svc.Media == nil {
				return badRequest(c, "media uploads are not enabled")
			}
			key, err := utils.MediaKey(userID, fh)
			if err != nil {
				return badRequest(c, err.Error())
			}
			url, err := svc.Media.Upload(c.UserContext(), fh, key)
			if err != nil {
				log.Error("❌ [Promotions] media upload failed", "user_id", userID, "error", err)
				return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "media upload failed"})
			}
			in.MediaURL = url
		}

		promo, err := svc.Promotions.Create(c.UserContext(), userID, in)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(promo)
	})

	secured.Post("/promotions/:id/boost", func(c *fiber.Ctx) error {
		var req struct {
			Level int `json:"level"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
		res, err := svc.Boosts.Boost(c.UserContext(), c.Params("id"), middleware.UserID(c), req.Level)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(fiber.Map{
			"newLevel":         res.NewLevel,
			"remainingBalance": res.RemainingBalance,
			"cost":             res.Cost,
			"multiplier":       res.Multiplier,
			"boostedAt":        res.BoostedAt,
		})
	})

	secured.Post("/promotions/:id/star", func(c *fiber.Ctx) error {
		res, err := svc.Stars.Toggle(c.UserContext(), c.Params("id"), middleware.UserID(c))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(res)
	})
}

// parseCreatePromotion accepts JSON or multipart form bodies.
func parseCreatePromotion(c *fiber.Ctx) (services.CreatePromotionInput, error) {
	var req struct {
		Content   string     `json:"content" form:"content"`
		Category  string     `json:"category" form:"category"`
		Verses    []string   `json:"verses" form:"verses"`
		Status    string     `json:"status" form:"status"`
		PublishAt *time.Time `json:"publish_at"`
	}
	if err := c.BodyParser(&req); err != nil {
		return services.CreatePromotionInput{}, fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if raw := c.FormValue("publish_at"); raw != "" && req.PublishAt == nil {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return services.CreatePromotionInput{}, fiber.NewError(fiber.StatusBadRequest, "publish_at must be RFC3339")
		}
		req.PublishAt = &t
	}
	// multipart sends verses as one comma separated field
	if len(req.Verses) == 1 && strings.Contains(req.Verses[0], ",") {
		req.Verses = strings.Split(req.Verses[0], ",")
	}

	return services.CreatePromotionInput{
		Content:   req.Content,
		Category:  req.Category,
		Verses:    req.Verses,
		Status:    req.Status,
		PublishAt: req.PublishAt,
	}, nil
}
