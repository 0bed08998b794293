// handlers/analytics_routes.go
package handlers

import (
	"errors"

	"promoverse/logger"
	"promoverse/services"

	"github.com/gofiber/fiber/v2"
)

type analyticsEventRequest struct {
	Type    string   `json:"type"`
	VerseID *string  `json:"verseId"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
}

func (r analyticsEventRequest) input() (services.EventInput, error) {
	in := services.EventInput{Kind: services.EventKind(r.Type), Verse: r.VerseID}
	switch {
	case r.Lat != nil && r.Lon != nil:
		in.Location = &services.Location{Lat: *r.Lat, Lon: *r.Lon}
	case r.Lat != nil || r.Lon != nil:
		return in, services.ErrInvalidEvent
	}
	return in, nil
}

func SetupAnalyticsRoutes(public, secured fiber.Router, svc *Services, log *logger.Logger) {
	// Views come from anonymous readers too, so recording is public.
	public.Post("/analytics/:id", func(c *fiber.Ctx) error {
		var req analyticsEventRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
		in, err := req.input()
		if err != nil {
			return respondError(c, log, err)
		}

		counters, err := svc.Analytics.RecordEvent(c.UserContext(), c.Params("id"), in)
		if errors.Is(err, services.ErrStoreFailure) {
			// telemetry is best effort
			log.Warn("⚠️ [Analytics] event dropped", "promotion_id", c.Params("id"), "type", req.Type, "error", err)
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"recorded": false})
		}
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(fiber.Map{
			"recorded": true,
			"views":    counters.Views,
			"clicks":   counters.Clicks,
		})
	})

	secured.Get("/analytics/:id", func(c *fiber.Ctx) error {
		snap, err := svc.Analytics.GetAnalytics(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(snap)
	})
}
