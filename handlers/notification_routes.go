// handlers/notification_routes.go
package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"promoverse/logger"
	"promoverse/middleware"
	"promoverse/services"

	"github.com/gofiber/fiber/v2"
)

const sseKeepAlive = 15 * time.Second

func SetupNotificationRoutes(secured fiber.Router, svc *Services, log *logger.Logger) {
	secured.Get("/notifications", func(c *fiber.Ctx) error {
		list, err := svc.Notifications.List(c.UserContext(), middleware.UserID(c), c.QueryBool("unread", false))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(list)
	})

	secured.Post("/notifications/read-all", func(c *fiber.Ctx) error {
		n, err := svc.Notifications.MarkAllRead(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(fiber.Map{"updated": n})
	})

	secured.Post("/notifications/:id/read", func(c *fiber.Ctx) error {
		if err := svc.Notifications.MarkRead(c.UserContext(), middleware.UserID(c), c.Params("id")); err != nil {
			return respondError(c, log, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

// streamNotifications pushes the caller's new notifications as server-sent events.
func streamNotifications(notes *services.NotificationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := middleware.UserID(c)

		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("X-Accel-Buffering", "no") // nginx

		feed, cancel := notes.Subscribe(userID)
		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			defer cancel()
			ticker := time.NewTicker(sseKeepAlive)
			defer ticker.Stop()

			_, _ = w.WriteString(":\n\n")
			if err := w.Flush(); err != nil {
				return
			}

			for {
				select {
				case n := <-feed:
					payload, err := json.Marshal(n)
					if err != nil {
						continue
					}
					fmt.Fprintf(w, "event: notification\ndata: %s\n\n", payload)
				case <-ticker.C:
					_, _ = w.WriteString(":\n\n")
				}
				// a failed flush means the client went away
				if err := w.Flush(); err != nil {
					return
				}
			}
		})
		return nil
	}
}
