// handlers/wallet_routes.go
package handlers

import (
	"promoverse/logger"
	"promoverse/middleware"
	"promoverse/models"

	"github.com/gofiber/fiber/v2"
)

func SetupWalletRoutes(secured fiber.Router, svc *Services, log *logger.Logger) {
	secured.Get("/wallet", func(c *fiber.Ctx) error {
		userID := middleware.UserID(c)
		balance, err := svc.Ledger.GetBalance(c.UserContext(), userID)
		if err != nil {
			return respondError(c, log, err)
		}
		recent, err := svc.Ledger.History(c.UserContext(), userID, 10)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(fiber.Map{
			"balance":      balance,
			"transactions": recent,
		})
	})

	secured.Get("/wallet/history", func(c *fiber.Ctx) error {
		entries, err := svc.Ledger.History(c.UserContext(), middleware.UserID(c), queryInt(c, "limit", 50))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(entries)
	})

	secured.Post("/wallet/deposit", func(c *fiber.Ctx) error {
		var req struct {
			Amount int64 `json:"amount"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
		balance, err := svc.Ledger.Credit(c.UserContext(), middleware.UserID(c), req.Amount, models.LedgerKindDeposit, "Wallet deposit")
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(fiber.Map{"balance": balance})
	})
}
