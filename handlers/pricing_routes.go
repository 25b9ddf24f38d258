// handlers/pricing_routes.go
package handlers

import (
	"strconv"

	"collectible-admin-system/middleware"
	"collectible-admin-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupPricingRoutes(app *fiber.App, pricing *services.PricingService) {
	user := middleware.UserContextMiddleware()
	admin := middleware.RequireRole(middleware.AdminRole)

	// 🔓 Quotes: Gateway auth only, storefront calls these
	app.Get("/pricing/quote", func(c *fiber.Ctx) error {
		raw := c.Query("score")
		if raw == "" {
			return badRequest(c, "missing_score", "score query parameter is required")
		}
		score, err := strconv.Atoi(raw)
		if err != nil {
			return badRequest(c, "invalid_score", "score must be an integer")
		}
		q, err := pricing.Quote(c.UserContext(), score, c.Query("category"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(q)
	})

	app.Get("/items/:id/price", func(c *fiber.Ctx) error {
		q, err := pricing.QuoteItem(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(q)
	})

	app.Get("/pricing/tiers", func(c *fiber.Ctx) error {
		tiers := pricing.Calc.Tiers()
		lo, hi := tiers.ScoreRange()
		return c.JSON(fiber.Map{
			"score_range": fiber.Map{"min": lo, "max": hi},
			"bands":       tiers.Bands(),
			"currency":    pricing.Calc.Currency(),
			"places":      pricing.Calc.Places(),
		})
	})

	// 🛠️ Settings
	app.Get("/pricing/settings", user, func(c *fiber.Ctx) error {
		settings, err := pricing.Settings(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(settings)
	})

	app.Put("/pricing/settings", user, admin, func(c *fiber.Ctx) error {
		var req services.SettingsUpdate
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid_body", "body must be JSON: {\"base_price_per_point\": <number>, \"category_overrides\": {...}}")
		}
		settings, err := pricing.UpdateSettings(c.UserContext(), req)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(settings)
	})
}
