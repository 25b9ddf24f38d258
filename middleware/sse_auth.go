// middleware/sse_auth.go
package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// SSEAuthMiddleware authenticates EventSource clients, which cannot set
// headers, from the `token` query parameter. The Authorization header is
// still honoured when present.
//
// Usage:
//
//	app.Get("/lifecycle/stream", middleware.SSEAuthMiddleware(token), handler)
func SSEAuthMiddleware(expectedToken string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := strings.TrimSpace(c.Query("token"))
		if token == "" {
			token = strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		}
		if token == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "missing token in query",
			})
		}
		if !TokenMatches(token, expectedToken) {
			log.Warn().Str("component", "http").Str("ip", c.IP()).Msg("❌ [SSEAuth] invalid stream token")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		return c.Next()
	}
}
