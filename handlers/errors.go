// handlers/errors.go
package handlers

import (
	"errors"

	"collectible-admin-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

func statusFor(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation:
		return fiber.StatusBadRequest
	case services.KindNotFound:
		return fiber.StatusNotFound
	case services.KindStateConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// errorBody renders a LifecycleError as {"error", "kind", "message"}.
// Storage failures also carry the underlying cause.
func errorBody(err error) fiber.Map {
	kind := services.KindOf(err)
	body := fiber.Map{
		"error":   services.CodeOf(err),
		"kind":    kind,
		"message": err.Error(),
	}
	var le *services.LifecycleError
	if errors.As(err, &le) && le.Message != "" {
		body["message"] = le.Message
		if le.Err != nil {
			body["cause"] = le.Err.Error()
		}
	}
	return body
}

func respondError(c *fiber.Ctx, err error) error {
	status := statusFor(services.KindOf(err))
	if status >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("component", "http").Str("path", c.Path()).Msg("❌ request failed")
	}
	return c.Status(status).JSON(errorBody(err))
}

func badRequest(c *fiber.Ctx, code, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   code,
		"kind":    services.KindValidation,
		"message": message,
	})
}
