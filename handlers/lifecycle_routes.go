// handlers/lifecycle_routes.go
package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"collectible-admin-system/middleware"
	"collectible-admin-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// StreamConfig controls GET /lifecycle/stream.
type StreamConfig struct {
	Token      string
	PollPeriod time.Duration
}

type advanceRequest struct {
	ExpectedVersion *int64 `json:"expected_version"`
}

type durationRequest struct {
	Days *float64 `json:"days"`
}

type growthRequest struct {
	Percent *decimal.Decimal `json:"percent"`
}

type saleRequest struct {
	Count   int64           `json:"count"`
	Revenue decimal.Decimal `json:"revenue"`
}

type inventoryRequest struct {
	Count int64 `json:"count"`
}

func SetupLifecycleRoutes(app *fiber.App, ctrl *services.LifecycleController, stream StreamConfig) {
	user := middleware.UserContextMiddleware()
	admin := middleware.RequireRole(middleware.AdminRole)

	// 📡 Live status for dashboards (EventSource, token in query)
	app.Get("/lifecycle/stream", middleware.SSEAuthMiddleware(stream.Token), func(c *fiber.Ctx) error {
		return streamStatus(c, ctrl, stream.PollPeriod)
	})

	// 🔐 Read routes: any authenticated user
	app.Get("/lifecycle/status", user, func(c *fiber.Ctx) error {
		status, err := ctrl.Status(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(status)
	})

	app.Get("/lifecycle/current", user, func(c *fiber.Ctx) error {
		pos, err := ctrl.Current(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(pos)
	})

	// 🛠️ Admin routes
	app.Post("/lifecycle/initialize", user, admin, func(c *fiber.Ctx) error {
		pos, err := ctrl.Initialize(actorContext(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"position": pos})
	})

	app.Post("/lifecycle/advance", user, admin, func(c *fiber.Ctx) error {
		var req advanceRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return badRequest(c, "invalid_body", "body must be JSON: {\"expected_version\": <int>}")
			}
		}
		if v := c.Query("expected_version"); v != "" && req.ExpectedVersion == nil {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return badRequest(c, "invalid_version", "expected_version must be an integer")
			}
			req.ExpectedVersion = &n
		}

		var res *services.AdvanceResult
		var err error
		if req.ExpectedVersion != nil {
			res, err = ctrl.AdvanceFrom(actorContext(c), *req.ExpectedVersion)
		} else {
			res, err = ctrl.Advance(actorContext(c))
		}
		if errors.Is(err, services.ErrLifecycleExhausted) && res != nil {
			body := errorBody(err)
			body["result"] = res
			return c.Status(fiber.StatusConflict).JSON(body)
		}
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})

	app.Post("/lifecycle/pause", user, admin, func(c *fiber.Ctx) error {
		state, err := ctrl.Pause(actorContext(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(state)
	})

	app.Post("/lifecycle/resume", user, admin, func(c *fiber.Ctx) error {
		state, err := ctrl.Resume(actorContext(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(state)
	})

	app.Put("/lifecycle/phases/:phase/duration", user, admin, func(c *fiber.Ctx) error {
		phase, err := c.ParamsInt("phase")
		if err != nil {
			return badRequest(c, "invalid_phase", "phase must be an integer")
		}
		days, ok := parseDays(c)
		if !ok {
			return badRequest(c, "invalid_body", "body must be JSON: {\"days\": <number>}")
		}
		updated, err := ctrl.SetPhaseDuration(actorContext(c), phase, days)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"updated": updated})
	})

	app.Put("/lifecycle/series/:series/phases/:phase/duration", user, admin, func(c *fiber.Ctx) error {
		series, err := c.ParamsInt("series")
		if err != nil {
			return badRequest(c, "invalid_series", "series must be an integer")
		}
		phase, err := c.ParamsInt("phase")
		if err != nil {
			return badRequest(c, "invalid_phase", "phase must be an integer")
		}
		days, ok := parseDays(c)
		if !ok {
			return badRequest(c, "invalid_body", "body must be JSON: {\"days\": <number>}")
		}
		updated, err := ctrl.SetSeriesPhaseDuration(actorContext(c), series, phase, days)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(updated)
	})

	app.Put("/lifecycle/series-growth", user, admin, func(c *fiber.Ctx) error {
		var req growthRequest
		if err := c.BodyParser(&req); err != nil || req.Percent == nil {
			return badRequest(c, "invalid_body", "body must be JSON: {\"percent\": <number>}")
		}
		settings, err := ctrl.SetSeriesMultiplierGrowth(actorContext(c), *req.Percent)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(settings)
	})

	app.Post("/lifecycle/sales", user, admin, func(c *fiber.Ctx) error {
		var req saleRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid_body", "body must be JSON: {\"count\": <int>, \"revenue\": <number>}")
		}
		totals, err := ctrl.RecordSale(actorContext(c), req.Count, req.Revenue)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(totals)
	})

	app.Post("/lifecycle/inventory", user, admin, func(c *fiber.Ctx) error {
		var req inventoryRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid_body", "body must be JSON: {\"count\": <int>}")
		}
		totals, err := ctrl.RegisterInventory(actorContext(c), req.Count)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(totals)
	})
}

func actorContext(c *fiber.Ctx) context.Context {
	return services.WithActor(c.UserContext(), middleware.UserID(c))
}

func parseDays(c *fiber.Ctx) (float64, bool) {
	var req durationRequest
	if err := c.BodyParser(&req); err != nil || req.Days == nil {
		return 0, false
	}
	return *req.Days, true
}

// streamStatus pushes a status event whenever the pointer version moves.
func streamStatus(c *fiber.Ctx, ctrl *services.LifecycleController, period time.Duration) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	done := c.Context().Done()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		lastVersion := int64(-1)
		send := func() bool {
			ctx, cancel := context.WithTimeout(context.Background(), period)
			defer cancel()

			pos, err := ctrl.Current(ctx)
			if err != nil {
				log.Warn().Err(err).Str("component", "http").Msg("status stream poll failed")
				return true
			}
			if pos.Version == lastVersion {
				// keepalive comment
				_, _ = w.WriteString(":\n\n")
				return w.Flush() == nil
			}
			status, err := ctrl.Status(ctx)
			if err != nil {
				log.Warn().Err(err).Str("component", "http").Msg("status stream read failed")
				return true
			}
			payload, _ := json.Marshal(status)
			fmt.Fprintf(w, "id: %d\nevent: status\ndata: %s\n\n", status.Position.Version, payload)
			if err := w.Flush(); err != nil {
				// client disconnected
				return false
			}
			lastVersion = status.Position.Version
			return true
		}

		if !send() {
			return
		}
		for {
			select {
			case <-ticker.C:
				if !send() {
					return
				}
			case <-done:
				return
			}
		}
	})
	return nil
}
