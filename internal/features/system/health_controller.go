package system

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger is satisfied by the Mongo client.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	DB      Pinger
	Started time.Time
}

func NewHealthController(db Pinger) *HealthController {
	return &HealthController{DB: db, Started: time.Now()}
}

// Live godoc
// @Summary Liveness probe
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (c *HealthController) Live(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{
		"status": "ok",
		"uptime": time.Since(c.Started).Round(time.Second).String(),
	})
}

// Ready godoc
// @Summary Readiness probe
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /ready [get]
func (c *HealthController) Ready(ctx *fiber.Ctx) error {
	pingCtx, cancel := context.WithTimeout(ctx.UserContext(), 2*time.Second)
	defer cancel()

	if err := c.DB.Ping(pingCtx); err != nil {
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"status": "ready"})
}
