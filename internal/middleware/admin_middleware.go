package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// RequireSuperuser guards configuration endpoints. It must run after
// ActorMiddleware.
func RequireSuperuser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !CurrentActor(c).IsSuperuser {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   "forbidden",
				"message": "administrator access required",
			})
		}
		return c.Next()
	}
}
