package middleware

import (
	"context"

	common_models "go-workflow/internal/common/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware propagates or mints a request id.
func RequestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDHeader, id)
		c.Locals(common_models.RequestIDKey, id)
		c.SetUserContext(context.WithValue(c.UserContext(), common_models.RequestIDKey, id))
		return c.Next()
	}
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(common_models.RequestIDKey).(string)
	return id
}
