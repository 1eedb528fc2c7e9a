package middleware

import (
	"context"

	"go-workflow/internal/common/errs"
	common_models "go-workflow/internal/common/models"
	"go-workflow/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

type ActorResolver interface {
	ResolveActor(ctx context.Context, userID, username string) (common_models.Actor, error)
}

// ActorMiddleware turns validated claims into a directory-backed Actor and
// stores it both in Locals and in the request's user context.
func ActorMiddleware(resolver ActorResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals(utils.UserClaimsKey).(*utils.UserClaims)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
		}

		actor, err := resolver.ResolveActor(c.UserContext(), claims.UserID, claims.Username)
		if err != nil {
			if errs.IsForbidden(err) {
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": err.Error()})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_error"})
		}

		c.Locals(common_models.ActorKey, actor)
		c.SetUserContext(context.WithValue(c.UserContext(), common_models.ActorKey, actor))
		return c.Next()
	}
}

// CurrentActor returns the actor stored by ActorMiddleware.
func CurrentActor(c *fiber.Ctx) common_models.Actor {
	actor, _ := c.Locals(common_models.ActorKey).(common_models.Actor)
	return actor
}

// ActorFromContext reads the actor from a request-scoped context.
func ActorFromContext(ctx context.Context) (common_models.Actor, bool) {
	actor, ok := ctx.Value(common_models.ActorKey).(common_models.Actor)
	return actor, ok
}
