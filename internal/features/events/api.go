package events

import (
	"context"

	common_api "go-workflow/internal/common/api"
	"go-workflow/internal/common/errs"
	common_models "go-workflow/internal/common/models"
	"go-workflow/internal/config"
	"go-workflow/internal/middleware"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ViewGuard decides whether an actor may follow a case.
type ViewGuard interface {
	EnsureCanView(ctx context.Context, actor common_models.Actor, caseID primitive.ObjectID) error
}

type EventsApi struct {
	controller *EventsController
	resolver   middleware.ActorResolver
	guard      ViewGuard
	config     *config.Config
}

func NewEventsApi(controller *EventsController, resolver middleware.ActorResolver, guard ViewGuard, config *config.Config) *EventsApi {
	return &EventsApi{
		controller: controller,
		resolver:   resolver,
		guard:      guard,
		config:     config,
	}
}

func (h *EventsApi) Setup(app *fiber.App) {
	app.Get("/api/ws/cases",
		tokenFromQuery,
		middleware.AuthMiddleware(h.config.SkipAuth),
		middleware.ActorMiddleware(h.resolver),
		h.authorizeStream,
		requireUpgrade,
		websocket.New(h.controller.StreamCases),
	)
}

// tokenFromQuery accepts ?token= since browsers cannot set headers on a
// websocket handshake.
func tokenFromQuery(c *fiber.Ctx) error {
	if c.Get(fiber.HeaderAuthorization) == "" {
		if token := c.Query("token"); token != "" {
			c.Request().Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
		}
	}
	return c.Next()
}

func requireUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return c.Next()
}

// authorizeStream lets case viewers follow one case. The unfiltered
// stream is reserved for superusers.
func (h *EventsApi) authorizeStream(c *fiber.Ctx) error {
	actor := middleware.CurrentActor(c)
	raw := c.Query("case_id")
	if raw == "" {
		if !actor.IsSuperuser {
			return common_api.RespondError(c, h.controller.Log, errs.Forbidden("streaming all cases requires administrator access"))
		}
		return c.Next()
	}
	oid, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return common_api.RespondError(c, h.controller.Log, errs.NotFound("case", raw))
	}
	if err := h.guard.EnsureCanView(c.UserContext(), actor, oid); err != nil {
		return common_api.RespondError(c, h.controller.Log, err)
	}
	return c.Next()
}
