package workflow

import (
	"go-workflow/internal/config"
	"go-workflow/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type CaseApi struct {
	controller *CaseController
	resolver   middleware.ActorResolver
	config     *config.Config
}

func NewCaseApi(controller *CaseController, resolver middleware.ActorResolver, config *config.Config) *CaseApi {
	return &CaseApi{
		controller: controller,
		resolver:   resolver,
		config:     config,
	}
}

func (h *CaseApi) Setup(app *fiber.App) {
	cases := app.Group("/api/cases",
		middleware.AuthMiddleware(h.config.SkipAuth),
		middleware.ActorMiddleware(h.resolver),
	)

	cases.Post("/", h.controller.CreateCase)
	cases.Get("/", h.controller.ListCases)
	cases.Get("/inbox", h.controller.Inbox)
	cases.Get("/:id", h.controller.GetCase)

	cases.Post("/:id/approve", h.controller.Approve)
	cases.Get("/:id/transitions", h.controller.ListTransitions)
	cases.Post("/:id/transitions/:transitionId", h.controller.PerformTransition)
	cases.Get("/:id/actions", h.controller.ListActions)
	cases.Post("/:id/actions", h.controller.PerformAction)

	cases.Patch("/:id/forms/:form", h.controller.UpdateForm)
	cases.Get("/:id/forms/:form/editable-fields", h.controller.EditableFields)
	cases.Get("/:id/next-approvers", h.controller.NextApprovers)
}
