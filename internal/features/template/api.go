package template

import (
	"go-workflow/internal/config"
	"go-workflow/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type TemplateApi struct {
	controller *TemplateController
	resolver   middleware.ActorResolver
	config     *config.Config
}

func NewTemplateApi(controller *TemplateController, resolver middleware.ActorResolver, config *config.Config) *TemplateApi {
	return &TemplateApi{
		controller: controller,
		resolver:   resolver,
		config:     config,
	}
}

func (h *TemplateApi) Setup(app *fiber.App) {
	templates := app.Group("/api/templates",
		middleware.AuthMiddleware(h.config.SkipAuth),
		middleware.ActorMiddleware(h.resolver),
	)

	templates.Get("/", h.controller.ListTemplates)
	templates.Get("/:id", h.controller.GetTemplate)
	templates.Get("/:id/initial-state", h.controller.GetInitialState)

	templates.Post("/", middleware.RequireSuperuser(), h.controller.CreateTemplate)
	templates.Put("/:id", middleware.RequireSuperuser(), h.controller.UpdateTemplate)
	templates.Delete("/:id", middleware.RequireSuperuser(), h.controller.DeleteTemplate)
}
