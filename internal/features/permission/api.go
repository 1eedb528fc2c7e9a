package permission

import (
	"go-workflow/internal/config"
	"go-workflow/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type PermissionApi struct {
	Controller *PermissionController
	resolver   middleware.ActorResolver
	config     *config.Config
}

func NewPermissionApi(controller *PermissionController, resolver middleware.ActorResolver, config *config.Config) *PermissionApi {
	return &PermissionApi{
		Controller: controller,
		resolver:   resolver,
		config:     config,
	}
}

func (a *PermissionApi) Setup(app *fiber.App) {
	api := app.Group("/api")
	RegisterRoutes(api, a.Controller, a.resolver, a.config)
}

// RegisterRoutes registers all permission-related routes
func RegisterRoutes(api fiber.Router, ctrl *PermissionController, resolver middleware.ActorResolver, config *config.Config) {
	permissions := api.Group("/permissions",
		middleware.AuthMiddleware(config.SkipAuth),
		middleware.ActorMiddleware(resolver),
	)

	permissions.Post("/check", ctrl.Check)
	permissions.Post("/filter", ctrl.Filter)
	permissions.Get("/editable-fields", ctrl.EditableFields)

	admin := middleware.RequireSuperuser()
	permissions.Post("/grants", admin, ctrl.CreateGrant)
	permissions.Get("/grants", admin, ctrl.ListGrants)
	permissions.Patch("/grants/:id", admin, ctrl.SetGrantActive)
	permissions.Post("/overrides", admin, ctrl.CreateOverride)
	permissions.Get("/overrides", admin, ctrl.ListOverrides)
	permissions.Delete("/overrides/:id", admin, ctrl.RevokeOverride)
}
