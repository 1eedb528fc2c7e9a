package legacy

import (
	"go-workflow/internal/config"
	"go-workflow/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type LegacyApi struct {
	controller *MigrationController
	resolver   middleware.ActorResolver
	config     *config.Config
}

func NewLegacyApi(controller *MigrationController, resolver middleware.ActorResolver, config *config.Config) *LegacyApi {
	return &LegacyApi{
		controller: controller,
		resolver:   resolver,
		config:     config,
	}
}

func (h *LegacyApi) Setup(app *fiber.App) {
	auth := []fiber.Handler{
		middleware.AuthMiddleware(h.config.SkipAuth),
		middleware.ActorMiddleware(h.resolver),
		middleware.RequireSuperuser(),
	}

	app.Post("/api/templates/default/ensure", append(auth, h.controller.EnsureDefaultTemplate)...)
	app.Post("/api/admin/migrations/legacy", append(auth, h.controller.MigrateLegacyCases)...)
}
