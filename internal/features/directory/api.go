package directory

import (
	"go-workflow/internal/config"
	"go-workflow/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type DirectoryApi struct {
	controller *DirectoryController
	service    DirectoryService
	config     *config.Config
}

func NewDirectoryApi(controller *DirectoryController, service DirectoryService, config *config.Config) *DirectoryApi {
	return &DirectoryApi{
		controller: controller,
		service:    service,
		config:     config,
	}
}

func (h *DirectoryApi) Setup(app *fiber.App) {
	dir := app.Group("/api/directory",
		middleware.AuthMiddleware(h.config.SkipAuth),
		middleware.ActorMiddleware(h.service),
	)

	dir.Get("/me", h.controller.Me)
	dir.Get("/members", middleware.RequireSuperuser(), h.controller.ListMembers)
	dir.Put("/members", middleware.RequireSuperuser(), h.controller.UpsertMember)
}
