package audit

import (
	"go-workflow/internal/config"
	"go-workflow/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type AuditApi struct {
	controller *AuditController
	resolver   middleware.ActorResolver
	config     *config.Config
}

func NewAuditApi(controller *AuditController, resolver middleware.ActorResolver, config *config.Config) *AuditApi {
	return &AuditApi{
		controller: controller,
		resolver:   resolver,
		config:     config,
	}
}

func (h *AuditApi) Setup(app *fiber.App) {
	audit := app.Group("/api/audit-logs",
		middleware.AuthMiddleware(h.config.SkipAuth),
		middleware.ActorMiddleware(h.resolver),
		middleware.RequireSuperuser(),
	)

	audit.Get("/", h.controller.ListLogs)
}
