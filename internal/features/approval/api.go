package approval

import (
	"go-workflow/internal/config"
	"go-workflow/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ApprovalApi struct {
	controller *ApprovalController
	resolver   middleware.ActorResolver
	config     *config.Config
}

func NewApprovalApi(controller *ApprovalController, resolver middleware.ActorResolver, config *config.Config) *ApprovalApi {
	return &ApprovalApi{
		controller: controller,
		resolver:   resolver,
		config:     config,
	}
}

func (h *ApprovalApi) Setup(app *fiber.App) {
	approvals := app.Group("/api/cases/:id/approvals",
		middleware.AuthMiddleware(h.config.SkipAuth),
		middleware.ActorMiddleware(h.resolver),
	)

	approvals.Get("/", h.controller.ListApprovals)
}
