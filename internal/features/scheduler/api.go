package scheduler

import (
	"go-workflow/internal/config"
	"go-workflow/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type SchedulerApi struct {
	controller *SchedulerController
	resolver   middleware.ActorResolver
	config     *config.Config
}

func NewSchedulerApi(controller *SchedulerController, resolver middleware.ActorResolver, config *config.Config) *SchedulerApi {
	return &SchedulerApi{
		controller: controller,
		resolver:   resolver,
		config:     config,
	}
}

func (h *SchedulerApi) Setup(app *fiber.App) {
	jobs := app.Group("/api/admin/jobs",
		middleware.AuthMiddleware(h.config.SkipAuth),
		middleware.ActorMiddleware(h.resolver),
		middleware.RequireSuperuser(),
	)

	jobs.Get("/", h.controller.ListJobs)
	jobs.Post("/:name/run", h.controller.RunJob)
}
