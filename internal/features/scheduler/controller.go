package scheduler

import (
	common_api "go-workflow/internal/common/api"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type SchedulerController struct {
	Service SchedulerService
	Log     *zap.Logger
}

func NewSchedulerController(service SchedulerService, log *zap.Logger) *SchedulerController {
	return &SchedulerController{
		Service: service,
		Log:     log,
	}
}

// ListJobs godoc
// @Summary List maintenance jobs
// @Tags admin
// @Produce json
// @Success 200 {array} JobStatus
// @Router /api/admin/jobs [get]
func (c *SchedulerController) ListJobs(ctx *fiber.Ctx) error {
	return ctx.JSON(c.Service.Jobs())
}

// RunJob godoc
// @Summary Run a maintenance job now
// @Tags admin
// @Produce json
// @Param name path string true "Job name"
// @Success 200 {object} JobStatus
// @Failure 404 {object} map[string]string "Unknown job"
// @Router /api/admin/jobs/{name}/run [post]
func (c *SchedulerController) RunJob(ctx *fiber.Ctx) error {
	status, err := c.Service.RunNow(ctx.UserContext(), ctx.Params("name"))
	if err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	return ctx.JSON(status)
}
