package legacy

import (
	common_api "go-workflow/internal/common/api"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type MigrationController struct {
	Service MigrationService
	Log     *zap.Logger
}

func NewMigrationController(service MigrationService, log *zap.Logger) *MigrationController {
	return &MigrationController{
		Service: service,
		Log:     log,
	}
}

// EnsureDefaultTemplate godoc
// @Summary Create the property acquisition template if missing
// @Tags templates
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/templates/default/ensure [post]
func (c *MigrationController) EnsureDefaultTemplate(ctx *fiber.Ctx) error {
	tpl, created, err := c.Service.EnsureTemplate(ctx.UserContext())
	if err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return ctx.Status(status).JSON(fiber.Map{"template": tpl, "created": created})
}

// MigrateLegacyCases godoc
// @Summary Bind template-less cases to the property acquisition template
// @Tags admin
// @Produce json
// @Param dry_run query bool false "Report without writing"
// @Success 200 {object} MigrationReport
// @Router /api/admin/migrations/legacy [post]
func (c *MigrationController) MigrateLegacyCases(ctx *fiber.Ctx) error {
	report, err := c.Service.Migrate(ctx.UserContext(), ctx.QueryBool("dry_run", false))
	if err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	return ctx.JSON(report)
}
