package approval

import (
	common_api "go-workflow/internal/common/api"
	"go-workflow/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type ApprovalController struct {
	Service ApprovalService
	Log     *zap.Logger
}

func NewApprovalController(service ApprovalService, log *zap.Logger) *ApprovalController {
	return &ApprovalController{
		Service: service,
		Log:     log,
	}
}

// ListApprovals godoc
// @Summary List the approval ledger of a case
// @Tags approvals
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {array} ApprovalRecord
// @Failure 403 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/cases/{id}/approvals [get]
func (c *ApprovalController) ListApprovals(ctx *fiber.Ctx) error {
	ledger, err := c.Service.ListForCase(ctx.UserContext(), middleware.CurrentActor(ctx), ctx.Params("id"))
	if err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	return ctx.JSON(ledger)
}
