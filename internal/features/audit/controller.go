package audit

import (
	"strconv"

	common_api "go-workflow/internal/common/api"
	"go-workflow/internal/common/errs"
	common_models "go-workflow/internal/common/models"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type AuditController struct {
	Service AuditService
	Log     *zap.Logger
}

func NewAuditController(service AuditService, log *zap.Logger) *AuditController {
	return &AuditController{Service: service, Log: log}
}

// ListLogs godoc
// @Summary List case actions across all cases
// @Tags audit
// @Produce json
// @Param case_id query string false "Case ID"
// @Param action_type query string false "APPROVE, UPLOAD, COMMENT or TRANSITION"
// @Param performer query string false "User ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {array} Action
// @Router /api/audit-logs [get]
func (ctrl *AuditController) ListLogs(c *fiber.Ctx) error {
	page, _ := strconv.ParseInt(c.Query("page", "1"), 10, 64)
	limit, _ := strconv.ParseInt(c.Query("limit", "20"), 10, 64)

	f := Filter{
		ActionType: common_models.ActionType(c.Query("action_type")),
		Performer:  c.Query("performer"),
	}
	if raw := c.Query("case_id"); raw != "" {
		oid, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return common_api.RespondError(c, ctrl.Log, errs.Validation("invalid_case_id", "case_id must be an object id"))
		}
		f.CaseID = oid
	}

	logs, err := ctrl.Service.List(c.UserContext(), f, page, limit)
	if err != nil {
		return common_api.RespondError(c, ctrl.Log, err)
	}
	return c.JSON(logs)
}
