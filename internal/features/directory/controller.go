package directory

import (
	common_api "go-workflow/internal/common/api"
	"go-workflow/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type DirectoryController struct {
	Service DirectoryService
	Log     *zap.Logger
}

func NewDirectoryController(service DirectoryService, log *zap.Logger) *DirectoryController {
	return &DirectoryController{Service: service, Log: log}
}

// Me godoc
// @Summary Resolved identity of the caller
// @Tags directory
// @Produce json
// @Success 200 {object} models.Actor
// @Router /api/directory/me [get]
func (c *DirectoryController) Me(ctx *fiber.Ctx) error {
	return ctx.JSON(middleware.CurrentActor(ctx))
}

// ListMembers godoc
// @Summary List directory members
// @Tags directory
// @Produce json
// @Success 200 {array} Member
// @Router /api/directory/members [get]
func (c *DirectoryController) ListMembers(ctx *fiber.Ctx) error {
	members, err := c.Service.ListMembers(ctx.UserContext())
	if err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	if members == nil {
		members = []Member{}
	}
	return ctx.JSON(members)
}

// UpsertMember godoc
// @Summary Create or replace a directory member
// @Tags directory
// @Accept json
// @Produce json
// @Param member body Member true "Member"
// @Success 200 {object} Member
// @Router /api/directory/members [put]
func (c *DirectoryController) UpsertMember(ctx *fiber.Ctx) error {
	var m Member
	if err := ctx.BodyParser(&m); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body", "message": "Invalid request body"})
	}
	if err := c.Service.UpsertMember(ctx.UserContext(), &m); err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	return ctx.JSON(m)
}
