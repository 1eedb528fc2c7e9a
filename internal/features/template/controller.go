package template

import (
	common_api "go-workflow/internal/common/api"
	"go-workflow/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type TemplateController struct {
	Service TemplateService
	Log     *zap.Logger
}

func NewTemplateController(service TemplateService, log *zap.Logger) *TemplateController {
	return &TemplateController{
		Service: service,
		Log:     log,
	}
}

// CreateTemplate godoc
// @Summary Create a workflow template
// @Tags templates
// @Accept json
// @Produce json
// @Param template body Template true "Template"
// @Success 201 {object} Template
// @Failure 400 {object} map[string]string "Invalid template"
// @Router /api/templates [post]
func (c *TemplateController) CreateTemplate(ctx *fiber.Ctx) error {
	var input Template
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	actor := middleware.CurrentActor(ctx)
	if err := c.Service.Create(ctx.UserContext(), &input, actor.UserID); err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(input)
}

// ListTemplates godoc
// @Summary List workflow templates
// @Tags templates
// @Produce json
// @Success 200 {array} Template
// @Router /api/templates [get]
func (c *TemplateController) ListTemplates(ctx *fiber.Ctx) error {
	templates, err := c.Service.List(ctx.UserContext())
	if err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	if templates == nil {
		templates = []Template{}
	}
	return ctx.JSON(templates)
}

// GetTemplate godoc
// @Summary Get a workflow template
// @Tags templates
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} Template
// @Failure 404 {object} map[string]string "Template not found"
// @Router /api/templates/{id} [get]
func (c *TemplateController) GetTemplate(ctx *fiber.Ctx) error {
	tpl, err := c.Service.Get(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	return ctx.JSON(tpl)
}

// GetInitialState godoc
// @Summary Get the initial state of a template
// @Tags templates
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} State
// @Failure 422 {object} map[string]string "Template misconfigured"
// @Router /api/templates/{id}/initial-state [get]
func (c *TemplateController) GetInitialState(ctx *fiber.Ctx) error {
	tpl, err := c.Service.Get(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	state, err := tpl.InitialState()
	if err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	return ctx.JSON(state)
}

// UpdateTemplate godoc
// @Summary Replace the graph of a workflow template
// @Tags templates
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param template body Template true "Template"
// @Success 200 {object} map[string]string "Template updated"
// @Router /api/templates/{id} [put]
func (c *TemplateController) UpdateTemplate(ctx *fiber.Ctx) error {
	var input Template
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := c.Service.Update(ctx.UserContext(), ctx.Params("id"), &input); err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	return ctx.JSON(fiber.Map{"message": "Template updated successfully"})
}

// DeleteTemplate godoc
// @Summary Delete an unused workflow template
// @Tags templates
// @Param id path string true "Template ID"
// @Success 204 "No Content"
// @Failure 400 {object} map[string]string "Template in use"
// @Router /api/templates/{id} [delete]
func (c *TemplateController) DeleteTemplate(ctx *fiber.Ctx) error {
	if err := c.Service.Delete(ctx.UserContext(), ctx.Params("id")); err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}
