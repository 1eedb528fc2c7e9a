package workflow

import (
	common_api "go-workflow/internal/common/api"
	"go-workflow/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type CaseController struct {
	Engine Engine
	Log    *zap.Logger
}

func NewCaseController(engine Engine, log *zap.Logger) *CaseController {
	return &CaseController{
		Engine: engine,
		Log:    log,
	}
}

type ApproveRequest struct {
	Step *int `json:"step"`
}

// CreateCase godoc
// @Summary Open a case on a workflow template
// @Tags cases
// @Accept json
// @Produce json
// @Param case body CreateCaseInput true "Case"
// @Success 201 {object} Case
// @Failure 400 {object} map[string]string "Invalid case"
// @Failure 422 {object} map[string]string "Template misconfigured"
// @Router /api/cases [post]
func (c *CaseController) CreateCase(ctx *fiber.Ctx) error {
	var input CreateCaseInput
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	created, err := c.Engine.Create(ctx.UserContext(), middleware.CurrentActor(ctx), input)
	if err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(created)
}

// ListCases godoc
// @Summary List cases visible to the caller
// @Tags cases
// @Produce json
// @Param template_code query string false "Template code"
// @Param state query string false "Current state"
// @Param created_by query string false "Creator user id"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {array} Case
// @Router /api/cases [get]
func (c *CaseController) ListCases(ctx *fiber.Ctx) error {
	f := CaseFilter{
		TemplateCode: ctx.Query("template_code"),
		State:        ctx.Query("state"),
		CreatedBy:    ctx.Query("created_by"),
	}
	cases, err := c.Engine.List(ctx.UserContext(), middleware.CurrentActor(ctx), f,
		int64(ctx.QueryInt("page", 1)), int64(ctx.QueryInt("limit", 20)))
	if err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	return ctx.JSON(cases)
}

// Inbox godoc
// @Summary Cases waiting on a step the caller can approve
// @Tags cases
// @Produce json
// @Success 200 {array} InboxItem
// @Router /api/cases/inbox [get]
func (c *CaseController) Inbox(ctx *fiber.Ctx) error {
	items, err := c.Engine.Inbox(ctx.UserContext(), middleware.CurrentActor(ctx))
	if err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	return ctx.JSON(items)
}

// GetCase godoc
// @Summary Get a case with its data filtered for the caller
// @Tags cases
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} CaseView
// @Failure 403 {object} map[string]interface{} "Forbidden"
// @Failure 404 {object} map[string]string "Case not found"
// @Router /api/cases/{id} [get]
func (c *CaseController) GetCase(ctx *fiber.Ctx) error {
	view, err := c.Engine.Get(ctx.UserContext(), middleware.CurrentActor(ctx), ctx.Params("id"))
	if err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	return ctx.JSON(view)
}

// Approve godoc
// @Summary Approve a step of the current state
// @Description Without a step the next required step is approved.
// @Tags cases
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param body body ApproveRequest false "Step"
// @Success 200 {object} ApproveResult
// @Failure 400 {object} map[string]string "Invalid step"
// @Failure 403 {object} map[string]interface{} "Forbidden"
// @Router /api/cases/{id}/approve [post]
func (c *CaseController) Approve(ctx *fiber.Ctx) error {
	var input ApproveRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&input); err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
	}
	res, err := c.Engine.Approve(ctx.UserContext(), middleware.CurrentActor(ctx), ctx.Params("id"), input.Step)
	if err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	return ctx.JSON(res)
}

// ListTransitions godoc
// @Summary Outgoing transitions of the current state
// @Tags cases
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {array} AvailableTransition
// @Router /api/cases/{id}/transitions [get]
func (c *CaseController) ListTransitions(ctx *fiber.Ctx) error {
	out, err := c.Engine.ListAvailableTransitions(ctx.UserContext(), middleware.CurrentActor(ctx), ctx.Params("id"))
	if err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	return ctx.JSON(out)
}

// PerformTransition godoc
// @Summary Apply a manual transition
// @Tags cases
// @Produce json
// @Param id path string true "Case ID"
// @Param transitionId path string true "Transition ID"
// @Success 200 {object} map[string]string
// @Failure 409 {object} map[string]string "Condition not met"
// @Router /api/cases/{id}/transitions/{transitionId} [post]
func (c *CaseController) PerformTransition(ctx *fiber.Ctx) error {
	updated, err := c.Engine.PerformTransition(ctx.UserContext(), middleware.CurrentActor(ctx), ctx.Params("id"), ctx.Params("transitionId"))
	if err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	return ctx.JSON(fiber.Map{"new_state": updated.CurrentState})
}

// ListActions godoc
// @Summary Activity log of a case
// @Tags cases
// @Produce json
// @Param id path string true "Case ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {array} audit.Action
// @Router /api/cases/{id}/actions [get]
func (c *CaseController) ListActions(ctx *fiber.Ctx) error {
	actions, err := c.Engine.Actions(ctx.UserContext(), middleware.CurrentActor(ctx), ctx.Params("id"),
		int64(ctx.QueryInt("page", 1)), int64(ctx.QueryInt("limit", 50)))
	if err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	return ctx.JSON(actions)
}

// PerformAction godoc
// @Summary Record an action on a case
// @Tags cases
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param action body ActionInput true "Action"
// @Success 201 {object} ActionResult
// @Failure 400 {object} map[string]string "Invalid action"
// @Router /api/cases/{id}/actions [post]
func (c *CaseController) PerformAction(ctx *fiber.Ctx) error {
	var input ActionInput
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	res, err := c.Engine.PerformAction(ctx.UserContext(), middleware.CurrentActor(ctx), ctx.Params("id"), input)
	if err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(res)
}

// UpdateForm godoc
// @Summary Update fields of a case form
// @Description Keys are dotted field paths within the form.
// @Tags cases
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param form path int true "Form number"
// @Param fields body map[string]interface{} true "Fields"
// @Success 200 {object} Case
// @Failure 403 {object} map[string]interface{} "Fields not editable"
// @Router /api/cases/{id}/forms/{form} [patch]
func (c *CaseController) UpdateForm(ctx *fiber.Ctx) error {
	form, err := ctx.ParamsInt("form")
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid form number"})
	}
	var fields map[string]any
	if err := ctx.BodyParser(&fields); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	updated, err := c.Engine.UpdateFormData(ctx.UserContext(), middleware.CurrentActor(ctx), ctx.Params("id"), form, fields)
	if err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	return ctx.JSON(updated)
}

// EditableFields godoc
// @Summary Fields of a form the caller may edit in the current state
// @Tags cases
// @Produce json
// @Param id path string true "Case ID"
// @Param form path int true "Form number"
// @Success 200 {object} map[string][]string
// @Router /api/cases/{id}/forms/{form}/editable-fields [get]
func (c *CaseController) EditableFields(ctx *fiber.Ctx) error {
	form, err := ctx.ParamsInt("form")
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid form number"})
	}
	fields, err := c.Engine.EditableFields(ctx.UserContext(), middleware.CurrentActor(ctx), ctx.Params("id"), form)
	if err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	return ctx.JSON(fiber.Map{"fields": fields})
}

// NextApprovers godoc
// @Summary Members able to approve the next step
// @Tags cases
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {array} directory.Member
// @Router /api/cases/{id}/next-approvers [get]
func (c *CaseController) NextApprovers(ctx *fiber.Ctx) error {
	members, err := c.Engine.NextApprovers(ctx.UserContext(), middleware.CurrentActor(ctx), ctx.Params("id"))
	if err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	return ctx.JSON(members)
}
