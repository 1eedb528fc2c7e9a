package permission

import (
	"strconv"

	common_api "go-workflow/internal/common/api"
	"go-workflow/internal/common/errs"
	"go-workflow/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type PermissionController struct {
	Service PermissionService
	Log     *zap.Logger
}

func NewPermissionController(service PermissionService, log *zap.Logger) *PermissionController {
	return &PermissionController{Service: service, Log: log}
}

type CheckRequest struct {
	CaseID string `json:"case_id"`
	State  string `json:"state"`
	Step   *int   `json:"step"`
	Form   *int   `json:"form"`
	Field  string `json:"field"`
	Kind   Kind   `json:"kind"`
}

type FilterRequest struct {
	CaseID string         `json:"case_id"`
	Form   int            `json:"form"`
	State  string         `json:"state"`
	Kind   Kind           `json:"kind"`
	Data   map[string]any `json:"data"`
}

type ActiveRequest struct {
	IsActive bool `json:"is_active"`
}

// Check godoc
// @Summary Check a permission for the caller
// @Tags permissions
// @Accept json
// @Produce json
// @Param request body CheckRequest true "Target and kind"
// @Success 200 {object} map[string]bool
// @Router /api/permissions/check [post]
func (c *PermissionController) Check(ctx *fiber.Ctx) error {
	var req CheckRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body", "message": "Invalid request body"})
	}
	if !req.Kind.Valid() {
		return common_api.RespondError(ctx, c.Log, errs.Validation("invalid_kind", "unknown permission kind %q", req.Kind))
	}
	if req.Field != "" && req.Form == nil {
		return common_api.RespondError(ctx, c.Log, errs.Validation("invalid_target", "field checks need a form"))
	}

	ref, err := c.Service.ResolveCase(ctx.UserContext(), req.CaseID)
	if err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	target := Target{Case: ref, State: req.State, Step: req.Step, Form: req.Form, Field: req.Field}
	if ref == nil && req.State == "" && req.Form == nil {
		return common_api.RespondError(ctx, c.Log, errs.Validation("invalid_target", "one of case_id, state or form is required"))
	}

	allowed, err := c.Service.Check(ctx.UserContext(), middleware.CurrentActor(ctx), target, req.Kind)
	if err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	return ctx.JSON(fiber.Map{"allowed": allowed})
}

// Filter godoc
// @Summary Filter form data down to the caller's permitted fields
// @Tags permissions
// @Accept json
// @Produce json
// @Param request body FilterRequest true "Form data"
// @Success 200 {object} map[string]interface{}
// @Router /api/permissions/filter [post]
func (c *PermissionController) Filter(ctx *fiber.Ctx) error {
	var req FilterRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body", "message": "Invalid request body"})
	}
	if req.Kind == "" {
		req.Kind = KindView
	}
	if !req.Kind.Valid() {
		return common_api.RespondError(ctx, c.Log, errs.Validation("invalid_kind", "unknown permission kind %q", req.Kind))
	}

	ref, err := c.Service.ResolveCase(ctx.UserContext(), req.CaseID)
	if err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	state := req.State
	if state == "" && ref != nil {
		state = ref.State
	}

	out, err := c.Service.FilterData(ctx.UserContext(), middleware.CurrentActor(ctx), ref, req.Form, req.Data, req.Kind, state)
	if err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return ctx.JSON(out)
}

// EditableFields godoc
// @Summary Field paths the caller may edit
// @Tags permissions
// @Produce json
// @Param form query int true "Form number"
// @Param state query string false "State code"
// @Param case_id query string false "Case ID"
// @Success 200 {array} string
// @Router /api/permissions/editable-fields [get]
func (c *PermissionController) EditableFields(ctx *fiber.Ctx) error {
	form, err := strconv.Atoi(ctx.Query("form"))
	if err != nil {
		return common_api.RespondError(ctx, c.Log, errs.Validation("invalid_form", "form must be a number"))
	}
	ref, err := c.Service.ResolveCase(ctx.UserContext(), ctx.Query("case_id"))
	if err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	state := ctx.Query("state")
	if state == "" && ref != nil {
		state = ref.State
	}

	fields, err := c.Service.EditableFields(ctx.UserContext(), middleware.CurrentActor(ctx), ref, form, state)
	if err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	return ctx.JSON(fields)
}

// CreateGrant godoc
// @Summary Create a permission grant
// @Tags permissions
// @Accept json
// @Produce json
// @Param grant body Grant true "Grant"
// @Success 201 {object} Grant
// @Router /api/permissions/grants [post]
func (c *PermissionController) CreateGrant(ctx *fiber.Ctx) error {
	var g Grant
	if err := ctx.BodyParser(&g); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body", "message": "Invalid request body"})
	}
	if err := c.Service.CreateGrant(ctx.UserContext(), &g, middleware.CurrentActor(ctx).UserID); err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(g)
}

// ListGrants godoc
// @Summary List permission grants
// @Tags permissions
// @Produce json
// @Param role_code query string false "Role"
// @Param user_id query string false "User"
// @Param scope query string false "Scope"
// @Param state query string false "State code"
// @Param active query bool false "Only active grants"
// @Success 200 {array} Grant
// @Router /api/permissions/grants [get]
func (c *PermissionController) ListGrants(ctx *fiber.Ctx) error {
	f := GrantFilter{
		RoleCode:   ctx.Query("role_code"),
		UserID:     ctx.Query("user_id"),
		Scope:      ScopeType(ctx.Query("scope")),
		State:      ctx.Query("state"),
		ActiveOnly: ctx.QueryBool("active", false),
	}
	if raw := ctx.Query("form"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return common_api.RespondError(ctx, c.Log, errs.Validation("invalid_form", "form must be a number"))
		}
		f.FormNumber = &n
	}
	grants, err := c.Service.ListGrants(ctx.UserContext(), f)
	if err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	return ctx.JSON(grants)
}

// SetGrantActive godoc
// @Summary Enable or disable a grant
// @Tags permissions
// @Accept json
// @Param id path string true "Grant ID"
// @Param request body ActiveRequest true "Active flag"
// @Success 204
// @Router /api/permissions/grants/{id} [patch]
func (c *PermissionController) SetGrantActive(ctx *fiber.Ctx) error {
	var req ActiveRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body", "message": "Invalid request body"})
	}
	if err := c.Service.SetGrantActive(ctx.UserContext(), ctx.Params("id"), req.IsActive); err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

// CreateOverride godoc
// @Summary Grant a user extra access on one case
// @Tags permissions
// @Accept json
// @Produce json
// @Param override body Override true "Override"
// @Success 201 {object} Override
// @Router /api/permissions/overrides [post]
func (c *PermissionController) CreateOverride(ctx *fiber.Ctx) error {
	var o Override
	if err := ctx.BodyParser(&o); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body", "message": "Invalid request body"})
	}
	if err := c.Service.CreateOverride(ctx.UserContext(), &o, middleware.CurrentActor(ctx).UserID); err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(o)
}

// ListOverrides godoc
// @Summary List the overrides of a case
// @Tags permissions
// @Produce json
// @Param case_id query string true "Case ID"
// @Success 200 {array} Override
// @Router /api/permissions/overrides [get]
func (c *PermissionController) ListOverrides(ctx *fiber.Ctx) error {
	out, err := c.Service.ListOverrides(ctx.UserContext(), ctx.Query("case_id"))
	if err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	return ctx.JSON(out)
}

// RevokeOverride godoc
// @Summary Deactivate an override
// @Tags permissions
// @Param id path string true "Override ID"
// @Success 204
// @Router /api/permissions/overrides/{id} [delete]
func (c *PermissionController) RevokeOverride(ctx *fiber.Ctx) error {
	if err := c.Service.SetOverrideActive(ctx.UserContext(), ctx.Params("id"), false); err != nil {
		return common_api.RespondError(ctx, c.Log, err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}
