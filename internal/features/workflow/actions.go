package workflow

import (
	"context"
	"errors"
	"slices"
	"strings"

	"go-workflow/internal/common/errs"
	common_models "go-workflow/internal/common/models"
	"go-workflow/internal/features/audit"
	"go-workflow/internal/features/events"
	"go-workflow/internal/features/permission"
	"go-workflow/internal/features/template"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// PerformAction records a user action. APPROVE goes through Approve; UPLOAD
// and COMMENT only add to the activity log.
func (e *EngineImpl) PerformAction(ctx context.Context, actor common_models.Actor, caseID string, in ActionInput) (*ActionResult, error) {
	kind := common_models.ActionType(strings.ToUpper(strings.TrimSpace(in.Type)))
	if !kind.Valid() {
		return nil, errs.Validation("invalid_action", "unknown action type %q", in.Type)
	}

	if kind == common_models.ActionApprove {
		res, err := e.Approve(ctx, actor, caseID, in.Step)
		if err != nil {
			return nil, err
		}
		return &ActionResult{Approval: res}, nil
	}

	c, _, _, err := e.loadHex(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := e.require(ctx, actor, c, permission.KindView); err != nil {
		return nil, err
	}

	action := &audit.Action{
		ID:         primitive.NewObjectID(),
		CaseID:     c.ID,
		State:      c.CurrentState,
		Step:       0,
		ActionType: kind,
		Performer:  actor.UserID,
		Note:       in.Note,
		CreatedAt:  e.now(),
	}
	if roles := actor.Roles; len(roles) > 0 {
		action.RoleCode = roles[0]
	}
	if err := e.Audit.Record(ctx, action); err != nil {
		return nil, err
	}
	e.publish(events.CaseEvent{Type: events.EventAction, CaseID: c.ID.Hex(), State: c.CurrentState, Actor: actor.UserID})
	return &ActionResult{ActionID: action.ID.Hex()}, nil
}

// Inbox lists open cases whose next required step the actor can satisfy.
// It reads the completed_steps projection rather than the ledger.
func (e *EngineImpl) Inbox(ctx context.Context, actor common_models.Actor) ([]InboxItem, error) {
	def, err := e.Templates.Default(ctx)
	if err != nil && !isConfigError(err) {
		return nil, err
	}
	var terminal []string
	if def != nil {
		for _, st := range def.States {
			if st.IsTerminal {
				terminal = append(terminal, st.Code)
			}
		}
	}

	cases, err := e.Cases.ListOpen(ctx, terminal)
	if err != nil {
		return nil, err
	}

	templates := map[primitive.ObjectID]*template.Template{}
	items := []InboxItem{}
	for _, c := range cases {
		if !c.Bound() {
			continue
		}
		tpl, ok := templates[*c.TemplateID]
		if !ok {
			if tpl, err = e.Templates.GetByID(ctx, *c.TemplateID); err != nil {
				e.Log.Warn("inbox skipped case with missing template", zap.String("case_id", c.ID.Hex()), zap.Error(err))
				continue
			}
			templates[*c.TemplateID] = tpl
		}
		st, ok := tpl.FindState(c.CurrentState)
		if !ok || st.IsTerminal {
			continue
		}
		next := len(c.CompletedSteps[st.Code])
		step, ok := st.Step(next)
		if !ok {
			continue
		}
		can, err := e.canSatisfy(ctx, actor, st, next)
		if err != nil {
			return nil, err
		}
		if !can {
			continue
		}
		items = append(items, InboxItem{
			CaseID:   c.ID.Hex(),
			Title:    c.Title,
			State:    st.Code,
			Step:     next,
			StepName: step.Name,
			Roles:    step.Roles,
			Since:    c.UpdatedAt,
		})
	}
	return items, nil
}

func isConfigError(err error) bool {
	var cfg *errs.ConfigError
	return errors.As(err, &cfg)
}

// EditableFields lists what the actor may edit in a form of the case.
// States with allow_edit off are read-only for everyone.
func (e *EngineImpl) EditableFields(ctx context.Context, actor common_models.Actor, caseID string, form int) ([]string, error) {
	c, _, st, err := e.loadHex(ctx, caseID)
	if err != nil {
		return nil, err
	}
	return e.editableFields(ctx, actor, c, st, form)
}

func (e *EngineImpl) editableFields(ctx context.Context, actor common_models.Actor, c *Case, st *template.State, form int) ([]string, error) {
	if !st.AllowEdit {
		return []string{}, nil
	}
	ref := c.Ref()
	return e.Permissions.EditableFields(ctx, actor, &ref, form, st.Code)
}

// UpdateFormData writes dotted field paths into a form of the case. Every
// path must be covered by the actor's editable fields.
func (e *EngineImpl) UpdateFormData(ctx context.Context, actor common_models.Actor, caseID string, form int, fields map[string]any) (*Case, error) {
	if len(fields) == 0 {
		return nil, errs.Validation("invalid_data", "no fields to update")
	}
	c, _, st, err := e.loadHex(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := e.require(ctx, actor, c, permission.KindEdit); err != nil {
		return nil, err
	}

	editable, err := e.editableFields(ctx, actor, c, st, form)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(fields))
	for path := range fields {
		if !validPath(path) {
			return nil, errs.Validation("invalid_field", "invalid field path %q", path)
		}
		paths = append(paths, path)
	}
	slices.Sort(paths)
	for _, path := range paths {
		for i := range path {
			if path[i] == '.' {
				if _, ok := fields[path[:i]]; ok {
					return nil, errs.Validation("invalid_field", "field paths %q and %q overlap", path[:i], path)
				}
			}
		}
	}

	var offending []string
	for _, path := range paths {
		if !covered(editable, path) {
			offending = append(offending, path)
		}
	}
	if len(offending) > 0 {
		return nil, &errs.ForbiddenError{Reason: "fields are not editable in state " + st.Code, Fields: offending}
	}

	if err := e.Cases.SetFormFields(ctx, c.ID, form, fields); err != nil {
		return nil, err
	}
	e.Log.Info("form data updated",
		zap.String("case_id", c.ID.Hex()), zap.String("state", st.Code), zap.Int("form", form),
		zap.Int("fields", len(fields)), zap.String("user_id", actor.UserID))
	e.publish(events.CaseEvent{Type: events.EventDataUpdated, CaseID: c.ID.Hex(), State: st.Code, Actor: actor.UserID})

	// Field values can enable FIELD_VALUE transitions.
	if _, err := e.AutoAdvance(ctx, c.ID); err != nil {
		return nil, err
	}
	return e.Cases.GetByID(ctx, c.ID)
}

// validPath accepts dotted paths of non-empty segments free of '$'.
func validPath(path string) bool {
	for _, seg := range strings.Split(path, ".") {
		if seg == "" || strings.Contains(seg, "$") {
			return false
		}
	}
	return true
}

// covered reports whether path equals or lies under one of the granted
// paths. "*" covers everything.
func covered(granted []string, path string) bool {
	for _, g := range granted {
		if g == "*" || g == path || strings.HasPrefix(path, g+".") {
			return true
		}
	}
	return false
}
