package workflow

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go-workflow/internal/common/errs"
	common_models "go-workflow/internal/common/models"
	"go-workflow/internal/database"
	"go-workflow/internal/features/approval"
	"go-workflow/internal/features/audit"
	"go-workflow/internal/features/directory"
	"go-workflow/internal/features/events"
	"go-workflow/internal/features/permission"
	"go-workflow/internal/features/template"
	"go-workflow/internal/metrics"
	"go-workflow/pkg/condition"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// TemplateSource is the part of the template service the engine reads.
type TemplateSource interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*template.Template, error)
	GetByCode(ctx context.Context, code string) (*template.Template, error)
	Default(ctx context.Context) (*template.Template, error)
}

// PermissionChecker is the part of the permission service the engine uses.
type PermissionChecker interface {
	CheckState(ctx context.Context, actor common_models.Actor, c permission.CaseRef, kind permission.Kind) (bool, error)
	CheckStep(ctx context.Context, actor common_models.Actor, state string, step int) (bool, error)
	FilterData(ctx context.Context, actor common_models.Actor, c *permission.CaseRef, form int, data map[string]any, kind permission.Kind, state string) (map[string]any, error)
	EditableFields(ctx context.Context, actor common_models.Actor, c *permission.CaseRef, form int, state string) ([]string, error)
	RolesGranting(ctx context.Context, state string, kind permission.Kind) ([]string, error)
}

type Approvers interface {
	MembersOf(ctx context.Context, roleCodes []string) ([]directory.Member, error)
}

type EventPublisher interface {
	Publish(e events.CaseEvent)
}

type Engine interface {
	Create(ctx context.Context, actor common_models.Actor, in CreateCaseInput) (*Case, error)
	Get(ctx context.Context, actor common_models.Actor, caseID string) (*CaseView, error)
	List(ctx context.Context, actor common_models.Actor, f CaseFilter, page, limit int64) ([]Case, error)
	Inbox(ctx context.Context, actor common_models.Actor) ([]InboxItem, error)

	Approve(ctx context.Context, actor common_models.Actor, caseID string, step *int) (*ApproveResult, error)
	AutoAdvance(ctx context.Context, caseID primitive.ObjectID) (bool, error)
	PerformTransition(ctx context.Context, actor common_models.Actor, caseID, transitionID string) (*Case, error)
	ListAvailableTransitions(ctx context.Context, actor common_models.Actor, caseID string) ([]AvailableTransition, error)
	PerformAction(ctx context.Context, actor common_models.Actor, caseID string, in ActionInput) (*ActionResult, error)
	Actions(ctx context.Context, actor common_models.Actor, caseID string, page, limit int64) ([]audit.Action, error)

	UpdateFormData(ctx context.Context, actor common_models.Actor, caseID string, form int, fields map[string]any) (*Case, error)
	EditableFields(ctx context.Context, actor common_models.Actor, caseID string, form int) ([]string, error)
	NextApprovers(ctx context.Context, actor common_models.Actor, caseID string) ([]directory.Member, error)

	EnsureCanView(ctx context.Context, actor common_models.Actor, caseID primitive.ObjectID) error
	Reconcile(ctx context.Context, caseID primitive.ObjectID) (bool, error)
	ReconcileAll(ctx context.Context) (int, error)
}

type EngineImpl struct {
	Cases       CaseRepository
	Ledger      approval.ApprovalRepository
	Templates   TemplateSource
	Permissions PermissionChecker
	Audit       audit.AuditService
	Approvers   Approvers
	Tx          database.Transactor
	Evaluator   *template.Evaluator
	Events      EventPublisher
	Metrics     *metrics.Recorder
	Log         *zap.Logger
	Now         func() time.Time
}

func NewEngine(
	cases CaseRepository,
	ledger approval.ApprovalRepository,
	templates template.TemplateService,
	permissions permission.PermissionService,
	auditService audit.AuditService,
	approvers directory.DirectoryService,
	tx database.Transactor,
	evaluator *template.Evaluator,
	hub *events.Hub,
	recorder *metrics.Recorder,
	log *zap.Logger,
) Engine {
	return &EngineImpl{
		Cases:       cases,
		Ledger:      ledger,
		Templates:   templates,
		Permissions: permissions,
		Audit:       auditService,
		Approvers:   approvers,
		Tx:          tx,
		Evaluator:   evaluator,
		Events:      hub,
		Metrics:     recorder,
		Log:         log,
		Now:         time.Now,
	}
}

func (e *EngineImpl) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func parseCaseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, errs.NotFound("case", id)
	}
	return oid, nil
}

// load fetches a case bound to a template together with that template and
// its current state.
func (e *EngineImpl) load(ctx context.Context, id primitive.ObjectID) (*Case, *template.Template, *template.State, error) {
	c, err := e.Cases.GetByID(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	if !c.Bound() {
		return nil, nil, nil, errs.Validation("case_not_migrated", "case %s has no workflow template yet", id.Hex())
	}
	tpl, err := e.Templates.GetByID(ctx, *c.TemplateID)
	if err != nil {
		return nil, nil, nil, err
	}
	st, ok := tpl.FindState(c.CurrentState)
	if !ok {
		return nil, nil, nil, &errs.ConfigError{Template: tpl.Code, Message: "case " + c.ID.Hex() + " is in unknown state " + c.CurrentState}
	}
	return c, tpl, st, nil
}

func (e *EngineImpl) loadHex(ctx context.Context, caseID string) (*Case, *template.Template, *template.State, error) {
	oid, err := parseCaseID(caseID)
	if err != nil {
		return nil, nil, nil, err
	}
	return e.load(ctx, oid)
}

func (e *EngineImpl) progress(c *Case, ledger approval.Ledger) template.Progress {
	return template.Progress{CaseID: c.ID.Hex(), Data: c.Data, Satisfied: ledger.Counts()}
}

func (e *EngineImpl) require(ctx context.Context, actor common_models.Actor, c *Case, kind permission.Kind) error {
	ok, err := e.Permissions.CheckState(ctx, actor, c.Ref(), kind)
	if err != nil {
		return err
	}
	if !ok {
		roles, err := e.Permissions.RolesGranting(ctx, c.CurrentState, kind)
		if err != nil {
			return err
		}
		return &errs.ForbiddenError{
			Reason:      string(kind) + " not permitted in state " + c.CurrentState,
			NeededRoles: roles,
		}
	}
	return nil
}

func (e *EngineImpl) publish(evt events.CaseEvent) {
	if e.Events != nil {
		e.Events.Publish(evt)
	}
}

func (e *EngineImpl) Create(ctx context.Context, actor common_models.Actor, in CreateCaseInput) (*Case, error) {
	if in.Title == "" {
		return nil, errs.Validation("invalid_case", "title is required")
	}

	var (
		tpl *template.Template
		err error
	)
	if in.TemplateCode == "" {
		tpl, err = e.Templates.Default(ctx)
	} else {
		tpl, err = e.Templates.GetByCode(ctx, in.TemplateCode)
	}
	if err != nil {
		return nil, err
	}
	if !tpl.Active {
		return nil, errs.Validation("template_inactive", "template %s is not active", tpl.Code)
	}
	initial, err := tpl.InitialState()
	if err != nil {
		return nil, err
	}

	now := e.now()
	tplID := tpl.ID
	c := &Case{
		ID:             primitive.NewObjectID(),
		Title:          in.Title,
		Body:           in.Body,
		TemplateID:     &tplID,
		TemplateCode:   tpl.Code,
		CurrentState:   initial.Code,
		CurrentStep:    0,
		CompletedSteps: CompletedSteps{initial.Code: {}},
		Data:           in.Data,
		CreatedBy:      actor.UserID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.Cases.Create(ctx, c); err != nil {
		return nil, err
	}
	e.Log.Info("case created",
		zap.String("case_id", c.ID.Hex()),
		zap.String("template", tpl.Code),
		zap.String("state", c.CurrentState),
		zap.String("user_id", actor.UserID),
	)
	e.publish(events.CaseEvent{Type: events.EventCreated, CaseID: c.ID.Hex(), State: c.CurrentState, Actor: actor.UserID})

	advanced, err := e.AutoAdvance(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if advanced {
		return e.Cases.GetByID(ctx, c.ID)
	}
	return c, nil
}

func (e *EngineImpl) EnsureCanView(ctx context.Context, actor common_models.Actor, caseID primitive.ObjectID) error {
	c, err := e.Cases.GetByID(ctx, caseID)
	if err != nil {
		return err
	}
	return e.require(ctx, actor, c, permission.KindView)
}

// Get returns the case filtered for the actor. A projection that disagrees
// with the ledger is repaired before it is shown.
func (e *EngineImpl) Get(ctx context.Context, actor common_models.Actor, caseID string) (*CaseView, error) {
	oid, err := parseCaseID(caseID)
	if err != nil {
		return nil, err
	}
	if _, err := e.Reconcile(ctx, oid); err != nil && !errs.IsValidation(err) {
		return nil, err
	}
	c, _, st, err := e.load(ctx, oid)
	if err != nil {
		return nil, err
	}
	if err := e.require(ctx, actor, c, permission.KindView); err != nil {
		return nil, err
	}

	ref := c.Ref()
	if forms, ok := condition.Normalize(c.Data["forms"]).(map[string]any); ok {
		filtered := make(map[string]any, len(forms))
		for key, raw := range forms {
			doc, isDoc := raw.(map[string]any)
			n, convErr := strconv.Atoi(key)
			if !isDoc || convErr != nil {
				continue
			}
			out, err := e.Permissions.FilterData(ctx, actor, &ref, n, doc, permission.KindView, st.Code)
			if err != nil {
				return nil, err
			}
			if len(out) > 0 {
				filtered[key] = out
			}
		}
		data := make(map[string]any, len(c.Data))
		for k, v := range c.Data {
			data[k] = v
		}
		data["forms"] = filtered
		c.Data = data
	}

	view := &CaseView{
		Case:        *c,
		StateName:   st.Name,
		StateType:   string(st.Type),
		IsTerminal:  st.IsTerminal,
		NeededRoles: []string{},
	}
	satisfied := len(c.CompletedSteps[st.Code])
	if next := satisfied; next < len(st.Steps) {
		view.NextStep = &next
		view.NextStepName = st.Steps[next].Name
		view.NeededRoles = st.Steps[next].Roles
		can, err := e.canSatisfy(ctx, actor, st, next)
		if err != nil {
			return nil, err
		}
		view.CanApprove = can
	}
	return view, nil
}

func (e *EngineImpl) List(ctx context.Context, actor common_models.Actor, f CaseFilter, page, limit int64) ([]Case, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	cases, err := e.Cases.List(ctx, f, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	out := make([]Case, 0, len(cases))
	for _, c := range cases {
		if !c.Bound() {
			if actor.IsSuperuser {
				out = append(out, c)
			}
			continue
		}
		ok, err := e.Permissions.CheckState(ctx, actor, c.Ref(), permission.KindView)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// canSatisfy is true when the actor shares a role with the step or holds an
// explicit step grant.
func (e *EngineImpl) canSatisfy(ctx context.Context, actor common_models.Actor, st *template.State, step int) (bool, error) {
	def, ok := st.Step(step)
	if !ok {
		return false, nil
	}
	if actor.IsSuperuser || len(actor.SharedRoles(def.Roles)) > 0 {
		return true, nil
	}
	return e.Permissions.CheckStep(ctx, actor, st.Code, step)
}

func (e *EngineImpl) Actions(ctx context.Context, actor common_models.Actor, caseID string, page, limit int64) ([]audit.Action, error) {
	oid, err := parseCaseID(caseID)
	if err != nil {
		return nil, err
	}
	if err := e.EnsureCanView(ctx, actor, oid); err != nil {
		return nil, err
	}
	return e.Audit.List(ctx, audit.Filter{CaseID: oid}, page, limit)
}

func (e *EngineImpl) NextApprovers(ctx context.Context, actor common_models.Actor, caseID string) ([]directory.Member, error) {
	c, _, st, err := e.loadHex(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := e.require(ctx, actor, c, permission.KindView); err != nil {
		return nil, err
	}
	ledger, err := e.Ledger.ListByCaseState(ctx, c.ID, st.Code)
	if err != nil {
		return nil, err
	}
	def, ok := st.Step(ledger.NextRequiredStep(st.Code))
	if !ok {
		return []directory.Member{}, nil
	}
	members, err := e.Approvers.MembersOf(ctx, def.Roles)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []directory.Member{}
	}
	return members, nil
}

func isConflict(err error) bool {
	return errors.Is(err, errs.ErrConflictIgnored) || database.IsDuplicateKey(err)
}
