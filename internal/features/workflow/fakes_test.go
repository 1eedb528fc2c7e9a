package workflow

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"go-workflow/internal/common/errs"
	common_models "go-workflow/internal/common/models"
	"go-workflow/internal/features/approval"
	"go-workflow/internal/features/audit"
	"go-workflow/internal/features/directory"
	"go-workflow/internal/features/events"
	"go-workflow/internal/features/permission"
	"go-workflow/internal/features/template"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func intPtr(i int) *int { return &i }

var (
	alice  = common_models.Actor{UserID: "alice", Roles: []string{"R1"}}
	alice2 = common_models.Actor{UserID: "alice2", Roles: []string{"R1"}}
	bob    = common_models.Actor{UserID: "bob", Roles: []string{"R2"}}
	carol  = common_models.Actor{UserID: "carol", Roles: []string{"R3"}}
	dave   = common_models.Actor{UserID: "dave"}
	erin   = common_models.Actor{UserID: "erin", Roles: []string{"AUDITOR"}}
	root   = common_models.Actor{UserID: "root", IsSuperuser: true}
)

// abcTemplate: A (one R1 step) -> B (R2 then R3, or fast track) -> C.
func abcTemplate() *template.Template {
	return &template.Template{
		ID:     primitive.NewObjectID(),
		Code:   "ABC",
		Name:   "A to C",
		Active: true,
		States: []template.State{
			{Code: "A", Name: "Intake", Type: template.StateTypeApproval, Order: 0, IsInitial: true, RequireAllSteps: true,
				Steps: []template.Step{{StepNumber: 0, Name: "Intake review", Roles: []string{"R1"}}}},
			{Code: "B", Name: "Pricing", Type: template.StateTypeForm, FormNumber: intPtr(1), Order: 1, AllowEdit: true, AllowBack: true,
				Steps: []template.Step{
					{StepNumber: 0, Name: "Price check", Roles: []string{"R2"}},
					{StepNumber: 1, Name: "Sign off", Roles: []string{"R3"}},
				}},
			{Code: "C", Name: "Closed", Type: template.StateTypeReview, Order: 2, IsTerminal: true},
		},
		Transitions: []template.Transition{
			{ID: "a-b", FromState: "A", ToState: "B", ConditionType: template.ConditionAllStepsApproved, IsAutomatic: true},
			{ID: "b-fast", FromState: "B", ToState: "C", ConditionType: template.ConditionFieldValue, IsAutomatic: true, Order: 0,
				ConditionConfig: map[string]any{"field": "forms.1.fast_track", "expected_value": true}},
			{ID: "b-c", FromState: "B", ToState: "C", ConditionType: template.ConditionAllStepsApproved, IsAutomatic: true, Order: 1},
			{ID: "b-a", FromState: "B", ToState: "A", ConditionType: template.ConditionAlways},
			{ID: "c-b", FromState: "C", ToState: "B", ConditionType: template.ConditionAlways},
		},
	}
}

func abcGrants() []permission.Grant {
	var grants []permission.Grant
	for _, role := range []string{"R1", "R2", "R3"} {
		for _, state := range []string{"A", "B", "C"} {
			grants = append(grants, permission.Grant{RoleCode: role, Scope: permission.ScopeState, Kind: permission.KindView, State: state, IsActive: true})
		}
	}
	return append(grants,
		permission.Grant{RoleCode: "R2", Scope: permission.ScopeState, Kind: permission.KindTransition, State: "B", IsActive: true},
		permission.Grant{RoleCode: "R3", Scope: permission.ScopeState, Kind: permission.KindTransition, State: "C", IsActive: true},
		permission.Grant{RoleCode: "R2", Scope: permission.ScopeState, Kind: permission.KindEdit, State: "B", IsActive: true},
		permission.Grant{RoleCode: "R2", Scope: permission.ScopeFormField, Kind: permission.KindEdit, State: "B", FormNumber: intPtr(1), FieldPath: "price", IsActive: true},
		permission.Grant{RoleCode: "R2", Scope: permission.ScopeFormField, Kind: permission.KindView, FormNumber: intPtr(1), FieldPath: "price", IsActive: true},
		permission.Grant{RoleCode: "AUDITOR", Scope: permission.ScopeStateStep, Kind: permission.KindApprove, State: "B", StepNumber: intPtr(1), IsActive: true},
		permission.Grant{RoleCode: "AUDITOR", Scope: permission.ScopeState, Kind: permission.KindView, State: "B", IsActive: true},
	)
}

type memCases struct {
	mu    sync.Mutex
	cases map[primitive.ObjectID]*Case
}

func newMemCases() *memCases {
	return &memCases{cases: map[primitive.ObjectID]*Case{}}
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = copyValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = copyValue(inner)
		}
		return out
	}
	return v
}

func copyCase(c *Case) *Case {
	out := *c
	out.CompletedSteps = make(CompletedSteps, len(c.CompletedSteps))
	for state, steps := range c.CompletedSteps {
		out.CompletedSteps[state] = maps.Clone(steps)
		if out.CompletedSteps[state] == nil {
			out.CompletedSteps[state] = map[string]StepCompletion{}
		}
	}
	if c.Data != nil {
		out.Data = copyValue(c.Data).(map[string]any)
	}
	return &out
}

func (m *memCases) Create(ctx context.Context, c *Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	m.cases[c.ID] = copyCase(c)
	return nil
}

func (m *memCases) GetByID(ctx context.Context, id primitive.ObjectID) (*Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[id]
	if !ok {
		return nil, errs.NotFound("case", id.Hex())
	}
	return copyCase(c), nil
}

func (m *memCases) all(keep func(*Case) bool) []Case {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Case
	for _, c := range m.cases {
		if keep(c) {
			out = append(out, *copyCase(c))
		}
	}
	slices.SortFunc(out, func(a, b Case) int { return strings.Compare(a.ID.Hex(), b.ID.Hex()) })
	return out
}

func (m *memCases) List(ctx context.Context, f CaseFilter, limit, offset int64) ([]Case, error) {
	out := m.all(func(c *Case) bool {
		return (f.State == "" || c.CurrentState == f.State) && (f.CreatedBy == "" || c.CreatedBy == f.CreatedBy)
	})
	if offset >= int64(len(out)) {
		return []Case{}, nil
	}
	return out[offset:min(int64(len(out)), offset+limit)], nil
}

func (m *memCases) ListOpen(ctx context.Context, excludeStates []string) ([]Case, error) {
	return m.all(func(c *Case) bool { return c.Bound() && !slices.Contains(excludeStates, c.CurrentState) }), nil
}

func (m *memCases) ListBound(ctx context.Context, after primitive.ObjectID, limit int64) ([]Case, error) {
	out := m.all(func(c *Case) bool { return c.Bound() && c.ID.Hex() > after.Hex() })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memCases) ListUnbound(ctx context.Context) ([]Case, error) {
	return m.all(func(c *Case) bool { return !c.Bound() }), nil
}

func (m *memCases) CountByTemplate(ctx context.Context, templateID primitive.ObjectID) (int64, error) {
	return int64(len(m.all(func(c *Case) bool { return c.Bound() && *c.TemplateID == templateID }))), nil
}

func (m *memCases) update(id primitive.ObjectID, fn func(c *Case) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[id]
	if !ok {
		return errs.NotFound("case", id.Hex())
	}
	if err := fn(c); err != nil {
		return err
	}
	c.UpdatedAt = time.Now()
	return nil
}

func (m *memCases) MarkStep(ctx context.Context, id primitive.ObjectID, state string, step int, entry StepCompletion, currentStep int) error {
	return m.update(id, func(c *Case) error {
		if c.CurrentState != state {
			return ErrStaleState
		}
		if c.CompletedSteps == nil {
			c.CompletedSteps = CompletedSteps{}
		}
		if c.CompletedSteps[state] == nil {
			c.CompletedSteps[state] = map[string]StepCompletion{}
		}
		c.CompletedSteps[state][strconv.Itoa(step)] = entry
		c.CurrentStep = currentStep
		return nil
	})
}

func (m *memCases) MoveState(ctx context.Context, id primitive.ObjectID, from, to string, currentStep int, openEntry bool) error {
	return m.update(id, func(c *Case) error {
		if c.CurrentState != from {
			return ErrStaleState
		}
		c.CurrentState = to
		c.CurrentStep = currentStep
		if openEntry {
			c.CompletedSteps[to] = map[string]StepCompletion{}
		}
		return nil
	})
}

func (m *memCases) SetProjection(ctx context.Context, id primitive.ObjectID, completed CompletedSteps, currentStep int) error {
	return m.update(id, func(c *Case) error {
		c.CompletedSteps = copyCase(&Case{CompletedSteps: completed}).CompletedSteps
		c.CurrentStep = currentStep
		return nil
	})
}

func (m *memCases) SetFormFields(ctx context.Context, id primitive.ObjectID, form int, fields map[string]any) error {
	return m.update(id, func(c *Case) error {
		if c.Data == nil {
			c.Data = map[string]any{}
		}
		for path, v := range fields {
			keys := append([]string{"forms", strconv.Itoa(form)}, strings.Split(path, ".")...)
			cur := c.Data
			for _, k := range keys[:len(keys)-1] {
				next, ok := cur[k].(map[string]any)
				if !ok {
					next = map[string]any{}
					cur[k] = next
				}
				cur = next
			}
			cur[keys[len(keys)-1]] = v
		}
		return nil
	})
}

func (m *memCases) Bind(ctx context.Context, id primitive.ObjectID, templateID primitive.ObjectID, templateCode, state string, completed CompletedSteps, currentStep int) error {
	return m.update(id, func(c *Case) error {
		if c.Bound() {
			return errs.Validation("already_bound", "case %s already has a template", id.Hex())
		}
		c.TemplateID = &templateID
		c.TemplateCode = templateCode
		c.CurrentState = state
		c.CurrentStep = currentStep
		c.CompletedSteps = completed
		return nil
	})
}

func (m *memCases) CaseRef(ctx context.Context, id primitive.ObjectID) (permission.CaseRef, error) {
	c, err := m.GetByID(ctx, id)
	if err != nil {
		return permission.CaseRef{}, err
	}
	return c.Ref(), nil
}

func (m *memCases) EnsureIndexes(ctx context.Context) error { return nil }

// tamper edits a stored case directly, bypassing the engine.
func (m *memCases) tamper(id primitive.ObjectID, fn func(c *Case)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.cases[id])
}

type memLedger struct {
	mu      sync.Mutex
	records []approval.ApprovalRecord
}

func (m *memLedger) Insert(ctx context.Context, rec *approval.ApprovalRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.CaseID == rec.CaseID && r.StateCode == rec.StateCode && r.StepNumber == rec.StepNumber {
			return fmt.Errorf("%w: step %d of %s", errs.ErrConflictIgnored, rec.StepNumber, rec.StateCode)
		}
	}
	rec.ID = primitive.NewObjectID()
	m.records = append(m.records, *rec)
	return nil
}

func (m *memLedger) ListByCase(ctx context.Context, caseID primitive.ObjectID) (approval.Ledger, error) {
	return m.filter(func(r approval.ApprovalRecord) bool { return r.CaseID == caseID }), nil
}

func (m *memLedger) ListByCaseState(ctx context.Context, caseID primitive.ObjectID, stateCode string) (approval.Ledger, error) {
	return m.filter(func(r approval.ApprovalRecord) bool { return r.CaseID == caseID && r.StateCode == stateCode }), nil
}

func (m *memLedger) filter(keep func(approval.ApprovalRecord) bool) approval.Ledger {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out approval.Ledger
	for _, r := range m.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func (m *memLedger) EnsureIndexes(ctx context.Context) error { return nil }

type memAudit struct {
	mu      sync.Mutex
	actions []audit.Action
}

func (m *memAudit) Record(ctx context.Context, a *audit.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	m.actions = append(m.actions, *a)
	return nil
}

func (m *memAudit) List(ctx context.Context, f audit.Filter, page, limit int64) ([]audit.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []audit.Action{}
	for _, a := range m.actions {
		if (f.CaseID.IsZero() || a.CaseID == f.CaseID) && (f.ActionType == "" || a.ActionType == f.ActionType) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memAudit) ofType(t common_models.ActionType) []audit.Action {
	out, _ := m.List(context.Background(), audit.Filter{ActionType: t}, 1, 1000)
	return out
}

type staticTemplates struct {
	tpl *template.Template
}

func (s staticTemplates) GetByID(ctx context.Context, id primitive.ObjectID) (*template.Template, error) {
	if id != s.tpl.ID {
		return nil, errs.NotFound("template", id.Hex())
	}
	return s.tpl, nil
}

func (s staticTemplates) GetByCode(ctx context.Context, code string) (*template.Template, error) {
	if code != s.tpl.Code {
		return nil, errs.NotFound("template", code)
	}
	return s.tpl, nil
}

func (s staticTemplates) Default(ctx context.Context) (*template.Template, error) {
	return s.tpl, nil
}

// resolverPermissions answers from a fixed grant set through the real
// resolver.
type resolverPermissions struct {
	snap     *permission.Snapshot
	resolver *permission.Resolver
}

func newResolverPermissions(grants []permission.Grant) *resolverPermissions {
	return &resolverPermissions{snap: permission.NewSnapshot(grants), resolver: permission.NewResolver()}
}

func (p *resolverPermissions) CheckState(ctx context.Context, actor common_models.Actor, c permission.CaseRef, kind permission.Kind) (bool, error) {
	return p.resolver.CheckState(p.snap, nil, actor, c, kind), nil
}

func (p *resolverPermissions) CheckStep(ctx context.Context, actor common_models.Actor, state string, step int) (bool, error) {
	return p.resolver.CheckStep(p.snap, actor, state, step), nil
}

func (p *resolverPermissions) FilterData(ctx context.Context, actor common_models.Actor, c *permission.CaseRef, form int, data map[string]any, kind permission.Kind, state string) (map[string]any, error) {
	return p.resolver.FilterData(p.snap, nil, actor, c, form, data, kind, state), nil
}

func (p *resolverPermissions) RolesGranting(ctx context.Context, state string, kind permission.Kind) ([]string, error) {
	return p.snap.RolesGranting(state, kind), nil
}

func (p *resolverPermissions) EditableFields(ctx context.Context, actor common_models.Actor, c *permission.CaseRef, form int, state string) ([]string, error) {
	return p.resolver.EditableFields(p.snap, nil, actor, c, form, state), nil
}

type passthroughTx struct{}

func (passthroughTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// rollbackTx drops ledger and audit writes made by a failed unit. It is
// only safe for single-goroutine tests.
type rollbackTx struct {
	ledger *memLedger
	audit  *memAudit
}

func (r rollbackTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	r.ledger.mu.Lock()
	records := len(r.ledger.records)
	r.ledger.mu.Unlock()
	r.audit.mu.Lock()
	actions := len(r.audit.actions)
	r.audit.mu.Unlock()

	err := fn(ctx)
	if err != nil {
		r.ledger.mu.Lock()
		r.ledger.records = r.ledger.records[:records]
		r.ledger.mu.Unlock()
		r.audit.mu.Lock()
		r.audit.actions = r.audit.actions[:actions]
		r.audit.mu.Unlock()
	}
	return err
}

// movingCases applies a manual transition right before the first MarkStep
// call, as if another request had won the race for the case.
type movingCases struct {
	*memCases
	from, to string
	step     int
	once     sync.Once
}

func (m *movingCases) MarkStep(ctx context.Context, id primitive.ObjectID, state string, step int, entry StepCompletion, currentStep int) error {
	var err error
	m.once.Do(func() {
		err = m.memCases.MoveState(ctx, id, m.from, m.to, m.step, false)
	})
	if err != nil {
		return err
	}
	return m.memCases.MarkStep(ctx, id, state, step, entry, currentStep)
}

type staticApprovers map[string][]directory.Member

func (s staticApprovers) MembersOf(ctx context.Context, roleCodes []string) ([]directory.Member, error) {
	var out []directory.Member
	for _, role := range roleCodes {
		out = append(out, s[role]...)
	}
	return out, nil
}

type eventLog struct {
	mu     sync.Mutex
	events []events.CaseEvent
}

func (l *eventLog) Publish(e events.CaseEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) types() []events.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]events.EventType, len(l.events))
	for i, e := range l.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	engine *EngineImpl
	cases  *memCases
	ledger *memLedger
	audit  *memAudit
	events *eventLog
	tpl    *template.Template
}

func newFixture() *fixture {
	f := &fixture{
		cases:  newMemCases(),
		ledger: &memLedger{},
		audit:  &memAudit{},
		events: &eventLog{},
		tpl:    abcTemplate(),
	}
	f.engine = &EngineImpl{
		Cases:       f.cases,
		Ledger:      f.ledger,
		Templates:   staticTemplates{tpl: f.tpl},
		Permissions: newResolverPermissions(abcGrants()),
		Audit:       f.audit,
		Approvers: staticApprovers{
			"R2": {{UserID: "bob", Username: "Bob", Roles: []string{"R2"}, IsActive: true}},
		},
		Tx:        passthroughTx{},
		Evaluator: template.NewEvaluator(nil),
		Events:    f.events,
		Log:       zap.NewNop(),
		Now:       time.Now,
	}
	return f
}
