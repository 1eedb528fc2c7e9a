package permission

import (
	"slices"
	"strings"
	"time"

	common_models "go-workflow/internal/common/models"
	"go-workflow/pkg/condition"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CaseRef is the part of a case that permission rules look at.
type CaseRef struct {
	ID        primitive.ObjectID
	State     string
	CreatedBy string
}

// Snapshot is an immutable, indexed view of the active grants.
type Snapshot struct {
	grants []Grant
	byUser map[string][]Grant
	byRole map[string][]Grant
}

func NewSnapshot(grants []Grant) *Snapshot {
	s := &Snapshot{
		byUser: make(map[string][]Grant),
		byRole: make(map[string][]Grant),
	}
	for _, g := range grants {
		if !g.IsActive {
			continue
		}
		s.grants = append(s.grants, g)
		if g.UserID != "" {
			s.byUser[g.UserID] = append(s.byUser[g.UserID], g)
		} else {
			s.byRole[g.RoleCode] = append(s.byRole[g.RoleCode], g)
		}
	}
	return s
}

func (s *Snapshot) Grants() []Grant {
	return s.grants
}

// RolesGranting lists, sorted, the roles holding a STATE grant of kind for
// state. Restricted grants count; user grants do not.
func (s *Snapshot) RolesGranting(state string, kind Kind) []string {
	if s == nil {
		return nil
	}
	var out []string
	for role, grants := range s.byRole {
		if slices.ContainsFunc(grants, func(g Grant) bool {
			return g.Scope == ScopeState && g.Kind == kind && g.State == state
		}) {
			out = append(out, role)
		}
	}
	slices.Sort(out)
	return out
}

// forSubject returns the user's own grants followed by those of each role
// the user holds.
func (s *Snapshot) forSubject(actor common_models.Actor) []Grant {
	if s == nil {
		return nil
	}
	out := append([]Grant(nil), s.byUser[actor.UserID]...)
	for _, role := range actor.Roles {
		out = append(out, s.byRole[role]...)
	}
	return out
}

// Target names what a permission question is about. Field implies Form,
// Step implies State.
type Target struct {
	Case  *CaseRef
	State string
	Step  *int
	Form  *int
	Field string
}

// Resolver evaluates grants and overrides. It holds no state besides the
// clock and is safe for concurrent use.
type Resolver struct {
	Now func() time.Time
}

func NewResolver() *Resolver {
	return &Resolver{Now: time.Now}
}

func (r *Resolver) now() time.Time {
	if r == nil || r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// Check dispatches to the scope-specific check for t.
func (r *Resolver) Check(snap *Snapshot, overrides []Override, actor common_models.Actor, t Target, kind Kind) bool {
	state := t.State
	if state == "" && t.Case != nil {
		state = t.Case.State
	}
	switch {
	case t.Form != nil && t.Field != "":
		return r.CheckField(snap, overrides, actor, t.Case, *t.Form, t.Field, kind, state)
	case t.Form != nil:
		return r.CheckForm(snap, overrides, actor, t.Case, *t.Form, kind, state)
	case t.Step != nil:
		return r.CheckStep(snap, actor, state, *t.Step)
	case t.Case != nil:
		ref := *t.Case
		ref.State = state
		return r.CheckState(snap, overrides, actor, ref, kind)
	default:
		return r.CheckState(snap, overrides, actor, CaseRef{State: state}, kind)
	}
}

// CheckState answers kind access to a case in its current state.
func (r *Resolver) CheckState(snap *Snapshot, overrides []Override, actor common_models.Actor, c CaseRef, kind Kind) bool {
	if actor.IsSuperuser {
		return true
	}
	if r.hasOverride(overrides, &c, actor.UserID, kind, nil, "") {
		return true
	}
	for _, g := range snap.forSubject(actor) {
		if g.Scope == ScopeState && g.Kind == kind && g.State == c.State && owns(g, &c, actor) {
			return true
		}
	}
	return false
}

// CheckStep reports whether an explicit STATE_STEP grant lets the actor
// satisfy step of state. Ownership is not considered.
func (r *Resolver) CheckStep(snap *Snapshot, actor common_models.Actor, state string, step int) bool {
	if actor.IsSuperuser {
		return true
	}
	for _, g := range snap.forSubject(actor) {
		if g.Scope == ScopeStateStep && g.State == state && g.StepNumber != nil && *g.StepNumber == step {
			return true
		}
	}
	return false
}

func (r *Resolver) CheckForm(snap *Snapshot, overrides []Override, actor common_models.Actor, c *CaseRef, form int, kind Kind, state string) bool {
	if actor.IsSuperuser {
		return true
	}
	if r.hasOverride(overrides, c, actor.UserID, kind, &form, "") {
		return true
	}
	for _, g := range snap.forSubject(actor) {
		if g.Scope == ScopeForm && g.Kind == kind && sameForm(g, form) && stateMatches(g, state) && owns(g, c, actor) {
			return true
		}
	}
	return false
}

func (r *Resolver) CheckField(snap *Snapshot, overrides []Override, actor common_models.Actor, c *CaseRef, form int, field string, kind Kind, state string) bool {
	if actor.IsSuperuser {
		return true
	}
	if r.hasOverride(overrides, c, actor.UserID, kind, &form, field) {
		return true
	}
	for _, g := range snap.forSubject(actor) {
		if g.Scope == ScopeFormField && g.Kind == kind && sameForm(g, form) && g.FieldPath == field && stateMatches(g, state) && owns(g, c, actor) {
			return true
		}
	}
	return false
}

// FilterData narrows data to the field paths the actor may access with
// kind. A form-level grant without any field grants for that form passes
// the data through whole.
func (r *Resolver) FilterData(snap *Snapshot, overrides []Override, actor common_models.Actor, c *CaseRef, form int, data map[string]any, kind Kind, state string) map[string]any {
	if actor.IsSuperuser {
		return data
	}

	subject := snap.forSubject(actor)
	if r.CheckForm(snap, overrides, actor, c, form, kind, state) {
		hasFieldGrants := slices.ContainsFunc(subject, func(g Grant) bool {
			return g.Scope == ScopeFormField && g.Kind == kind && sameForm(g, form)
		})
		if !hasFieldGrants {
			return data
		}
	}

	paths := fieldPaths(subject, c, actor, form, kind, state)
	out := make(map[string]any)
	for _, path := range paths {
		v, ok := condition.Lookup(data, path)
		if !ok {
			continue
		}
		setPath(out, strings.Split(path, "."), v)
	}
	return out
}

// EditableFields lists the field paths the actor may edit in form. ["*"]
// stands for every field.
func (r *Resolver) EditableFields(snap *Snapshot, overrides []Override, actor common_models.Actor, c *CaseRef, form int, state string) []string {
	if actor.IsSuperuser {
		return []string{"*"}
	}
	paths := fieldPaths(snap.forSubject(actor), c, actor, form, KindEdit, state)
	if len(paths) == 0 && r.CheckForm(snap, overrides, actor, c, form, KindEdit, state) {
		return []string{"*"}
	}
	if paths == nil {
		paths = []string{}
	}
	return paths
}

func (r *Resolver) hasOverride(overrides []Override, c *CaseRef, userID string, kind Kind, form *int, field string) bool {
	if c == nil || c.ID.IsZero() {
		return false
	}
	now := r.now()
	for _, o := range overrides {
		if o.CaseID != c.ID || o.UserID != userID || o.Kind != kind || !o.Live(now) {
			continue
		}
		if form != nil && (o.FormNumber == nil || *o.FormNumber != *form) {
			continue
		}
		if field != "" && o.FieldPath != field {
			continue
		}
		return true
	}
	return false
}

func fieldPaths(grants []Grant, c *CaseRef, actor common_models.Actor, form int, kind Kind, state string) []string {
	var out []string
	for _, g := range grants {
		if g.Scope == ScopeFormField && g.Kind == kind && sameForm(g, form) && stateMatches(g, state) && owns(g, c, actor) {
			if !slices.Contains(out, g.FieldPath) {
				out = append(out, g.FieldPath)
			}
		}
	}
	slices.Sort(out)
	return out
}

// owns applies restrict_to_own. Without a case there is no creator to
// compare against, so restricted grants do not apply.
func owns(g Grant, c *CaseRef, actor common_models.Actor) bool {
	if !g.RestrictToOwn {
		return true
	}
	return c != nil && c.CreatedBy != "" && c.CreatedBy == actor.UserID
}

func sameForm(g Grant, form int) bool {
	return g.FormNumber != nil && *g.FormNumber == form
}

// stateMatches lets state-less grants and state-less questions match
// anything.
func stateMatches(g Grant, state string) bool {
	return g.State == "" || state == "" || g.State == state
}

func setPath(dst map[string]any, keys []string, v any) {
	cur := dst
	for _, k := range keys[:len(keys)-1] {
		next, ok := cur[k].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[k] = next
		}
		cur = next
	}
	cur[keys[len(keys)-1]] = v
}
