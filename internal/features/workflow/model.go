package workflow

import (
	"strconv"
	"time"

	"go-workflow/internal/features/approval"
	"go-workflow/internal/features/permission"
	"go-workflow/internal/features/template"
	"go-workflow/pkg/condition"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StepCompletion is the projection entry for one satisfied step.
type StepCompletion struct {
	By       string    `bson:"by" json:"by"`
	RoleCode string    `bson:"role_code,omitempty" json:"role_code,omitempty"`
	At       time.Time `bson:"at" json:"at"`
}

// CompletedSteps maps state code to step number (as a string key) to the
// completion. It is rebuilt from the approval ledger whenever they differ.
type CompletedSteps map[string]map[string]StepCompletion

// Case is one routed request. Cases created before templates existed carry
// only LegacyState until they are migrated.
type Case struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Title          string              `bson:"title" json:"title"`
	Body           string              `bson:"body,omitempty" json:"body,omitempty"`
	TemplateID     *primitive.ObjectID `bson:"template_id,omitempty" json:"template_id,omitempty"`
	TemplateCode   string              `bson:"template_code,omitempty" json:"template_code,omitempty"`
	CurrentState   string              `bson:"current_state,omitempty" json:"current_state,omitempty"`
	CurrentStep    int                 `bson:"current_step" json:"current_step"`
	CompletedSteps CompletedSteps      `bson:"completed_steps,omitempty" json:"completed_steps,omitempty"`
	LegacyState    string              `bson:"state,omitempty" json:"legacy_state,omitempty"`
	Data           map[string]any      `bson:"data,omitempty" json:"data,omitempty"`
	CreatedBy      string              `bson:"created_by" json:"created_by"`
	CreatedAt      time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time           `bson:"updated_at" json:"updated_at"`
}

func (c *Case) Bound() bool {
	return c.TemplateID != nil && !c.TemplateID.IsZero()
}

func (c *Case) Ref() permission.CaseRef {
	return permission.CaseRef{ID: c.ID, State: c.CurrentState, CreatedBy: c.CreatedBy}
}

// SatisfiedCounts reads per-state counts off the projection.
func (c *Case) SatisfiedCounts() map[string]int {
	out := make(map[string]int, len(c.CompletedSteps))
	for state, steps := range c.CompletedSteps {
		out[state] = len(steps)
	}
	return out
}

// FormData returns the document stored for a form number, if any.
func (c *Case) FormData(form int) map[string]any {
	v, ok := condition.Lookup(c.Data, "forms."+strconv.Itoa(form))
	if !ok {
		return nil
	}
	doc, _ := v.(map[string]any)
	return doc
}

// Projection derives completed_steps from a ledger.
func Projection(ledger approval.Ledger) CompletedSteps {
	out := make(CompletedSteps)
	for _, r := range ledger {
		if out[r.StateCode] == nil {
			out[r.StateCode] = make(map[string]StepCompletion)
		}
		key := strconv.Itoa(r.StepNumber)
		if _, ok := out[r.StateCode][key]; ok {
			continue
		}
		out[r.StateCode][key] = StepCompletion{By: r.Performer, RoleCode: r.RoleCode, At: r.CreatedAt}
	}
	return out
}

// CreateCaseInput is the payload for opening a case.
type CreateCaseInput struct {
	Title        string         `json:"title"`
	Body         string         `json:"body"`
	TemplateCode string         `json:"template_code"`
	Data         map[string]any `json:"data"`
}

// CaseFilter narrows a case listing. Zero values are ignored.
type CaseFilter struct {
	TemplateCode string
	State        string
	CreatedBy    string
}

type ApproveResult struct {
	Done         bool   `json:"done"`
	State        string `json:"state"`
	NextStep     *int   `json:"next_step"`
	Duplicate    bool   `json:"duplicate,omitempty"`
	Advanced     bool   `json:"advanced"`
	CurrentState string `json:"current_state"`
}

type AvailableTransition struct {
	Transition   template.Transition `json:"transition"`
	ConditionMet bool                `json:"condition_met"`
}

type ActionInput struct {
	Type string `json:"action_type"`
	Note string `json:"note"`
	Step *int   `json:"step"`
}

type ActionResult struct {
	ActionID string         `json:"action_id,omitempty"`
	Approval *ApproveResult `json:"approval,omitempty"`
}

// CaseView is a case as shown to one actor.
type CaseView struct {
	Case
	StateName    string   `json:"state_name"`
	StateType    string   `json:"state_type"`
	IsTerminal   bool     `json:"is_terminal"`
	NextStep     *int     `json:"next_step"`
	NextStepName string   `json:"next_step_name,omitempty"`
	NeededRoles  []string `json:"needed_roles"`
	CanApprove   bool     `json:"can_approve"`
}

// InboxItem is a case waiting on a step the actor can satisfy.
type InboxItem struct {
	CaseID   string    `json:"case_id"`
	Title    string    `json:"title"`
	State    string    `json:"state"`
	Step     int       `json:"step"`
	StepName string    `json:"step_name"`
	Roles    []string  `json:"roles"`
	Since    time.Time `json:"since"`
}
