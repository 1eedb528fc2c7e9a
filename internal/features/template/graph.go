package template

import (
	"context"
	"fmt"
	"slices"

	"go-workflow/internal/common/errs"
	"go-workflow/pkg/condition"
)

func (t *Template) FindState(code string) (*State, bool) {
	for i := range t.States {
		if t.States[i].Code == code {
			return &t.States[i], true
		}
	}
	return nil, false
}

// InitialState returns the unique state flagged is_initial.
func (t *Template) InitialState() (*State, error) {
	var found *State
	for i := range t.States {
		if !t.States[i].IsInitial {
			continue
		}
		if found != nil {
			return nil, &errs.ConfigError{Template: t.Code, Message: fmt.Sprintf("multiple initial states (%s, %s)", found.Code, t.States[i].Code)}
		}
		found = &t.States[i]
	}
	if found == nil {
		return nil, &errs.ConfigError{Template: t.Code, Message: "no initial state"}
	}
	return found, nil
}

// OutgoingTransitions lists transitions leaving stateCode ordered by Order.
// Ties keep declaration order.
func (t *Template) OutgoingTransitions(stateCode string) []Transition {
	var out []Transition
	for _, tr := range t.Transitions {
		if tr.FromState == stateCode {
			out = append(out, tr)
		}
	}
	slices.SortStableFunc(out, func(a, b Transition) int { return a.Order - b.Order })
	return out
}

func (t *Template) FindTransition(id string) (*Transition, bool) {
	for i := range t.Transitions {
		if t.Transitions[i].ID == id {
			return &t.Transitions[i], true
		}
	}
	return nil, false
}

func (t *Template) StepCount(stateCode string) int {
	if s, ok := t.FindState(stateCode); ok {
		return len(s.Steps)
	}
	return 0
}

func (s *State) Step(index int) (*Step, bool) {
	if index < 0 || index >= len(s.Steps) {
		return nil, false
	}
	return &s.Steps[index], true
}

// FullySatisfied reports whether satisfied covers every declared step.
// A state without steps is always satisfied.
func (s *State) FullySatisfied(satisfied int) bool {
	return satisfied >= len(s.Steps)
}

// Ready reports whether automatic transitions out of the state may be
// considered. States that do not require all steps open after the first.
func (s *State) Ready(satisfied int) bool {
	if len(s.Steps) == 0 || s.FullySatisfied(satisfied) {
		return true
	}
	return !s.RequireAllSteps && satisfied > 0
}

// Progress is the case-side input to condition evaluation.
type Progress struct {
	CaseID    string
	Data      map[string]any
	Satisfied map[string]int // state code -> satisfied step count
}

// Evaluator decides transition conditions. Everything except CUSTOM_LOGIC
// is a pure function of the template and the case progress.
type Evaluator struct {
	Custom *condition.Registry
}

func NewEvaluator(custom *condition.Registry) *Evaluator {
	return &Evaluator{Custom: custom}
}

func (e *Evaluator) Evaluate(ctx context.Context, t *Template, tr Transition, p Progress) bool {
	satisfied := p.Satisfied[tr.FromState]
	required := t.StepCount(tr.FromState)

	switch tr.ConditionType {
	case ConditionAlways:
		return true
	case ConditionAllStepsApproved:
		return required == 0 || satisfied >= required
	case ConditionAnyStepApproved:
		return satisfied > 0
	case ConditionFieldValue:
		field, _ := tr.ConditionConfig["field"].(string)
		actual, ok := condition.Lookup(p.Data, field)
		if !ok {
			return false
		}
		return condition.Equal(actual, tr.ConditionConfig["expected_value"])
	case ConditionCustomLogic:
		if e == nil || e.Custom == nil {
			return false
		}
		return e.Custom.Evaluate(ctx, condition.Input{
			CaseID:    p.CaseID,
			State:     tr.FromState,
			Data:      p.Data,
			Satisfied: satisfied,
			Required:  required,
			Config:    tr.ConditionConfig,
		})
	}
	return false
}
