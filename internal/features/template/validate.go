package template

import (
	"strings"

	"go-workflow/internal/common/errs"
)

// Validate checks the structural rules a template must obey before it can
// drive cases.
func Validate(t *Template) error {
	if t.Code == "" {
		return errs.Validation("invalid_template", "code is required")
	}
	if len(t.States) == 0 {
		return errs.Validation("invalid_template", "template %s has no states", t.Code)
	}

	codes := make(map[string]bool, len(t.States))
	terminal := false
	for _, s := range t.States {
		if s.Code == "" {
			return errs.Validation("invalid_template", "state code is required")
		}
		// State codes become keys under completed_steps.
		if strings.ContainsAny(s.Code, ".$") {
			return errs.Validation("invalid_template", "state code %q must not contain '.' or '$'", s.Code)
		}
		if codes[s.Code] {
			return errs.Validation("invalid_template", "duplicate state code %s", s.Code)
		}
		codes[s.Code] = true
		if s.IsTerminal {
			terminal = true
		}
		switch s.Type {
		case StateTypeForm, StateTypeApproval, StateTypeReview, StateTypeAutomatic:
		default:
			return errs.Validation("invalid_template", "state %s has unknown type %q", s.Code, s.Type)
		}
		if s.Type == StateTypeForm && s.FormNumber == nil {
			return errs.Validation("invalid_template", "form state %s needs a form number", s.Code)
		}
		for i, step := range s.Steps {
			if step.StepNumber != i {
				return errs.Validation("invalid_template", "state %s steps must be numbered 0..%d in order", s.Code, len(s.Steps)-1)
			}
			if len(step.Roles) == 0 {
				return errs.Validation("invalid_template", "state %s step %d has no authorized roles", s.Code, i)
			}
		}
	}

	if _, err := t.InitialState(); err != nil {
		return errs.Validation("invalid_template", "%s", err.Error())
	}
	if !terminal {
		return errs.Validation("invalid_template", "template %s has no terminal state", t.Code)
	}

	ids := make(map[string]bool, len(t.Transitions))
	for _, tr := range t.Transitions {
		if tr.ID == "" {
			return errs.Validation("invalid_template", "transition id is required")
		}
		if ids[tr.ID] {
			return errs.Validation("invalid_template", "duplicate transition id %s", tr.ID)
		}
		ids[tr.ID] = true
		if !codes[tr.FromState] || !codes[tr.ToState] {
			return errs.Validation("invalid_template", "transition %s references an unknown state", tr.ID)
		}
		if !tr.ConditionType.Valid() {
			return errs.Validation("invalid_template", "transition %s has unknown condition %q", tr.ID, tr.ConditionType)
		}
		switch tr.ConditionType {
		case ConditionFieldValue:
			if f, _ := tr.ConditionConfig["field"].(string); f == "" {
				return errs.Validation("invalid_template", "transition %s needs condition_config.field", tr.ID)
			}
		case ConditionCustomLogic:
			p, _ := tr.ConditionConfig["predicate"].(string)
			s, _ := tr.ConditionConfig["script"].(string)
			if p == "" && s == "" {
				return errs.Validation("invalid_template", "transition %s needs a predicate or script", tr.ID)
			}
		}
	}
	return nil
}
