package legacy

import (
	"fmt"

	"go-workflow/internal/features/template"
)

// LegacyTemplate expresses the linear table as a workflow template. Each
// state moves to its successor automatically once all of its steps are
// approved; a state without steps moves on immediately.
func LegacyTemplate() *template.Template {
	tpl := &template.Template{
		Code:        TemplateCode,
		Name:        "Property Acquisition Workflow",
		Description: "Complete property acquisition workflow with multi-stage approvals",
		Active:      true,
	}

	for order, code := range StateOrder {
		st := template.State{
			Code:            code,
			Name:            code,
			Type:            template.StateTypeApproval,
			Order:           order,
			IsInitial:       order == 0,
			IsTerminal:      order == len(StateOrder)-1,
			AllowEdit:       true,
			RequireAllSteps: true,
		}
		if n, ok := formNumbers[code]; ok {
			form := n
			st.Type = template.StateTypeForm
			st.FormNumber = &form
		}
		names := stepNames[code]
		for i, roles := range AdvancerSteps[code] {
			name := fmt.Sprintf("Step %d", i+1)
			if i < len(names) {
				name = names[i]
			}
			st.Steps = append(st.Steps, template.Step{
				StepNumber: i,
				Name:       name,
				Roles:      append([]string(nil), roles...),
			})
		}
		tpl.States = append(tpl.States, st)
	}

	for i, from := range StateOrder[:len(StateOrder)-1] {
		to := NextState[from]
		cond := template.ConditionAllStepsApproved
		if StepsRequired(from) == 0 {
			cond = template.ConditionAlways
		}
		tpl.Transitions = append(tpl.Transitions, template.Transition{
			ID:            fmt.Sprintf("%s-to-%s", from, to),
			Name:          fmt.Sprintf("%s to %s", from, to),
			FromState:     from,
			ToState:       to,
			ConditionType: cond,
			IsAutomatic:   true,
			Order:         i,
		})
	}
	return tpl
}
