// Package legacy keeps the original linear property-acquisition workflow
// available. The table below is expressed as a template so the graph
// engine runs it, and the lookup functions answer the same questions
// straight from the table.
package legacy

import (
	"slices"

	"go-workflow/internal/features/approval"
)

const TemplateCode = "PROPERTY_ACQUISITION"

// StateOrder is the linear order of the legacy states. The "Settlment"
// spelling is stored in existing cases and must not change.
var StateOrder = []string{
	"ApplicantRequest",
	"CEOInstruction",
	"Form1",
	"Form2",
	"DocsCollection",
	"Form3",
	"Form4",
	"AMLForm",
	"EvaluationCommittee",
	"AppraisalFeeDeposit",
	"AppraisalNotice",
	"AppraisalOpinion",
	"AppraisalDecision",
	"Settlment",
}

// AdvancerSteps lists, per state, the ordered steps and the roles any one
// of which can satisfy each step.
var AdvancerSteps = map[string][][]string{
	"ApplicantRequest": {{"RE_VALUATION_LEASING_LEAD"}},
	"CEOInstruction":   {{"CEO_MANAGER", "CEO_OFFICE_CHIEF"}},
	"Form1":            {{"RE_ACQUISITION_REGEN_EXPERT"}},
	"Form2":            {{"RE_ACQUISITION_REGEN_EXPERT"}},
	"DocsCollection":   {{"RE_ACQUISITION_REGEN_EXPERT"}},
	"Form3": {
		{"LC_CONTRACTS_ASSEMBLIES_LEAD"},
		{"RE_TECH_URBANISM_LEAD"},
		{"RE_ACQUISITION_REGEN_LEAD"},
		{"RE_MANAGER"},
	},
	"Form4": {
		{"RE_VALUATION_LEASING_LEAD"},
		{"RE_ACQUISITION_REGEN_LEAD"},
		{"RE_MANAGER"},
		{"CEO_MANAGER", "CEO_OFFICE_CHIEF"},
	},
	"AMLForm":             {{"FA_ACCOUNTING_LEAD"}},
	"EvaluationCommittee": {{"RE_VALUATION_LEASING_LEAD"}},
	"AppraisalFeeDeposit": {{"RE_VALUATION_LEASING_LEAD"}},
	"AppraisalNotice":     {{"RE_VALUATION_LEASING_LEAD"}},
	"AppraisalOpinion":    {{"RE_VALUATION_LEASING_LEAD"}},
	"AppraisalDecision":   {{"RE_VALUATION_LEASING_LEAD"}},
	"Settlment":           {{"RE_ACQUISITION_REGEN_LEAD"}},
}

var stepNames = map[string][]string{
	"ApplicantRequest": {"Valuation Lead Approval"},
	"CEOInstruction":   {"CEO/Office Chief Approval"},
	"Form1":            {"Acquisition Expert Review"},
	"Form2":            {"Acquisition Expert Review"},
	"DocsCollection":   {"Document Collection Review"},
	"Form3": {
		"Legal Deputy Review",
		"Technical/Urbanism Lead Review",
		"Acquisition Lead Review",
		"Real Estate Manager Review",
	},
	"Form4": {
		"Valuation Lead Review",
		"Acquisition Lead Review",
		"Real Estate Manager Review",
		"CEO/Office Chief Approval",
	},
	"AMLForm":             {"Accounting Lead Review"},
	"EvaluationCommittee": {"Valuation Lead Approval"},
	"AppraisalFeeDeposit": {"Valuation Lead Approval"},
	"AppraisalNotice":     {"Valuation Lead Approval"},
	"AppraisalOpinion":    {"Valuation Lead Approval"},
	"AppraisalDecision":   {"Valuation Lead Approval"},
	"Settlment":           {"Acquisition Lead Final Approval"},
}

// formNumbers maps the form-filling states to their form.
var formNumbers = map[string]int{
	"Form1":   1,
	"Form2":   2,
	"Form3":   3,
	"Form4":   4,
	"AMLForm": 5,
}

// NextState is the linear successor of every state but the last.
var NextState = func() map[string]string {
	out := make(map[string]string, len(StateOrder)-1)
	for i, s := range StateOrder[:len(StateOrder)-1] {
		out[s] = StateOrder[i+1]
	}
	return out
}()

func StepsRequired(state string) int {
	return len(AdvancerSteps[state])
}

// StepRoles returns the roles for a step, or nil past the last step.
func StepRoles(state string, step int) []string {
	steps := AdvancerSteps[state]
	if step < 0 || step >= len(steps) {
		return nil
	}
	return steps[step]
}

// CurrentStep is the next required step of state given the case ledger.
func CurrentStep(ledger approval.Ledger, state string) int {
	return approval.NextRequiredStep(ledger.Steps(state))
}

func IsFullyApproved(ledger approval.Ledger, state string) bool {
	return CurrentStep(ledger, state) >= StepsRequired(state)
}

func CanUserSatisfyStep(roles []string, state string, step int) bool {
	return slices.ContainsFunc(StepRoles(state, step), func(r string) bool {
		return slices.Contains(roles, r)
	})
}
