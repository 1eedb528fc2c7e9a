package approval

import (
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ApprovalRecord is one satisfied step. (case_id, state_code, step_number)
// is unique in storage.
type ApprovalRecord struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CaseID     primitive.ObjectID `bson:"case_id" json:"case_id"`
	StateCode  string             `bson:"state_code" json:"state_code"`
	StepNumber int                `bson:"step_number" json:"step_number"`
	Performer  string             `bson:"performer" json:"performer"`
	RoleCode   string             `bson:"role_code,omitempty" json:"role_code,omitempty"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}

// Ledger is the approval history of a single case.
type Ledger []ApprovalRecord

// Steps returns the distinct satisfied step numbers of a state, ascending.
func (l Ledger) Steps(stateCode string) []int {
	var out []int
	for _, r := range l {
		if r.StateCode == stateCode && !slices.Contains(out, r.StepNumber) {
			out = append(out, r.StepNumber)
		}
	}
	slices.Sort(out)
	return out
}

func (l Ledger) SatisfiedCount(stateCode string) int {
	return len(l.Steps(stateCode))
}

func (l Ledger) NextRequiredStep(stateCode string) int {
	return NextRequiredStep(l.Steps(stateCode))
}

// Counts maps every state present in the ledger to its satisfied step count.
func (l Ledger) Counts() map[string]int {
	out := make(map[string]int)
	seen := make(map[string]map[int]bool)
	for _, r := range l {
		if seen[r.StateCode] == nil {
			seen[r.StateCode] = make(map[int]bool)
		}
		if !seen[r.StateCode][r.StepNumber] {
			seen[r.StateCode][r.StepNumber] = true
			out[r.StateCode]++
		}
	}
	return out
}

// Find returns the record for a step, if any.
func (l Ledger) Find(stateCode string, step int) (ApprovalRecord, bool) {
	for _, r := range l {
		if r.StateCode == stateCode && r.StepNumber == step {
			return r, true
		}
	}
	return ApprovalRecord{}, false
}

// NextRequiredStep is max(steps)+1, or 0 for an empty set.
func NextRequiredStep(steps []int) int {
	if len(steps) == 0 {
		return 0
	}
	return slices.Max(steps) + 1
}
