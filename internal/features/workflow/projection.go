package workflow

import (
	"context"
	"slices"

	"go-workflow/internal/common/errs"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const reconcileBatch = 200

// Reconcile checks the completed_steps projection of a case against its
// approval ledger and rewrites the projection when they disagree. It
// reports whether a repair was made.
func (e *EngineImpl) Reconcile(ctx context.Context, caseID primitive.ObjectID) (bool, error) {
	c, err := e.Cases.GetByID(ctx, caseID)
	if err != nil {
		return false, err
	}
	if !c.Bound() {
		return false, errs.Validation("case_not_migrated", "case %s has no workflow template yet", caseID.Hex())
	}
	return e.reconcile(ctx, c)
}

func (e *EngineImpl) reconcile(ctx context.Context, c *Case) (bool, error) {
	ledger, err := e.Ledger.ListByCase(ctx, c.ID)
	if err != nil {
		return false, err
	}
	want := Projection(ledger)
	currentStep := ledger.NextRequiredStep(c.CurrentState)
	diverged := divergedStates(c.CompletedSteps, want)
	stepDrift := c.CurrentStep != currentStep
	if len(diverged) == 0 && !stepDrift {
		return false, nil
	}

	for _, state := range diverged {
		e.violation(c, state, "completed_steps does not match the approval ledger")
	}
	if stepDrift {
		e.violation(c, c.CurrentState, "current_step does not match the approval ledger")
	}

	// Keep empty entries so visited states stay visited.
	for state := range c.CompletedSteps {
		if _, ok := want[state]; !ok {
			want[state] = map[string]StepCompletion{}
		}
	}
	if c.CurrentState != "" {
		if _, ok := want[c.CurrentState]; !ok {
			want[c.CurrentState] = map[string]StepCompletion{}
		}
	}
	if err := e.Cases.SetProjection(ctx, c.ID, want, currentStep); err != nil {
		return false, err
	}
	return true, nil
}

func (e *EngineImpl) violation(c *Case, state, detail string) {
	e.Log.Error("projection rebuilt from ledger",
		zap.String("case_id", c.ID.Hex()),
		zap.String("state", state),
		zap.Error(&errs.InvariantViolation{CaseID: c.ID.Hex(), State: state, Detail: detail}),
	)
	e.Metrics.InvariantViolation()
}

// divergedStates lists, sorted, the states whose non-empty projection
// entries differ from the ledger-derived ones.
func divergedStates(have, want CompletedSteps) []string {
	states := map[string]bool{}
	for state, steps := range have {
		if len(steps) > 0 {
			states[state] = true
		}
	}
	for state, steps := range want {
		if len(steps) > 0 {
			states[state] = true
		}
	}

	var out []string
	for state := range states {
		a, b := have[state], want[state]
		if len(a) != len(b) {
			out = append(out, state)
			continue
		}
		for key, entry := range b {
			got, ok := a[key]
			if !ok || got.By != entry.By {
				out = append(out, state)
				break
			}
		}
	}
	slices.Sort(out)
	return out
}

// ReconcileAll walks every bound case in id order and returns how many
// projections were repaired.
func (e *EngineImpl) ReconcileAll(ctx context.Context) (int, error) {
	repaired := 0
	after := primitive.NilObjectID
	for {
		batch, err := e.Cases.ListBound(ctx, after, reconcileBatch)
		if err != nil {
			return repaired, err
		}
		for i := range batch {
			if err := ctx.Err(); err != nil {
				return repaired, err
			}
			fixed, err := e.reconcile(ctx, &batch[i])
			if err != nil {
				e.Log.Warn("reconcile failed", zap.String("case_id", batch[i].ID.Hex()), zap.Error(err))
				continue
			}
			if fixed {
				repaired++
			}
		}
		if len(batch) < reconcileBatch {
			break
		}
		after = batch[len(batch)-1].ID
	}
	if repaired > 0 {
		e.Log.Info("reconciliation finished", zap.Int("repaired", repaired))
	}
	return repaired, nil
}
