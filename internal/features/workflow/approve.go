package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-workflow/internal/common/errs"
	common_models "go-workflow/internal/common/models"
	"go-workflow/internal/features/approval"
	"go-workflow/internal/features/audit"
	"go-workflow/internal/features/events"

	"go.uber.org/zap"
)

// Approve satisfies one step of the case's current state. Without an
// explicit step the next required one is used. Steps are satisfied in
// order: a lower, already satisfied step is a harmless repeat and a higher
// one is rejected.
func (e *EngineImpl) Approve(ctx context.Context, actor common_models.Actor, caseID string, step *int) (*ApproveResult, error) {
	started := time.Now()
	res, err := e.approve(ctx, actor, caseID, step)
	e.Metrics.Approval(approvalOutcome(res, err), started)
	return res, err
}

func approvalOutcome(res *ApproveResult, err error) string {
	switch {
	case err == nil && res.Duplicate:
		return "duplicate"
	case err == nil:
		return "recorded"
	case errs.IsForbidden(err):
		return "forbidden"
	case errs.IsValidation(err) || errs.IsNotFound(err):
		return "invalid"
	}
	return "error"
}

func (e *EngineImpl) approve(ctx context.Context, actor common_models.Actor, caseID string, step *int) (*ApproveResult, error) {
	c, _, st, err := e.loadHex(ctx, caseID)
	if err != nil {
		return nil, err
	}
	ledger, err := e.Ledger.ListByCaseState(ctx, c.ID, st.Code)
	if err != nil {
		return nil, err
	}
	next := ledger.NextRequiredStep(st.Code)

	if step == nil && next >= len(st.Steps) {
		// Nothing left to sign; give automatic transitions a chance anyway.
		advanced, err := e.AutoAdvance(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		return e.result(ctx, c, st.Code, true, nil, false, advanced)
	}

	idx := next
	if step != nil {
		idx = *step
	}
	def, ok := st.Step(idx)
	if !ok {
		return nil, errs.Validation("invalid_step", "state %s has %d steps, got step %d", st.Code, len(st.Steps), idx)
	}

	shared := actor.SharedRoles(def.Roles)
	if len(shared) == 0 && !actor.IsSuperuser {
		granted, err := e.Permissions.CheckStep(ctx, actor, st.Code, idx)
		if err != nil {
			return nil, err
		}
		if !granted {
			return nil, &errs.ForbiddenError{
				Reason:      fmt.Sprintf("step %d of %s needs another role", idx, st.Code),
				NeededRoles: def.Roles,
			}
		}
	}

	if _, done := ledger.Find(st.Code, idx); done {
		return e.settle(ctx, c, st.Code, true)
	}
	if idx > next {
		return nil, errs.Validation("step_out_of_order", "step %d of %s must be approved before step %d", next, st.Code, idx)
	}

	roleCode := ""
	if len(shared) > 0 {
		roleCode = shared[0]
	}
	now := e.now()
	rec := approval.ApprovalRecord{
		CaseID:     c.ID,
		StateCode:  st.Code,
		StepNumber: idx,
		Performer:  actor.UserID,
		RoleCode:   roleCode,
		CreatedAt:  now,
	}
	currentStep := approval.NextRequiredStep(append(ledger.Steps(st.Code), idx))

	// MarkStep is conditional on the state, so a case that moved on since it
	// was read aborts the whole unit, ledger record included.
	err = e.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.Ledger.Insert(txCtx, &rec); err != nil {
			return err
		}
		entry := StepCompletion{By: actor.UserID, RoleCode: roleCode, At: now}
		if err := e.Cases.MarkStep(txCtx, c.ID, st.Code, idx, entry, currentStep); err != nil {
			return err
		}
		return e.Audit.Record(txCtx, &audit.Action{
			CaseID:     c.ID,
			State:      st.Code,
			Step:       idx,
			ActionType: common_models.ActionApprove,
			Performer:  actor.UserID,
			RoleCode:   roleCode,
			CreatedAt:  now,
		})
	})
	if err != nil {
		if isConflict(err) {
			e.Log.Info("concurrent approval ignored",
				zap.String("case_id", c.ID.Hex()), zap.String("state", st.Code), zap.Int("step", idx), zap.String("user_id", actor.UserID))
			return e.settle(ctx, c, st.Code, true)
		}
		if errors.Is(err, ErrStaleState) {
			e.Log.Info("approval dropped after state change",
				zap.String("case_id", c.ID.Hex()), zap.String("state", st.Code), zap.Int("step", idx), zap.String("user_id", actor.UserID))
			return nil, errs.Validation("state_changed", "case left state %s before step %d was recorded", st.Code, idx)
		}
		return nil, err
	}

	e.Log.Info("step approved",
		zap.String("case_id", c.ID.Hex()),
		zap.String("state", st.Code),
		zap.Int("step", idx),
		zap.String("user_id", actor.UserID),
		zap.String("role_code", roleCode),
	)
	stepNo := idx
	e.publish(events.CaseEvent{Type: events.EventApproved, CaseID: c.ID.Hex(), State: st.Code, Step: &stepNo, Actor: actor.UserID})

	return e.settle(ctx, c, st.Code, false)
}

// settle re-reads the ledger after a write attempt, then lets automatic
// transitions run if the state is ready.
func (e *EngineImpl) settle(ctx context.Context, c *Case, stateCode string, duplicate bool) (*ApproveResult, error) {
	c, tpl, _, err := e.load(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	st, ok := tpl.FindState(stateCode)
	if !ok {
		return nil, &errs.ConfigError{Template: tpl.Code, Message: "unknown state " + stateCode}
	}
	ledger, err := e.Ledger.ListByCaseState(ctx, c.ID, stateCode)
	if err != nil {
		return nil, err
	}
	satisfied := ledger.SatisfiedCount(stateCode)
	done := st.FullySatisfied(satisfied)

	var next *int
	if !done {
		n := ledger.NextRequiredStep(stateCode)
		next = &n
	}

	advanced := false
	if c.CurrentState == stateCode && st.Ready(satisfied) {
		if advanced, err = e.AutoAdvance(ctx, c.ID); err != nil {
			return nil, err
		}
	}
	return e.result(ctx, c, stateCode, done, next, duplicate, advanced)
}

func (e *EngineImpl) result(ctx context.Context, c *Case, stateCode string, done bool, next *int, duplicate, advanced bool) (*ApproveResult, error) {
	current := c.CurrentState
	if advanced {
		fresh, err := e.Cases.GetByID(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		current = fresh.CurrentState
	}
	return &ApproveResult{
		Done:         done,
		State:        stateCode,
		NextStep:     next,
		Duplicate:    duplicate,
		Advanced:     advanced,
		CurrentState: current,
	}, nil
}
