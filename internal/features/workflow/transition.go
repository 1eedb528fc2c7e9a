package workflow

import (
	"context"
	"errors"

	"go-workflow/internal/common/errs"
	common_models "go-workflow/internal/common/models"
	"go-workflow/internal/features/audit"
	"go-workflow/internal/features/events"
	"go-workflow/internal/features/permission"
	"go-workflow/internal/features/template"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const systemActor = "system"

// AutoAdvance follows automatic transitions out of ready states, one hop at
// a time, until none applies. Each hop is bounded by the number of states.
func (e *EngineImpl) AutoAdvance(ctx context.Context, caseID primitive.ObjectID) (bool, error) {
	moved := false
	for hops := 0; ; hops++ {
		c, tpl, st, err := e.load(ctx, caseID)
		if err != nil {
			return moved, err
		}
		if hops > len(tpl.States) {
			e.Log.Warn("automatic transitions did not settle",
				zap.String("case_id", caseID.Hex()), zap.String("state", c.CurrentState))
			return moved, nil
		}

		ledger, err := e.Ledger.ListByCase(ctx, caseID)
		if err != nil {
			return moved, err
		}
		if !st.Ready(ledger.SatisfiedCount(st.Code)) {
			return moved, nil
		}

		progress := e.progress(c, ledger)
		var chosen *template.Transition
		for _, tr := range tpl.OutgoingTransitions(st.Code) {
			if tr.IsAutomatic && e.Evaluator.Evaluate(ctx, tpl, tr, progress) {
				chosen = &tr
				break
			}
		}
		if chosen == nil {
			return moved, nil
		}

		if err := e.applyTransition(ctx, c, tpl, *chosen, systemActor, "automatic"); err != nil {
			if errors.Is(err, ErrStaleState) {
				return moved, nil
			}
			return moved, err
		}
		moved = true
	}
}

// applyTransition moves the case and writes the TRANSITION action as one
// atomic unit guarded by the expected source state.
func (e *EngineImpl) applyTransition(ctx context.Context, c *Case, tpl *template.Template, tr template.Transition, performer, kind string) error {
	to, ok := tpl.FindState(tr.ToState)
	if !ok {
		return &errs.ConfigError{Template: tpl.Code, Message: "transition " + tr.ID + " targets unknown state " + tr.ToState}
	}

	ledger, err := e.Ledger.ListByCaseState(ctx, c.ID, to.Code)
	if err != nil {
		return err
	}
	currentStep := ledger.NextRequiredStep(to.Code)
	_, visited := c.CompletedSteps[to.Code]

	err = e.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.Cases.MoveState(txCtx, c.ID, tr.FromState, to.Code, currentStep, !visited); err != nil {
			return err
		}
		return e.Audit.Record(txCtx, &audit.Action{
			CaseID:       c.ID,
			State:        tr.FromState,
			ActionType:   common_models.ActionTransition,
			Performer:    performer,
			TransitionID: tr.ID,
			FromState:    tr.FromState,
			ToState:      to.Code,
			CreatedAt:    e.now(),
		})
	})
	if err != nil {
		return err
	}

	e.Metrics.Transition(kind)
	e.Log.Info("case transitioned",
		zap.String("case_id", c.ID.Hex()),
		zap.String("transition_id", tr.ID),
		zap.String("from", tr.FromState),
		zap.String("to", to.Code),
		zap.String("user_id", performer),
		zap.String("kind", kind),
	)
	e.publish(events.CaseEvent{Type: events.EventTransitioned, CaseID: c.ID.Hex(), FromState: tr.FromState, ToState: to.Code, Actor: performer})
	return nil
}

// PerformTransition applies a manual transition. The actor needs TRANSITION
// permission on the source state and the condition must hold.
func (e *EngineImpl) PerformTransition(ctx context.Context, actor common_models.Actor, caseID, transitionID string) (*Case, error) {
	c, tpl, from, err := e.loadHex(ctx, caseID)
	if err != nil {
		return nil, err
	}
	tr, ok := tpl.FindTransition(transitionID)
	if !ok || tr.FromState != c.CurrentState {
		return nil, errs.NotFound("transition", transitionID)
	}
	if err := e.require(ctx, actor, c, permission.KindTransition); err != nil {
		return nil, err
	}

	to, ok := tpl.FindState(tr.ToState)
	if !ok {
		return nil, &errs.ConfigError{Template: tpl.Code, Message: "transition " + tr.ID + " targets unknown state " + tr.ToState}
	}
	if to.Order < from.Order && !from.AllowBack {
		return nil, errs.Validation("back_not_allowed", "state %s does not allow moving back to %s", from.Code, to.Code)
	}

	ledger, err := e.Ledger.ListByCase(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if !e.Evaluator.Evaluate(ctx, tpl, *tr, e.progress(c, ledger)) {
		return nil, &errs.ConditionNotMetError{TransitionID: tr.ID}
	}

	if err := e.applyTransition(ctx, c, tpl, *tr, actor.UserID, "manual"); err != nil {
		if errors.Is(err, ErrStaleState) {
			return nil, errs.Validation("state_changed", "case moved on before the transition was applied")
		}
		return nil, err
	}
	return e.Cases.GetByID(ctx, c.ID)
}

// ListAvailableTransitions lists the outgoing transitions of the current
// state for actors allowed to transition it.
func (e *EngineImpl) ListAvailableTransitions(ctx context.Context, actor common_models.Actor, caseID string) ([]AvailableTransition, error) {
	c, tpl, st, err := e.loadHex(ctx, caseID)
	if err != nil {
		return nil, err
	}
	out := []AvailableTransition{}

	allowed, err := e.Permissions.CheckState(ctx, actor, c.Ref(), permission.KindTransition)
	if err != nil || !allowed {
		return out, err
	}

	ledger, err := e.Ledger.ListByCase(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	progress := e.progress(c, ledger)
	for _, tr := range tpl.OutgoingTransitions(st.Code) {
		out = append(out, AvailableTransition{
			Transition:   tr,
			ConditionMet: e.Evaluator.Evaluate(ctx, tpl, tr, progress),
		})
	}
	return out, nil
}
