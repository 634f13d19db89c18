package gamestates

import (
	"context"
	"fmt"

	"github.com/amp-labs/logicstates/actions"
	"github.com/amp-labs/logicstates/criticaldata"
	lserrors "github.com/amp-labs/logicstates/errors"
	"github.com/amp-labs/logicstates/logger"
	"github.com/amp-labs/logicstates/platform"
	"github.com/amp-labs/logicstates/statemachine"
	"github.com/google/uuid"
)

type idle struct {
	keys  keys
	info  *CycleInfo
	reset statemachine.EventSlot[platform.SessionParamsReset]
}

func newIdle(k keys, info *CycleInfo) *State {
	i := &idle{keys: k, info: info}

	return newState(IdleState).
		Describe("Waits for the player to start a game cycle").
		InitialStep(statemachine.CommittedPreWait).
		OnInitialize(i.subscribe).
		PreWait(statemachine.Heavy, i.preWait).
		Wait(statemachine.None, i.wait).
		PostWait(statemachine.Heavy, i.postWait).
		Transitions(LabelCommitted).
		MustBuild()
}

func (i *idle) subscribe(_ context.Context, lib *platform.CoplayerLib, subs *statemachine.Subscriptions) error {
	subs.Add(lib.Session.ParamsReset().Subscribe(i.reset.Store))

	return nil
}

// preWait forgets resets raised while the game cycle was running; only a
// reset seen while Idle waits restarts it.
func (i *idle) preWait(ctx context.Context, exec Exec, next statemachine.Transitions) (statemachine.StepControl, error) {
	i.reset.Reset()

	return startPresentation(ctx, exec, next)
}

func (i *idle) wait(_ context.Context, exec Exec, _ statemachine.Transitions) (statemachine.StepControl, error) {
	if exec.WaitForPresentationStateComplete() || exec.WaitForNonTransactionalCondition(i.reset.Present) {
		return statemachine.GoNext, nil
	}

	return statemachine.RepeatWait, nil
}

func (i *idle) postWait(ctx context.Context, exec Exec, next statemachine.Transitions) (statemachine.StepControl, error) {
	// TODO: restart only when the denomination actually changed, once the
	// platform reports the previous session parameters.
	if ev, ok := i.reset.Take(); ok {
		logger.Get(ctx).Info("Player session parameters reset", "denomination", ev.Denomination)

		return statemachine.BackToPreWait, nil
	}

	c, ok := exec.PresentationCompletion()
	if !ok {
		return statemachine.ExitState, eventMissing(IdleState, statemachine.CommittedPostWait, "presentation completion")
	}

	action, recognized, err := actions.DecodeIdle(c.Action, c.Payload)
	if err != nil {
		return statemachine.ExitState, statemachine.NewLogicStateError(IdleState, statemachine.CommittedPostWait,
			fmt.Errorf("%w: %w", statemachine.ErrUnexpectedAction, err))
	}

	if !recognized {
		if c.Action != "" {
			logger.Get(ctx).Debug("Ignoring unrecognized idle action", "action", c.Action)
		}

		return statemachine.BackToPreWait, nil
	}

	switch a := action.(type) {
	case actions.CommitStartParam:
		committed, err := i.commitStart(ctx, exec, a)
		if err != nil {
			return statemachine.ExitState, err
		}

		if !committed {
			return statemachine.BackToPreWait, nil
		}

		return statemachine.ExitState, next.SetNextState(LabelCommitted)
	default:
		return statemachine.BackToPreWait, nil
	}
}

// commitStart commits the game cycle, places and commits the bet and enrolls
// the cycle, all or nothing. When any call is refused, the calls that already
// succeeded are undone in reverse order and false is returned.
func (i *idle) commitStart(ctx context.Context, exec Exec, p actions.CommitStartParam) (bool, error) {
	txn, err := transaction(exec, IdleState, statemachine.CommittedPostWait)
	if err != nil {
		return false, err
	}

	lib := exec.Coplayer()
	log := logger.Get(ctx)

	var undo unwind

	steps := []struct {
		name string
		do   func(context.Context) (bool, error)
		undo func(context.Context) error
	}{
		{name: "CommitGameCycle", do: lib.Play.CommitGameCycle, undo: lib.Play.UncommitGameCycle},
		{name: "PlaceStartingBet", do: func(ctx context.Context) (bool, error) {
			return lib.Betting.PlaceStartingBet(ctx, platform.Bet{Denomination: p.Denomination, Amount: p.BetAmount})
		}},
		{name: "CommitBet", do: lib.Betting.CommitBet, undo: lib.Betting.UncommitBet},
		{name: "EnrollGameCycle", do: lib.Play.EnrollGameCycle},
	}

	for _, step := range steps {
		ok, err := step.do(ctx)
		if err != nil {
			return false, undo.with(ctx, fmt.Errorf("%s: %w", step.name, err))
		}

		if !ok {
			log.Info("Game cycle start refused", "call", step.name, "bet", p.BetAmount)

			if err := undo.run(ctx); err != nil {
				return false, fmt.Errorf("undo refused game cycle start: %w", err)
			}

			return false, nil
		}

		if step.undo != nil {
			undo = append(undo, step.undo)
		}
	}

	rec := CycleRecord{ID: uuid.NewString(), Denomination: p.Denomination, BetAmount: p.BetAmount}
	if err := criticaldata.Save(txn, i.keys.cycle, rec); err != nil {
		return false, fmt.Errorf("save game cycle: %w", err)
	}

	i.info.set(rec.ID)
	logger.Get(logger.WithCycle(ctx, rec.ID)).Info("Game cycle committed", "bet", p.BetAmount, "denomination", p.Denomination)

	return true, nil
}

// unwind holds the undo calls of a partially applied composite operation.
type unwind []func(context.Context) error

func (u unwind) run(ctx context.Context) error {
	var errs lserrors.Collection

	for i := len(u) - 1; i >= 0; i-- {
		errs.Add(u[i](ctx))
	}

	return errs.GetError()
}

func (u unwind) with(ctx context.Context, cause error) error {
	var errs lserrors.Collection

	errs.Add(cause)
	errs.Add(u.run(ctx))

	return errs.GetError()
}
