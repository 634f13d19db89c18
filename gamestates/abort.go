package gamestates

import (
	"context"
	"fmt"

	"github.com/amp-labs/logicstates/logger"
	"github.com/amp-labs/logicstates/platform"
	"github.com/amp-labs/logicstates/statemachine"
)

type abort struct {
	complete statemachine.EventSlot[platform.AbortComplete]
}

func newAbort() *State {
	a := &abort{}

	return newState(AbortState).
		Describe("Asks the platform to abort the game cycle").
		InitialStep(statemachine.CommittedPreWait).
		OnInitialize(a.subscribe).
		PreWait(statemachine.Heavy, a.preWait).
		Wait(statemachine.None, a.wait).
		PostWait(statemachine.Heavy, a.postWait).
		Transitions(LabelComplete, LabelRejected).
		MustBuild()
}

func (a *abort) subscribe(_ context.Context, lib *platform.CoplayerLib, subs *statemachine.Subscriptions) error {
	subs.Add(lib.Play.AbortCompleted().Subscribe(a.complete.Store))

	return nil
}

func (a *abort) preWait(ctx context.Context, exec Exec, next statemachine.Transitions) (statemachine.StepControl, error) {
	a.complete.Reset()

	play := exec.Coplayer().Play

	accepted, err := play.AbortGameCycle(ctx)
	if err != nil {
		return statemachine.ExitState, fmt.Errorf("abort game cycle: %w", err)
	}

	if !accepted {
		logger.Get(ctx).Info("Game cycle abort rejected")

		return statemachine.ExitState, next.SetNextState(LabelRejected)
	}

	if play.GameCycleState() != platform.CycleAbortPending {
		return statemachine.ExitState, next.SetNextState(LabelComplete)
	}

	return statemachine.GoNext, nil
}

func (a *abort) wait(_ context.Context, exec Exec, _ statemachine.Transitions) (statemachine.StepControl, error) {
	settled := exec.WaitForNonTransactionalCondition(func() bool {
		return a.complete.Present() || exec.Coplayer().Play.GameCycleState() != platform.CycleAbortPending
	})
	if settled {
		return statemachine.GoNext, nil
	}

	return statemachine.RepeatWait, nil
}

func (a *abort) postWait(_ context.Context, exec Exec, next statemachine.Transitions) (statemachine.StepControl, error) {
	if _, ok := a.complete.Take(); !ok && exec.Coplayer().Play.GameCycleState() == platform.CycleAbortPending {
		return statemachine.ExitState, eventMissing(AbortState, statemachine.CommittedPostWait, "abort complete")
	}

	return statemachine.ExitState, next.SetNextState(LabelComplete)
}
