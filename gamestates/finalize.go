package gamestates

import (
	"context"
	"fmt"

	"github.com/amp-labs/logicstates/platform"
	"github.com/amp-labs/logicstates/statemachine"
)

type finalize struct {
	complete statemachine.EventSlot[platform.FinalizeComplete]
}

func newFinalize() *State {
	f := &finalize{}

	return newState(FinalizeState).
		Describe("Settles the final outcome of the game cycle").
		InitialStep(statemachine.CommittedPreWait).
		OnInitialize(f.subscribe).
		PreWait(statemachine.Heavy, f.preWait).
		Wait(statemachine.None, f.wait).
		PostWait(statemachine.Heavy, f.postWait).
		Transitions(LabelComplete).
		MustBuild()
}

func (f *finalize) subscribe(_ context.Context, lib *platform.CoplayerLib, subs *statemachine.Subscriptions) error {
	subs.Add(lib.Play.FinalizeOutcomeComplete().Subscribe(f.complete.Store))

	return nil
}

func (f *finalize) preWait(ctx context.Context, exec Exec, next statemachine.Transitions) (statemachine.StepControl, error) {
	f.complete.Reset()

	play := exec.Coplayer().Play
	if err := play.FinalizeOutcome(ctx); err != nil {
		return statemachine.ExitState, fmt.Errorf("finalize outcome: %w", err)
	}

	// The platform may have settled synchronously, or before a restart.
	if play.GameCycleState() != platform.CycleFinalizePending {
		return statemachine.ExitState, next.SetNextState(LabelComplete)
	}

	return statemachine.GoNext, nil
}

func (f *finalize) wait(_ context.Context, exec Exec, _ statemachine.Transitions) (statemachine.StepControl, error) {
	settled := exec.WaitForNonTransactionalCondition(func() bool {
		return f.complete.Present() || exec.Coplayer().Play.GameCycleState() != platform.CycleFinalizePending
	})
	if settled {
		return statemachine.GoNext, nil
	}

	return statemachine.RepeatWait, nil
}

func (f *finalize) postWait(_ context.Context, exec Exec, next statemachine.Transitions) (statemachine.StepControl, error) {
	if _, ok := f.complete.Take(); !ok && exec.Coplayer().Play.GameCycleState() == platform.CycleFinalizePending {
		return statemachine.ExitState, eventMissing(FinalizeState, statemachine.CommittedPostWait, "finalize complete")
	}

	return statemachine.ExitState, next.SetNextState(LabelComplete)
}
