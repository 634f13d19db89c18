package gamestates

import (
	"context"
	"fmt"

	"github.com/amp-labs/logicstates/statemachine"
)

// PlayNextFunc picks the transition label Play takes once its presentation
// completed: LabelMainComplete or LabelAbort.
type PlayNextFunc func(ctx context.Context, exec Exec, completion statemachine.Completion) (string, error)

// PlayMainComplete is the default PlayNextFunc.
func PlayMainComplete(context.Context, Exec, statemachine.Completion) (string, error) {
	return LabelMainComplete, nil
}

type play struct {
	next PlayNextFunc
}

func newPlay(next PlayNextFunc) *State {
	if next == nil {
		next = PlayMainComplete
	}

	p := &play{next: next}

	return newState(PlayState).
		Describe("Presents the evaluated play").
		InitialStep(statemachine.CommittedPreWait).
		PreWait(statemachine.Heavy, startPresentation).
		Wait(statemachine.None, presentationDone).
		PostWait(statemachine.Heavy, p.postWait).
		Transitions(LabelMainComplete, LabelAbort).
		MustBuild()
}

func (p *play) postWait(ctx context.Context, exec Exec, next statemachine.Transitions) (statemachine.StepControl, error) {
	c, ok := exec.PresentationCompletion()
	if !ok {
		return statemachine.ExitState, eventMissing(PlayState, statemachine.CommittedPostWait, "presentation completion")
	}

	label, err := p.next(ctx, exec, c)
	if err != nil {
		return statemachine.ExitState, fmt.Errorf("choose next state of %s: %w", PlayState, err)
	}

	return statemachine.ExitState, next.SetNextState(label)
}
