package shellstates

import (
	"context"
	"fmt"

	"github.com/amp-labs/logicstates/criticaldata"
	"github.com/amp-labs/logicstates/logger"
	"github.com/amp-labs/logicstates/statemachine"
)

type themeLoading struct {
	key       string
	providers *Providers
}

func newThemeLoading(key string, providers *Providers) *State {
	l := &themeLoading{key: key, providers: providers}

	return newState(ShellThemeLoadingState).
		Describe("Refreshes the theme providers and lets the presentation load the themes").
		Processing(statemachine.Light, l.process).
		PreWait(statemachine.Heavy, startPresentation).
		Wait(statemachine.None, presentationDone).
		PostWait(statemachine.Light, l.postWait).
		Transitions(LabelComplete).
		MustBuild()
}

func (l *themeLoading) process(ctx context.Context, exec Exec, _ statemachine.Transitions) (statemachine.StepControl, error) {
	txn, err := transaction(exec, ShellThemeLoadingState, statemachine.Processing)
	if err != nil {
		return statemachine.ExitState, err
	}

	running := l.providers.refresh(exec.Shell().Shell)

	if err := criticaldata.Save(txn, l.key, running); err != nil {
		return statemachine.ExitState, fmt.Errorf("save running themes: %w", err)
	}

	logger.Get(ctx).Info("Loading themes", "running", len(running))

	return statemachine.GoNext, nil
}

func (l *themeLoading) postWait(_ context.Context, exec Exec, next statemachine.Transitions) (statemachine.StepControl, error) {
	if _, ok := exec.PresentationCompletion(); !ok {
		return statemachine.ExitState, statemachine.NewLogicStateError(ShellThemeLoadingState, statemachine.CommittedPostWait,
			fmt.Errorf("%w: presentation completion", statemachine.ErrEventNotRecorded))
	}

	return statemachine.ExitState, next.SetNextState(LabelComplete)
}
