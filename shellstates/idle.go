package shellstates

import (
	"context"
	"fmt"
	"slices"

	"github.com/amp-labs/logicstates/actions"
	"github.com/amp-labs/logicstates/criticaldata"
	"github.com/amp-labs/logicstates/logger"
	"github.com/amp-labs/logicstates/platform"
	"github.com/amp-labs/logicstates/statemachine"
)

type shellIdle struct {
	key     string
	changed statemachine.EventSlot[[]platform.Cotheme]
}

func newShellIdle(key string) *State {
	s := &shellIdle{key: key}

	return newState(ShellIdleState).
		Describe("Shows the shell and serves theme requests").
		OnInitialize(s.subscribe).
		Processing(statemachine.Heavy, s.process).
		PreWait(statemachine.Heavy, s.preWait).
		Wait(statemachine.None, s.wait).
		PostWait(statemachine.Heavy, s.postWait).
		Transitions(LabelLoading).
		MustBuild()
}

func (s *shellIdle) subscribe(_ context.Context, libs *platform.ShellLibs, subs *statemachine.Subscriptions) error {
	subs.Add(libs.Shell.RunningCothemesChanged().Subscribe(s.changed.Store))

	return nil
}

// process starts the startup themes after a cold start and skips loading
// when the running themes are the ones the shell last loaded.
func (s *shellIdle) process(ctx context.Context, exec Exec, next statemachine.Transitions) (statemachine.StepControl, error) {
	txn, err := transaction(exec, ShellIdleState, statemachine.Processing)
	if err != nil {
		return statemachine.ExitState, err
	}

	known, found, err := criticaldata.Load[[]platform.Cotheme](txn, s.key)
	if err != nil {
		return statemachine.ExitState, fmt.Errorf("load running themes: %w", err)
	}

	shell := exec.Shell().Shell
	running := shell.RunningCothemes()

	switch {
	case !found && len(running) == 0:
		if err := startThemes(ctx, shell); err != nil {
			return statemachine.ExitState, err
		}

		return statemachine.ExitState, next.SetNextState(LabelLoading)
	case found && slices.Equal(sortedCothemes(running), known):
		return statemachine.GoNext, nil
	default:
		return statemachine.ExitState, next.SetNextState(LabelLoading)
	}
}

func startThemes(ctx context.Context, shell platform.ShellLib) error {
	log := logger.Get(ctx)
	selections := shell.StartupThemes()

	if limit := max(shell.MaxNumCoplayers(), 0); len(selections) > limit {
		log.Warn("More startup themes than coplayers", "themes", len(selections), "coplayers", limit)

		selections = selections[:limit]
	}

	for _, sel := range selections {
		ok, err := shell.StartNewTheme(ctx, sel)
		if err != nil {
			return fmt.Errorf("start theme %s: %w", sel.ThemeID, err)
		}

		if !ok {
			log.Warn("Startup theme refused", "theme", sel.ThemeID)
		}
	}

	return nil
}

func (s *shellIdle) preWait(_ context.Context, exec Exec, _ statemachine.Transitions) (statemachine.StepControl, error) {
	s.changed.Reset()
	exec.StartPresentationState()

	return statemachine.GoNext, nil
}

func (s *shellIdle) wait(_ context.Context, exec Exec, _ statemachine.Transitions) (statemachine.StepControl, error) {
	if exec.WaitForPresentationStateComplete() || exec.WaitForNonTransactionalCondition(s.changed.Present) {
		return statemachine.GoNext, nil
	}

	return statemachine.RepeatWait, nil
}

func (s *shellIdle) postWait(ctx context.Context, exec Exec, next statemachine.Transitions) (statemachine.StepControl, error) {
	if _, ok := s.changed.Take(); ok {
		logger.Get(ctx).Info("Running themes changed by the platform")

		return statemachine.ExitState, next.SetNextState(LabelLoading)
	}

	c, ok := exec.PresentationCompletion()
	if !ok {
		return statemachine.ExitState, statemachine.NewLogicStateError(ShellIdleState, statemachine.CommittedPostWait,
			fmt.Errorf("%w: presentation completion", statemachine.ErrEventNotRecorded))
	}

	action, recognized, err := actions.DecodeShellIdle(c.Action, c.Payload)
	if err != nil {
		return statemachine.ExitState, statemachine.NewLogicStateError(ShellIdleState, statemachine.CommittedPostWait,
			fmt.Errorf("%w: %w", statemachine.ErrUnexpectedAction, err))
	}

	if !recognized {
		return statemachine.BackToPreWait, nil
	}

	changed, err := dispatch(ctx, exec.Shell(), action)
	if err != nil {
		return statemachine.ExitState, fmt.Errorf("%s: %w", action.ActionName(), err)
	}

	if !changed {
		return statemachine.BackToPreWait, nil
	}

	return statemachine.ExitState, next.SetNextState(LabelLoading)
}

// dispatch performs a shell action and reports whether the running themes
// changed.
func dispatch(ctx context.Context, libs *platform.ShellLibs, action actions.ShellIdleAction) (bool, error) {
	switch a := action.(type) {
	case actions.StartNewThemeParam:
		return libs.Shell.StartNewTheme(ctx, platform.ThemeSelection{ThemeID: a.ThemeID, Denomination: a.Denomination})
	case actions.SwitchCoplayerThemeParam:
		return libs.Shell.SwitchCoplayerTheme(ctx, a.Coplayer,
			platform.ThemeSelection{ThemeID: a.ThemeID, Denomination: a.Denomination})
	case actions.ShutDownCoplayerParam:
		return libs.Shell.ShutDownCoplayer(ctx, a.Coplayer)
	case actions.RequestChooserParam:
		return false, libs.Chooser.RequestChooser(ctx, a.Coplayer)
	case actions.RequestCashoutParam:
		return false, libs.Bank.RequestCashout(ctx)
	case actions.AddCreditsParam:
		return false, libs.Demo.AddCredits(ctx, a.Amount, a.Denomination)
	default:
		return false, nil
	}
}
