// Package shellstates implements the shell of a multi-coplayer cabinet:
//
//	ShellIdle -loading-> ShellThemeLoading -complete-> ShellIdle
//
// The shell decides which themes run on which coplayer and publishes the
// selectable and running themes to the presentation.
package shellstates

import (
	"context"
	"errors"

	"github.com/amp-labs/logicstates/criticaldata"
	"github.com/amp-labs/logicstates/platform"
	"github.com/amp-labs/logicstates/statemachine"
)

// State names.
const (
	ShellIdleState         = "ShellIdle"
	ShellThemeLoadingState = "ShellThemeLoading"
)

// Transition labels.
const (
	LabelLoading  = "loading"
	LabelComplete = "complete"
)

// ErrTransactionRequired indicates a step that reads or writes critical data ran without a transaction.
var ErrTransactionRequired = errors.New("step requires a critical data transaction")

type (
	// Machine is a shell machine.
	Machine = statemachine.Machine[*platform.ShellLibs, Exec]
	// State is a shell state.
	State = statemachine.State[*platform.ShellLibs, Exec]
)

// Exec is the executor view of a shell state step.
type Exec interface {
	statemachine.Exec
	// Shell returns the platform libraries of the shell.
	Shell() *platform.ShellLibs
}

type frameExec struct {
	*statemachine.Frame

	libs *platform.ShellLibs
}

func (e frameExec) Shell() *platform.ShellLibs {
	return e.libs
}

// NewExec returns the Engine exec constructor for the shell libs.
func NewExec(libs *platform.ShellLibs) func(*statemachine.Frame) Exec {
	return func(f *statemachine.Frame) Exec {
		return frameExec{Frame: f, libs: libs}
	}
}

func newState(name string) *statemachine.StateBuilder[*platform.ShellLibs, Exec] {
	return statemachine.NewState[*platform.ShellLibs, Exec](name)
}

func transaction(exec Exec, state string, step statemachine.Step) (criticaldata.Txn, error) {
	txn, ok := exec.Transaction()
	if !ok {
		return nil, statemachine.NewLogicStateError(state, step, ErrTransactionRequired)
	}

	return txn, nil
}

func startPresentation(_ context.Context, exec Exec, _ statemachine.Transitions) (statemachine.StepControl, error) {
	exec.StartPresentationState()

	return statemachine.GoNext, nil
}

func presentationDone(_ context.Context, exec Exec, _ statemachine.Transitions) (statemachine.StepControl, error) {
	if exec.WaitForPresentationStateComplete() {
		return statemachine.GoNext, nil
	}

	return statemachine.RepeatWait, nil
}
