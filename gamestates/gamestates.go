// Package gamestates implements the game cycle of one coplayer:
//
//	Idle -committed-> Enroll -success-> Evaluation -complete-> Play
//	  -mainComplete-> Finalize -complete-> EndGameCycle -complete-> Idle
//
// with Enroll -failure-> Idle, Play -abort-> Abort -complete-> EndGameCycle
// and Abort -rejected-> Play.
package gamestates

import (
	"context"
	"errors"
	"fmt"

	"github.com/amp-labs/logicstates/criticaldata"
	"github.com/amp-labs/logicstates/logger"
	"github.com/amp-labs/logicstates/platform"
	"github.com/amp-labs/logicstates/statemachine"
)

// State names.
const (
	IdleState         = "Idle"
	EnrollState       = "Enroll"
	EvaluationState   = "Evaluation"
	PlayState         = "Play"
	FinalizeState     = "Finalize"
	EndGameCycleState = "EndGameCycle"
	AbortState        = "Abort"
)

// Transition labels.
const (
	LabelCommitted    = "committed"
	LabelSuccess      = "success"
	LabelFailure      = "failure"
	LabelComplete     = "complete"
	LabelMainComplete = "mainComplete"
	LabelAbort        = "abort"
	LabelRejected     = "rejected"
)

var (
	// ErrTransactionRequired indicates a step that writes critical data ran without a transaction.
	ErrTransactionRequired = errors.New("step requires a critical data transaction")
	// ErrOutcomeRejected indicates the platform refused an outcome adjustment.
	ErrOutcomeRejected = errors.New("outcome adjustment rejected")
)

type (
	// Machine is a coplayer game cycle machine.
	Machine = statemachine.Machine[*platform.CoplayerLib, Exec]
	// State is a coplayer game cycle state.
	State = statemachine.State[*platform.CoplayerLib, Exec]
)

// Exec is the executor view of a game state step.
type Exec interface {
	statemachine.Exec
	// Coplayer returns the platform libraries of the coplayer being driven.
	Coplayer() *platform.CoplayerLib
}

type frameExec struct {
	*statemachine.Frame

	lib *platform.CoplayerLib
}

func (e frameExec) Coplayer() *platform.CoplayerLib {
	return e.lib
}

// NewExec returns the Engine exec constructor for coplayer lib.
func NewExec(lib *platform.CoplayerLib) func(*statemachine.Frame) Exec {
	return func(f *statemachine.Frame) Exec {
		return frameExec{Frame: f, lib: lib}
	}
}

func newState(name string) *statemachine.StateBuilder[*platform.CoplayerLib, Exec] {
	return statemachine.NewState[*platform.CoplayerLib, Exec](name)
}

func transaction(exec Exec, state string, step statemachine.Step) (criticaldata.Txn, error) {
	txn, ok := exec.Transaction()
	if !ok {
		return nil, statemachine.NewLogicStateError(state, step, ErrTransactionRequired)
	}

	return txn, nil
}

func eventMissing(state string, step statemachine.Step, event string) error {
	return logger.AnnotateError(
		statemachine.NewLogicStateError(state, step, fmt.Errorf("%w: %s", statemachine.ErrEventNotRecorded, event)),
		"event", event)
}

// presentationDone is the Wait step of states that only wait for their presentation.
func presentationDone(_ context.Context, exec Exec, _ statemachine.Transitions) (statemachine.StepControl, error) {
	if exec.WaitForPresentationStateComplete() {
		return statemachine.GoNext, nil
	}

	return statemachine.RepeatWait, nil
}

// startPresentation is the PreWait step of states that only start their presentation.
func startPresentation(_ context.Context, exec Exec, _ statemachine.Transitions) (statemachine.StepControl, error) {
	exec.StartPresentationState()

	return statemachine.GoNext, nil
}
