package statemachine

import (
	"context"

	"github.com/amp-labs/logicstates/criticaldata"
)

// Step is one of the four ordered phases of a state visit.
type Step int

const (
	// Processing is pure computation with no external wait.
	Processing Step = iota
	// CommittedPreWait begins the externally visible part of the visit.
	CommittedPreWait
	// CommittedWait polls for an external event; it is re-entered on RepeatWait.
	CommittedWait
	// CommittedPostWait finishes processing of the awaited event.
	CommittedPostWait
)

// Steps lists every step in execution order.
var Steps = [...]Step{Processing, CommittedPreWait, CommittedWait, CommittedPostWait}

func (s Step) String() string {
	switch s {
	case Processing:
		return "Processing"
	case CommittedPreWait:
		return "CommittedPreWait"
	case CommittedWait:
		return "CommittedWait"
	case CommittedPostWait:
		return "CommittedPostWait"
	default:
		return "Step(invalid)"
	}
}

func (s Step) valid() bool {
	return s >= Processing && s <= CommittedPostWait
}

// TransactionWeight is the durability class of the transaction a step needs.
type TransactionWeight int

const (
	// None means the step runs outside any transaction.
	None TransactionWeight = iota
	// Light covers cheap reads and updates of non-critical data.
	Light
	// Heavy covers state transitions that must be persisted.
	Heavy
)

func (w TransactionWeight) String() string {
	switch w {
	case None:
		return "none"
	case Light:
		return "light"
	case Heavy:
		return "heavy"
	default:
		return "invalid"
	}
}

// StepControl tells the driver what to do after a step returns.
type StepControl int

const (
	// GoNext advances to the following step of the same visit.
	GoNext StepControl = iota
	// RepeatWait re-polls CommittedWait.
	RepeatWait
	// ExitState ends the visit; a next state must have been set.
	ExitState
	// BackToPreWait restarts the visit at CommittedPreWait.
	BackToPreWait
)

func (c StepControl) String() string {
	switch c {
	case GoNext:
		return "GoNext"
	case RepeatWait:
		return "RepeatWait"
	case ExitState:
		return "ExitState"
	case BackToPreWait:
		return "BackToPreWait"
	default:
		return "StepControl(invalid)"
	}
}

// Completion is what the presentation layer reports when it finishes the
// presentation counterpart of a logic state. Action is empty when the
// presentation completed without requesting anything.
type Completion struct {
	State   string
	Action  string
	Payload any
}

// Exec is the per-step view of the framework executor. It is only valid for
// the duration of the step call it was passed to.
type Exec interface {
	// StartPresentationState signals the presentation layer to run the
	// counterpart of the current state.
	StartPresentationState()
	// WaitForPresentationStateComplete is a single non-blocking poll.
	WaitForPresentationStateComplete() bool
	// WaitForNonTransactionalCondition evaluates cond once, outside any transaction.
	WaitForNonTransactionalCondition(cond func() bool) bool
	// SetNextState records the successor chosen for this visit.
	SetNextState(name string)
	// PresentationCompletion consumes the completion recorded for the current
	// state since the last StartPresentationState.
	PresentationCompletion() (Completion, bool)
	// Transaction returns the critical data transaction opened for this step.
	// It is absent for steps declaring the None weight.
	Transaction() (criticaldata.Txn, bool)
}

// Presentation is the presentation layer as seen by an Engine.
type Presentation interface {
	// StartState asks the presentation to run its counterpart of the named state.
	// Completion is reported back through Engine.CompletePresentation.
	StartState(ctx context.Context, state string) error
}

// StepFunc implements one step of a state.
type StepFunc[E Exec] func(ctx context.Context, exec E, next Transitions) (StepControl, error)
