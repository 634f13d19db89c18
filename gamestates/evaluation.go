package gamestates

import (
	"context"
	"fmt"

	"github.com/amp-labs/logicstates/criticaldata"
	"github.com/amp-labs/logicstates/logger"
	"github.com/amp-labs/logicstates/platform"
	"github.com/amp-labs/logicstates/statemachine"
)

// EvaluateFunc computes the outcome of the enrolled game cycle. last reports
// that no further outcome adjustments follow in this cycle.
type EvaluateFunc func(ctx context.Context, cycle CycleRecord) (outcome platform.Outcome, last bool, err error)

// EvaluateNothing is the default EvaluateFunc: an empty, final outcome.
func EvaluateNothing(context.Context, CycleRecord) (platform.Outcome, bool, error) {
	return platform.Outcome{}, true, nil
}

type evaluation struct {
	keys     keys
	info     *CycleInfo
	evaluate EvaluateFunc
	adjusted statemachine.EventSlot[platform.OutcomeAdjusted]
}

func newEvaluation(k keys, info *CycleInfo, evaluate EvaluateFunc) *State {
	if evaluate == nil {
		evaluate = EvaluateNothing
	}

	e := &evaluation{keys: k, info: info, evaluate: evaluate}

	return newState(EvaluationState).
		Describe("Evaluates the play and reports the outcome to the platform").
		OnInitialize(e.subscribe).
		Processing(statemachine.Light, e.process).
		PreWait(statemachine.Light, e.preWait).
		Wait(statemachine.None, e.wait).
		PostWait(statemachine.Light, e.postWait).
		Transitions(LabelComplete).
		MustBuild()
}

func (e *evaluation) subscribe(_ context.Context, lib *platform.CoplayerLib, subs *statemachine.Subscriptions) error {
	subs.Add(lib.Play.OutcomeAdjustmentReady().Subscribe(e.adjusted.Store))

	return nil
}

func (e *evaluation) process(ctx context.Context, exec Exec, _ statemachine.Transitions) (statemachine.StepControl, error) {
	txn, err := transaction(exec, EvaluationState, statemachine.Processing)
	if err != nil {
		return statemachine.ExitState, err
	}

	cycle, ok, err := loadCycle(txn, e.keys)
	if err != nil {
		return statemachine.ExitState, err
	}

	if !ok {
		return statemachine.ExitState, statemachine.NewLogicStateError(EvaluationState, statemachine.Processing,
			fmt.Errorf("%w: %s", criticaldata.ErrNotFound, e.keys.cycle))
	}

	e.info.set(cycle.ID)

	outcome, last, err := e.evaluate(logger.WithCycle(ctx, cycle.ID), cycle)
	if err != nil {
		return statemachine.ExitState, fmt.Errorf("evaluate game cycle %s: %w", cycle.ID, err)
	}

	if err := criticaldata.Save(txn, e.keys.outcome, pendingOutcome{Outcome: outcome, Last: last}); err != nil {
		return statemachine.ExitState, fmt.Errorf("save outcome: %w", err)
	}

	return statemachine.GoNext, nil
}

func (e *evaluation) preWait(ctx context.Context, exec Exec, _ statemachine.Transitions) (statemachine.StepControl, error) {
	txn, err := transaction(exec, EvaluationState, statemachine.CommittedPreWait)
	if err != nil {
		return statemachine.ExitState, err
	}

	pending, ok, err := criticaldata.Load[pendingOutcome](txn, e.keys.outcome)
	if err != nil {
		return statemachine.ExitState, fmt.Errorf("load outcome: %w", err)
	}

	if !ok {
		return statemachine.ExitState, statemachine.NewLogicStateError(EvaluationState, statemachine.CommittedPreWait,
			fmt.Errorf("%w: %s", criticaldata.ErrNotFound, e.keys.outcome))
	}

	e.adjusted.Reset()

	play := exec.Coplayer().Play
	if pending.Last {
		err = play.AdjustLastOutcome(ctx, pending.Outcome)
	} else {
		err = play.AdjustOutcome(ctx, pending.Outcome)
	}

	if err != nil {
		return statemachine.ExitState, fmt.Errorf("adjust outcome: %w", err)
	}

	logger.Get(e.info.logContext(ctx)).Debug("Outcome reported", "total", pending.Outcome.Total(), "last", pending.Last)

	return statemachine.GoNext, nil
}

// wait also asks the platform, since the response may have arrived before a
// restart, when no state was subscribed.
func (e *evaluation) wait(_ context.Context, exec Exec, _ statemachine.Transitions) (statemachine.StepControl, error) {
	ready := exec.WaitForNonTransactionalCondition(func() bool {
		if e.adjusted.Present() {
			return true
		}

		_, ok := exec.Coplayer().Play.OutcomeAdjustmentResult()

		return ok
	})
	if ready {
		return statemachine.GoNext, nil
	}

	return statemachine.RepeatWait, nil
}

func (e *evaluation) postWait(_ context.Context, exec Exec, next statemachine.Transitions) (statemachine.StepControl, error) {
	ev, ok := e.adjusted.Take()
	if !ok {
		ev, ok = exec.Coplayer().Play.OutcomeAdjustmentResult()
	}

	if !ok {
		return statemachine.ExitState, eventMissing(EvaluationState, statemachine.CommittedPostWait, "outcome adjustment")
	}

	if !ev.Accepted {
		return statemachine.ExitState, statemachine.NewLogicStateError(EvaluationState, statemachine.CommittedPostWait,
			ErrOutcomeRejected)
	}

	return statemachine.ExitState, next.SetNextState(LabelComplete)
}
