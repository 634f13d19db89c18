package gamestates

import (
	"context"
	"fmt"

	"github.com/amp-labs/logicstates/logger"
	"github.com/amp-labs/logicstates/statemachine"
)

type endGameCycle struct {
	keys keys
	info *CycleInfo
}

func newEndGameCycle(k keys, info *CycleInfo) *State {
	e := &endGameCycle{keys: k, info: info}

	return newState(EndGameCycleState).
		Describe("Closes the game cycle and forgets its critical data").
		Processing(statemachine.Heavy, e.process).
		Transitions(LabelComplete).
		MustBuild()
}

func (e *endGameCycle) process(ctx context.Context, exec Exec, next statemachine.Transitions) (statemachine.StepControl, error) {
	txn, err := transaction(exec, EndGameCycleState, statemachine.Processing)
	if err != nil {
		return statemachine.ExitState, err
	}

	if err := exec.Coplayer().Play.EndGameCycle(ctx); err != nil {
		return statemachine.ExitState, fmt.Errorf("end game cycle: %w", err)
	}

	if err := clearCycle(txn, e.keys); err != nil {
		return statemachine.ExitState, err
	}

	logger.Get(e.info.logContext(ctx)).Info("Game cycle ended")
	e.info.set("")

	return statemachine.ExitState, next.SetNextState(LabelComplete)
}
