package gamestates

import (
	"context"
	"fmt"

	"github.com/amp-labs/logicstates/logger"
	"github.com/amp-labs/logicstates/platform"
	"github.com/amp-labs/logicstates/statemachine"
)

type enroll struct {
	keys     keys
	info     *CycleInfo
	response statemachine.EventSlot[platform.EnrollResponse]
}

func newEnroll(k keys, info *CycleInfo) *State {
	e := &enroll{keys: k, info: info}

	return newState(EnrollState).
		Describe("Waits for the platform to accept the committed game cycle").
		InitialStep(statemachine.CommittedPreWait).
		OnInitialize(e.subscribe).
		PreWait(statemachine.Light, e.preWait).
		Wait(statemachine.None, e.wait).
		PostWait(statemachine.Heavy, e.postWait).
		Transitions(LabelSuccess, LabelFailure).
		MustBuild()
}

func (e *enroll) subscribe(_ context.Context, lib *platform.CoplayerLib, subs *statemachine.Subscriptions) error {
	subs.Add(lib.Play.EnrollResponseReady().Subscribe(e.response.Store))

	return nil
}

// preWait picks up a response that arrived before this state subscribed, for
// example while the machine was being restored.
func (e *enroll) preWait(_ context.Context, exec Exec, _ statemachine.Transitions) (statemachine.StepControl, error) {
	if resp, ok := exec.Coplayer().Play.EnrollResult(); ok {
		e.response.Store(resp)
	}

	return statemachine.GoNext, nil
}

func (e *enroll) wait(_ context.Context, exec Exec, _ statemachine.Transitions) (statemachine.StepControl, error) {
	ready := exec.WaitForNonTransactionalCondition(func() bool {
		if e.response.Present() {
			return true
		}

		_, ok := exec.Coplayer().Play.EnrollResult()

		return ok
	})
	if ready {
		return statemachine.GoNext, nil
	}

	return statemachine.RepeatWait, nil
}

func (e *enroll) postWait(ctx context.Context, exec Exec, next statemachine.Transitions) (statemachine.StepControl, error) {
	resp, ok := e.response.Take()
	if !ok {
		resp, ok = exec.Coplayer().Play.EnrollResult()
	}

	if !ok {
		return statemachine.ExitState, eventMissing(EnrollState, statemachine.CommittedPostWait, "enroll response")
	}

	if resp.Succeeded {
		return statemachine.ExitState, next.SetNextState(LabelSuccess)
	}

	txn, err := transaction(exec, EnrollState, statemachine.CommittedPostWait)
	if err != nil {
		return statemachine.ExitState, err
	}

	if err := clearCycle(txn, e.keys); err != nil {
		return statemachine.ExitState, fmt.Errorf("enroll failed: %w", err)
	}

	logger.Get(e.info.logContext(ctx)).Warn("Game cycle enroll refused")
	e.info.set("")

	return statemachine.ExitState, next.SetNextState(LabelFailure)
}
