package testing

import (
	"context"
	"slices"
	"sync"

	"github.com/amp-labs/logicstates/criticaldata"
	"github.com/amp-labs/logicstates/statemachine"
)

// Presenter is a fake presentation layer recording every started state.
type Presenter struct {
	mu      sync.Mutex
	started []string
	err     error
}

// StartState records the request.
func (p *Presenter) StartState(_ context.Context, state string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.started = append(p.started, state)

	return p.err
}

// FailWith makes subsequent StartState calls fail with err.
func (p *Presenter) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.err = err
}

// Started returns the states started so far, in order.
func (p *Presenter) Started() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return slices.Clone(p.started)
}

// Recorder is an Exec for calling state steps directly, without an Engine.
// Tests set Complete and Completion to simulate the presentation layer and
// read back what the step did.
type Recorder struct {
	Started        int
	Complete       bool
	Completion     *statemachine.Completion
	Next           string
	ConditionPolls int
	Txn            criticaldata.Txn
}

func (r *Recorder) StartPresentationState() {
	r.Started++
}

func (r *Recorder) WaitForPresentationStateComplete() bool {
	return r.Complete
}

func (r *Recorder) WaitForNonTransactionalCondition(cond func() bool) bool {
	r.ConditionPolls++

	return cond != nil && cond()
}

func (r *Recorder) SetNextState(name string) {
	r.Next = name
}

func (r *Recorder) PresentationCompletion() (statemachine.Completion, bool) {
	if r.Completion == nil {
		return statemachine.Completion{}, false
	}

	c := *r.Completion
	r.Completion = nil

	return c, true
}

func (r *Recorder) Transaction() (criticaldata.Txn, bool) {
	return r.Txn, r.Txn != nil
}

var _ statemachine.Exec = (*Recorder)(nil)
