package statemachine

import (
	"context"
	"fmt"

	"github.com/amp-labs/logicstates/criticaldata"
	"go.uber.org/atomic"
)

// Frame is the Engine's implementation of Exec. One Frame lives as long as
// its Engine; the per-step fields are reset before every step.
//
// The completion slot and the presenting state are the only fields touched
// from other goroutines.
type Frame struct {
	ctx          context.Context //nolint:containedctx // scoped to one step call
	state        string
	txn          criticaldata.Txn
	nextState    string
	presentation Presentation
	startErr     error

	presenting *atomic.String
	completion EventSlot[Completion]
}

func newFrame(presentation Presentation) *Frame {
	return &Frame{
		presentation: presentation,
		presenting:   atomic.NewString(""),
	}
}

func (f *Frame) begin(ctx context.Context, state string, txn criticaldata.Txn) {
	f.ctx = ctx
	f.state = state
	f.txn = txn
	f.startErr = nil
}

func (f *Frame) end() {
	f.ctx = nil
	f.txn = nil
}

// StartPresentationState asks the presentation layer to run the counterpart
// of the current state. Any completion still pending from before is dropped.
func (f *Frame) StartPresentationState() {
	f.completion.Reset()
	f.presenting.Store(f.state)

	if f.presentation == nil {
		return
	}

	if err := f.presentation.StartState(f.ctx, f.state); err != nil {
		f.startErr = fmt.Errorf("start presentation of %s: %w", f.state, err)
	}
}

// WaitForPresentationStateComplete reports whether the presentation finished
// the current state. It does not consume the completion.
func (f *Frame) WaitForPresentationStateComplete() bool {
	c, ok := f.completion.Peek()

	return ok && c.State == f.state
}

// WaitForNonTransactionalCondition evaluates cond once.
func (f *Frame) WaitForNonTransactionalCondition(cond func() bool) bool {
	return cond != nil && cond()
}

// SetNextState records the successor of the current visit.
func (f *Frame) SetNextState(name string) {
	f.nextState = name
}

// NextState returns the successor recorded during the current visit.
func (f *Frame) NextState() string {
	return f.nextState
}

// PresentationCompletion consumes the completion of the current state.
func (f *Frame) PresentationCompletion() (Completion, bool) {
	state := f.state

	c, ok := f.completion.TakeIf(func(c Completion) bool { return c.State == state })
	if ok {
		f.presenting.CompareAndSwap(state, "")
	}

	return c, ok
}

// Transaction returns the transaction of the running step, if it has one.
func (f *Frame) Transaction() (criticaldata.Txn, bool) {
	return f.txn, f.txn != nil
}

// Context returns the context of the running step.
func (f *Frame) Context() context.Context {
	if f.ctx == nil {
		return context.Background()
	}

	return f.ctx
}

// State returns the name of the state whose step is running.
func (f *Frame) State() string {
	return f.state
}

func (f *Frame) complete(c Completion) bool {
	if c.State == "" || f.presenting.Load() != c.State {
		return false
	}

	f.completion.Store(c)

	return true
}

var _ Exec = (*Frame)(nil)
