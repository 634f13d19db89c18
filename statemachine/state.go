package statemachine

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/amp-labs/logicstates/closer"
)

// InitFunc subscribes a state to the platform events it cares about. Every
// subscription must be added to subs so that CleanUp and Dispose release it.
type InitFunc[I any] func(ctx context.Context, init I, subs *Subscriptions) error

// CleanUpFunc undoes whatever an InitFunc did beyond its tracked subscriptions.
type CleanUpFunc[I any] func(ctx context.Context, init I) error

type stepDef[E Exec] struct {
	fn     StepFunc[E]
	weight TransactionWeight
}

// State is a named node of a state machine graph, described as data: an
// initial step, one optional function per step with its declared transaction
// weight, lifecycle hooks, and labelled outgoing transitions.
//
// States are built with NewState and wired by the machine constructor; after
// the owning Machine is initialized the record is read-only.
type State[I any, E Exec] struct {
	name        string
	description string
	initialStep Step
	steps       [len(Steps)]stepDef[E]
	initialize  InitFunc[I]
	cleanUp     CleanUpFunc[I]

	labels      []string
	transitions map[string]*State[I, E]
	sealed      bool

	subs      *Subscriptions
	disposal  *closer.Closer
	disposeFn io.Closer
}

// Name returns the immutable state name.
func (s *State[I, E]) Name() string {
	return s.name
}

// Description returns the human readable description given at build time.
func (s *State[I, E]) Description() string {
	return s.description
}

// InitialStep is the step every visit of this state starts at.
func (s *State[I, E]) InitialStep() Step {
	return s.initialStep
}

// Implements reports whether the state supplies its own function for step.
// Steps before InitialStep are never implemented.
func (s *State[I, E]) Implements(step Step) bool {
	if !step.valid() || step < s.initialStep {
		return false
	}

	return s.steps[step].fn != nil
}

// TransactionWeight returns the weight the driver must open around step.
// Skipped and default steps report None.
func (s *State[I, E]) TransactionWeight(step Step) TransactionWeight {
	if !s.Implements(step) {
		return None
	}

	return s.steps[step].weight
}

// Invoke runs one step. Steps without a function behave as the defaults:
// GoNext for Processing, CommittedPreWait and CommittedWait, ExitState for
// CommittedPostWait.
func (s *State[I, E]) Invoke(ctx context.Context, step Step, exec E) (StepControl, error) {
	if !step.valid() || step < s.initialStep {
		return ExitState, NewLogicStateError(s.name, step, ErrInvalidStep)
	}

	def := s.steps[step]
	if def.fn == nil {
		if step == CommittedPostWait {
			return ExitState, nil
		}

		return GoNext, nil
	}

	ctl, err := def.fn(ctx, exec, boundTransitions[I, E]{state: s, exec: exec})
	if err != nil {
		return ctl, err
	}

	switch ctl {
	case GoNext, RepeatWait, ExitState, BackToPreWait:
		return ctl, nil
	default:
		return ctl, NewLogicStateError(s.name, step, fmt.Errorf("%w: %d", ErrInvalidStepControl, ctl))
	}
}

// Labels returns the declared transition labels in declaration order.
func (s *State[I, E]) Labels() []string {
	return slices.Clone(s.labels)
}

func (s *State[I, E]) hasLabel(label string) bool {
	return slices.Contains(s.labels, label)
}

// Target returns the state wired under label.
func (s *State[I, E]) Target(label string) (*State[I, E], bool) {
	t := s.transitions[label]

	return t, t != nil
}

// Wire sets the target of a declared transition. Each label can be wired once,
// and only before the owning machine is initialized.
func (s *State[I, E]) Wire(label string, target *State[I, E]) error {
	subject := s.name + "." + label

	switch {
	case s.sealed:
		return NewConfigurationError("Wire", subject, ErrMachineSealed)
	case !s.hasLabel(label):
		return NewConfigurationError("Wire", subject, ErrUnknownTransition)
	case target == nil:
		return NewConfigurationError("Wire", subject, ErrNilState)
	case s.transitions[label] != nil:
		return NewConfigurationError("Wire", subject, ErrTransitionRewired)
	}

	s.transitions[label] = target

	return nil
}

// MustWire is Wire for machine constructors; it panics on a configuration error.
func (s *State[I, E]) MustWire(label string, target *State[I, E]) *State[I, E] {
	if err := s.Wire(label, target); err != nil {
		panic(err)
	}

	return s
}

// SetNextState tells the driver to continue with the state wired under label.
// An unwired label is a fatal configuration error naming the transition.
func (s *State[I, E]) SetNextState(exec E, label string) error {
	if !s.hasLabel(label) {
		return NewConfigurationError("SetNextState", s.name+"."+label, ErrUnknownTransition)
	}

	target := s.transitions[label]
	if target == nil {
		return NewConfigurationError("SetNextState", s.name+"."+label, ErrTransitionUnset)
	}

	exec.SetNextState(target.name)

	return nil
}

// AddDisposable registers a resource released when the state is disposed.
func (s *State[I, E]) AddDisposable(c io.Closer) {
	s.disposal.Add(closer.CloseOnce(c))
}

// Initialize runs the state's subscription hook.
func (s *State[I, E]) Initialize(ctx context.Context, init I) error {
	if s.initialize == nil {
		return nil
	}

	if err := s.initialize(ctx, init, s.subs); err != nil {
		return fmt.Errorf("initialize %s: %w", s.name, err)
	}

	return nil
}

// CleanUp releases the subscriptions made by Initialize and runs the clean-up hook.
func (s *State[I, E]) CleanUp(ctx context.Context, init I) error {
	subsErr := s.subs.Close()

	if s.cleanUp != nil {
		if err := s.cleanUp(ctx, init); err != nil {
			return fmt.Errorf("clean up %s: %w", s.name, err)
		}
	}

	if subsErr != nil {
		return fmt.Errorf("clean up %s: %w", s.name, subsErr)
	}

	return nil
}

// Dispose releases every resource owned by the state exactly once.
func (s *State[I, E]) Dispose() error {
	return s.disposeFn.Close()
}

// Subscriptions tracks the event subscriptions of one state.
type Subscriptions struct {
	mu      sync.Mutex
	closers []io.Closer
}

// Add tracks a subscription. Nil is ignored. A panic while unsubscribing is
// reported as an error.
func (s *Subscriptions) Add(c io.Closer) {
	if c == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.closers = append(s.closers, closer.CloseOnce(closer.HandlePanic(c)))
}

// Len returns the number of live subscriptions.
func (s *Subscriptions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.closers)
}

// Close unsubscribes everything, newest first, and forgets the subscriptions.
func (s *Subscriptions) Close() error {
	s.mu.Lock()
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	slices.Reverse(closers)

	return closer.NewCloser(closers...).Close()
}
