package statemachine

import "github.com/amp-labs/logicstates/closer"

// StateBuilder provides a fluent API for describing a State record.
//
//	idle := statemachine.NewState[Init, Exec]("Idle").
//		PreWait(statemachine.Heavy, startPresentation).
//		Wait(statemachine.None, pollPresentation).
//		PostWait(statemachine.Heavy, handleAction).
//		Transitions("committed").
//		MustBuild()
type StateBuilder[I any, E Exec] struct {
	state *State[I, E]
	err   error
}

// NewState starts describing a state called name. All steps default to the
// framework behaviour until a function is supplied.
func NewState[I any, E Exec](name string) *StateBuilder[I, E] {
	b := &StateBuilder[I, E]{
		state: &State[I, E]{
			name:        name,
			initialStep: Processing,
			transitions: make(map[string]*State[I, E]),
		},
	}

	if name == "" {
		b.err = NewConfigurationError("NewState", "", ErrStateNameRequired)
	}

	return b
}

// Describe sets a human readable description, used by the visualizer.
func (b *StateBuilder[I, E]) Describe(description string) *StateBuilder[I, E] {
	b.state.description = description

	return b
}

// InitialStep makes every visit start at step. Earlier steps are skipped and
// report the None weight.
func (b *StateBuilder[I, E]) InitialStep(step Step) *StateBuilder[I, E] {
	if !step.valid() && b.err == nil {
		b.err = NewConfigurationError("InitialStep", b.state.name, ErrInvalidStep)
	}

	b.state.initialStep = step

	return b
}

// Processing sets the Processing step.
func (b *StateBuilder[I, E]) Processing(weight TransactionWeight, fn StepFunc[E]) *StateBuilder[I, E] {
	return b.step(Processing, weight, fn)
}

// PreWait sets the CommittedPreWait step.
func (b *StateBuilder[I, E]) PreWait(weight TransactionWeight, fn StepFunc[E]) *StateBuilder[I, E] {
	return b.step(CommittedPreWait, weight, fn)
}

// Wait sets the CommittedWait step.
func (b *StateBuilder[I, E]) Wait(weight TransactionWeight, fn StepFunc[E]) *StateBuilder[I, E] {
	return b.step(CommittedWait, weight, fn)
}

// PostWait sets the CommittedPostWait step.
func (b *StateBuilder[I, E]) PostWait(weight TransactionWeight, fn StepFunc[E]) *StateBuilder[I, E] {
	return b.step(CommittedPostWait, weight, fn)
}

func (b *StateBuilder[I, E]) step(step Step, weight TransactionWeight, fn StepFunc[E]) *StateBuilder[I, E] {
	b.state.steps[step] = stepDef[E]{fn: fn, weight: weight}

	return b
}

// OnInitialize sets the subscription hook run by Machine.Initialize.
func (b *StateBuilder[I, E]) OnInitialize(fn InitFunc[I]) *StateBuilder[I, E] {
	b.state.initialize = fn

	return b
}

// OnCleanUp sets the hook run by Machine.CleanUp after subscriptions are released.
func (b *StateBuilder[I, E]) OnCleanUp(fn CleanUpFunc[I]) *StateBuilder[I, E] {
	b.state.cleanUp = fn

	return b
}

// Transitions declares the outgoing transition labels. Targets are wired later
// with State.Wire while the machine is being constructed.
func (b *StateBuilder[I, E]) Transitions(labels ...string) *StateBuilder[I, E] {
	for _, label := range labels {
		if label == "" || b.state.hasLabel(label) {
			if b.err == nil {
				b.err = NewConfigurationError("Transitions", b.state.name+"."+label, ErrDuplicateTransition)
			}

			continue
		}

		b.state.labels = append(b.state.labels, label)
	}

	return b
}

// Build returns the described state, or the first configuration error met.
func (b *StateBuilder[I, E]) Build() (*State[I, E], error) {
	if b.err != nil {
		return nil, b.err
	}

	s := b.state
	s.subs = &Subscriptions{}
	s.disposal = closer.NewCloser(s.subs)
	s.disposeFn = closer.CloseOnce(s.disposal)

	return s, nil
}

// MustBuild is Build for constructors; it panics on a configuration error.
func (b *StateBuilder[I, E]) MustBuild() *State[I, E] {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}

	return s
}
