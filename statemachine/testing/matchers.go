package testing

import (
	"errors"
	"fmt"

	"github.com/amp-labs/logicstates/statemachine"
)

// Matcher errors.
var (
	ErrNoExecutionTrace   = errors.New("no execution trace available")
	ErrStateNotVisited    = errors.New("state was not visited")
	ErrTransitionNotTaken = errors.New("transition was not taken")
	ErrStepNotRun         = errors.New("step was not run")
)

// Matcher checks a property of an execution trace.
type Matcher interface {
	Match(trace []TraceEntry) (bool, error)
	Description() string
}

// StateWasVisited matches a trace containing a step of the named state.
func StateWasVisited(name string) Matcher {
	return &stateVisitedMatcher{stateName: name}
}

type stateVisitedMatcher struct {
	stateName string
}

func (m *stateVisitedMatcher) Match(trace []TraceEntry) (bool, error) {
	for _, entry := range trace {
		if entry.State == m.stateName {
			return true, nil
		}
	}

	return false, fmt.Errorf("%w: '%s'", ErrStateNotVisited, m.stateName)
}

func (m *stateVisitedMatcher) Description() string {
	return fmt.Sprintf("state '%s' should be visited", m.stateName)
}

// TransitionWasTaken matches a trace where a step of from is directly
// followed by a step of to.
func TransitionWasTaken(from, to string) Matcher {
	return &transitionTakenMatcher{from: from, to: to}
}

type transitionTakenMatcher struct {
	from string
	to   string
}

func (m *transitionTakenMatcher) Match(trace []TraceEntry) (bool, error) {
	if len(trace) == 0 {
		return false, ErrNoExecutionTrace
	}

	for i := range len(trace) - 1 {
		if trace[i].State == m.from && trace[i+1].State == m.to {
			return true, nil
		}
	}

	return false, fmt.Errorf("%w: from '%s' to '%s'", ErrTransitionNotTaken, m.from, m.to)
}

func (m *transitionTakenMatcher) Description() string {
	return fmt.Sprintf("transition from '%s' to '%s' should be taken", m.from, m.to)
}

// StepWasRun matches a trace containing the given step of state.
func StepWasRun(state string, step statemachine.Step) Matcher {
	return &stepRunMatcher{state: state, step: step}
}

type stepRunMatcher struct {
	state string
	step  statemachine.Step
}

func (m *stepRunMatcher) Match(trace []TraceEntry) (bool, error) {
	for _, entry := range trace {
		if entry.State == m.state && entry.Step == m.step {
			return true, nil
		}
	}

	return false, fmt.Errorf("%w: %s.%s", ErrStepNotRun, m.state, m.step)
}

func (m *stepRunMatcher) Description() string {
	return fmt.Sprintf("step %s.%s should run", m.state, m.step)
}

// AllOf matches when every matcher matches.
func AllOf(matchers ...Matcher) Matcher {
	return allOfMatcher(matchers)
}

type allOfMatcher []Matcher

func (m allOfMatcher) Match(trace []TraceEntry) (bool, error) {
	for _, matcher := range m {
		if ok, err := matcher.Match(trace); !ok {
			return false, err
		}
	}

	return true, nil
}

func (m allOfMatcher) Description() string {
	return fmt.Sprintf("all of %d matchers should match", len(m))
}
