// Package testing provides test utilities for state machines: a tracing
// engine wrapper, a recording Exec for driving single steps, and a fake
// presentation layer.
//
//nolint:err113 // Test helpers use dynamic errors
package testing

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/amp-labs/logicstates/criticaldata"
	"github.com/amp-labs/logicstates/statemachine"
	"github.com/stretchr/testify/require"
)

// TraceEntry records a single step call.
type TraceEntry struct {
	Timestamp time.Time
	State     string
	Step      statemachine.Step
	Duration  time.Duration
	Error     error
}

// TestEngine wraps an Engine with an execution trace and assertions.
type TestEngine[I any, E statemachine.Exec] struct {
	*statemachine.Engine[I, E]

	t     *testing.T
	mu    sync.Mutex
	trace []TraceEntry
	path  []string
}

// NewTestEngine creates a traced engine over machine. A nil store is replaced
// by a fresh memory store.
func NewTestEngine[I any, E statemachine.Exec](
	t *testing.T,
	machine *statemachine.Machine[I, E],
	newExec func(*statemachine.Frame) E,
	opts statemachine.EngineOptions,
) *TestEngine[I, E] {
	t.Helper()

	if opts.Store == nil {
		opts.Store = criticaldata.NewMemoryStore()
	}

	if opts.PollInterval == 0 {
		opts.PollInterval = time.Millisecond
	}

	engine, err := statemachine.NewEngine(machine, newExec, opts)
	require.NoError(t, err, "failed to create engine")

	te := &TestEngine[I, E]{Engine: engine, t: t}

	engine.AddStepHook(func(_ context.Context, _, state string, step statemachine.Step, phase string, err error) {
		te.mu.Lock()
		defer te.mu.Unlock()

		switch phase {
		case "start":
			te.trace = append(te.trace, TraceEntry{Timestamp: time.Now(), State: state, Step: step})

			if len(te.path) == 0 || te.path[len(te.path)-1] != state {
				te.path = append(te.path, state)
			}
		case "end":
			if len(te.trace) > 0 {
				last := &te.trace[len(te.trace)-1]
				last.Duration = time.Since(last.Timestamp)
				last.Error = err
			}
		}
	})

	return te
}

// Trace returns a copy of the recorded step calls.
func (te *TestEngine[I, E]) Trace() []TraceEntry {
	te.mu.Lock()
	defer te.mu.Unlock()

	return append([]TraceEntry(nil), te.trace...)
}

// Path returns the sequence of visited states, consecutive repeats collapsed.
func (te *TestEngine[I, E]) Path() []string {
	te.mu.Lock()
	defer te.mu.Unlock()

	return append([]string(nil), te.path...)
}

// Steps runs n steps and fails the test on the first error.
func (te *TestEngine[I, E]) Steps(ctx context.Context, n int) []statemachine.StepReport {
	te.t.Helper()

	reports := make([]statemachine.StepReport, 0, n)

	for range n {
		report, err := te.Tick(ctx)
		require.NoError(te.t, err, "step %d failed", len(reports))

		reports = append(reports, report)
	}

	return reports
}

// RunUntilState runs steps until the engine is positioned in state, failing
// the test after maxSteps steps.
func (te *TestEngine[I, E]) RunUntilState(ctx context.Context, state string, maxSteps int) {
	te.t.Helper()

	for range maxSteps {
		report, err := te.Tick(ctx)
		require.NoError(te.t, err)

		if report.Next == state {
			return
		}
	}

	current, step := te.Position()
	te.t.Fatalf("state %q not reached within %d steps, engine is at %s.%s", state, maxSteps, current, step)
}

// AssertStateVisited checks that some step of state ran.
func (te *TestEngine[I, E]) AssertStateVisited(state string) {
	te.t.Helper()

	ok, err := StateWasVisited(state).Match(te.Trace())
	require.True(te.t, ok, "%v", err)
}

// AssertTransitionTaken checks that the engine moved from one state directly to another.
func (te *TestEngine[I, E]) AssertTransitionTaken(from, to string) {
	te.t.Helper()

	ok, err := TransitionWasTaken(from, to).Match(te.Trace())
	require.True(te.t, ok, "%v", err)
}

// AssertPosition checks where the next Tick will run.
func (te *TestEngine[I, E]) AssertPosition(state string, step statemachine.Step) {
	te.t.Helper()

	current, currentStep := te.Position()
	require.Equal(te.t, fmt.Sprintf("%s.%s", state, step), fmt.Sprintf("%s.%s", current, currentStep))
}
