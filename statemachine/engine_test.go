package statemachine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amp-labs/logicstates/criticaldata"
	lserrors "github.com/amp-labs/logicstates/errors"
	"github.com/amp-labs/logicstates/logger"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStep = errors.New("step failed")

type fakePresentation struct {
	mu      sync.Mutex
	started []string
	onStart func(state string)
}

func (p *fakePresentation) StartState(_ context.Context, state string) error {
	p.mu.Lock()
	p.started = append(p.started, state)
	onStart := p.onStart
	p.mu.Unlock()

	if onStart != nil {
		onStart(state)
	}

	return nil
}

func (p *fakePresentation) Started() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]string(nil), p.started...)
}

func frameExec(f *Frame) Exec { return f }

func newTestEngine(
	t *testing.T,
	m *Machine[testInit, Exec],
	store criticaldata.Store,
	presentation Presentation,
) *Engine[testInit, Exec] {
	t.Helper()

	if !m.sealed {
		require.NoError(t, m.Initialize(t.Context(), testInit{}))
	}

	e, err := NewEngine(m, frameExec, EngineOptions{
		Store:        store,
		Presentation: presentation,
		PollInterval: time.Millisecond,
		Logger:       nopLogger{},
	})
	require.NoError(t, err)

	return e
}

// presenting builds Attract -> Show -> Attract, where Show waits for its
// presentation and Attract is a Processing-only state.
func presenting(t *testing.T, name string) *Machine[testInit, Exec] {
	t.Helper()

	m := NewMachine[testInit, Exec](name)

	attract := m.MustAddState(NewState[testInit, Exec]("Attract").
		Processing(Light, exitVia("show")).
		Transitions("show").
		MustBuild())

	show := m.MustAddState(NewState[testInit, Exec]("Show").
		InitialStep(CommittedPreWait).
		PreWait(Heavy, func(_ context.Context, exec Exec, _ Transitions) (StepControl, error) {
			exec.StartPresentationState()

			return GoNext, nil
		}).
		Wait(None, func(_ context.Context, exec Exec, _ Transitions) (StepControl, error) {
			if exec.WaitForPresentationStateComplete() {
				return GoNext, nil
			}

			return RepeatWait, nil
		}).
		PostWait(Heavy, func(_ context.Context, exec Exec, next Transitions) (StepControl, error) {
			c, ok := exec.PresentationCompletion()
			if !ok {
				return ExitState, ErrEventNotRecorded
			}

			if c.Action == "again" {
				return BackToPreWait, nil
			}

			return ExitState, next.SetNextState("done")
		}).
		Transitions("done").
		MustBuild())

	attract.MustWire("show", show)
	show.MustWire("done", attract)
	require.NoError(t, m.SetInitialState("Attract"))

	return m
}

func single(t *testing.T, name string, builder *StateBuilder[testInit, Exec]) *Machine[testInit, Exec] {
	t.Helper()

	m := NewMachine[testInit, Exec](name)
	s := m.MustAddState(builder.Transitions("self").MustBuild())
	s.MustWire("self", s)
	require.NoError(t, m.SetInitialState(s.Name()))

	return m
}

func TestNewEngineRequiresDependencies(t *testing.T) {
	t.Parallel()

	m := cycle(t, "engine-deps")

	_, err := NewEngine[testInit, Exec](nil, frameExec, EngineOptions{Store: criticaldata.NewMemoryStore()})
	require.ErrorIs(t, err, ErrMachineRequired)

	_, err = NewEngine(m, frameExec, EngineOptions{})
	require.ErrorIs(t, err, ErrStoreRequired)

	_, err = NewEngine(m, nil, EngineOptions{Store: criticaldata.NewMemoryStore()})
	require.ErrorIs(t, err, ErrExecFactoryRequired)
}

func TestEngineFullVisit(t *testing.T) {
	t.Parallel()

	store := criticaldata.NewMemoryStore()
	presentation := &fakePresentation{}
	e := newTestEngine(t, presenting(t, "engine-visit"), store, presentation)
	ctx := t.Context()

	name, _ := e.Position()
	assert.Empty(t, name, "not started before the first Tick")

	report, err := e.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, StepReport{State: "Attract", Step: Processing, Control: ExitState, Next: "Show", NextStep: CommittedPreWait}, report)

	report, err = e.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, GoNext, report.Control)
	assert.Equal(t, []string{"Show"}, presentation.Started())

	report, err = e.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, RepeatWait, report.Control)
	assert.Equal(t, CommittedWait, report.NextStep)

	assert.False(t, e.CompletePresentation(Completion{State: "Attract"}), "stale completion is dropped")
	assert.True(t, e.CompletePresentation(Completion{State: "Show"}))

	_, err = e.Tick(ctx)
	require.NoError(t, err)

	report, err = e.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExitState, report.Control)
	assert.Equal(t, "Attract", report.Next)

	light, durable := store.Commits()
	assert.Equal(t, 1, light, "Attract.Processing")
	assert.Equal(t, 2, durable, "Show.CommittedPreWait and Show.CommittedPostWait")
}

func TestEngineBackToPreWait(t *testing.T) {
	t.Parallel()

	presentation := &fakePresentation{}
	e := newTestEngine(t, presenting(t, "engine-back"), criticaldata.NewMemoryStore(), presentation)
	ctx := t.Context()

	_, err := e.Tick(ctx) // Attract
	require.NoError(t, err)
	_, err = e.Tick(ctx) // PreWait
	require.NoError(t, err)
	require.True(t, e.CompletePresentation(Completion{State: "Show", Action: "again"}))
	_, err = e.Tick(ctx) // Wait
	require.NoError(t, err)

	report, err := e.Tick(ctx) // PostWait
	require.NoError(t, err)
	assert.Equal(t, BackToPreWait, report.Control)
	assert.Equal(t, "Show", report.Next)
	assert.Equal(t, CommittedPreWait, report.NextStep)
	assert.Empty(t, e.frame.NextState())

	_, err = e.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Show", "Show"}, presentation.Started())
}

func TestEngineProtocolViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		builder *StateBuilder[testInit, Exec]
		steps   int
		wantErr error
	}{
		{
			name:    "repeat outside wait",
			builder: NewState[testInit, Exec]("S").Processing(None, returns(RepeatWait)),
			steps:   1,
			wantErr: ErrRepeatOutsideWait,
		},
		{
			name:    "exit without next state",
			builder: NewState[testInit, Exec]("S").Processing(Light, returns(ExitState)),
			steps:   1,
			wantErr: ErrNextStateUnset,
		},
		{
			name:    "go next from post wait without next state",
			builder: NewState[testInit, Exec]("S").PostWait(Light, returns(GoNext)),
			steps:   4,
			wantErr: ErrNextStateUnset,
		},
		{
			name: "panic",
			builder: NewState[testInit, Exec]("S").Processing(Heavy, func(context.Context, Exec, Transitions) (StepControl, error) {
				panic("reel jammed")
			}),
			steps:   1,
			wantErr: lserrors.ErrPanicRecovery,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := criticaldata.NewMemoryStore()
			e := newTestEngine(t, single(t, "engine-violation-"+tt.name, tt.builder), store, nil)

			var err error
			for range tt.steps {
				if _, err = e.Tick(t.Context()); err != nil {
					break
				}
			}

			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsLogicStateError(err))

			light, durable := store.Commits()
			assert.Zero(t, light+durable, "a failed step commits nothing")
		})
	}
}

func TestEngineGoNextFromPostWaitExits(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, single(t, "engine-postwait", NewState[testInit, Exec]("S").
		InitialStep(CommittedPostWait).
		PostWait(None, func(_ context.Context, _ Exec, next Transitions) (StepControl, error) {
			return GoNext, next.SetNextState("self")
		})), criticaldata.NewMemoryStore(), nil)

	report, err := e.Tick(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "S", report.Next)
	assert.Equal(t, CommittedPostWait, report.NextStep)
}

func TestEngineRollsBackFailedStep(t *testing.T) {
	t.Parallel()

	store := criticaldata.NewMemoryStore()
	e := newTestEngine(t, single(t, "engine-rollback", NewState[testInit, Exec]("S").
		Processing(Heavy, func(_ context.Context, exec Exec, _ Transitions) (StepControl, error) {
			txn, ok := exec.Transaction()
			require.True(t, ok)
			require.True(t, txn.Durable())
			require.NoError(t, criticaldata.Save(txn, "credits", 100))

			return GoNext, errStep
		})), store, nil)

	_, err := e.Tick(t.Context())
	require.ErrorIs(t, err, errStep)
	assert.Empty(t, store.Snapshot())

	state, step := e.Position()
	assert.Equal(t, "S", state)
	assert.Equal(t, Processing, step, "a failed step is retried from the same position")
}

func TestEngineNoneWeightHasNoTransaction(t *testing.T) {
	t.Parallel()

	var hadTxn bool

	store := criticaldata.NewMemoryStore()
	e := newTestEngine(t, single(t, "engine-none", NewState[testInit, Exec]("S").
		Processing(None, func(_ context.Context, exec Exec, next Transitions) (StepControl, error) {
			_, hadTxn = exec.Transaction()

			return ExitState, next.SetNextState("self")
		})), store, nil)

	_, err := e.Tick(t.Context())
	require.NoError(t, err)
	assert.False(t, hadTxn)

	light, durable := store.Commits()
	assert.Zero(t, light+durable)
}

func TestEngineResumesFromCheckpoint(t *testing.T) {
	t.Parallel()

	store := criticaldata.NewMemoryStore()
	m := presenting(t, "engine-resume")
	first := newTestEngine(t, m, store, &fakePresentation{})
	ctx := t.Context()

	_, err := first.Tick(ctx)
	require.NoError(t, err)
	_, err = first.Tick(ctx)
	require.NoError(t, err)

	txn, err := store.Begin(ctx, criticaldata.TxOptions{})
	require.NoError(t, err)

	cp, found, err := LoadCheckpoint(txn, "engine-resume")
	require.NoError(t, err)
	require.NoError(t, txn.Rollback())
	require.True(t, found)
	assert.Equal(t, "Show", cp.State)
	assert.Equal(t, CommittedWait, cp.Step)
	assert.True(t, cp.Presenting)
	assert.NotEmpty(t, cp.VisitID)

	// restart: a new engine over the same store
	presentation := &fakePresentation{}
	second := newTestEngine(t, m, store, presentation)

	resumed, err := second.Resume(ctx)
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.Equal(t, []string{"Show"}, presentation.Started(), "presentation is restarted")

	state, step := second.Position()
	assert.Equal(t, "Show", state)
	assert.Equal(t, CommittedWait, step)

	require.True(t, second.CompletePresentation(Completion{State: "Show"}))

	_, err = second.Tick(ctx)
	require.NoError(t, err)

	report, err := second.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Attract", report.Next)
}

func TestEngineFreshStart(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, presenting(t, "engine-fresh"), criticaldata.NewMemoryStore(), nil)

	resumed, err := e.Resume(t.Context())
	require.NoError(t, err)
	assert.False(t, resumed)

	state, step := e.Position()
	assert.Equal(t, "Attract", state)
	assert.Equal(t, Processing, step)
}

func TestEngineRunUntil(t *testing.T) {
	t.Parallel()

	presentation := &fakePresentation{}
	e := newTestEngine(t, presenting(t, "engine-run"), criticaldata.NewMemoryStore(), presentation)

	presentation.onStart = func(state string) {
		go func() {
			time.Sleep(5 * time.Millisecond)
			e.CompletePresentation(Completion{State: state})
		}()
	}

	var hooked []string

	e.AddStepHook(func(_ context.Context, _, state string, step Step, phase string, _ error) {
		if phase == "start" {
			hooked = append(hooked, state+"."+step.String())
		}
	})

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	err := e.RunUntil(ctx, func(r StepReport) bool { return r.State == "Show" && r.Next == "Attract" })
	require.NoError(t, err)
	assert.Contains(t, hooked, "Show.CommittedPostWait")
	assert.Equal(t, "Attract.Processing", hooked[0])
}

func TestEngineRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, presenting(t, "engine-cancel"), criticaldata.NewMemoryStore(), nil)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	err := e.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDefaultLoggerWritesToContextLogger(t *testing.T) {
	t.Parallel()

	m := cycle(t, "engine-logger")
	require.NoError(t, m.Initialize(t.Context(), testInit{}))

	e, err := NewEngine(m, frameExec, EngineOptions{Store: criticaldata.NewMemoryStore()})
	require.NoError(t, err)

	ctx := logger.WithLogger(t.Context(), slogt.New(t))

	_, err = e.Tick(ctx)
	require.NoError(t, err)

	state, _ := e.Position()
	assert.Equal(t, "Play", state)
}
