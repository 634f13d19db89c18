package cabinet

import (
	"context"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/amp-labs/logicstates/actions"
	"github.com/amp-labs/logicstates/config"
	"github.com/amp-labs/logicstates/criticaldata"
	lserrors "github.com/amp-labs/logicstates/errors"
	"github.com/amp-labs/logicstates/gamestates"
	"github.com/amp-labs/logicstates/logger"
	"github.com/amp-labs/logicstates/platform"
	"github.com/amp-labs/logicstates/platform/platformtest"
	"github.com/amp-labs/logicstates/shellstates"
	"github.com/amp-labs/logicstates/statemachine"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seat struct {
	coplayer     *platformtest.Coplayer
	services     *platformtest.Services
	presentation *platformtest.Presentation
	lib          *platform.CoplayerLib
}

type fixture struct {
	cfg           config.Config
	shell         *platformtest.Shell
	shellServices *platformtest.Services
	shellPresent  *platformtest.Presentation
	seats         []*seat
}

func newFixture(coplayers int) *fixture {
	cfg := config.Default()
	cfg.Store.Driver = criticaldata.DriverMemory
	cfg.Engine.PollInterval = time.Millisecond

	f := &fixture{
		cfg:           cfg,
		shell:         platformtest.NewShell(coplayers),
		shellServices: platformtest.NewServices(),
		shellPresent:  platformtest.NewPresentation(),
	}
	f.shellPresent.AutoComplete(shellstates.ShellThemeLoadingState)

	for id := range coplayers {
		s := &seat{
			coplayer:     platformtest.NewCoplayer(),
			services:     platformtest.NewServices(),
			presentation: platformtest.NewPresentation(),
		}
		s.lib = s.coplayer.Lib(id, s.services, s.presentation)
		f.seats = append(f.seats, s)
	}

	return f
}

func (f *fixture) options(store criticaldata.Store) Options {
	opts := Options{
		Config: f.cfg,
		Store:  store,
		Shell:  f.shell.Libs(f.shellServices, f.shellPresent),
	}

	for _, s := range f.seats {
		opts.Coplayers = append(opts.Coplayers, Coplayer{Lib: s.lib})
	}

	return opts
}

func (f *fixture) open(t *testing.T, ctx context.Context, store criticaldata.Store) *Cabinet {
	t.Helper()

	c, err := New(ctx, f.options(store))
	require.NoError(t, err)

	connect(f.shellPresent, c, ShellMachineName)

	for _, s := range f.seats {
		connect(s.presentation, c, CoplayerMachineName(s.lib.ID))
	}

	return c
}

func connect(p *platformtest.Presentation, c *Cabinet, machine string) {
	p.Connect(func(completion statemachine.Completion) bool {
		ok, err := c.Complete(machine, completion)

		return err == nil && ok
	})
}

func testContext(t *testing.T) context.Context {
	t.Helper()

	return logger.WithLogger(t.Context(), slogt.New(t))
}

func TestNew(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	f := newFixture(2)
	c := f.open(t, ctx, nil)

	assert.Equal(t, []string{ShellMachineName, "coplayer-0", "coplayer-1"}, c.Machines())
	assert.Equal(t, 2, f.shellServices.Len())

	for _, s := range f.seats {
		_, ok := s.services.Provider(gamestates.ProviderName(s.lib.ID))
		assert.True(t, ok)
	}

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.Zero(t, f.shellServices.Len())
	assert.Zero(t, f.seats[0].services.Len())
	assert.ErrorIs(t, c.Run(ctx), ErrClosed)
}

func TestNewErrors(t *testing.T) {
	t.Parallel()

	t.Run("no shell", func(t *testing.T) {
		t.Parallel()

		_, err := New(t.Context(), Options{Config: config.Default()})
		require.ErrorIs(t, err, ErrShellRequired)
	})

	t.Run("coplayer without libraries", func(t *testing.T) {
		t.Parallel()

		f := newFixture(1)
		opts := f.options(nil)
		opts.Coplayers = append(opts.Coplayers, Coplayer{})

		_, err := New(t.Context(), opts)
		require.ErrorIs(t, err, ErrCoplayerLibRequired)
		assert.Zero(t, f.shellServices.Len())
	})

	t.Run("not enough workers", func(t *testing.T) {
		t.Parallel()

		f := newFixture(2)
		f.cfg.Cabinet.Workers = 2

		_, err := New(t.Context(), f.options(nil))
		require.ErrorIs(t, err, ErrNotEnoughWorkers)
	})

	t.Run("duplicate coplayer unwinds", func(t *testing.T) {
		t.Parallel()

		f := newFixture(1)
		opts := f.options(nil)
		opts.Coplayers = append(opts.Coplayers, opts.Coplayers[0])

		_, err := New(t.Context(), opts)
		require.ErrorIs(t, err, ErrDuplicateCoplayer)
		assert.Zero(t, f.shellServices.Len())
		assert.Zero(t, f.seats[0].services.Len())
	})

	t.Run("unknown driver", func(t *testing.T) {
		t.Parallel()

		f := newFixture(1)
		f.cfg.Store.Driver = "floppy"

		_, err := New(t.Context(), f.options(nil))
		require.ErrorIs(t, err, criticaldata.ErrUnknownDriver)
	})
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	f := newFixture(1)
	f.cfg.Store.Driver = criticaldata.DriverSQLite
	f.cfg.Store.Path = filepath.Join(t.TempDir(), "critical.db")

	c := f.open(t, ctx, nil)
	require.NoError(t, c.Resume(ctx))

	state, step, err := c.Position("coplayer-0")
	require.NoError(t, err)
	assert.Equal(t, gamestates.IdleState, state)
	assert.Equal(t, statemachine.CommittedPreWait, step)

	require.NoError(t, c.Close())
}

func TestRunGameCycle(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	f := newFixture(2)

	played := f.seats[1]
	played.coplayer.AutoRespond = true
	played.presentation.Queue(gamestates.IdleState, actions.CommitStart, actions.CommitStartParam{Denomination: 1, BetAmount: 5})
	played.presentation.AutoComplete(gamestates.PlayState)

	c := f.open(t, ctx, nil)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)

	go func() { done <- c.Run(runCtx) }()

	require.Eventually(t, func() bool {
		return slices.Contains(played.coplayer.Calls(), "EndGameCycle")
	}, 5*time.Second, time.Millisecond)

	assert.ErrorIs(t, c.Run(ctx), ErrAlreadyRunning)

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, c.Close())

	assert.Empty(t, f.seats[0].coplayer.Calls())
	assert.Contains(t, f.shellPresent.Started(), shellstates.ShellThemeLoadingState)
}

func TestRunStopsOnFirstFailure(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	f := newFixture(2)

	broken := f.seats[1]
	broken.coplayer.Fail("CommitGameCycle")
	broken.presentation.Queue(gamestates.IdleState, actions.CommitStart, actions.CommitStartParam{Denomination: 1, BetAmount: 5})

	c := f.open(t, ctx, nil)

	err := c.Run(ctx)
	require.ErrorIs(t, err, platformtest.ErrPlatform)
	assert.ErrorContains(t, err, "coplayer-1")
	require.NoError(t, c.Close())
}

// brokenLogger panics while logging the steps of one machine.
type brokenLogger struct {
	*statemachine.DefaultLogger

	machine string
}

func (l brokenLogger) StepCompleted(
	ctx context.Context,
	machine, state string,
	step statemachine.Step,
	ctl statemachine.StepControl,
	duration time.Duration,
	err error,
) {
	if machine == l.machine {
		panic("log sink closed")
	}

	l.DefaultLogger.StepCompleted(ctx, machine, state, step, ctl, duration, err)
}

func TestRunStopsOnPanic(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	f := newFixture(2)

	opts := f.options(nil)
	opts.Logger = brokenLogger{DefaultLogger: statemachine.NewDefaultLogger(), machine: CoplayerMachineName(1)}

	c, err := New(ctx, opts)
	require.NoError(t, err)

	done := make(chan error, 1)

	go func() { done <- c.Run(ctx) }()

	select {
	case err = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run kept going after a machine panicked")
	}

	require.ErrorIs(t, err, lserrors.ErrPanicRecovery)
	assert.ErrorContains(t, err, "coplayer-1")
	require.NoError(t, c.Close())
}

func TestResumeAcrossRestart(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	store := criticaldata.NewMemoryStore()
	f := newFixture(1)
	s := f.seats[0]
	s.presentation.Queue(gamestates.IdleState, actions.CommitStart, actions.CommitStartParam{Denomination: 1, BetAmount: 5})

	first := f.open(t, ctx, store)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)

	go func() { done <- first.Run(runCtx) }()

	require.Eventually(t, func() bool {
		state, _, err := first.Position("coplayer-0")

		return err == nil && state == gamestates.EnrollState
	}, 5*time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, first.Close())

	second := f.open(t, ctx, store)
	t.Cleanup(func() { assert.NoError(t, second.Close()) })

	require.NoError(t, second.Resume(ctx))

	state, _, err := second.Position("coplayer-0")
	require.NoError(t, err)
	assert.Equal(t, gamestates.EnrollState, state)
}

func TestUnknownMachine(t *testing.T) {
	t.Parallel()

	c := newFixture(1).open(t, testContext(t), nil)
	t.Cleanup(func() { assert.NoError(t, c.Close()) })

	_, err := c.Complete("coplayer-9", statemachine.Completion{State: gamestates.IdleState})
	require.ErrorIs(t, err, ErrUnknownMachine)

	_, _, err = c.Position("coplayer-9")
	require.ErrorIs(t, err, ErrUnknownMachine)
}
