// Package cabinet hosts the state machines of one cabinet: the shell machine
// and one game cycle machine per coplayer, each driven by its own Engine on a
// shared worker pool and a shared critical data store.
package cabinet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/amp-labs/logicstates/closer"
	"github.com/amp-labs/logicstates/config"
	"github.com/amp-labs/logicstates/criticaldata"
	lserrors "github.com/amp-labs/logicstates/errors"
	"github.com/amp-labs/logicstates/gamestates"
	"github.com/amp-labs/logicstates/logger"
	"github.com/amp-labs/logicstates/platform"
	"github.com/amp-labs/logicstates/shellstates"
	"github.com/amp-labs/logicstates/statemachine"
)

var (
	// ErrShellRequired indicates a cabinet without shell libraries.
	ErrShellRequired = errors.New("shell libraries are required")
	// ErrCoplayerLibRequired indicates a coplayer without platform libraries.
	ErrCoplayerLibRequired = errors.New("coplayer libraries are required")
	// ErrDuplicateCoplayer indicates two coplayers with the same id.
	ErrDuplicateCoplayer = errors.New("duplicate coplayer id")
	// ErrNotEnoughWorkers indicates a pool too small to run every engine at once.
	ErrNotEnoughWorkers = errors.New("not enough workers for all state machines")
	// ErrUnknownMachine indicates a lookup of a machine the cabinet does not run.
	ErrUnknownMachine = errors.New("unknown state machine")
	// ErrClosed indicates use of a closed cabinet.
	ErrClosed = errors.New("cabinet is closed")
	// ErrAlreadyRunning indicates a second call of Run.
	ErrAlreadyRunning = errors.New("cabinet is already running")
)

// ShellMachineName is the name of the cabinet's shell machine.
const ShellMachineName = shellstates.DefaultMachineName

// Coplayer describes one seat of the cabinet.
type Coplayer struct {
	Lib *platform.CoplayerLib
	// Game customizes the coplayer's game machine. Its Name is replaced by
	// CoplayerMachineName(Lib.ID).
	Game gamestates.Options
}

// Options configures a Cabinet.
type Options struct {
	Config config.Config
	// Store is the shared critical data store. When nil, one is opened from
	// Config.Store and closed with the cabinet.
	Store criticaldata.Store
	Shell *platform.ShellLibs
	// ShellProviders receive the shell's theme data. Optional.
	ShellProviders *shellstates.Providers
	Coplayers      []Coplayer
	// Logger receives engine events. Defaults to statemachine.NewDefaultLogger().
	Logger statemachine.Logger
}

// CoplayerMachineName is the game machine name of coplayer id.
func CoplayerMachineName(id int) string {
	return fmt.Sprintf("coplayer-%d", id)
}

type engine interface {
	Run(ctx context.Context) error
	Resume(ctx context.Context) (bool, error)
	CompletePresentation(c statemachine.Completion) bool
	Position() (string, statemachine.Step)
}

type machine struct {
	name     string
	coplayer int // -1 for the shell
	engine   engine
}

// Cabinet runs the shell machine and the coplayer machines.
type Cabinet struct {
	machines []machine
	byName   map[string]engine
	pool     pond.Pool
	teardown io.Closer

	mu      sync.Mutex
	running bool
	closed  bool
}

// New builds and initializes every machine. The cabinet must be closed to
// release subscriptions, providers and the store.
func New(ctx context.Context, opts Options) (*Cabinet, error) {
	if opts.Shell == nil {
		return nil, ErrShellRequired
	}

	for i, cp := range opts.Coplayers {
		if cp.Lib == nil {
			return nil, fmt.Errorf("%w: coplayer %d", ErrCoplayerLibRequired, i)
		}
	}

	if need := len(opts.Coplayers) + 1; opts.Config.Cabinet.Workers < need {
		return nil, fmt.Errorf("%w: %d workers, %d machines", ErrNotEnoughWorkers, opts.Config.Cabinet.Workers, need)
	}

	// undone in reverse on failure, run in order by Close
	var steps []io.Closer

	fail := func(err error) (*Cabinet, error) {
		var errs lserrors.Collection

		errs.Add(err)

		for i := len(steps) - 1; i >= 0; i-- {
			errs.Add(steps[i].Close())
		}

		return nil, errs.GetError()
	}

	store := opts.Store
	if store == nil {
		opened, err := criticaldata.Open(ctx, opts.Config.Store.Driver, opts.Config.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open critical data: %w", err)
		}

		store = opened
		steps = append(steps, closer.CloseOnce(store))
	}

	c := &Cabinet{byName: make(map[string]engine)}

	engineOpts := func(presentation statemachine.Presentation) statemachine.EngineOptions {
		eo := opts.Config.EngineOptions(store, presentation)
		eo.Logger = opts.Logger

		return eo
	}

	shellMachine, err := shellstates.NewMachine(shellstates.Options{
		Name:      ShellMachineName,
		Providers: opts.ShellProviders,
	})
	if err != nil {
		return fail(err)
	}

	shellEngine, err := statemachine.NewEngine(shellMachine, shellstates.NewExec(opts.Shell), engineOpts(opts.Shell.Presentation))
	if err != nil {
		return fail(err)
	}

	if err := shellMachine.Initialize(ctx, opts.Shell); err != nil {
		return fail(fmt.Errorf("initialize %s: %w", ShellMachineName, err))
	}

	steps = append(steps, machineCloser(shellMachine, opts.Shell))
	c.add(machine{name: ShellMachineName, coplayer: -1, engine: shellEngine})

	for _, cp := range opts.Coplayers {
		name := CoplayerMachineName(cp.Lib.ID)
		if _, exists := c.byName[name]; exists {
			return fail(fmt.Errorf("%w: %d", ErrDuplicateCoplayer, cp.Lib.ID))
		}

		gameOpts := cp.Game
		gameOpts.Name = name

		gameMachine, err := gamestates.NewMachine(gameOpts)
		if err != nil {
			return fail(err)
		}

		gameEngine, err := statemachine.NewEngine(gameMachine, gamestates.NewExec(cp.Lib), engineOpts(cp.Lib.Presentation))
		if err != nil {
			return fail(err)
		}

		if err := gameMachine.Initialize(logger.WithCoplayer(ctx, cp.Lib.ID), cp.Lib); err != nil {
			return fail(fmt.Errorf("initialize %s: %w", name, err))
		}

		steps = append(steps, machineCloser(gameMachine, cp.Lib))
		c.add(machine{name: name, coplayer: cp.Lib.ID, engine: gameEngine})
	}

	c.pool = pond.NewPool(opts.Config.Cabinet.Workers)

	// the pool stops first, then machines clean up, newest first, then the store
	teardown := []io.Closer{closer.CustomCloser(func() error {
		c.pool.StopAndWait()

		return nil
	})}

	for i := len(steps) - 1; i >= 0; i-- {
		teardown = append(teardown, steps[i])
	}

	c.teardown = closer.CloseOnce(closer.NewCloser(teardown...))

	logger.Get(ctx).Info("Cabinet ready", "machines", len(c.machines), "workers", opts.Config.Cabinet.Workers)

	return c, nil
}

func (c *Cabinet) add(m machine) {
	c.machines = append(c.machines, m)
	c.byName[m.name] = m.engine
}

func machineCloser[I any, E statemachine.Exec](m *statemachine.Machine[I, E], init I) io.Closer {
	return closer.CloseOnce(closer.CustomCloser(func() error {
		var errs lserrors.Collection

		errs.Add(m.CleanUp(context.Background(), init))
		errs.Add(m.Dispose())

		return errs.GetError()
	}))
}

// Machines returns the names of the hosted machines, shell first.
func (c *Cabinet) Machines() []string {
	names := make([]string, len(c.machines))
	for i, m := range c.machines {
		names[i] = m.name
	}

	return names
}

// Position returns the state and step the named machine runs next.
func (c *Cabinet) Position(name string) (string, statemachine.Step, error) {
	e, ok := c.byName[name]
	if !ok {
		return "", statemachine.Processing, fmt.Errorf("%w: %s", ErrUnknownMachine, name)
	}

	state, step := e.Position()

	return state, step, nil
}

// Complete routes a presentation completion to the named machine. It reports
// whether the machine accepted it.
func (c *Cabinet) Complete(name string, completion statemachine.Completion) (bool, error) {
	e, ok := c.byName[name]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownMachine, name)
	}

	return e.CompletePresentation(completion), nil
}

// Resume positions every machine at its recovery checkpoint. Run resumes
// implicitly; calling Resume first surfaces recovery errors before any step
// runs.
func (c *Cabinet) Resume(ctx context.Context) error {
	var errs lserrors.Collection

	for _, m := range c.machines {
		resumed, err := m.engine.Resume(m.logContext(ctx))
		if err != nil {
			errs.Add(fmt.Errorf("resume %s: %w", m.name, err))

			continue
		}

		if resumed {
			state, step := m.engine.Position()
			logger.Get(ctx).Info("Machine recovered", "machine", m.name, "state", state, "step", step.String())
		}
	}

	return errs.GetError()
}

// Run drives every machine until ctx ends or a machine fails. The first
// failure stops all other machines and is returned; a plain cancellation of
// ctx returns nil. Run may be called once.
func (c *Cabinet) Run(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()

		return ErrClosed
	case c.running:
		c.mu.Unlock()

		return ErrAlreadyRunning
	}

	c.running = true
	c.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		failOnce sync.Once
		failure  error
	)

	fail := func(m machine, err error) {
		logger.Get(ctx).Error("State machine failed", "machine", m.name, "error", err)

		failOnce.Do(func() {
			failure = fmt.Errorf("%s: %w", m.name, err)

			cancel()
		})
	}

	group := c.pool.NewGroup()

	for _, m := range c.machines {
		group.Submit(func() {
			defer func() {
				if r := recover(); r != nil {
					fail(m, lserrors.FromPanic(r, debug.Stack()))
				}
			}()

			err := m.engine.Run(m.logContext(runCtx))
			if err == nil || (runCtx.Err() != nil && errors.Is(err, runCtx.Err())) {
				return
			}

			fail(m, err)
		})
	}

	waitErr := group.Wait()

	var errs lserrors.Collection

	errs.Add(failure)
	errs.Add(waitErr)

	return errs.GetError()
}

func (m machine) logContext(ctx context.Context) context.Context {
	ctx = logger.WithMachine(ctx, m.name)
	if m.coplayer >= 0 {
		ctx = logger.WithCoplayer(ctx, m.coplayer)
	}

	return ctx
}

// Close stops the pool, cleans up every machine and closes the store when
// the cabinet opened it. Call it after Run returned.
func (c *Cabinet) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	return c.teardown.Close()
}
