package statemachine

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/amp-labs/logicstates/closer"
	"github.com/amp-labs/logicstates/criticaldata"
	lserrors "github.com/amp-labs/logicstates/errors"
	"github.com/amp-labs/logicstates/logger"
	"github.com/amp-labs/logicstates/should"
	"github.com/google/uuid"
)

// DefaultPollInterval is the pause between two CommittedWait polls in Run.
const DefaultPollInterval = 20 * time.Millisecond

// StepHook is called before ("start") and after ("end") each step call.
type StepHook func(ctx context.Context, machine, state string, step Step, phase string, err error)

// EngineOptions configures an Engine.
type EngineOptions struct {
	// Store holds the checkpoint and all critical data written by steps. Required.
	Store criticaldata.Store
	// Presentation receives StartState requests. Optional.
	Presentation Presentation
	// PollInterval is the pause after a RepeatWait in Run. Defaults to DefaultPollInterval.
	PollInterval time.Duration
	// StepTimeout bounds the context of a single step call. Zero means no timeout.
	StepTimeout time.Duration
	// Logger receives execution events. Defaults to NewDefaultLogger().
	Logger Logger
}

// StepReport describes one executed step and where the engine continues.
type StepReport struct {
	State    string
	Step     Step
	Control  StepControl
	Next     string
	NextStep Step
}

type position[I any, E Exec] struct {
	state   *State[I, E]
	step    Step
	visitID string
}

// Engine drives one Machine: it opens a critical data transaction of the
// declared weight around every step, invokes the step, applies the step
// control rules and persists a recovery Checkpoint with each weighted
// transaction.
//
// An Engine is single-threaded; Tick and Run must not be called concurrently.
// CompletePresentation may be called from any goroutine.
type Engine[I any, E Exec] struct {
	machine *Machine[I, E]
	newExec func(*Frame) E
	opts    EngineOptions
	hooks   []StepHook

	mut     sync.Mutex
	frame   *Frame
	started bool
	pos     position[I, E]
	polls   int // consecutive RepeatWait results of the current wait
}

// NewEngine creates an Engine for machine. newExec adapts the engine's Frame
// to the Exec type the machine's states expect.
func NewEngine[I any, E Exec](machine *Machine[I, E], newExec func(*Frame) E, opts EngineOptions) (*Engine[I, E], error) {
	switch {
	case machine == nil:
		return nil, NewConfigurationError("NewEngine", "", ErrMachineRequired)
	case opts.Store == nil:
		return nil, NewConfigurationError("NewEngine", machine.name, ErrStoreRequired)
	case newExec == nil:
		return nil, NewConfigurationError("NewEngine", machine.name, ErrExecFactoryRequired)
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	if opts.Logger == nil {
		opts.Logger = NewDefaultLogger()
	}

	return &Engine[I, E]{
		machine: machine,
		newExec: newExec,
		opts:    opts,
		frame:   newFrame(opts.Presentation),
	}, nil
}

// Machine returns the driven machine.
func (e *Engine[I, E]) Machine() *Machine[I, E] {
	return e.machine
}

// AddStepHook adds a hook called around every step.
func (e *Engine[I, E]) AddStepHook(hook StepHook) {
	e.mut.Lock()
	defer e.mut.Unlock()

	e.hooks = append(e.hooks, hook)
}

// Position returns the state and step the next Tick will run. It is empty
// before the engine started.
func (e *Engine[I, E]) Position() (string, Step) {
	e.mut.Lock()
	defer e.mut.Unlock()

	if !e.started {
		return "", Processing
	}

	return e.pos.state.name, e.pos.step
}

// CompletePresentation reports that the presentation finished its counterpart
// of c.State. Completions for a state that is not currently presenting are
// dropped and false is returned.
func (e *Engine[I, E]) CompletePresentation(c Completion) bool {
	return e.frame.complete(c)
}

// Resume positions the engine: at the stored checkpoint if there is one,
// otherwise at the InitialStep of the machine's initial state. It reports
// whether a checkpoint was found. Tick resumes implicitly on first use.
func (e *Engine[I, E]) Resume(ctx context.Context) (bool, error) {
	e.mut.Lock()
	defer e.mut.Unlock()

	return e.resume(ctx)
}

func (e *Engine[I, E]) resume(ctx context.Context) (bool, error) {
	txn, err := e.opts.Store.Begin(ctx, criticaldata.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin recovery transaction: %w", err)
	}

	cp, found, err := LoadCheckpoint(txn, e.machine.name)

	should.CloseContext(ctx, closer.CustomCloser(txn.Rollback), "closing recovery transaction")

	if err != nil {
		return false, err
	}

	if !found {
		initial, err := e.machine.InitialState()
		if err != nil {
			return false, err
		}

		e.started = true
		e.enter(ctx, position[I, E]{state: initial, step: initial.initialStep, visitID: uuid.NewString()})

		return false, nil
	}

	state, err := e.machine.GetState(cp.State)
	if err != nil {
		return false, err
	}

	if !cp.Step.valid() || cp.Step < state.initialStep {
		return false, NewLogicStateError(state.name, cp.Step, ErrInvalidStep)
	}

	e.started = true
	e.polls = 0
	e.pos = position[I, E]{state: state, step: cp.Step, visitID: cp.VisitID}
	e.frame.nextState = cp.NextState
	e.frame.completion.Reset()
	e.frame.presenting.Store("")

	e.opts.Logger.Resumed(ctx, cp)

	if cp.Presenting {
		// the presentation lost its state with the process; start it again
		e.frame.begin(ctx, state.name, nil)
		e.frame.StartPresentationState()
		startErr := e.frame.startErr
		e.frame.end()

		if startErr != nil {
			return true, startErr
		}
	}

	return true, nil
}

func (e *Engine[I, E]) enter(ctx context.Context, pos position[I, E]) {
	e.pos = pos
	e.frame.nextState = ""
	e.frame.presenting.Store("")
	e.frame.completion.Reset()

	visitsTotal.WithLabelValues(e.machine.name, pos.state.name).Inc()
	e.opts.Logger.VisitStarted(ctx, e.machine.name, pos.state.name, pos.step, pos.visitID)
}

// Tick runs exactly one step.
func (e *Engine[I, E]) Tick(ctx context.Context) (StepReport, error) {
	e.mut.Lock()
	defer e.mut.Unlock()

	if err := ctx.Err(); err != nil {
		return StepReport{}, err
	}

	if !e.started {
		if _, err := e.resume(ctx); err != nil {
			return StepReport{}, err
		}
	}

	state, step := e.pos.state, e.pos.step
	weight := state.TransactionWeight(step)
	report := StepReport{State: state.name, Step: step}

	stepCtx, span := startStepSpan(ctx, e.machine.name, state.name, step, weight, e.pos.visitID)

	if e.opts.StepTimeout > 0 {
		var cancel context.CancelFunc

		stepCtx, cancel = context.WithTimeout(stepCtx, e.opts.StepTimeout)
		defer cancel()
	}

	// only the first poll of a wait logs
	runCtx := stepCtx
	if e.polls > 0 {
		runCtx = logger.WithMuted(stepCtx, true)
	}

	start := time.Now()
	next, newVisit, ctl, err := e.runStep(runCtx, state, step, weight)
	duration := time.Since(start)

	stepDuration.WithLabelValues(e.machine.name, step.String()).Observe(duration.Seconds())

	control := ctl.String()
	if err != nil {
		control = "error"
	}

	stepCallsTotal.WithLabelValues(e.machine.name, state.name, step.String(), control).Inc()

	logCtx := stepCtx
	if err == nil && ctl == RepeatWait {
		logCtx = runCtx
	}

	e.opts.Logger.StepCompleted(logCtx, e.machine.name, state.name, step, ctl, duration, err)

	if err != nil {
		endStepSpan(span, ctl, "", err)

		return report, err
	}

	report.Control = ctl
	report.Next = next.state.name
	report.NextStep = next.step

	endStepSpan(span, ctl, report.Next, nil)

	if ctl == RepeatWait {
		e.polls++
	} else {
		e.polls = 0
	}

	switch {
	case newVisit:
		transitionsTotal.WithLabelValues(e.machine.name, state.name, next.state.name).Inc()
		e.opts.Logger.TransitionExecuted(ctx, e.machine.name, state.name, next.state.name)
		e.enter(ctx, next)
	case ctl == RepeatWait:
		waitPollsTotal.WithLabelValues(e.machine.name, state.name).Inc()
	case ctl == BackToPreWait:
		e.pos = next
		e.frame.nextState = ""
	default:
		e.pos = next
	}

	return report, nil
}

func (e *Engine[I, E]) runStep(
	ctx context.Context,
	state *State[I, E],
	step Step,
	weight TransactionWeight,
) (next position[I, E], newVisit bool, ctl StepControl, err error) {
	var (
		txn    criticaldata.Txn
		commit = func() error { return nil }
	)

	if weight != None {
		txn, err = e.opts.Store.Begin(ctx, criticaldata.TxOptions{Durable: weight == Heavy})
		if err != nil {
			return next, false, ctl, fmt.Errorf("begin %s transaction for %s.%s: %w", weight, state.name, step, err)
		}

		rollback, cancel := closer.CancelableCloser(closer.CustomCloser(txn.Rollback))

		defer func() {
			if err != nil {
				transactionsTotal.WithLabelValues(e.machine.name, weight.String(), outcomeRollback).Inc()
			}

			should.CloseContext(ctx, rollback, "rolling back step transaction")
		}()

		commit = func() error {
			cancel()

			if err := txn.Commit(); err != nil {
				return fmt.Errorf("commit %s transaction for %s.%s: %w", weight, state.name, step, err)
			}

			transactionsTotal.WithLabelValues(e.machine.name, weight.String(), outcomeCommit).Inc()

			return nil
		}
	}

	for _, hook := range e.hooks {
		hook(ctx, e.machine.name, state.name, step, "start", nil)
	}

	e.frame.begin(ctx, state.name, txn)
	ctl, err = e.invoke(ctx, state, step)

	if err == nil {
		err = e.frame.startErr
	}

	e.frame.end()

	for _, hook := range e.hooks {
		hook(ctx, e.machine.name, state.name, step, "end", err)
	}

	if err != nil {
		return next, false, ctl, err
	}

	next, newVisit, err = e.advance(state, step, ctl)
	if err != nil {
		return next, false, ctl, err
	}

	if txn != nil {
		cp := Checkpoint{
			Machine: e.machine.name,
			State:   next.state.name,
			Step:    next.step,
			VisitID: next.visitID,
		}

		if !newVisit {
			cp.Presenting = e.frame.presenting.Load() == state.name

			if ctl != BackToPreWait {
				cp.NextState = e.frame.nextState
			}
		}

		if err = saveCheckpoint(txn, cp); err != nil {
			return next, false, ctl, err
		}
	}

	if err = commit(); err != nil {
		return next, false, ctl, err
	}

	return next, newVisit, ctl, nil
}

func (e *Engine[I, E]) invoke(ctx context.Context, state *State[I, E], step Step) (ctl StepControl, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewLogicStateError(state.name, step, lserrors.FromPanic(r, debug.Stack()))
		}
	}()

	return state.Invoke(ctx, step, e.newExec(e.frame))
}

// advance applies the step control rules to the current position.
func (e *Engine[I, E]) advance(state *State[I, E], step Step, ctl StepControl) (position[I, E], bool, error) {
	switch ctl {
	case GoNext:
		if step < CommittedPostWait {
			return position[I, E]{state: state, step: step + 1, visitID: e.pos.visitID}, false, nil
		}

		// GoNext from the last step ends the visit
		return e.exit(state, step)
	case ExitState:
		return e.exit(state, step)
	case RepeatWait:
		if step != CommittedWait {
			return e.pos, false, NewLogicStateError(state.name, step, ErrRepeatOutsideWait)
		}

		return e.pos, false, nil
	case BackToPreWait:
		return position[I, E]{state: state, step: max(CommittedPreWait, state.initialStep), visitID: e.pos.visitID}, false, nil
	default:
		return e.pos, false, NewLogicStateError(state.name, step, fmt.Errorf("%w: %d", ErrInvalidStepControl, ctl))
	}
}

func (e *Engine[I, E]) exit(state *State[I, E], step Step) (position[I, E], bool, error) {
	if e.frame.nextState == "" {
		return e.pos, false, NewLogicStateError(state.name, step, ErrNextStateUnset)
	}

	target, err := e.machine.GetState(e.frame.nextState)
	if err != nil {
		return e.pos, false, err
	}

	return position[I, E]{state: target, step: target.initialStep, visitID: uuid.NewString()}, true, nil
}

// Run steps until ctx ends or a step fails. After an unsatisfied
// CommittedWait poll it pauses for the poll interval.
func (e *Engine[I, E]) Run(ctx context.Context) error {
	return e.RunUntil(ctx, nil)
}

// RunUntil is Run that also returns nil as soon as stop accepts a report.
func (e *Engine[I, E]) RunUntil(ctx context.Context, stop func(StepReport) bool) error {
	timer := time.NewTimer(e.opts.PollInterval)
	defer timer.Stop()

	for {
		report, err := e.Tick(ctx)
		if err != nil {
			return err
		}

		if stop != nil && stop(report) {
			return nil
		}

		if report.Control != RepeatWait {
			continue
		}

		timer.Reset(e.opts.PollInterval)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}
