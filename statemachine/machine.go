package statemachine

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/amp-labs/logicstates/closer"
	"github.com/amp-labs/logicstates/errors"
)

// Hook registers an auxiliary service provider for the lifetime of an
// initialized machine. Initialize runs in Machine.Initialize before any state
// subscribes; CleanUp runs in Machine.CleanUp after every state unsubscribed.
type Hook[I any] struct {
	Name       string
	Initialize func(ctx context.Context, init I) error
	CleanUp    func(ctx context.Context, init I) error
}

// Machine is the registry of one state graph: states by name, insertion
// order, the initial state and provider hooks. It owns the disposal of every
// registered state.
//
// Structure (states, hooks, wiring) is built single-threaded by a machine
// constructor; after Initialize the machine is sealed and safe for concurrent
// reads.
type Machine[I any, E Exec] struct {
	name    string
	initial string

	mut    sync.RWMutex
	states map[string]*State[I, E]
	order  []*State[I, E]
	hooks  []Hook[I]
	sealed bool

	disposal  *closer.Closer
	disposeFn io.Closer
}

// NewMachine creates an empty machine.
func NewMachine[I any, E Exec](name string) *Machine[I, E] {
	m := &Machine[I, E]{
		name:     name,
		states:   make(map[string]*State[I, E]),
		disposal: closer.NewCloser(),
	}
	m.disposeFn = closer.CloseOnce(m.disposal)

	return m
}

// Name returns the machine name.
func (m *Machine[I, E]) Name() string {
	return m.name
}

// SetInitialState names the state every fresh run starts in.
func (m *Machine[I, E]) SetInitialState(name string) error {
	m.mut.Lock()
	defer m.mut.Unlock()

	if m.sealed {
		return NewConfigurationError("SetInitialState", name, ErrMachineSealed)
	}

	m.initial = name

	return nil
}

// InitialState returns the registered initial state.
func (m *Machine[I, E]) InitialState() (*State[I, E], error) {
	m.mut.RLock()
	initial := m.initial
	m.mut.RUnlock()

	if initial == "" {
		return nil, NewConfigurationError("InitialState", m.name, ErrInitialStateRequired)
	}

	return m.GetState(initial)
}

// AddState registers state under its name and returns the same reference.
// A nil state, a duplicate name or a sealed machine is a configuration error
// and leaves the registry unchanged.
func (m *Machine[I, E]) AddState(state *State[I, E]) (*State[I, E], error) {
	if state == nil {
		return nil, NewConfigurationError("AddState", "", ErrNilState)
	}

	if state.name == "" {
		return nil, NewConfigurationError("AddState", "", ErrStateNameRequired)
	}

	m.mut.Lock()
	defer m.mut.Unlock()

	if m.sealed {
		return nil, NewConfigurationError("AddState", state.name, ErrMachineSealed)
	}

	if _, exists := m.states[state.name]; exists {
		return nil, NewConfigurationError("AddState", state.name, ErrDuplicateStateName)
	}

	m.states[state.name] = state
	m.order = append(m.order, state)
	m.disposal.Add(closer.CustomCloser(state.Dispose))

	return state, nil
}

// MustAddState is AddState for machine constructors; it panics on a configuration error.
func (m *Machine[I, E]) MustAddState(state *State[I, E]) *State[I, E] {
	s, err := m.AddState(state)
	if err != nil {
		panic(err)
	}

	return s
}

// GetState returns the state registered under name.
func (m *Machine[I, E]) GetState(name string) (*State[I, E], error) {
	m.mut.RLock()
	defer m.mut.RUnlock()

	s, ok := m.states[name]
	if !ok {
		return nil, NewConfigurationError("GetState", name, ErrStateNotFound)
	}

	return s, nil
}

// GetAllStates returns a snapshot of the registered states in insertion order.
func (m *Machine[I, E]) GetAllStates() []*State[I, E] {
	m.mut.RLock()
	defer m.mut.RUnlock()

	return slices.Clone(m.order)
}

// Len returns the number of registered states.
func (m *Machine[I, E]) Len() int {
	m.mut.RLock()
	defer m.mut.RUnlock()

	return len(m.order)
}

// AddHook registers a provider hook. Names must be unique and non-empty.
func (m *Machine[I, E]) AddHook(hook Hook[I]) error {
	if hook.Name == "" {
		return NewConfigurationError("AddHook", "", ErrProviderNameRequired)
	}

	m.mut.Lock()
	defer m.mut.Unlock()

	if m.sealed {
		return NewConfigurationError("AddHook", hook.Name, ErrMachineSealed)
	}

	if slices.ContainsFunc(m.hooks, func(h Hook[I]) bool { return h.Name == hook.Name }) {
		return NewConfigurationError("AddHook", hook.Name, ErrDuplicateProvider)
	}

	m.hooks = append(m.hooks, hook)

	return nil
}

// AddDisposable ties an extra resource to the machine's disposal.
func (m *Machine[I, E]) AddDisposable(c io.Closer) {
	m.disposal.Add(closer.CloseOnce(c))
}

// Validate checks the wiring of the graph: an initial state is registered,
// every declared transition is wired, and every target is registered in this
// machine. It returns all problems found, joined.
func (m *Machine[I, E]) Validate() error {
	m.mut.RLock()
	defer m.mut.RUnlock()

	var errs errors.Collection

	if m.initial == "" {
		errs.Add(NewConfigurationError("Validate", m.name, ErrInitialStateRequired))
	} else if _, ok := m.states[m.initial]; !ok {
		errs.Add(NewConfigurationError("Validate", m.initial, ErrStateNotFound))
	}

	for _, s := range m.order {
		for _, label := range s.labels {
			target := s.transitions[label]

			switch {
			case target == nil:
				errs.Add(NewConfigurationError("Validate", s.name+"."+label, ErrTransitionUnset))
			case m.states[target.name] != target:
				errs.Add(NewConfigurationError("Validate", s.name+"."+label+" -> "+target.name, ErrStateNotFound))
			}
		}
	}

	return errs.GetError()
}

// Reachable returns the names of the states reachable from the initial state
// through wired transitions, in breadth-first order.
func (m *Machine[I, E]) Reachable() []string {
	initial, err := m.InitialState()
	if err != nil {
		return nil
	}

	seen := map[string]bool{initial.name: true}
	names := []string{initial.name}
	queue := []*State[I, E]{initial}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, label := range current.labels {
			next := current.transitions[label]
			if next == nil || seen[next.name] {
				continue
			}

			seen[next.name] = true
			names = append(names, next.name)
			queue = append(queue, next)
		}
	}

	return names
}

// Initialize validates the graph, runs the provider hooks, then lets every
// state subscribe to its events in registration order. The machine is sealed
// afterwards. On failure everything already initialized is cleaned up again.
func (m *Machine[I, E]) Initialize(ctx context.Context, init I) error {
	if err := m.Validate(); err != nil {
		return err
	}

	m.mut.Lock()
	if m.sealed {
		m.mut.Unlock()

		return NewConfigurationError("Initialize", m.name, ErrMachineSealed)
	}

	m.sealed = true
	for _, s := range m.order {
		s.sealed = true
	}

	hooks := slices.Clone(m.hooks)
	states := slices.Clone(m.order)
	m.mut.Unlock()

	for i, hook := range hooks {
		if hook.Initialize == nil {
			continue
		}

		if err := hook.Initialize(ctx, init); err != nil {
			var errs errors.Collection

			errs.Add(fmt.Errorf("provider %s: %w", hook.Name, err))
			errs.Add(cleanUpHooks(ctx, init, hooks[:i]))

			return errs.GetError()
		}
	}

	for i, s := range states {
		if err := s.Initialize(ctx, init); err != nil {
			var errs errors.Collection

			errs.Add(err)
			errs.Add(cleanUpStates(ctx, init, states[:i+1]))
			errs.Add(cleanUpHooks(ctx, init, hooks))

			return errs.GetError()
		}
	}

	return nil
}

// CleanUp releases every state's subscriptions in reverse registration order,
// then deregisters the providers. All errors are collected.
func (m *Machine[I, E]) CleanUp(ctx context.Context, init I) error {
	m.mut.RLock()
	hooks := slices.Clone(m.hooks)
	states := slices.Clone(m.order)
	m.mut.RUnlock()

	var errs errors.Collection

	errs.Add(cleanUpStates(ctx, init, states))
	errs.Add(cleanUpHooks(ctx, init, hooks))

	return errs.GetError()
}

// Dispose releases the resources of every registered state in registration
// order. Repeated calls are no-ops once a call succeeded.
func (m *Machine[I, E]) Dispose() error {
	return m.disposeFn.Close()
}

func cleanUpStates[I any, E Exec](ctx context.Context, init I, states []*State[I, E]) error {
	var errs errors.Collection

	for i := len(states) - 1; i >= 0; i-- {
		errs.Add(states[i].CleanUp(ctx, init))
	}

	return errs.GetError()
}

func cleanUpHooks[I any](ctx context.Context, init I, hooks []Hook[I]) error {
	var errs errors.Collection

	for i := len(hooks) - 1; i >= 0; i-- {
		if hooks[i].CleanUp == nil {
			continue
		}

		if err := hooks[i].CleanUp(ctx, init); err != nil {
			errs.Add(fmt.Errorf("provider %s: %w", hooks[i].Name, err))
		}
	}

	return errs.GetError()
}
