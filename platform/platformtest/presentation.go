package platformtest

import (
	"context"
	"slices"
	"sync"

	"github.com/amp-labs/logicstates/statemachine"
)

// Presentation fakes a presentation layer. It records started states and
// can answer them with scripted completions, delivered to the function given
// to Connect before StartState returns.
type Presentation struct {
	mu      sync.Mutex
	started []string
	script  map[string][]statemachine.Completion
	auto    map[string]bool
	sink    func(statemachine.Completion) bool
}

// NewPresentation creates a presentation that completes nothing on its own.
func NewPresentation() *Presentation {
	return &Presentation{
		script: make(map[string][]statemachine.Completion),
		auto:   make(map[string]bool),
	}
}

// Connect sets where completions are reported, typically Engine.CompletePresentation.
func (p *Presentation) Connect(sink func(statemachine.Completion) bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sink = sink
}

// Queue answers the next start of state with action and payload.
func (p *Presentation) Queue(state, action string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.script[state] = append(p.script[state], statemachine.Completion{State: state, Action: action, Payload: payload})
}

// AutoComplete answers every start of the given states that has nothing
// queued with a plain completion.
func (p *Presentation) AutoComplete(states ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, s := range states {
		p.auto[s] = true
	}
}

// StartState records the request and delivers the scripted answer, if any.
func (p *Presentation) StartState(_ context.Context, state string) error {
	p.mu.Lock()
	p.started = append(p.started, state)

	var (
		c  statemachine.Completion
		ok bool
	)

	if queued := p.script[state]; len(queued) > 0 {
		c, ok = queued[0], true
		p.script[state] = queued[1:]
	} else if p.auto[state] {
		c, ok = statemachine.Completion{State: state}, true
	}

	sink := p.sink
	p.mu.Unlock()

	if ok && sink != nil {
		sink(c)
	}

	return nil
}

// Started returns every started state in order.
func (p *Presentation) Started() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return slices.Clone(p.started)
}

var _ statemachine.Presentation = (*Presentation)(nil)
