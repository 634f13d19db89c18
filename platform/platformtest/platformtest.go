// Package platformtest provides in-memory fakes of the platform SDK. Every
// fake records the calls it receives, can be told to refuse calls, and lets
// tests raise platform events.
package platformtest

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrPlatform is returned by calls configured to fail.
var ErrPlatform = errors.New("platform failure")

// calls records call names and the configured refusals and failures.
type calls struct {
	mu      sync.Mutex
	log     []string
	refused map[string]bool
	failing map[string]bool
}

func (c *calls) record(name string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(args) > 0 {
		name = fmt.Sprintf("%s%v", name, args)
	}

	c.log = append(c.log, name)
}

// Calls returns the recorded calls in order. Calls with arguments are
// recorded as "Name[arg ...]".
func (c *calls) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return slices.Clone(c.log)
}

// ResetCalls forgets the recorded calls.
func (c *calls) ResetCalls() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.log = nil
}

// Refuse makes the named calls report a business refusal (false).
func (c *calls) Refuse(names ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refused == nil {
		c.refused = make(map[string]bool)
	}

	for _, n := range names {
		c.refused[n] = true
	}
}

// Fail makes the named calls return ErrPlatform.
func (c *calls) Fail(names ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failing == nil {
		c.failing = make(map[string]bool)
	}

	for _, n := range names {
		c.failing[n] = true
	}
}

// outcome returns the configured result of a boolean call.
func (c *calls) outcome(name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failing[name] {
		return false, fmt.Errorf("%w: %s", ErrPlatform, name)
	}

	return !c.refused[name], nil
}
