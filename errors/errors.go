// Package errors holds error values and helpers shared by every logicstates package.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrWrongType is returned when a dynamically typed value has an unexpected type.
	ErrWrongType = errors.New("wrong type")
	// ErrPanicRecovery wraps a panic recovered from a step function or a close hook.
	ErrPanicRecovery = errors.New("recovered from panic")
)

// FromPanic turns a recovered panic value into an error wrapping ErrPanicRecovery.
// It returns nil when nothing was recovered. A non-nil stack is appended to the message.
func FromPanic(recovered any, stack []byte) error {
	if recovered == nil {
		return nil
	}

	var err error
	if asErr, ok := recovered.(error); ok {
		err = fmt.Errorf("%w: %w", ErrPanicRecovery, asErr)
	} else {
		err = fmt.Errorf("%w: %v", ErrPanicRecovery, recovered)
	}

	if stack != nil {
		return fmt.Errorf("%w\nstack trace:\n%s", err, stack)
	}

	return err
}

// Collection accumulates errors from a sequence of independent operations,
// for example the clean-up of every state of a machine. It is not thread-safe.
type Collection struct {
	errors []error
}

// Add appends err. Nil errors are ignored.
func (c *Collection) Add(err error) {
	if err != nil {
		c.errors = append(c.errors, err)
	}
}

// HasError reports whether at least one error was added.
func (c *Collection) HasError() bool {
	return len(c.errors) > 0
}

// Len returns the number of collected errors.
func (c *Collection) Len() int {
	return len(c.errors)
}

// GetError returns nil, the single error, or all errors joined.
func (c *Collection) GetError() error {
	switch len(c.errors) {
	case 0:
		return nil
	case 1:
		return c.errors[0]
	default:
		return errors.Join(c.errors...)
	}
}
