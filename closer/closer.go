// Package closer composes io.Closer values. Machines, states and engines use
// it to release subscriptions, stores and transactions exactly once.
package closer

import (
	"errors"
	"io"
	"runtime/debug"
	"sync"

	lserrors "github.com/amp-labs/logicstates/errors"
	"go.uber.org/atomic"
)

type customCloser struct {
	closeFn func() error
}

// CustomCloser turns a cleanup function into an io.Closer. A nil function yields nil.
func CustomCloser(closeFn func() error) io.Closer {
	if closeFn == nil {
		return nil
	}

	return &customCloser{closeFn: closeFn}
}

func (c *customCloser) Close() error {
	return c.closeFn()
}

// Closer collects closers and closes all of them at once, in the order they
// were added. Every closer is attempted; failures are joined.
type Closer struct {
	mut     sync.Mutex
	closers []io.Closer
}

// NewCloser creates a Closer holding the given closers.
func NewCloser(closers ...io.Closer) *Closer {
	return &Closer{closers: closers}
}

// Add registers another closer. Nil is allowed and skipped on Close.
func (c *Closer) Add(closer io.Closer) {
	c.mut.Lock()
	defer c.mut.Unlock()

	c.closers = append(c.closers, closer)
}

// Close closes every registered closer.
func (c *Closer) Close() error {
	c.mut.Lock()
	closers := c.closers
	c.mut.Unlock()

	var errs []error

	for _, closer := range closers {
		if closer == nil {
			continue
		}

		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

type closeOnceImpl struct {
	mut    sync.Mutex
	closed bool
	closer io.Closer
}

// CloseOnce wraps closer so that the underlying Close runs at most once
// successfully. A failed Close is not remembered and may be retried.
// Wrapping an already wrapped closer returns it unchanged.
func CloseOnce(closer io.Closer) io.Closer {
	if closer == nil {
		return nil
	}

	if once, ok := closer.(*closeOnceImpl); ok {
		return once
	}

	return &closeOnceImpl{closer: closer}
}

func (c *closeOnceImpl) Close() error {
	c.mut.Lock()
	defer c.mut.Unlock()

	if c.closed {
		return nil
	}

	if err := c.closer.Close(); err != nil {
		return err
	}

	c.closed = true

	return nil
}

// HandlePanic wraps closer so that a panic inside Close becomes an error
// wrapping errors.ErrPanicRecovery.
func HandlePanic(closer io.Closer) io.Closer {
	if closer == nil {
		return nil
	}

	if _, ok := closer.(*panicHandlingImpl); ok {
		return closer
	}

	return &panicHandlingImpl{closer: closer}
}

type panicHandlingImpl struct {
	closer io.Closer
}

func (p *panicHandlingImpl) Close() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Join(err, lserrors.FromPanic(r, debug.Stack()))
		}
	}()

	return p.closer.Close()
}

type cancelableCloser struct {
	shouldClose *atomic.Bool
	closer      io.Closer
}

func (c *cancelableCloser) Close() error {
	if c.shouldClose.Load() {
		return c.closer.Close()
	}

	return nil
}

func (c *cancelableCloser) cancel() {
	c.shouldClose.Store(false)
}

// CancelableCloser returns a closer that closes c unless cancel was called
// first. The engine defers it around a transaction as the rollback path and
// cancels it once the commit went through.
func CancelableCloser(c io.Closer) (closer io.Closer, cancel func()) {
	if c == nil {
		return nil, func() {}
	}

	if cc, ok := c.(*cancelableCloser); ok {
		return cc, cc.cancel
	}

	cc := &cancelableCloser{
		shouldClose: atomic.NewBool(true),
		closer:      c,
	}

	return cc, cc.cancel
}
