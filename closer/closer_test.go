package closer

import (
	"errors"
	"io"
	"sync"
	"testing"

	lserrors "github.com/amp-labs/logicstates/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errCloseFailed = errors.New("close failed")
	errTransient   = errors.New("transient error")
)

type mockCloser struct {
	mu         sync.Mutex
	closeCount int
	closeError error
}

func (m *mockCloser) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeCount++

	return m.closeError
}

func (m *mockCloser) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.closeCount
}

func TestCustomCloser(t *testing.T) {
	t.Parallel()

	assert.Nil(t, CustomCloser(nil))

	calls := 0
	c := CustomCloser(func() error {
		calls++

		return errCloseFailed
	})

	require.ErrorIs(t, c.Close(), errCloseFailed)
	assert.Equal(t, 1, calls)
}

func TestCloser_ClosesAllInOrderAndJoinsErrors(t *testing.T) {
	t.Parallel()

	var order []int

	c := NewCloser(
		CustomCloser(func() error { order = append(order, 1); return errCloseFailed }), //nolint:nlreturn
		nil,
	)
	c.Add(CustomCloser(func() error { order = append(order, 2); return nil })) //nolint:nlreturn
	c.Add(CustomCloser(func() error { order = append(order, 3); return errTransient }))  //nolint:nlreturn

	err := c.Close()
	require.ErrorIs(t, err, errCloseFailed)
	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, []int{1, 2, 3}, order)

	require.NoError(t, NewCloser().Close())
}

func TestCloseOnce(t *testing.T) {
	t.Parallel()

	assert.Nil(t, CloseOnce(nil))

	mock := &mockCloser{}
	once := CloseOnce(mock)
	assert.Same(t, once, CloseOnce(once))

	var wg sync.WaitGroup

	for range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_ = once.Close()
		}()
	}

	wg.Wait()
	assert.Equal(t, 1, mock.count())
}

func TestCloseOnce_RetriesAfterError(t *testing.T) {
	t.Parallel()

	mock := &mockCloser{closeError: errTransient}
	once := CloseOnce(mock)

	require.ErrorIs(t, once.Close(), errTransient)

	mock.mu.Lock()
	mock.closeError = nil
	mock.mu.Unlock()

	require.NoError(t, once.Close())
	require.NoError(t, once.Close())
	assert.Equal(t, 2, mock.count())
}

func TestHandlePanic(t *testing.T) {
	t.Parallel()

	assert.Nil(t, HandlePanic(nil))

	c := HandlePanic(CustomCloser(func() error {
		panic("close exploded")
	}))

	err := c.Close()
	require.ErrorIs(t, err, lserrors.ErrPanicRecovery)
	assert.Contains(t, err.Error(), "close exploded")

	mock := &mockCloser{}
	require.NoError(t, HandlePanic(mock).Close())
	assert.Equal(t, 1, mock.count())
}

func TestCancelableCloser(t *testing.T) {
	t.Parallel()

	t.Run("closes when not canceled", func(t *testing.T) {
		t.Parallel()

		mock := &mockCloser{}
		c, _ := CancelableCloser(mock)

		require.NoError(t, c.Close())
		assert.Equal(t, 1, mock.count())
	})

	t.Run("cancel turns close into a no-op", func(t *testing.T) {
		t.Parallel()

		mock := &mockCloser{}
		c, cancel := CancelableCloser(mock)
		cancel()

		require.NoError(t, c.Close())
		assert.Zero(t, mock.count())
	})

	t.Run("nil closer", func(t *testing.T) {
		t.Parallel()

		c, cancel := CancelableCloser(nil)
		assert.Nil(t, c)
		assert.NotPanics(t, cancel)
	})
}

var _ io.Closer = (*Closer)(nil)
