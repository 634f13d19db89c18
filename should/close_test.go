package should_test

import (
	"context"
	"errors"
	"testing"

	"github.com/amp-labs/logicstates/logger"
	"github.com/amp-labs/logicstates/should"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
)

var errCloseFailed = errors.New("close failed")

type mockCloser struct {
	closeErr error
	closed   bool
}

func (m *mockCloser) Close() error {
	m.closed = true

	return m.closeErr
}

func TestClose_Success(t *testing.T) {
	t.Parallel()

	closer := &mockCloser{}

	should.Close(closer, "test message")

	assert.True(t, closer.closed)
}

func TestCloseContext_ErrorIsLoggedNotReturned(t *testing.T) {
	t.Parallel()

	ctx := logger.WithLogger(context.Background(), slogt.New(t))
	closer := &mockCloser{closeErr: errCloseFailed}

	assert.NotPanics(t, func() {
		should.CloseContext(ctx, closer, "closing failed")
	})
	assert.True(t, closer.closed)
}

func TestClose_Nil(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() {
		should.Close(nil, "nothing to close")
	})
}
