// Package should runs cleanup that ought to succeed and only logs when it does not.
package should

import (
	"context"
	"io"

	"github.com/amp-labs/logicstates/logger"
)

// Close closes closer and logs msg with the error if that fails. Meant for defer.
//
//	defer should.Close(store, "closing critical data store")
func Close(closer io.Closer, msg string) {
	CloseContext(context.Background(), closer, msg)
}

// CloseContext is Close with the logger taken from ctx.
func CloseContext(ctx context.Context, closer io.Closer, msg string) {
	if closer == nil {
		return
	}

	if err := closer.Close(); err != nil {
		logger.Get(ctx).Error(msg, "error", err)
	}
}
