// Package assert checks dynamic types.
package assert

import (
	"fmt"

	"github.com/amp-labs/logicstates/errors"
)

// Type asserts that val holds a T. A mismatch returns an error wrapping errors.ErrWrongType.
//
//nolint:ireturn
func Type[T any](val any) (T, error) {
	of, ok := val.(T)
	if !ok {
		return of, fmt.Errorf("%w: expected type %T, but received %T", errors.ErrWrongType, of, val)
	}

	return of, nil
}
