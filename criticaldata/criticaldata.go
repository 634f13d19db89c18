// Package criticaldata provides the transactional key/value store that game
// logic writes must-survive-power-loss data through.
//
// A transaction is opened per protocol step by the state machine engine. Light
// transactions commit normally; durable (heavy) transactions additionally force
// the committed data to stable storage before Commit returns.
package criticaldata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// Predefined error types.
var (
	// ErrNotFound indicates that the key has no committed value.
	ErrNotFound = errors.New("critical data not found")
	// ErrKeyRequired indicates that an empty key was used.
	ErrKeyRequired = errors.New("critical data key is required")
	// ErrTxnDone indicates use of a transaction after Commit or Rollback.
	ErrTxnDone = errors.New("transaction already finished")
	// ErrStoreClosed indicates use of a store after Close.
	ErrStoreClosed = errors.New("critical data store is closed")
	// ErrPathRequired indicates that a file-backed store was opened without a path.
	ErrPathRequired = errors.New("storage path is required")
	// ErrUnknownDriver indicates an unsupported store driver name.
	ErrUnknownDriver = errors.New("unknown critical data driver")
	// ErrCorrupt indicates that a stored value no longer matches its checksum.
	ErrCorrupt = errors.New("critical data checksum mismatch")
)

// TxOptions configures a transaction.
type TxOptions struct {
	// Durable requests that Commit does not return before the data is on stable storage.
	Durable bool
}

// Store opens transactions against critical data. Implementations are safe for
// concurrent use; each transaction is used by one goroutine.
type Store interface {
	Begin(ctx context.Context, opts TxOptions) (Txn, error)
	Close() error
}

// Txn is a single all-or-nothing unit of critical data changes.
type Txn interface {
	// Get returns the value visible to this transaction, or ErrNotFound.
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
	Commit() error
	Rollback() error
	Durable() bool
}

// Load decodes the CBOR value stored under key. The boolean is false when no
// value exists.
func Load[T any](txn Txn, key string) (T, bool, error) {
	var out T

	raw, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return out, false, nil
		}

		return out, false, err
	}

	if err := cbor.Unmarshal(raw, &out); err != nil {
		return out, false, fmt.Errorf("decode %q: %w", key, err)
	}

	return out, true, nil
}

// Save encodes value as CBOR and stores it under key.
func Save[T any](txn Txn, key string, value T) error {
	raw, err := cbor.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}

	return txn.Put(key, raw)
}

// Key joins path segments into a store key.
func Key(parts ...string) string {
	return strings.Join(parts, "/")
}

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrKeyRequired
	}

	return nil
}

// Supported store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Open opens a store by driver name. The path is ignored by the memory driver.
//
//nolint:ireturn
func Open(ctx context.Context, driver, path string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverMemory, "":
		return NewMemoryStore(), nil
	case DriverSQLite:
		return OpenSQLite(ctx, path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
