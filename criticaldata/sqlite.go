package criticaldata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/amp-labs/logicstates/criticaldata/migrations"
	"github.com/amp-labs/logicstates/should"
	"github.com/zeebo/xxh3"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// SQLiteStore persists critical data in a SQLite database (WAL mode).
// Durable transactions force a full WAL checkpoint after commit. Every value
// is stored with its xxh3 checksum and verified on read.
type SQLiteStore struct {
	sqlDB *sql.DB
}

// OpenSQLite opens (creating if needed) a SQLite critical data store at path
// and applies embedded migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrPathRequired
	}

	dsn := filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// One connection serialises writers; Begin waits for the connection instead
	// of failing with SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		should.Close(sqlDB, "failed to close sqlite db after ping failure")

		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := applyMigrations(ctx, sqlDB, migrations.FS, ""); err != nil {
		should.Close(sqlDB, "failed to close sqlite db after migration failure")

		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}

	return s.sqlDB.Close()
}

// Begin opens a SQLite transaction.
func (s *SQLiteStore) Begin(ctx context.Context, opts TxOptions) (Txn, error) {
	if s == nil || s.sqlDB == nil {
		return nil, ErrStoreClosed
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		if errors.Is(err, sql.ErrConnDone) {
			return nil, ErrStoreClosed
		}

		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	return &sqliteTxn{
		ctx:     ctx,
		store:   s,
		tx:      tx,
		durable: opts.Durable,
	}, nil
}

type sqliteTxn struct {
	ctx     context.Context //nolint:containedctx // scoped to one transaction
	store   *SQLiteStore
	tx      *sql.Tx
	durable bool
	done    bool
}

func (t *sqliteTxn) Get(key string) ([]byte, error) {
	if t.done {
		return nil, ErrTxnDone
	}

	if err := checkKey(key); err != nil {
		return nil, err
	}

	var (
		value    []byte
		checksum int64
	)

	row := t.tx.QueryRowContext(t.ctx, "SELECT value, checksum FROM critical_data WHERE key = ?", key)
	if err := row.Scan(&value, &checksum); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("get %q: %w", key, err)
	}

	if sum(value) != checksum {
		return nil, fmt.Errorf("get %q: %w", key, ErrCorrupt)
	}

	return value, nil
}

func (t *sqliteTxn) Put(key string, value []byte) error {
	if t.done {
		return ErrTxnDone
	}

	if err := checkKey(key); err != nil {
		return err
	}

	if value == nil {
		value = []byte{}
	}

	_, err := t.tx.ExecContext(t.ctx, `
INSERT INTO critical_data (key, value, checksum, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
    value = excluded.value,
    checksum = excluded.checksum,
    updated_at = excluded.updated_at;
`, key, value, sum(value), time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}

	return nil
}

func (t *sqliteTxn) Delete(key string) error {
	if t.done {
		return ErrTxnDone
	}

	if err := checkKey(key); err != nil {
		return err
	}

	if _, err := t.tx.ExecContext(t.ctx, "DELETE FROM critical_data WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}

	return nil
}

func (t *sqliteTxn) Commit() error {
	if t.done {
		return ErrTxnDone
	}

	t.done = true

	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	if !t.durable {
		return nil
	}

	if _, err := t.store.sqlDB.ExecContext(t.ctx, "PRAGMA wal_checkpoint(FULL)"); err != nil {
		return fmt.Errorf("checkpoint durable commit: %w", err)
	}

	return nil
}

func (t *sqliteTxn) Rollback() error {
	if t.done {
		return ErrTxnDone
	}

	t.done = true

	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}

	return nil
}

func (t *sqliteTxn) Durable() bool {
	return t.durable
}

func sum(value []byte) int64 {
	return int64(xxh3.Hash(value)) //nolint:gosec // stored bit-for-bit in an INTEGER column
}
