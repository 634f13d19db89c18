package criticaldata

import (
	"bytes"
	"context"
	"maps"
	"sync"
)

// MemoryStore keeps critical data in process memory. It provides the same
// commit/rollback semantics as the SQLite store and is meant for tests and
// simulators where nothing has to survive a restart of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	data    map[string][]byte
	closed  bool
	commits map[bool]int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:    make(map[string][]byte),
		commits: make(map[bool]int),
	}
}

// Begin opens a transaction that buffers writes until Commit.
func (s *MemoryStore) Begin(ctx context.Context, opts TxOptions) (Txn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	return &memoryTxn{
		store:   s,
		durable: opts.Durable,
		writes:  make(map[string][]byte),
		deletes: make(map[string]bool),
	}, nil
}

// Close marks the store closed. Committed data stays readable through Snapshot.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	return nil
}

// Snapshot returns a copy of all committed data.
func (s *MemoryStore) Snapshot() map[string][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]byte, len(s.data))
	for k, v := range s.data {
		out[k] = bytes.Clone(v)
	}

	return out
}

// Commits returns how many light and durable transactions were committed.
func (s *MemoryStore) Commits() (light, durable int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.commits[false], s.commits[true]
}

func (s *MemoryStore) get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]

	return bytes.Clone(v), ok
}

func (s *MemoryStore) apply(t *memoryTxn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	for key := range t.deletes {
		delete(s.data, key)
	}

	maps.Copy(s.data, t.writes)

	s.commits[t.durable]++

	return nil
}

type memoryTxn struct {
	store   *MemoryStore
	durable bool
	done    bool
	writes  map[string][]byte
	deletes map[string]bool
}

func (t *memoryTxn) Get(key string) ([]byte, error) {
	if t.done {
		return nil, ErrTxnDone
	}

	if err := checkKey(key); err != nil {
		return nil, err
	}

	if v, ok := t.writes[key]; ok {
		return bytes.Clone(v), nil
	}

	if t.deletes[key] {
		return nil, ErrNotFound
	}

	v, ok := t.store.get(key)
	if !ok {
		return nil, ErrNotFound
	}

	return v, nil
}

func (t *memoryTxn) Put(key string, value []byte) error {
	if t.done {
		return ErrTxnDone
	}

	if err := checkKey(key); err != nil {
		return err
	}

	delete(t.deletes, key)
	t.writes[key] = bytes.Clone(value)

	return nil
}

func (t *memoryTxn) Delete(key string) error {
	if t.done {
		return ErrTxnDone
	}

	if err := checkKey(key); err != nil {
		return err
	}

	delete(t.writes, key)
	t.deletes[key] = true

	return nil
}

func (t *memoryTxn) Commit() error {
	if t.done {
		return ErrTxnDone
	}

	t.done = true

	return t.store.apply(t)
}

func (t *memoryTxn) Rollback() error {
	if t.done {
		return ErrTxnDone
	}

	t.done = true

	return nil
}

func (t *memoryTxn) Durable() bool {
	return t.durable
}
