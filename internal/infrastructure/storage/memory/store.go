// Package memory provides in-memory repositories and a transaction manager
// for tests and local runs.
//
// Ledger rows and journal entries written inside a transaction are staged and
// published on commit, so readers only ever see committed balances. Event
// writes (targets, entries, catalog items) are applied in place and undone on
// rollback.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"prodledger/internal/core/entity"
	"prodledger/internal/core/id"
	"prodledger/internal/core/tx"
	"prodledger/internal/domain/audit"
	"prodledger/internal/domain/catalogs/line"
	"prodledger/internal/domain/catalogs/style"
	"prodledger/internal/domain/ledger"
)

// ErrNoTransaction is returned by locking reads outside RunInTransaction.
var ErrNoTransaction = errors.New("memory: operation requires a transaction")

// ErrReadOnly is returned by writes inside ReadOnly.
var ErrReadOnly = errors.New("memory: write in read-only transaction")

// Store holds all tables.
type Store struct {
	mu sync.RWMutex

	balances map[string]entity.StyleBalance
	journal  map[string]ledger.AppliedDelta
	targets  map[id.ID]entity.TargetEvent
	entries  map[id.ID]entity.ProductionEntry
	lines    map[id.ID]line.Line
	styles   map[id.ID]style.Style
	audit    []audit.Entry

	locks *keyedLocks
	fault func(op string) error
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		balances: make(map[string]entity.StyleBalance),
		journal:  make(map[string]ledger.AppliedDelta),
		targets:  make(map[id.ID]entity.TargetEvent),
		entries:  make(map[id.ID]entity.ProductionEntry),
		lines:    make(map[id.ID]line.Line),
		styles:   make(map[id.ID]style.Style),
		locks:    newKeyedLocks(),
	}
}

// SetFault installs a hook consulted before every write; a non-nil return
// fails that write. Tests use it to simulate storage failures.
func (s *Store) SetFault(f func(op string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = f
}

// checkLocked must be called with s.mu held.
func (s *Store) checkLocked(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t := txFrom(ctx); t != nil && t.readOnly {
		return ErrReadOnly
	}
	if s.fault != nil {
		if err := s.fault(op); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

// write applies a change under the store lock and registers its undo with
// the surrounding transaction, if any.
func (s *Store) write(ctx context.Context, op string, apply func() (undo func(), err error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(ctx, op); err != nil {
		return err
	}
	undo, err := apply()
	if err != nil {
		return err
	}
	if t := txFrom(ctx); t != nil && undo != nil {
		t.undo = append(t.undo, undo)
	}
	return nil
}

// --- Transactions ---

type txKey struct{}

type txState struct {
	readOnly bool
	undo     []func()
	balances map[string]entity.StyleBalance
	journal  map[string]ledger.AppliedDelta
	held     []string
	heldSet  map[string]bool
}

func txFrom(ctx context.Context) *txState {
	if t, ok := ctx.Value(txKey{}).(*txState); ok {
		return t
	}
	return nil
}

// TxManager implements tx.Manager and tx.ReadOnlyManager over a Store.
type TxManager struct {
	store *Store
}

var _ tx.ReadOnlyManager = (*TxManager)(nil)

// NewTxManager creates a transaction manager for the store.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// RunInTransaction executes fn in a transaction. Nested calls reuse the
// transaction already in ctx.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, false, fn)
}

// ReadOnly executes fn in a transaction that rejects writes.
func (m *TxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, true, fn)
}

func (m *TxManager) run(ctx context.Context, readOnly bool, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	t := &txState{
		readOnly: readOnly,
		balances: make(map[string]entity.StyleBalance),
		journal:  make(map[string]ledger.AppliedDelta),
		heldSet:  make(map[string]bool),
	}
	txCtx := context.WithValue(ctx, txKey{}, t)
	defer m.store.locks.releaseAll(t)

	err := fn(txCtx)
	if err == nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("commit transaction: %w", ctxErr)
		}
	}

	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
		return err
	}

	for k, b := range t.balances {
		s.balances[k] = b
	}
	for k, d := range t.journal {
		s.journal[k] = d
	}
	return nil
}

// lock acquires key for the transaction in ctx. Re-acquiring a held key is
// a no-op.
func (s *Store) lock(ctx context.Context, key string) error {
	t := txFrom(ctx)
	if t == nil {
		return ErrNoTransaction
	}
	if t.heldSet[key] {
		return nil
	}
	if err := s.locks.acquire(ctx, key); err != nil {
		return err
	}
	t.heldSet[key] = true
	t.held = append(t.held, key)
	return nil
}

// --- Keyed locks ---

type keyedLocks struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{held: make(map[string]chan struct{})}
}

// acquire blocks until key is free or ctx is done.
func (k *keyedLocks) acquire(ctx context.Context, key string) error {
	for {
		k.mu.Lock()
		ch, busy := k.held[key]
		if !busy {
			k.held[key] = make(chan struct{})
			k.mu.Unlock()
			return nil
		}
		k.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (k *keyedLocks) release(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if ch, ok := k.held[key]; ok {
		delete(k.held, key)
		close(ch)
	}
}

func (k *keyedLocks) releaseAll(t *txState) {
	for i := len(t.held) - 1; i >= 0; i-- {
		k.release(t.held[i])
	}
}
