// Package tx declares the transaction contract domain services run against.
// The Postgres and in-memory stores implement it; ledger writes, reconcile
// deltas and bulk deletes all go through RunInTransaction, reports through
// ReadOnly.
package tx

import (
	"context"
)

// Manager runs fn in a transaction: commit when fn returns nil, roll back
// otherwise. A ctx that already carries a transaction is reused, so nested
// calls join the outer one and row locks live until it ends.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager adds read-committed, lock-free transactions. Writes inside
// ReadOnly fail.
type ReadOnlyManager interface {
	Manager
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}

// Do runs fn in a transaction and returns its value. On error the zero value
// is returned, never a value from a rolled-back attempt.
func Do[T any](ctx context.Context, m Manager, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := m.RunInTransaction(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Read is Do for read-only transactions.
func Read[T any](ctx context.Context, m ReadOnlyManager, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := m.ReadOnly(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
