package memory

import (
	"context"
	"sort"
	"strings"

	"prodledger/internal/core/entity"
	"prodledger/internal/domain/ledger"
)

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct {
	s *Store
}

var _ ledger.Repository = (*LedgerRepo)(nil)

// NewLedgerRepo creates a ledger repository.
func NewLedgerRepo(s *Store) *LedgerRepo {
	return &LedgerRepo{s: s}
}

// GetBalance returns the staged row inside a transaction, else the committed one.
func (r *LedgerRepo) GetBalance(ctx context.Context, styleCode string) (entity.StyleBalance, error) {
	if err := ctx.Err(); err != nil {
		return entity.StyleBalance{}, err
	}
	if t := txFrom(ctx); t != nil {
		if b, ok := t.balances[styleCode]; ok {
			return b, nil
		}
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if b, ok := r.s.balances[styleCode]; ok {
		return b, nil
	}
	return entity.ZeroBalance(styleCode), nil
}

// LockBalance takes the per-style lock for the rest of the transaction.
func (r *LedgerRepo) LockBalance(ctx context.Context, styleCode string) (entity.StyleBalance, error) {
	if err := r.s.lock(ctx, "style:"+styleCode); err != nil {
		return entity.StyleBalance{}, err
	}
	return r.GetBalance(ctx, styleCode)
}

// SaveBalance stages the row; it becomes visible on commit.
func (r *LedgerRepo) SaveBalance(ctx context.Context, b entity.StyleBalance) error {
	t := txFrom(ctx)
	if t == nil {
		return ErrNoTransaction
	}
	if !t.heldSet["style:"+b.StyleCode] {
		return ErrNoTransaction
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.checkLocked(ctx, "balance.save"); err != nil {
		return err
	}
	t.balances[b.StyleCode] = b
	return nil
}

// ListBalances returns committed rows ordered by style code.
func (r *LedgerRepo) ListBalances(ctx context.Context, f ledger.BalanceFilter) ([]entity.StyleBalance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	want := make(map[string]bool, len(f.StyleCodes))
	for _, c := range f.StyleCodes {
		want[c] = true
	}

	r.s.mu.RLock()
	out := make([]entity.StyleBalance, 0, len(r.s.balances))
	for code, b := range r.s.balances {
		if len(want) > 0 && !want[code] {
			continue
		}
		if f.StylePrefix != "" && !strings.HasPrefix(code, f.StylePrefix) {
			continue
		}
		if f.ExcludeZero && b.TotalTarget == 0 && b.TotalProduced == 0 {
			continue
		}
		out = append(out, b)
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StyleCode < out[j].StyleCode })
	return page(out, f.Limit, f.Offset), nil
}

// IsApplied consults the staged journal, then the committed one.
func (r *LedgerRepo) IsApplied(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if t := txFrom(ctx); t != nil {
		if _, ok := t.journal[key]; ok {
			return true, nil
		}
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.journal[key]
	return ok, nil
}

// RecordApplied stages a journal entry.
func (r *LedgerRepo) RecordApplied(ctx context.Context, d ledger.AppliedDelta) error {
	t := txFrom(ctx)
	if t == nil {
		return ErrNoTransaction
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.checkLocked(ctx, "journal.record"); err != nil {
		return err
	}
	t.journal[d.Key] = d
	return nil
}

// AppliedCount returns the number of committed journal entries.
func (r *LedgerRepo) AppliedCount() int {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.journal)
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
