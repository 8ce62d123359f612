// Package ledger_repo provides the PostgreSQL ledger repository.
package ledger_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"prodledger/internal/core/apperror"
	"prodledger/internal/core/entity"
	"prodledger/internal/domain/ledger"
	"prodledger/internal/infrastructure/storage/postgres"
)

const (
	balancesTable = "ledger_style_balances"
	journalTable  = "ledger_applied_deltas"
)

var balanceCols = []string{
	"style_code", "total_target", "total_produced", "current_balance", "version", "last_updated",
}

// LedgerRepo implements ledger.Repository.
//
// Per-style serialization comes from the row lock taken by LockBalance;
// the row is created on first use so there is always something to lock.
type LedgerRepo struct {
	txm *postgres.TxManager
}

var _ ledger.Repository = (*LedgerRepo)(nil)

// NewLedgerRepo creates a ledger repository.
func NewLedgerRepo(txm *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{txm: txm}
}

// GetBalance returns the committed row, or zeros if the style has none.
func (r *LedgerRepo) GetBalance(ctx context.Context, styleCode string) (entity.StyleBalance, error) {
	sql, args, err := postgres.Builder().
		Select(balanceCols...).
		From(balancesTable).
		Where(squirrel.Eq{"style_code": styleCode}).
		ToSql()
	if err != nil {
		return entity.StyleBalance{}, fmt.Errorf("build query: %w", err)
	}

	var b entity.StyleBalance
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &b, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity.ZeroBalance(styleCode), nil
		}
		return entity.StyleBalance{}, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

// LockBalance inserts a zero row if missing, then locks it FOR UPDATE.
// A concurrent writer on the same style blocks until this transaction ends;
// ctx cancellation aborts the wait.
func (r *LedgerRepo) LockBalance(ctx context.Context, styleCode string) (entity.StyleBalance, error) {
	t, err := r.txm.RequireTx(ctx, "lock balance")
	if err != nil {
		return entity.StyleBalance{}, err
	}

	ins, insArgs, err := postgres.Builder().
		Insert(balancesTable).
		Columns("style_code", "last_updated").
		Values(styleCode, time.Now().UTC()).
		Suffix("ON CONFLICT (style_code) DO NOTHING").
		ToSql()
	if err != nil {
		return entity.StyleBalance{}, fmt.Errorf("build insert: %w", err)
	}
	if _, err := t.Exec(ctx, ins, insArgs...); err != nil {
		return entity.StyleBalance{}, fmt.Errorf("ensure balance row: %w", err)
	}

	sql, args, err := postgres.Builder().
		Select(balanceCols...).
		From(balancesTable).
		Where(squirrel.Eq{"style_code": styleCode}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return entity.StyleBalance{}, fmt.Errorf("build query: %w", err)
	}

	var b entity.StyleBalance
	if err := pgxscan.Get(ctx, t, &b, sql, args...); err != nil {
		return entity.StyleBalance{}, fmt.Errorf("lock balance: %w", err)
	}
	return b, nil
}

// SaveBalance overwrites the locked row. The chk_balance constraint rejects
// a row that breaks the invariant.
func (r *LedgerRepo) SaveBalance(ctx context.Context, b entity.StyleBalance) error {
	t, err := r.txm.RequireTx(ctx, "save balance")
	if err != nil {
		return err
	}

	sql, args, err := postgres.Builder().
		Update(balancesTable).
		Set("total_target", b.TotalTarget).
		Set("total_produced", b.TotalProduced).
		Set("current_balance", b.CurrentBalance).
		Set("version", b.Version).
		Set("last_updated", b.LastUpdated).
		Where(squirrel.Eq{"style_code": b.StyleCode}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := t.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("save balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("style balance", b.StyleCode)
	}
	return nil
}

// ListBalances returns committed rows ordered by style code.
func (r *LedgerRepo) ListBalances(ctx context.Context, f ledger.BalanceFilter) ([]entity.StyleBalance, error) {
	q := listQuery(f)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	out := make([]entity.StyleBalance, 0)
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	return out, nil
}

func listQuery(f ledger.BalanceFilter) squirrel.SelectBuilder {
	q := postgres.Builder().
		Select(balanceCols...).
		From(balancesTable)

	if len(f.StyleCodes) > 0 {
		q = q.Where(squirrel.Eq{"style_code": f.StyleCodes})
	}
	if f.StylePrefix != "" {
		q = q.Where(squirrel.Like{"style_code": escapeLike(f.StylePrefix) + "%"})
	}
	if f.ExcludeZero {
		q = q.Where(squirrel.Or{
			squirrel.NotEq{"total_target": 0},
			squirrel.NotEq{"total_produced": 0},
		})
	}

	q = q.OrderBy("style_code")
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}
	return q
}

// IsApplied reports whether the delta key is journaled, including rows
// written earlier in the current transaction.
func (r *LedgerRepo) IsApplied(ctx context.Context, key string) (bool, error) {
	sql, args, err := postgres.Builder().
		Select("1").
		From(journalTable).
		Where(squirrel.Eq{"delta_key": key}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var one int
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &one, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("journal lookup: %w", err)
	}
	return true, nil
}

// RecordApplied inserts a journal row. A duplicate key means another writer
// got past the row lock, which is reported as a conflict.
func (r *LedgerRepo) RecordApplied(ctx context.Context, d ledger.AppliedDelta) error {
	t, err := r.txm.RequireTx(ctx, "record applied delta")
	if err != nil {
		return err
	}

	sql, args, err := postgres.Builder().
		Insert(journalTable).
		Columns("delta_key", "event_id", "revision", "style_code", "direction",
			"target_delta", "produced_delta", "applied_at").
		Values(d.Key, d.EventID, d.Revision, d.StyleCode, d.Direction,
			d.TargetDelta, d.ProducedDelta, d.AppliedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := t.Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err, "") {
			return apperror.NewConflict("delta already applied").
				WithDetail("key", d.Key).
				WithCause(err)
		}
		return fmt.Errorf("record applied delta: %w", err)
	}
	return nil
}

// escapeLike escapes LIKE wildcards in user input.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
