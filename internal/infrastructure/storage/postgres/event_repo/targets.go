// Package event_repo provides PostgreSQL repositories for target events and
// production entries.
package event_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"prodledger/internal/core/apperror"
	"prodledger/internal/core/entity"
	"prodledger/internal/core/id"
	"prodledger/internal/core/types"
	"prodledger/internal/domain"
	"prodledger/internal/domain/reconcile"
	"prodledger/internal/domain/targets"
	"prodledger/internal/infrastructure/storage/postgres"
)

const (
	targetsTable      = "evt_targets"
	targetsConstraint = "uq_targets_slot"
)

var targetCols = []string{
	"id", "line_code", "style_code", postgres.DayColumn("target_date"),
	"line_target", "hourly_production", "created_by", "created_at",
}

// TargetRepo implements targets.Repository.
type TargetRepo struct {
	txm *postgres.TxManager
}

var (
	_ targets.Repository    = (*TargetRepo)(nil)
	_ reconcile.TargetStore = (*TargetRepo)(nil)
)

// NewTargetRepo creates a target repository.
func NewTargetRepo(txm *postgres.TxManager) *TargetRepo {
	return &TargetRepo{txm: txm}
}

func (r *TargetRepo) baseSelect() squirrel.SelectBuilder {
	return postgres.Builder().Select(targetCols...).From(targetsTable)
}

// Create inserts a target. The slot constraint turns a second target for
// the same line, style and date into a conflict.
func (r *TargetRepo) Create(ctx context.Context, t *entity.TargetEvent) error {
	sql, args, err := postgres.Builder().
		Insert(targetsTable).
		Columns("id", "line_code", "style_code", "target_date",
			"line_target", "hourly_production", "created_by", "created_at").
		Values(t.ID, t.LineCode, t.StyleCode, postgres.DayValue(t.Date),
			t.LineTarget, t.HourlyProduction, t.CreatedBy, t.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err, targetsConstraint) {
			return apperror.NewConflict("a target already exists for this line, style and date").
				WithDetail("lineCode", t.LineCode).
				WithDetail("styleCode", t.StyleCode).
				WithDetail("date", t.Date).
				WithCause(err)
		}
		if postgres.IsUniqueViolation(err, "") {
			return apperror.NewDuplicate("target", "id", t.ID.String()).WithCause(err)
		}
		return fmt.Errorf("insert %s: %w", targetsTable, err)
	}
	return nil
}

// GetByID retrieves a target by ID.
func (r *TargetRepo) GetByID(ctx context.Context, targetID id.ID) (*entity.TargetEvent, error) {
	sql, args, err := r.baseSelect().
		Where(squirrel.Eq{"id": targetID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var t entity.TargetEvent
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &t, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("target", targetID.String())
		}
		return nil, fmt.Errorf("get target: %w", err)
	}
	return &t, nil
}

// GetByIDs returns the existing targets among ids.
func (r *TargetRepo) GetByIDs(ctx context.Context, ids []id.ID) ([]*entity.TargetEvent, error) {
	if len(ids) == 0 {
		return []*entity.TargetEvent{}, nil
	}

	sql, args, err := r.baseSelect().
		Where("id = ANY(?)", ids).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	out := make([]*entity.TargetEvent, 0, len(ids))
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("get targets: %w", err)
	}
	return out, nil
}

// FindBySlot returns the target occupying a slot, or nil.
func (r *TargetRepo) FindBySlot(ctx context.Context, lineCode, styleCode string, date types.Day) (*entity.TargetEvent, error) {
	sql, args, err := r.baseSelect().
		Where(squirrel.Eq{"line_code": lineCode, "style_code": styleCode}).
		Where(postgres.DayCompare("target_date", "=", date)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var t entity.TargetEvent
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &t, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find target slot: %w", err)
	}
	return &t, nil
}

// Delete removes one target.
func (r *TargetRepo) Delete(ctx context.Context, targetID id.ID) error {
	sql, args, err := postgres.Builder().
		Delete(targetsTable).
		Where(squirrel.Eq{"id": targetID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("target", targetID.String())
	}
	return nil
}

// DeleteMany removes the existing targets among ids in one statement.
func (r *TargetRepo) DeleteMany(ctx context.Context, ids []id.ID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	sql, args, err := postgres.Builder().
		Delete(targetsTable).
		Where("id = ANY(?)", ids).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("delete targets: %w", err)
	}
	return tag.RowsAffected(), nil
}

// List returns targets ordered by date, line, style.
func (r *TargetRepo) List(ctx context.Context, f targets.ListFilter) (domain.ListResult[*entity.TargetEvent], error) {
	res := domain.ListResult[*entity.TargetEvent]{Limit: f.Limit, Offset: f.Offset}
	q := applyTargetFilter(r.baseSelect(), f)

	countSQL, countArgs, err := postgres.Builder().
		Select("COUNT(*)").
		FromSelect(q, "sub").
		ToSql()
	if err != nil {
		return res, fmt.Errorf("build count query: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&res.TotalCount); err != nil {
		return res, fmt.Errorf("count targets: %w", err)
	}

	q = q.OrderBy("target_date", "line_code", "style_code")
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return res, fmt.Errorf("build query: %w", err)
	}

	res.Items = make([]*entity.TargetEvent, 0)
	if err := pgxscan.Select(ctx, querier, &res.Items, sql, args...); err != nil {
		return res, fmt.Errorf("list targets: %w", err)
	}
	return res, nil
}

func applyTargetFilter(q squirrel.SelectBuilder, f targets.ListFilter) squirrel.SelectBuilder {
	if !f.From.IsZero() {
		q = q.Where(postgres.DayCompare("target_date", ">=", f.From))
	}
	if !f.To.IsZero() {
		q = q.Where(postgres.DayCompare("target_date", "<=", f.To))
	}
	if f.LineCode != "" {
		q = q.Where(squirrel.Eq{"line_code": f.LineCode})
	}
	if f.StyleCode != "" {
		q = q.Where(squirrel.Eq{"style_code": f.StyleCode})
	}
	return q
}

// TargetTotals sums a style's lineTarget and hourlyProduction.
func (r *TargetRepo) TargetTotals(ctx context.Context, styleCode string) (int64, int64, error) {
	sql, args, err := postgres.Builder().
		Select("COALESCE(SUM(line_target), 0)", "COALESCE(SUM(hourly_production), 0)").
		From(targetsTable).
		Where(squirrel.Eq{"style_code": styleCode}).
		ToSql()
	if err != nil {
		return 0, 0, fmt.Errorf("build query: %w", err)
	}

	var lineTarget, hourly int64
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&lineTarget, &hourly); err != nil {
		return 0, 0, fmt.Errorf("target totals: %w", err)
	}
	return lineTarget, hourly, nil
}
