package event_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"prodledger/internal/core/apperror"
	"prodledger/internal/core/entity"
	"prodledger/internal/core/id"
	"prodledger/internal/domain"
	"prodledger/internal/domain/production"
	"prodledger/internal/infrastructure/storage/postgres"
)

const (
	entriesTable      = "evt_production_entries"
	entriesConstraint = "uq_entries_slot"
)

var entryCols = []string{
	"id", postgres.DayColumn("entry_date"), "hour_index", "line_id", "style_id", "stage",
	"input_qty", "output_qty", "defect_qty", "rework_qty",
	"version", "created_by", "created_at", "updated_at",
}

// stageOrder sorts stages in floor order rather than alphabetically.
const stageOrder = "array_position(ARRAY['CUTTING','SEWING','FINISHING'], stage)"

// EntryRepo implements production.Repository.
type EntryRepo struct {
	txm *postgres.TxManager
}

var _ production.Repository = (*EntryRepo)(nil)

// NewEntryRepo creates a production entry repository.
func NewEntryRepo(txm *postgres.TxManager) *EntryRepo {
	return &EntryRepo{txm: txm}
}

func (r *EntryRepo) baseSelect() squirrel.SelectBuilder {
	return postgres.Builder().Select(entryCols...).From(entriesTable)
}

// Create inserts an entry; a taken slot is a duplicate.
func (r *EntryRepo) Create(ctx context.Context, e *entity.ProductionEntry) error {
	sql, args, err := postgres.Builder().
		Insert(entriesTable).
		Columns("id", "entry_date", "hour_index", "line_id", "style_id", "stage",
			"input_qty", "output_qty", "defect_qty", "rework_qty",
			"version", "created_by", "created_at", "updated_at").
		Values(e.ID, postgres.DayValue(e.Date), e.HourIndex, e.LineID, e.StyleID, string(e.Stage),
			e.InputQty, e.OutputQty, e.DefectQty, e.ReworkQty,
			e.Version, e.CreatedBy, e.CreatedAt, e.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err, entriesConstraint) {
			return apperror.NewDuplicate("production entry", "slot",
				fmt.Sprintf("%s/%d/%s", e.Date, e.HourIndex, e.Stage)).WithCause(err)
		}
		if postgres.IsForeignKeyViolation(err) {
			return apperror.NewValidation("line or style does not exist").WithCause(err)
		}
		return fmt.Errorf("insert %s: %w", entriesTable, err)
	}
	return nil
}

// GetByID retrieves an entry by ID.
func (r *EntryRepo) GetByID(ctx context.Context, entryID id.ID) (*entity.ProductionEntry, error) {
	return r.get(ctx, r.baseSelect().Where(squirrel.Eq{"id": entryID}), entryID)
}

// GetForUpdate retrieves an entry and locks its row.
func (r *EntryRepo) GetForUpdate(ctx context.Context, entryID id.ID) (*entity.ProductionEntry, error) {
	if _, err := r.txm.RequireTx(ctx, "get entry for update"); err != nil {
		return nil, err
	}
	return r.get(ctx, r.baseSelect().Where(squirrel.Eq{"id": entryID}).Suffix("FOR UPDATE"), entryID)
}

func (r *EntryRepo) get(ctx context.Context, q squirrel.SelectBuilder, entryID id.ID) (*entity.ProductionEntry, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var e entity.ProductionEntry
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &e, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("production entry", entryID.String())
		}
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return &e, nil
}

// UpdateQuantities writes corrected quantities with an optimistic version check.
func (r *EntryRepo) UpdateQuantities(ctx context.Context, e *entity.ProductionEntry) error {
	sql, args, err := postgres.Builder().
		Update(entriesTable).
		Set("input_qty", e.InputQty).
		Set("output_qty", e.OutputQty).
		Set("defect_qty", e.DefectQty).
		Set("rework_qty", e.ReworkQty).
		Set("version", e.Version).
		Set("updated_at", e.UpdatedAt).
		Where(squirrel.Eq{"id": e.ID, "version": e.Version - 1}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConflict("production entry was modified concurrently").
			WithDetail("id", e.ID)
	}
	return nil
}

// List returns entries ordered by date, hour, stage.
func (r *EntryRepo) List(ctx context.Context, f production.ListFilter) (domain.ListResult[*entity.ProductionEntry], error) {
	res := domain.ListResult[*entity.ProductionEntry]{Limit: f.Limit, Offset: f.Offset}
	q := applyEntryFilter(r.baseSelect(), f)

	countSQL, countArgs, err := postgres.Builder().
		Select("COUNT(*)").
		FromSelect(q, "sub").
		ToSql()
	if err != nil {
		return res, fmt.Errorf("build count query: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&res.TotalCount); err != nil {
		return res, fmt.Errorf("count entries: %w", err)
	}

	q = q.OrderBy("entry_date", "hour_index", stageOrder, "id")
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

	res.Items = make([]*entity.ProductionEntry, 0)
	if err := pgxscan.Select(ctx, querier, &res.Items, sql, args...); err != nil {
		return res, fmt.Errorf("list entries: %w", err)
	}
	return res, nil
}

func applyEntryFilter(q squirrel.SelectBuilder, f production.ListFilter) squirrel.SelectBuilder {
	if !f.From.IsZero() {
		q = q.Where(postgres.DayCompare("entry_date", ">=", f.From))
	}
	if !f.To.IsZero() {
		q = q.Where(postgres.DayCompare("entry_date", "<=", f.To))
	}
	if f.LineID != nil {
		q = q.Where(squirrel.Eq{"line_id": *f.LineID})
	}
	if f.StyleID != nil {
		q = q.Where(squirrel.Eq{"style_id": *f.StyleID})
	}
	if f.Stage != "" {
		q = q.Where(squirrel.Eq{"stage": string(f.Stage)})
	}
	return q
}

// OutputTotal sums outputQty for a style code at one stage.
func (r *EntryRepo) OutputTotal(ctx context.Context, styleCode string, stage entity.Stage) (int64, error) {
	sql, args, err := postgres.Builder().
		Select("COALESCE(SUM(e.output_qty), 0)").
		From(entriesTable + " e").
		Join("cat_styles s ON s.id = e.style_id").
		Where(squirrel.Eq{"s.code": styleCode, "e.stage": string(stage)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var total int64
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("output total: %w", err)
	}
	return total, nil
}
