// Package report_repo provides the PostgreSQL report repository.
package report_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"prodledger/internal/domain/reports"
	"prodledger/internal/infrastructure/storage/postgres"
)

// ReportRepo implements reports.Repository. It only fetches raw rows;
// grouping and rates are computed by reports.Aggregate.
type ReportRepo struct {
	txm *postgres.TxManager
}

var _ reports.Repository = (*ReportRepo)(nil)

// NewReportRepo creates a new report repository.
func NewReportRepo(txm *postgres.TxManager) *ReportRepo {
	return &ReportRepo{txm: txm}
}

// ProductionRows joins entries with their line and style codes.
func (r *ReportRepo) ProductionRows(ctx context.Context, f reports.RowFilter) ([]reports.Row, error) {
	sql, args, err := rowsQuery(f).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows := make([]reports.Row, 0)
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("production rows: %w", err)
	}
	return rows, nil
}

func rowsQuery(f reports.RowFilter) squirrel.SelectBuilder {
	q := postgres.Builder().
		Select(
			postgres.QualifiedDayColumn("e", "entry_date"),
			"l.code AS line_code",
			"s.code AS style_code",
			"e.stage",
			"e.hour_index",
			"e.input_qty",
			"e.output_qty",
			"e.defect_qty",
			"e.rework_qty",
		).
		From("evt_production_entries e").
		Join("cat_lines l ON l.id = e.line_id").
		Join("cat_styles s ON s.id = e.style_id")

	if !f.From.IsZero() {
		q = q.Where(postgres.DayCompare("e.entry_date", ">=", f.From))
	}
	if !f.To.IsZero() {
		q = q.Where(postgres.DayCompare("e.entry_date", "<=", f.To))
	}
	if f.LineCode != "" {
		q = q.Where(squirrel.Eq{"l.code": f.LineCode})
	}
	if f.StyleCode != "" {
		q = q.Where(squirrel.Eq{"s.code": f.StyleCode})
	}
	if f.Stage != "" {
		q = q.Where(squirrel.Eq{"e.stage": string(f.Stage)})
	}
	return q
}
