package memory

import (
	"context"

	"prodledger/internal/domain/reports"
)

// ReportRepo implements reports.Repository.
type ReportRepo struct {
	s *Store
}

var _ reports.Repository = (*ReportRepo)(nil)

// NewReportRepo creates a report repository.
func NewReportRepo(s *Store) *ReportRepo {
	return &ReportRepo{s: s}
}

// ProductionRows joins entries with their line and style codes.
func (r *ReportRepo) ProductionRows(ctx context.Context, f reports.RowFilter) ([]reports.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var rows []reports.Row
	for _, e := range r.s.entries {
		if !f.From.IsZero() && e.Date.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && f.To.Before(e.Date) {
			continue
		}
		if f.Stage != "" && e.Stage != f.Stage {
			continue
		}
		ln, ok := r.s.lines[e.LineID]
		if !ok {
			continue
		}
		st, ok := r.s.styles[e.StyleID]
		if !ok {
			continue
		}
		if f.LineCode != "" && ln.Code != f.LineCode {
			continue
		}
		if f.StyleCode != "" && st.Code != f.StyleCode {
			continue
		}
		rows = append(rows, reports.Row{
			Date:      e.Date,
			LineCode:  ln.Code,
			StyleCode: st.Code,
			Stage:     e.Stage,
			HourIndex: e.HourIndex,
			InputQty:  e.InputQty,
			OutputQty: e.OutputQty,
			DefectQty: e.DefectQty,
			ReworkQty: e.ReworkQty,
		})
	}
	return rows, nil
}
