package reports

import (
	"context"
	"fmt"

	"prodledger/internal/core/apperror"
	"prodledger/internal/core/entity"
	"prodledger/internal/core/tx"
	"prodledger/internal/core/types"
)

// MaxRangeDays bounds one rollup request.
const MaxRangeDays = 92

// Service provides report generation operations. Reports read raw entries at
// read-committed and never touch the ledger.
type Service struct {
	repo Repository
	txm  tx.ReadOnlyManager
}

// NewService creates a new reports service.
func NewService(repo Repository, txm tx.ReadOnlyManager) *Service {
	return &Service{repo: repo, txm: txm}
}

// DailyRollup recomputes the rollup for the filter from raw entries.
func (s *Service) DailyRollup(ctx context.Context, filter Filter) (*Rollup, error) {
	if err := s.normalize(&filter); err != nil {
		return nil, err
	}

	rows, err := tx.Read(ctx, s.txm, func(ctx context.Context) ([]Row, error) {
		return s.repo.ProductionRows(ctx, RowFilter{
			From:      filter.From,
			To:        filter.To,
			LineCode:  filter.LineCode,
			StyleCode: filter.StyleCode,
			Stage:     filter.Stage,
		})
	})
	if err != nil {
		return nil, apperror.Persistence("report.daily_rollup", fmt.Errorf("fetch rows: %w", err))
	}

	r := Aggregate(rows, filter.GroupBy)
	r.From = filter.From
	r.To = filter.To
	return &r, nil
}

func (s *Service) normalize(f *Filter) error {
	if f.From.IsZero() {
		return apperror.NewValidation("from (or date) is required").WithDetail("field", "from")
	}
	if f.To.IsZero() {
		f.To = f.From
	}
	if err := f.From.Validate(); err != nil {
		return apperror.NewValidation("from must be YYYY-MM-DD").WithDetail("field", "from")
	}
	if err := f.To.Validate(); err != nil {
		return apperror.NewValidation("to must be YYYY-MM-DD").WithDetail("field", "to")
	}
	if f.To.Before(f.From) {
		return apperror.NewValidation("from must not be after to")
	}
	days, err := types.DaysBetween(f.From, f.To)
	if err != nil {
		return apperror.NewValidation(err.Error())
	}
	if days > MaxRangeDays {
		return apperror.NewValidation(fmt.Sprintf("range must not exceed %d days", MaxRangeDays)).
			WithDetail("days", days)
	}
	if f.Stage != "" && !f.Stage.IsValid() {
		return apperror.NewValidation("unknown stage").WithDetail("value", string(f.Stage))
	}
	f.LineCode = entity.NormalizeCode(f.LineCode)
	f.StyleCode = entity.NormalizeCode(f.StyleCode)
	if len(f.GroupBy) == 0 {
		f.GroupBy = AllDimensions
	}
	return nil
}
