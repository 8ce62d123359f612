package dto

import (
	"prodledger/internal/core/apperror"
	"prodledger/internal/core/entity"
	"prodledger/internal/core/types"
	"prodledger/internal/domain/reports"
)

// DailyRollupQuery holds GET /reports/daily-rollup query parameters.
// date is shorthand for from=to=date.
type DailyRollupQuery struct {
	Date      string `form:"date"`
	From      string `form:"from"`
	To        string `form:"to"`
	LineCode  string `form:"lineCode"`
	StyleCode string `form:"styleCode"`
	Stage     string `form:"stage"`
	GroupBy   string `form:"groupBy"`
}

// ToFilter maps the query to a rollup filter.
func (q DailyRollupQuery) ToFilter() (reports.Filter, error) {
	from, to := q.From, q.To
	if q.Date != "" {
		if from != "" || to != "" {
			return reports.Filter{}, apperror.NewValidation("date cannot be combined with from/to")
		}
		from, to = q.Date, q.Date
	}

	groupBy, err := reports.ParseDimensions(q.GroupBy)
	if err != nil {
		return reports.Filter{}, apperror.NewValidation(err.Error()).WithDetail("field", "groupBy")
	}

	return reports.Filter{
		From:      types.Day(from),
		To:        types.Day(to),
		LineCode:  q.LineCode,
		StyleCode: q.StyleCode,
		Stage:     entity.Stage(q.Stage),
		GroupBy:   groupBy,
	}, nil
}
