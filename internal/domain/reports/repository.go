package reports

import (
	"context"
)

// Repository defines report data access. It returns raw rows; all grouping
// and arithmetic happen in Aggregate.
type Repository interface {
	ProductionRows(ctx context.Context, filter RowFilter) ([]Row, error)
}
