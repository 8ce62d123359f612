// Package production records hourly production entries.
package production

import (
	"context"

	"prodledger/internal/core/entity"
	"prodledger/internal/core/id"
	"prodledger/internal/core/types"
	"prodledger/internal/domain"
)

// Repository defines persistence for production entries.
type Repository interface {
	// Create inserts an entry. A taken (date, hourIndex, lineId, styleId, stage)
	// slot returns a DUPLICATE_ENTRY AppError.
	Create(ctx context.Context, e *entity.ProductionEntry) error

	// GetByID returns a NOT_FOUND AppError if the entry does not exist.
	GetByID(ctx context.Context, id id.ID) (*entity.ProductionEntry, error)

	// GetForUpdate is GetByID with a row lock held until the transaction ends.
	GetForUpdate(ctx context.Context, id id.ID) (*entity.ProductionEntry, error)

	// UpdateQuantities writes quantities, version and updatedAt. It fails
	// with CONFLICT if the stored version is not e.Version-1.
	UpdateQuantities(ctx context.Context, e *entity.ProductionEntry) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*entity.ProductionEntry], error)

	// OutputTotal sums outputQty over a style's entries at one stage.
	OutputTotal(ctx context.Context, styleCode string, stage entity.Stage) (int64, error)
}

// ListFilter for entry listings. Empty fields do not filter.
type ListFilter struct {
	From    types.Day
	To      types.Day
	LineID  *id.ID
	StyleID *id.ID
	Stage   entity.Stage
	Limit   int
	Offset  int
}
