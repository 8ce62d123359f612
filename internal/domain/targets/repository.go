// Package targets manages planned-output events and keeps the ledger in step with them.
package targets

import (
	"context"

	"prodledger/internal/core/entity"
	"prodledger/internal/core/id"
	"prodledger/internal/core/types"
	"prodledger/internal/domain"
)

// Repository defines persistence for target events.
type Repository interface {
	// Create inserts a target. A second target for the same
	// (lineCode, styleCode, date) returns a CONFLICT AppError.
	Create(ctx context.Context, t *entity.TargetEvent) error

	// GetByID returns a NOT_FOUND AppError if the target does not exist.
	GetByID(ctx context.Context, id id.ID) (*entity.TargetEvent, error)

	// GetByIDs returns the existing targets among ids; missing ids are skipped.
	GetByIDs(ctx context.Context, ids []id.ID) ([]*entity.TargetEvent, error)

	// FindBySlot returns nil, nil when the slot is free.
	FindBySlot(ctx context.Context, lineCode, styleCode string, date types.Day) (*entity.TargetEvent, error)

	// Delete returns a NOT_FOUND AppError if nothing was deleted.
	Delete(ctx context.Context, id id.ID) error

	// DeleteMany deletes what exists and returns the number of rows removed.
	DeleteMany(ctx context.Context, ids []id.ID) (int64, error)

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*entity.TargetEvent], error)

	// TargetTotals sums lineTarget and hourlyProduction over a style.
	TargetTotals(ctx context.Context, styleCode string) (lineTarget, hourly int64, err error)
}

// ListFilter for target listings. Empty fields do not filter.
type ListFilter struct {
	From      types.Day
	To        types.Day
	LineCode  string
	StyleCode string
	Limit     int
	Offset    int
}
