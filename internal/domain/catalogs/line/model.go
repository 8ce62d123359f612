// Package line provides the production line catalog.
package line

import (
	"context"

	"prodledger/internal/core/apperror"
	"prodledger/internal/core/entity"
)

// Line is a sewing line on the factory floor.
type Line struct {
	entity.Catalog

	// Floor is the building floor or hall the line sits on.
	Floor string `db:"floor" json:"floor,omitempty"`

	// Operators is the planned headcount.
	Operators int `db:"operators" json:"operators"`
}

// NewLine creates an active Line.
func NewLine(code, name string) *Line {
	return &Line{Catalog: entity.NewCatalog(code, name)}
}

// Validate implements entity.Validatable interface.
func (l *Line) Validate(ctx context.Context) error {
	if err := l.Catalog.Validate(ctx); err != nil {
		return err
	}
	if l.Operators < 0 {
		return apperror.NewValidation("operators must not be negative").
			WithDetail("field", "operators")
	}
	return nil
}
