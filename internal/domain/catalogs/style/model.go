// Package style provides the garment style catalog.
package style

import (
	"context"

	"prodledger/internal/core/entity"
)

// Style is a garment style. Its code keys the balance ledger.
type Style struct {
	entity.Catalog

	// Buyer is the customer the style is made for.
	Buyer string `db:"buyer" json:"buyer,omitempty"`

	// SMV is the standard minute value per piece, in hundredths of a minute.
	SMV int64 `db:"smv" json:"smv"`
}

// NewStyle creates an active Style.
func NewStyle(code, name string) *Style {
	return &Style{Catalog: entity.NewCatalog(code, name)}
}

// Validate implements entity.Validatable interface.
func (s *Style) Validate(ctx context.Context) error {
	return s.Catalog.Validate(ctx)
}
