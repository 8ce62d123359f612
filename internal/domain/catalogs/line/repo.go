package line

import (
	"prodledger/internal/domain"
)

// Repository defines the interface for Line persistence.
type Repository interface {
	domain.CatalogRepository[*Line]
}
