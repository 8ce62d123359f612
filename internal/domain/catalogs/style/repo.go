package style

import (
	"prodledger/internal/domain"
)

// Repository defines the interface for Style persistence.
type Repository interface {
	domain.CatalogRepository[*Style]
}
