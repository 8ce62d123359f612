package catalog_repo

import (
	"prodledger/internal/domain/catalogs/style"
	"prodledger/internal/infrastructure/storage/postgres"
)

const stylesTable = "cat_styles"

// StyleRepo implements style.Repository.
type StyleRepo struct {
	*BaseCatalogRepo[*style.Style]
}

var _ style.Repository = (*StyleRepo)(nil)

// NewStyleRepo creates a new style repository.
func NewStyleRepo(txm *postgres.TxManager) *StyleRepo {
	return &StyleRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txm,
			stylesTable,
			"style",
			postgres.ExtractDBColumns[style.Style](),
			func() *style.Style { return &style.Style{} },
		),
	}
}
