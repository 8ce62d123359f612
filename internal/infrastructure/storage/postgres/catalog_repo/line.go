package catalog_repo

import (
	"prodledger/internal/domain/catalogs/line"
	"prodledger/internal/infrastructure/storage/postgres"
)

const linesTable = "cat_lines"

// LineRepo implements line.Repository.
type LineRepo struct {
	*BaseCatalogRepo[*line.Line]
}

var _ line.Repository = (*LineRepo)(nil)

// NewLineRepo creates a new line repository.
func NewLineRepo(txm *postgres.TxManager) *LineRepo {
	return &LineRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txm,
			linesTable,
			"line",
			postgres.ExtractDBColumns[line.Line](),
			func() *line.Line { return &line.Line{} },
		),
	}
}
