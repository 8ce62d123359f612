package line

import (
	"context"
	"strings"

	"prodledger/internal/core/tx"
	"prodledger/internal/domain"
)

// Service provides business logic for the Line catalog.
type Service struct {
	*domain.CatalogService[*Line]
}

// NewService creates a new Line service.
func NewService(repo Repository, txm tx.Manager) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Line]{
		Repo:       repo,
		TxManager:  txm,
		EntityName: "line",
	})
	base.Hooks().OnBeforeCreate(func(ctx context.Context, l *Line) error {
		l.Floor = strings.TrimSpace(l.Floor)
		return nil
	})
	return &Service{CatalogService: base}
}
