package style

import (
	"context"
	"strings"

	"prodledger/internal/core/apperror"
	"prodledger/internal/core/tx"
	"prodledger/internal/domain"
)

// Service provides business logic for the Style catalog.
type Service struct {
	*domain.CatalogService[*Style]
}

// NewService creates a new Style service.
func NewService(repo Repository, txm tx.Manager) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Style]{
		Repo:       repo,
		TxManager:  txm,
		EntityName: "style",
	})
	base.Hooks().OnBeforeCreate(func(ctx context.Context, s *Style) error {
		s.Buyer = strings.TrimSpace(s.Buyer)
		if s.SMV < 0 {
			return apperror.NewValidation("smv must not be negative").WithDetail("field", "smv")
		}
		return nil
	})
	return &Service{CatalogService: base}
}
