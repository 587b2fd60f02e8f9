package warehouse

import (
	"context"
	"fmt"
	"time"

	"stockpilot/internal/core/tx"
	"stockpilot/internal/domain"
	"stockpilot/pkg/numerator"
)

// Service provides business logic for the Warehouse catalog.
type Service struct {
	*domain.CatalogService[*Warehouse]
	repo      Repository
	numerator *numerator.Service
}

// NewService creates a new Warehouse service.
func NewService(repo Repository, txManager tx.Manager, num *numerator.Service) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Warehouse]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: "warehouse",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
		numerator:      num,
	}

	base.Hooks().On(domain.BeforeCreate, svc.prepareForCreate)

	return svc
}

// prepareForCreate generates code if not provided.
func (s *Service) prepareForCreate(ctx context.Context, item *Warehouse) error {
	if item.Code == "" {
		code, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("WH"), nil, time.Now())
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		item.Code = code
	}
	return nil
}

// ListActive retrieves operational warehouses ordered by priority.
func (s *Service) ListActive(ctx context.Context) ([]*Warehouse, error) {
	return s.repo.ListActive(ctx)
}
