package carrier

import (
	"context"
	"fmt"
	"time"

	"stockpilot/internal/core/tx"
	"stockpilot/internal/domain"
	"stockpilot/pkg/numerator"
)

// Service provides business logic for the Carrier catalog.
type Service struct {
	*domain.CatalogService[*Carrier]
	repo      Repository
	numerator *numerator.Service
}

// NewService creates a new Carrier service.
func NewService(repo Repository, txManager tx.Manager, num *numerator.Service) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Carrier]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: "carrier",
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
func (s *Service) prepareForCreate(ctx context.Context, item *Carrier) error {
	if item.Code == "" {
		code, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("CR"), nil, time.Now())
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		item.Code = code
	}
	return nil
}
