package product

import (
	"context"
	"fmt"
	"time"

	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/id"
	"stockpilot/internal/core/tx"
	"stockpilot/internal/domain"
	"stockpilot/pkg/numerator"
)

// Service provides business logic for the Product catalog.
// Uses composition with domain.CatalogService for common CRUD operations.
type Service struct {
	*domain.CatalogService[*Product]
	repo      Repository
	numerator *numerator.Service
}

// NewService creates a new Product service.
func NewService(repo Repository, txManager tx.Manager, num *numerator.Service) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Product]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: "product",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
		numerator:      num,
	}

	base.Hooks().On(domain.BeforeCreate, svc.prepareForCreate)
	base.Hooks().On(domain.BeforeUpdate, svc.prepareForUpdate)

	return svc
}

// prepareForCreate handles code generation and uniqueness checks.
func (s *Service) prepareForCreate(ctx context.Context, item *Product) error {
	// Generate code if not provided
	if item.Code == "" {
		code, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("PRD"), nil, time.Now())
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		item.Code = code
	}

	// Check SKU uniqueness
	if item.SKU != nil && *item.SKU != "" {
		if exists, _ := s.checkSKUExists(ctx, *item.SKU, item.ID); exists {
			return apperror.NewConflict("product with this SKU already exists").
				WithDetail("sku", item.SKU)
		}
	}

	return nil
}

// prepareForUpdate handles uniqueness checks.
func (s *Service) prepareForUpdate(ctx context.Context, item *Product) error {
	if item.SKU != nil && *item.SKU != "" {
		if exists, _ := s.checkSKUExists(ctx, *item.SKU, item.ID); exists {
			return apperror.NewConflict("product with this SKU already exists").
				WithDetail("sku", item.SKU)
		}
	}

	return nil
}

// --- Entity-specific methods ---

// FindBySKU retrieves product by SKU.
func (s *Service) FindBySKU(ctx context.Context, sku string) (*Product, error) {
	return s.repo.FindBySKU(ctx, sku)
}

// checkSKUExists checks if SKU is already used.
func (s *Service) checkSKUExists(ctx context.Context, sku string, excludeID id.ID) (bool, error) {
	existing, err := s.repo.FindBySKU(ctx, sku)
	if err != nil {
		return false, nil
	}
	return existing.ID != excludeID, nil
}
