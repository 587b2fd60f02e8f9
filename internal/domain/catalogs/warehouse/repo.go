package warehouse

import (
	"context"

	"stockpilot/internal/domain"
)

// Repository defines the interface for Warehouse persistence.
type Repository interface {
	domain.CatalogRepository[*Warehouse]

	// ListActive retrieves operational warehouses ordered by priority.
	ListActive(ctx context.Context) ([]*Warehouse, error)
}
