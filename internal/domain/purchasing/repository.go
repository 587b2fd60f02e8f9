package purchasing

import (
	"context"

	"stockpilot/internal/core/id"
)

// Repository defines storage operations for purchase orders.
type Repository interface {
	// Create inserts the purchase order header.
	Create(ctx context.Context, po *PurchaseOrder) error

	// SaveLines inserts the purchase order lines.
	SaveLines(ctx context.Context, poID id.ID, lines []Line) error

	// GetByID retrieves a purchase order with its lines.
	GetByID(ctx context.Context, id id.ID) (*PurchaseOrder, error)

	// ListBySupplier retrieves purchase orders for a supplier.
	ListBySupplier(ctx context.Context, supplierID id.ID, limit, offset int) ([]*PurchaseOrder, error)

	// UpdateStatus performs a conditional status update checked by
	// affected-row count.
	UpdateStatus(ctx context.Context, poID id.ID, from, to Status) error
}
