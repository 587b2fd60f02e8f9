package returns

import (
	"context"

	"stockpilot/internal/core/id"
)

// Repository defines storage operations for returns.
type Repository interface {
	// Create inserts the return header.
	Create(ctx context.Context, ret *Return) error

	// SaveLines inserts the return lines.
	SaveLines(ctx context.Context, returnID id.ID, lines []Line) error

	// GetByID retrieves a return with its lines.
	GetByID(ctx context.Context, id id.ID) (*Return, error)

	// ListByOrder retrieves returns for an order.
	ListByOrder(ctx context.Context, orderID id.ID) ([]*Return, error)

	// UpdateStatus performs a conditional status update checked by
	// affected-row count.
	UpdateStatus(ctx context.Context, returnID id.ID, from, to Status) error
}
