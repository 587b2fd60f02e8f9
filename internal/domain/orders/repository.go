package orders

import (
	"context"
	"time"

	"stockpilot/internal/core/id"
	"stockpilot/internal/domain"
)

// Repository defines storage operations for orders.
type Repository interface {
	// Create inserts the order header.
	Create(ctx context.Context, order *Order) error

	// SaveLines inserts the order lines.
	SaveLines(ctx context.Context, orderID id.ID, lines []Line) error

	// GetByID retrieves an order with its lines.
	GetByID(ctx context.Context, id id.ID) (*Order, error)

	// List retrieves orders matching the filter (headers only).
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Order], error)

	// UpdateStatus performs a conditional status update:
	// UPDATE ... SET status = to WHERE id = $1 AND status = from.
	// Zero affected rows means a concurrent transition won the race and
	// the implementation returns CodeConcurrentModification.
	UpdateStatus(ctx context.Context, orderID id.ID, from, to Status) error

	// SetPaymentState updates the payment state mirror.
	SetPaymentState(ctx context.Context, orderID id.ID, state PaymentState) error

	// SetLineShipment backfills the shipment reference on a line.
	SetLineShipment(ctx context.Context, lineID, shipmentID id.ID) error

	// SetLineWarehouse records the allocation source chosen at placement.
	SetLineWarehouse(ctx context.Context, lineID, warehouseID id.ID) error
}

// ListFilter narrows order queries.
type ListFilter struct {
	CustomerID *id.ID
	Status     *Status
	FromDate   *time.Time
	ToDate     *time.Time
	Limit      int
	Offset     int
}
