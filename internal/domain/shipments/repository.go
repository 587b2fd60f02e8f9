package shipments

import (
	"context"

	"stockpilot/internal/core/id"
)

// Repository defines storage operations for shipments.
type Repository interface {
	// Create inserts a new shipment.
	Create(ctx context.Context, shipment *Shipment) error

	// GetByID retrieves a shipment.
	GetByID(ctx context.Context, id id.ID) (*Shipment, error)

	// GetByOrder retrieves all shipments for an order.
	GetByOrder(ctx context.Context, orderID id.ID) ([]*Shipment, error)

	// UpdateStatus performs a conditional status update checked by
	// affected-row count.
	UpdateStatus(ctx context.Context, shipmentID id.ID, from, to Status) error

	// SetCarrier assigns a carrier before dispatch.
	SetCarrier(ctx context.Context, shipmentID, carrierID id.ID) error
}
