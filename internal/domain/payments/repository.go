package payments

import (
	"context"

	"stockpilot/internal/core/id"
)

// Repository defines storage operations for payment records.
type Repository interface {
	// Create inserts a new payment record.
	Create(ctx context.Context, record *Record) error

	// GetByID retrieves a payment record.
	GetByID(ctx context.Context, id id.ID) (*Record, error)

	// GetByOrder retrieves all payment records for an order, newest first.
	GetByOrder(ctx context.Context, orderID id.ID) ([]*Record, error)

	// UpdateStatus performs a conditional status update checked by
	// affected-row count.
	UpdateStatus(ctx context.Context, recordID id.ID, from, to Status) error

	// SetOutcome stores the capture outcome (status, provider ref, reason).
	SetOutcome(ctx context.Context, recordID id.ID, status Status, providerRef, failureReason *string) error
}
