// Package payments provides payment records and the capture workflow.
// Capture itself is delegated to an external Processor; this package owns
// the durable record of every attempt.
package payments

import (
	"context"

	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/entity"
	"stockpilot/internal/core/id"
	"stockpilot/internal/core/types"
)

// Status is the payment record state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

// Method names the payment instrument.
type Method string

const (
	MethodCard     Method = "card"
	MethodInvoice  Method = "invoice"
	MethodTransfer Method = "transfer"
)

// Record is one payment attempt against an order.
type Record struct {
	entity.Document

	// OrderID references the paid order
	OrderID id.ID `db:"order_id" json:"orderId"`

	// Amount is the captured amount
	Amount types.Money `db:"amount" json:"amount"`

	Method Method `db:"method" json:"method"`
	Status Status `db:"status" json:"status"`

	// FailureReason explains failed captures
	FailureReason *string `db:"failure_reason" json:"failureReason,omitempty"`

	// ProviderRef is the processor's transaction reference
	ProviderRef *string `db:"provider_ref" json:"providerRef,omitempty"`
}

// NewRecord creates a pending payment record.
func NewRecord(orderID id.ID, amount types.Money, method Method) *Record {
	return &Record{
		Document: entity.NewDocument(),
		OrderID:  orderID,
		Amount:   amount,
		Method:   method,
		Status:   StatusPending,
	}
}

// Validate implements entity.Validatable.
func (r *Record) Validate(ctx context.Context) error {
	if err := r.Document.Validate(ctx); err != nil {
		return err
	}

	if id.IsNil(r.OrderID) {
		return apperror.NewValidation("order is required").
			WithDetail("field", "orderId")
	}
	if r.Amount.IsNegative() {
		return apperror.NewValidation("amount cannot be negative").
			WithDetail("field", "amount")
	}

	return nil
}
