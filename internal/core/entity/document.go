package entity

import (
	"context"
	"time"

	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/id"
)

// Document is the base type for business transactions.
// Examples: Order, Shipment, PurchaseOrder, Return.
type Document struct {
	BaseDocument

	// Number is the document number (auto-generated, unique within type)
	Number string `db:"number" json:"number"`

	// Date is the business date of the document
	Date time.Time `db:"date" json:"date"`

	// Comment is an optional user comment
	Comment string `db:"comment" json:"comment,omitempty"`
}

// NewDocument creates a new Document with generated ID.
func NewDocument() Document {
	return Document{
		BaseDocument: NewBaseDocument(),
		Date:         time.Now().UTC(),
	}
}

// Validate implements Validatable interface.
func (d *Document) Validate(ctx context.Context) error {
	if d.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}

	return nil
}

// GetID returns the document ID.
func (d *Document) GetID() id.ID {
	return d.ID
}

// IsBackdated checks if document date is in the past.
func (d *Document) IsBackdated() bool {
	return d.Date.Before(time.Now().UTC().Truncate(24 * time.Hour))
}
