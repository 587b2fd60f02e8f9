// Package carrier provides the Carrier catalog.
// Carriers deliver shipments to customers.
package carrier

import (
	"context"

	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/entity"
)

// Carrier represents a delivery company.
type Carrier struct {
	entity.Catalog

	// ContactPhone is the dispatch phone number
	ContactPhone *string `db:"contact_phone" json:"contactPhone,omitempty"`

	// ContactEmail is the dispatch email
	ContactEmail *string `db:"contact_email" json:"contactEmail,omitempty"`

	// TrackingURLTemplate builds public tracking links,
	// e.g. "https://track.example.com/{number}"
	TrackingURLTemplate *string `db:"tracking_url_template" json:"trackingUrlTemplate,omitempty"`
}

// NewCarrier creates a new Carrier with required fields.
func NewCarrier(code, name string) *Carrier {
	return &Carrier{
		Catalog: entity.NewCatalog(code, name),
	}
}

// Validate implements entity.Validatable interface.
func (c *Carrier) Validate(ctx context.Context) error {
	if err := c.Catalog.Validate(ctx); err != nil {
		return err
	}

	if c.ContactPhone != nil && len(*c.ContactPhone) > 32 {
		return apperror.NewValidation("contact phone too long").
			WithDetail("field", "contactPhone")
	}

	return nil
}
