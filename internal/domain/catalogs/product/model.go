// Package product provides the Product catalog.
// Products are the sellable items tracked by the inventory ledger.
package product

import (
	"context"

	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/entity"
	"stockpilot/internal/core/id"
	"stockpilot/internal/core/types"
)

// Product represents a sellable item.
type Product struct {
	entity.Catalog

	// SKU is the stock keeping unit (unique, optional at creation)
	SKU *string `db:"sku" json:"sku,omitempty"`

	// UnitPrice is the current list price.
	// Order lines snapshot this value at placement time.
	UnitPrice types.Money `db:"unit_price" json:"unitPrice"`

	// SupplierID is the reference to the supplying counterparty
	SupplierID *id.ID `db:"supplier_id" json:"supplierId,omitempty"`

	// Description is a detailed description
	Description *string `db:"description" json:"description,omitempty"`

	// ReorderLevel triggers low-stock warnings when availability drops below it
	ReorderLevel types.Quantity `db:"reorder_level" json:"reorderLevel"`
}

// NewProduct creates a new Product with required fields.
func NewProduct(code, name string, unitPrice types.Money) *Product {
	return &Product{
		Catalog:   entity.NewCatalog(code, name),
		UnitPrice: unitPrice,
	}
}

// Validate implements entity.Validatable interface.
func (p *Product) Validate(ctx context.Context) error {
	// Base catalog validation
	if err := p.Catalog.Validate(ctx); err != nil {
		return err
	}

	if p.UnitPrice.IsNegative() {
		return apperror.NewValidation("unit price cannot be negative").
			WithDetail("field", "unitPrice")
	}

	if p.ReorderLevel.IsNegative() {
		return apperror.NewValidation("reorder level cannot be negative").
			WithDetail("field", "reorderLevel")
	}

	return nil
}

// IsSellable returns true if the product can appear on new orders.
func (p *Product) IsSellable() bool {
	return p.IsActive && !p.DeletionMark
}
