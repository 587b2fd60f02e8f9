// Package warehouse provides the Warehouse catalog.
// Warehouses represent physical locations goods ship from.
package warehouse

import (
	"context"

	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/entity"
)

// WarehouseType defines the type of warehouse.
type WarehouseType string

const (
	TypeMain         WarehouseType = "main"
	TypeDistribution WarehouseType = "distribution"
	TypeRetail       WarehouseType = "retail"
	TypeTransit      WarehouseType = "transit"
)

// Warehouse represents a storage location for goods.
type Warehouse struct {
	entity.Catalog

	// Type defines the warehouse category
	Type WarehouseType `db:"type" json:"type"`

	// Location is the physical address or site name
	Location *string `db:"location" json:"location,omitempty"`

	// Priority orders warehouses for allocation (lower wins)
	Priority int `db:"priority" json:"priority"`

	// Description
	Description *string `db:"description" json:"description,omitempty"`
}

// NewWarehouse creates a new Warehouse with required fields.
func NewWarehouse(code, name string, whType WarehouseType) *Warehouse {
	return &Warehouse{
		Catalog: entity.NewCatalog(code, name),
		Type:    whType,
	}
}

// Validate implements entity.Validatable interface.
func (w *Warehouse) Validate(ctx context.Context) error {
	// Base catalog validation
	if err := w.Catalog.Validate(ctx); err != nil {
		return err
	}

	// Type validation
	if !isValidWarehouseType(w.Type) {
		return apperror.NewValidation("invalid warehouse type").
			WithDetail("field", "type").
			WithDetail("value", string(w.Type))
	}

	return nil
}

// CanShipStock returns true if warehouse can be an allocation source.
func (w *Warehouse) CanShipStock() bool {
	return w.IsActive && !w.DeletionMark
}

func isValidWarehouseType(t WarehouseType) bool {
	switch t {
	case TypeMain, TypeDistribution, TypeRetail, TypeTransit:
		return true
	}
	return false
}
