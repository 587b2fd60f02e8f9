package entity

import (
	"context"

	"stockpilot/internal/core/apperror"
)

// Catalog is the base type for reference data.
// Examples: Products, Warehouses, Carriers.
type Catalog struct {
	BaseCatalog

	// Code is a human-readable identifier (unique within catalog)
	Code string `db:"code" json:"code"`

	// Name is the display name
	Name string `db:"name" json:"name"`

	// IsActive indicates whether the item can be referenced by new documents
	IsActive bool `db:"is_active" json:"isActive"`
}

// NewCatalog creates a new Catalog with generated ID.
func NewCatalog(code, name string) Catalog {
	return Catalog{
		BaseCatalog: NewBaseCatalog(),
		Code:        code,
		Name:        name,
		IsActive:    true,
	}
}

// Validate implements Validatable interface.
func (c *Catalog) Validate(ctx context.Context) error {
	if c.Name == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}

	// Code can be auto-generated, so it's optional at creation
	// but required at save time

	return nil
}

// Deactivate marks the item as inactive without deleting it.
func (c *Catalog) Deactivate() {
	c.IsActive = false
}
