package dto

import (
	"stockpilot/internal/core/id"
	"stockpilot/internal/core/types"
	"stockpilot/internal/domain/catalogs/product"
)

// --- Request DTOs ---

// CreateProductRequest is the request body for creating a product.
type CreateProductRequest struct {
	Code         string         `json:"code"`
	Name         string         `json:"name" binding:"required"`
	SKU          *string        `json:"sku"`
	UnitPrice    types.Money    `json:"unitPrice"`
	SupplierID   *string        `json:"supplierId"`
	Description  *string        `json:"description"`
	ReorderLevel types.Quantity `json:"reorderLevel"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateProductRequest) ToEntity() *product.Product {
	p := product.NewProduct(r.Code, r.Name, r.UnitPrice)
	p.SKU = r.SKU
	p.Description = r.Description
	p.ReorderLevel = r.ReorderLevel
	if r.SupplierID != nil {
		if supplierID, err := id.Parse(*r.SupplierID); err == nil {
			p.SupplierID = &supplierID
		}
	}
	return p
}

// UpdateProductRequest is the request body for updating a product.
type UpdateProductRequest struct {
	Code         string         `json:"code"`
	Name         string         `json:"name" binding:"required"`
	SKU          *string        `json:"sku,omitempty"`
	UnitPrice    types.Money    `json:"unitPrice"`
	IsActive     bool           `json:"isActive"`
	SupplierID   *string        `json:"supplierId,omitempty"`
	Description  *string        `json:"description,omitempty"`
	ReorderLevel types.Quantity `json:"reorderLevel"`
	Version      int            `json:"version" binding:"required"`
}

// ApplyTo applies update DTO to existing entity.
func (r *UpdateProductRequest) ApplyTo(p *product.Product) {
	p.Code = r.Code
	p.Name = r.Name
	p.SKU = r.SKU
	p.UnitPrice = r.UnitPrice
	p.IsActive = r.IsActive
	p.Description = r.Description
	p.ReorderLevel = r.ReorderLevel
	p.SupplierID = nil
	if r.SupplierID != nil {
		if supplierID, err := id.Parse(*r.SupplierID); err == nil {
			p.SupplierID = &supplierID
		}
	}
	p.Version = r.Version
}

// --- Response DTOs ---

// ProductResponse is the response body for a product.
type ProductResponse struct {
	ID           string         `json:"id"`
	Code         string         `json:"code"`
	Name         string         `json:"name"`
	SKU          *string        `json:"sku,omitempty"`
	UnitPrice    types.Money    `json:"unitPrice"`
	IsActive     bool           `json:"isActive"`
	SupplierID   *string        `json:"supplierId,omitempty"`
	Description  *string        `json:"description,omitempty"`
	ReorderLevel types.Quantity `json:"reorderLevel"`
	DeletionMark bool           `json:"deletionMark"`
	Version      int            `json:"version"`
}

// FromProduct creates response DTO from domain entity.
func FromProduct(p *product.Product) *ProductResponse {
	resp := &ProductResponse{
		ID:           p.ID.String(),
		Code:         p.Code,
		Name:         p.Name,
		SKU:          p.SKU,
		UnitPrice:    p.UnitPrice,
		IsActive:     p.IsActive,
		Description:  p.Description,
		ReorderLevel: p.ReorderLevel,
		DeletionMark: p.DeletionMark,
		Version:      p.Version,
	}
	if p.SupplierID != nil {
		s := p.SupplierID.String()
		resp.SupplierID = &s
	}
	return resp
}
