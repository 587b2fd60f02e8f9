package dto

import (
	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/id"
	"stockpilot/internal/core/types"
	"stockpilot/internal/domain/purchasing"
)

// --- Request DTOs ---

// CreatePurchaseOrderRequest is the request body for creating a purchase order.
type CreatePurchaseOrderRequest struct {
	SupplierID  string                     `json:"supplierId" binding:"required"`
	WarehouseID string                     `json:"warehouseId" binding:"required"`
	Lines       []PurchaseOrderLineRequest `json:"lines" binding:"required,min=1,dive"`
	Comment     string                     `json:"comment"`
}

// PurchaseOrderLineRequest is one purchased item.
type PurchaseOrderLineRequest struct {
	ProductID string         `json:"productId" binding:"required"`
	Quantity  types.Quantity `json:"quantity" binding:"required"`
	UnitCost  types.Money    `json:"unitCost"`
}

// ToEntity converts DTO to domain entity.
func (r *CreatePurchaseOrderRequest) ToEntity() (*purchasing.PurchaseOrder, error) {
	supplierID, err := id.Parse(r.SupplierID)
	if err != nil {
		return nil, apperror.NewValidation("invalid supplier id").
			WithDetail("field", "supplierId")
	}
	warehouseID, err := id.Parse(r.WarehouseID)
	if err != nil {
		return nil, apperror.NewValidation("invalid warehouse id").
			WithDetail("field", "warehouseId")
	}

	po := purchasing.NewPurchaseOrder(supplierID, warehouseID)
	po.Comment = r.Comment

	for i, line := range r.Lines {
		productID, err := id.Parse(line.ProductID)
		if err != nil {
			return nil, apperror.NewValidation("invalid product id").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		po.AddLine(productID, line.Quantity, line.UnitCost)
	}

	return po, nil
}
