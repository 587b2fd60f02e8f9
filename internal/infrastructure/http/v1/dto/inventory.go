package dto

import (
	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/id"
	"stockpilot/internal/core/types"
)

// --- Request DTOs ---

// AdjustStockRequest overwrites a balance to an exact level.
type AdjustStockRequest struct {
	ProductID   string         `json:"productId" binding:"required"`
	WarehouseID string         `json:"warehouseId" binding:"required"`
	Quantity    types.Quantity `json:"quantity"`
}

// Parse validates and converts the identifiers.
func (r *AdjustStockRequest) Parse() (productID, warehouseID id.ID, err error) {
	productID, err = id.Parse(r.ProductID)
	if err != nil {
		return id.Nil(), id.Nil(), apperror.NewValidation("invalid product id").
			WithDetail("field", "productId")
	}
	warehouseID, err = id.Parse(r.WarehouseID)
	if err != nil {
		return id.Nil(), id.Nil(), apperror.NewValidation("invalid warehouse id").
			WithDetail("field", "warehouseId")
	}
	return productID, warehouseID, nil
}

// TransferStockRequest moves stock between warehouses.
type TransferStockRequest struct {
	ProductID       string         `json:"productId" binding:"required"`
	FromWarehouseID string         `json:"fromWarehouseId" binding:"required"`
	ToWarehouseID   string         `json:"toWarehouseId" binding:"required"`
	Quantity        types.Quantity `json:"quantity" binding:"required"`
}

// Parse validates and converts the identifiers.
func (r *TransferStockRequest) Parse() (productID, from, to id.ID, err error) {
	productID, err = id.Parse(r.ProductID)
	if err != nil {
		return id.Nil(), id.Nil(), id.Nil(), apperror.NewValidation("invalid product id").
			WithDetail("field", "productId")
	}
	from, err = id.Parse(r.FromWarehouseID)
	if err != nil {
		return id.Nil(), id.Nil(), id.Nil(), apperror.NewValidation("invalid warehouse id").
			WithDetail("field", "fromWarehouseId")
	}
	to, err = id.Parse(r.ToWarehouseID)
	if err != nil {
		return id.Nil(), id.Nil(), id.Nil(), apperror.NewValidation("invalid warehouse id").
			WithDetail("field", "toWarehouseId")
	}
	return productID, from, to, nil
}
