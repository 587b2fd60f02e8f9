package dto

import (
	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/id"
	"stockpilot/internal/core/types"
	"stockpilot/internal/domain/returns"
)

// --- Request DTOs ---

// CreateReturnRequest is the request body for requesting a return.
type CreateReturnRequest struct {
	OrderID string              `json:"orderId" binding:"required"`
	Reason  string              `json:"reason" binding:"required"`
	Lines   []ReturnLineRequest `json:"lines" binding:"required,min=1,dive"`
	Comment string              `json:"comment"`
}

// ReturnLineRequest is one returned item.
type ReturnLineRequest struct {
	ProductID   string         `json:"productId" binding:"required"`
	WarehouseID string         `json:"warehouseId" binding:"required"`
	Quantity    types.Quantity `json:"quantity" binding:"required"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateReturnRequest) ToEntity() (*returns.Return, error) {
	orderID, err := id.Parse(r.OrderID)
	if err != nil {
		return nil, apperror.NewValidation("invalid order id").
			WithDetail("field", "orderId")
	}

	ret := returns.NewReturn(orderID, r.Reason)
	ret.Comment = r.Comment

	for i, line := range r.Lines {
		productID, err := id.Parse(line.ProductID)
		if err != nil {
			return nil, apperror.NewValidation("invalid product id").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		warehouseID, err := id.Parse(line.WarehouseID)
		if err != nil {
			return nil, apperror.NewValidation("invalid warehouse id").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		ret.AddLine(productID, warehouseID, line.Quantity)
	}

	return ret, nil
}

// RejectReturnRequest carries the rejection note.
type RejectReturnRequest struct {
	Note string `json:"note"`
}
