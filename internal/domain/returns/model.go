// Package returns provides the customer Return document: restocking
// received goods and refunding the original payment.
package returns

import (
	"context"

	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/entity"
	"stockpilot/internal/core/id"
	"stockpilot/internal/core/types"
)

// Status is the return lifecycle state.
type Status string

const (
	StatusRequested Status = "requested"
	StatusApproved  Status = "approved"
	StatusReceived  Status = "received"
	StatusRefunded  Status = "refunded"
	StatusRejected  Status = "rejected"
)

var legalTransitions = map[Status][]Status{
	StatusRequested: {StatusApproved, StatusRejected},
	StatusApproved:  {StatusReceived, StatusRejected},
	StatusReceived:  {StatusRefunded},
	StatusRefunded:  {},
	StatusRejected:  {},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to Status) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Return represents a customer return request.
type Return struct {
	entity.Document

	// OrderID references the original order
	OrderID id.ID `db:"order_id" json:"orderId"`

	// Reason is the customer's stated reason
	Reason string `db:"reason" json:"reason"`

	Status Status `db:"status" json:"status"`

	// Table part: returned items
	Lines []Line `db:"-" json:"lines"`
}

// Line is one returned item.
type Line struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	ProductID id.ID          `db:"product_id" json:"productId"`
	Quantity  types.Quantity `db:"quantity" json:"quantity"`

	// WarehouseID is the restocking destination
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`
}

// NewReturn creates a requested return for an order.
func NewReturn(orderID id.ID, reason string) *Return {
	return &Return{
		Document: entity.NewDocument(),
		OrderID:  orderID,
		Reason:   reason,
		Status:   StatusRequested,
		Lines:    make([]Line, 0),
	}
}

// AddLine appends a returned item.
func (r *Return) AddLine(productID, warehouseID id.ID, quantity types.Quantity) {
	r.Lines = append(r.Lines, Line{
		LineID:      id.New(),
		LineNo:      len(r.Lines) + 1,
		ProductID:   productID,
		Quantity:    quantity,
		WarehouseID: warehouseID,
	})
}

// Validate implements entity.Validatable.
func (r *Return) Validate(ctx context.Context) error {
	if err := r.Document.Validate(ctx); err != nil {
		return err
	}

	if id.IsNil(r.OrderID) {
		return apperror.NewValidation("order is required").
			WithDetail("field", "orderId")
	}
	if r.Reason == "" {
		return apperror.NewValidation("reason is required").
			WithDetail("field", "reason")
	}
	if len(r.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}

	for i, line := range r.Lines {
		if id.IsNil(line.ProductID) {
			return apperror.NewValidation("product is required").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if id.IsNil(line.WarehouseID) {
			return apperror.NewValidation("warehouse is required").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if !line.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
	}

	return nil
}

// TransitionTo mutates the status if the edge is legal.
func (r *Return) TransitionTo(to Status) error {
	if !CanTransition(r.Status, to) {
		return apperror.NewInvalidTransition("return", string(r.Status), string(to)).
			WithDetail("return_id", r.ID.String())
	}
	r.Status = to
	r.Touch()
	return nil
}
