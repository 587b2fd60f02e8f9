// Package purchasing provides the PurchaseOrder document: inbound supply
// that replenishes the inventory ledger on receipt.
package purchasing

import (
	"context"

	"github.com/shopspring/decimal"

	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/entity"
	"stockpilot/internal/core/id"
	"stockpilot/internal/core/types"
)

// Status is the purchase order lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusOrdered   Status = "ordered"
	StatusReceived  Status = "received"
	StatusClosed    Status = "closed"
	StatusCancelled Status = "cancelled"
)

var legalTransitions = map[Status][]Status{
	StatusDraft:     {StatusOrdered, StatusCancelled},
	StatusOrdered:   {StatusReceived, StatusCancelled},
	StatusReceived:  {StatusClosed},
	StatusClosed:    {},
	StatusCancelled: {},
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

// PurchaseOrder represents an inbound supplier order.
type PurchaseOrder struct {
	entity.Document

	// SupplierID references the supplying counterparty
	SupplierID id.ID `db:"supplier_id" json:"supplierId"`

	// WarehouseID is the receiving warehouse
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`

	Status Status `db:"status" json:"status"`

	// TotalCost is Σ quantity × unit_cost (calculated from lines)
	TotalCost types.Money `db:"total_cost" json:"totalCost"`

	// Table part: ordered items
	Lines []Line `db:"-" json:"lines"`
}

// Line is one purchased item.
type Line struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	ProductID id.ID          `db:"product_id" json:"productId"`
	Quantity  types.Quantity `db:"quantity" json:"quantity"`
	UnitCost  types.Money    `db:"unit_cost" json:"unitCost"`
}

// NewPurchaseOrder creates a draft purchase order.
func NewPurchaseOrder(supplierID, warehouseID id.ID) *PurchaseOrder {
	return &PurchaseOrder{
		Document:    entity.NewDocument(),
		SupplierID:  supplierID,
		WarehouseID: warehouseID,
		Status:      StatusDraft,
		TotalCost:   decimal.Zero,
		Lines:       make([]Line, 0),
	}
}

// AddLine appends a purchased item and recalculates the total.
func (p *PurchaseOrder) AddLine(productID id.ID, quantity types.Quantity, unitCost types.Money) {
	p.Lines = append(p.Lines, Line{
		LineID:    id.New(),
		LineNo:    len(p.Lines) + 1,
		ProductID: productID,
		Quantity:  quantity,
		UnitCost:  unitCost,
	})
	p.recalculateTotal()
}

func (p *PurchaseOrder) recalculateTotal() {
	total := decimal.Zero
	for _, line := range p.Lines {
		qty := decimal.New(line.Quantity.Int64Scaled(), -4)
		total = total.Add(line.UnitCost.Mul(qty))
	}
	p.TotalCost = total
}

// Validate implements entity.Validatable.
func (p *PurchaseOrder) Validate(ctx context.Context) error {
	if err := p.Document.Validate(ctx); err != nil {
		return err
	}

	if id.IsNil(p.SupplierID) {
		return apperror.NewValidation("supplier is required").
			WithDetail("field", "supplierId")
	}
	if id.IsNil(p.WarehouseID) {
		return apperror.NewValidation("warehouse is required").
			WithDetail("field", "warehouseId")
	}
	if len(p.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}

	for i, line := range p.Lines {
		if id.IsNil(line.ProductID) {
			return apperror.NewValidation("product is required").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if !line.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if line.UnitCost.IsNegative() {
			return apperror.NewValidation("unit cost cannot be negative").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
	}

	return nil
}

// TransitionTo mutates the status if the edge is legal.
func (p *PurchaseOrder) TransitionTo(to Status) error {
	if !CanTransition(p.Status, to) {
		return apperror.NewInvalidTransition("purchase_order", string(p.Status), string(to)).
			WithDetail("purchase_order_id", p.ID.String())
	}
	p.Status = to
	p.Touch()
	return nil
}
