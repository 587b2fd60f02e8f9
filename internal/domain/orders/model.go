// Package orders provides the customer order document and its status machine.
package orders

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/entity"
	"stockpilot/internal/core/id"
	"stockpilot/internal/core/types"
)

// Status is the order lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// legalTransitions is the complete edge table of the status machine.
// Cancellation is only reachable before fulfilment work starts.
var legalTransitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusShipped, StatusCancelled},
	StatusProcessing: {StatusShipped},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {},
	StatusCancelled:  {},
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

// IsTerminal reports whether no further transitions exist.
func IsTerminal(s Status) bool {
	return len(legalTransitions[s]) == 0
}

// IsValidStatus reports whether s is a known status.
func IsValidStatus(s Status) bool {
	_, ok := legalTransitions[s]
	return ok
}

// PaymentState tracks the payment side of an order.
// It is independent of Status: a confirmed order may carry a failed payment.
type PaymentState string

const (
	PaymentNone      PaymentState = "none"
	PaymentPending   PaymentState = "pending"
	PaymentCompleted PaymentState = "completed"
	PaymentFailed    PaymentState = "failed"
	PaymentRefunded  PaymentState = "refunded"
)

// Order is a customer order document.
type Order struct {
	entity.Document

	// CustomerID references the ordering customer
	CustomerID id.ID `db:"customer_id" json:"customerId"`

	// ExpectedDeliveryDate is the promised delivery date (optional)
	ExpectedDeliveryDate *time.Time `db:"expected_delivery_date" json:"expectedDeliveryDate,omitempty"`

	// Status is mutated only through Service.Transition
	Status Status `db:"status" json:"status"`

	// PaymentState mirrors the latest payment record
	PaymentState PaymentState `db:"payment_state" json:"paymentState"`

	// ShippingAddress is the delivery address
	ShippingAddress *string `db:"shipping_address" json:"shippingAddress,omitempty"`

	// TotalAmount is Σ quantity × unit_price_at_order (calculated from lines)
	TotalAmount types.Money `db:"total_amount" json:"totalAmount"`

	// Table part: ordered items
	Lines []Line `db:"-" json:"lines"`
}

// Line is one ordered item.
type Line struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	ProductID id.ID          `db:"product_id" json:"productId"`
	Quantity  types.Quantity `db:"quantity" json:"quantity"`

	// UnitPriceAtOrder is the catalog price snapshotted at placement.
	// Later price changes never alter an existing order.
	UnitPriceAtOrder types.Money `db:"unit_price_at_order" json:"unitPriceAtOrder"`

	// WarehouseID is the allocation source chosen at placement
	WarehouseID *id.ID `db:"warehouse_id" json:"warehouseId,omitempty"`

	// ShipmentID is backfilled when the line is assigned to a shipment
	ShipmentID *id.ID `db:"shipment_id" json:"shipmentId,omitempty"`
}

// Amount returns quantity × snapshotted unit price.
func (l Line) Amount() types.Money {
	qty := decimal.New(l.Quantity.Int64Scaled(), -4)
	return l.UnitPriceAtOrder.Mul(qty)
}

// NewOrder creates a pending order for a customer.
func NewOrder(customerID id.ID) *Order {
	return &Order{
		Document:     entity.NewDocument(),
		CustomerID:   customerID,
		Status:       StatusPending,
		PaymentState: PaymentNone,
		TotalAmount:  decimal.Zero,
		Lines:        make([]Line, 0),
	}
}

// AddLine appends an ordered item and recalculates the total.
func (o *Order) AddLine(productID id.ID, quantity types.Quantity, unitPrice types.Money) {
	o.Lines = append(o.Lines, Line{
		LineID:           id.New(),
		LineNo:           len(o.Lines) + 1,
		ProductID:        productID,
		Quantity:         quantity,
		UnitPriceAtOrder: unitPrice,
	})
	o.recalculateTotal()
}

func (o *Order) recalculateTotal() {
	total := decimal.Zero
	for _, line := range o.Lines {
		total = total.Add(line.Amount())
	}
	o.TotalAmount = total
}

// Validate implements entity.Validatable.
func (o *Order) Validate(ctx context.Context) error {
	if err := o.Document.Validate(ctx); err != nil {
		return err
	}

	if id.IsNil(o.CustomerID) {
		return apperror.NewValidation("customer is required").
			WithDetail("field", "customerId")
	}

	if !IsValidStatus(o.Status) {
		return apperror.NewValidation("invalid order status").
			WithDetail("field", "status").
			WithDetail("value", string(o.Status))
	}

	if len(o.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}

	for i, line := range o.Lines {
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
		if line.UnitPriceAtOrder.IsNegative() {
			return apperror.NewValidation("unit price cannot be negative").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
	}

	return nil
}

// TransitionTo mutates the status if the edge is legal.
func (o *Order) TransitionTo(to Status) error {
	if !CanTransition(o.Status, to) {
		return apperror.NewInvalidTransition("order", string(o.Status), string(to)).
			WithDetail("order_id", o.ID.String())
	}
	o.Status = to
	o.Touch()
	return nil
}

// CanCancel reports whether the order may still be cancelled.
func (o *Order) CanCancel() bool {
	return CanTransition(o.Status, StatusCancelled)
}

// InventoryCommitted reports whether stock was reserved for this order.
// Reservation happens at placement, so any non-cancelled order holds stock
// until it is shipped.
func (o *Order) InventoryCommitted() bool {
	switch o.Status {
	case StatusPending, StatusConfirmed, StatusProcessing:
		return true
	}
	return false
}
