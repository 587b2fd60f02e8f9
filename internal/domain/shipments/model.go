// Package shipments provides the Shipment document.
// A shipment carries the lines of one order leaving one warehouse.
package shipments

import (
	"context"

	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/entity"
	"stockpilot/internal/core/id"
)

// Status is the shipment lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
)

var legalTransitions = map[Status][]Status{
	StatusPending:   {StatusInTransit},
	StatusInTransit: {StatusDelivered},
	StatusDelivered: {},
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

// Shipment represents one delivery from a warehouse to the customer.
type Shipment struct {
	entity.Document

	// OrderID references the fulfilled order
	OrderID id.ID `db:"order_id" json:"orderId"`

	// WarehouseID is the source warehouse
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`

	// CarrierID references the delivering carrier (optional until dispatch)
	CarrierID *id.ID `db:"carrier_id" json:"carrierId,omitempty"`

	// TrackingNumber is generated at creation (SHP-YEAR-XXXXX)
	TrackingNumber string `db:"tracking_number" json:"trackingNumber"`

	Status Status `db:"status" json:"status"`
}

// NewShipment creates a pending shipment for an order/warehouse pair.
func NewShipment(orderID, warehouseID id.ID) *Shipment {
	return &Shipment{
		Document:    entity.NewDocument(),
		OrderID:     orderID,
		WarehouseID: warehouseID,
		Status:      StatusPending,
	}
}

// Validate implements entity.Validatable.
func (s *Shipment) Validate(ctx context.Context) error {
	if err := s.Document.Validate(ctx); err != nil {
		return err
	}

	if id.IsNil(s.OrderID) {
		return apperror.NewValidation("order is required").
			WithDetail("field", "orderId")
	}
	if id.IsNil(s.WarehouseID) {
		return apperror.NewValidation("warehouse is required").
			WithDetail("field", "warehouseId")
	}

	return nil
}

// TransitionTo mutates the status if the edge is legal.
func (s *Shipment) TransitionTo(to Status) error {
	if !CanTransition(s.Status, to) {
		return apperror.NewInvalidTransition("shipment", string(s.Status), string(to)).
			WithDetail("shipment_id", s.ID.String())
	}
	s.Status = to
	s.Touch()
	return nil
}
