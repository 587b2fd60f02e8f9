package dto

import (
	"time"

	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/id"
	"stockpilot/internal/core/types"
	"stockpilot/internal/domain/fulfillment"
	"stockpilot/internal/domain/orders"
	"stockpilot/internal/domain/payments"
	"stockpilot/internal/domain/shipments"
)

// --- Request DTOs ---

// PlaceOrderRequest is the request body for placing an order.
type PlaceOrderRequest struct {
	CustomerID           string                  `json:"customerId" binding:"required"`
	Lines                []PlaceOrderLineRequest `json:"lines" binding:"required,min=1,dive"`
	CarrierID            string                  `json:"carrierId"`
	PaymentMethod        string                  `json:"paymentMethod"`
	ShippingAddress      string                  `json:"shippingAddress"`
	ExpectedDeliveryDate *time.Time              `json:"expectedDeliveryDate"`
	Comment              string                  `json:"comment"`
}

// PlaceOrderLineRequest is one requested product/quantity pair.
type PlaceOrderLineRequest struct {
	ProductID string         `json:"productId" binding:"required"`
	Quantity  types.Quantity `json:"quantity" binding:"required"`
}

// ToServiceRequest converts the DTO to the orchestrator input.
func (r *PlaceOrderRequest) ToServiceRequest(actor string) (fulfillment.PlaceOrderRequest, error) {
	customerID, err := id.Parse(r.CustomerID)
	if err != nil {
		return fulfillment.PlaceOrderRequest{}, apperror.NewValidation("invalid customer id").
			WithDetail("field", "customerId")
	}

	req := fulfillment.PlaceOrderRequest{
		CustomerID:           customerID,
		PaymentMethod:        payments.Method(r.PaymentMethod),
		ShippingAddress:      r.ShippingAddress,
		ExpectedDeliveryDate: r.ExpectedDeliveryDate,
		Comment:              r.Comment,
		Actor:                actor,
	}

	if r.CarrierID != "" {
		carrierID, err := id.Parse(r.CarrierID)
		if err != nil {
			return fulfillment.PlaceOrderRequest{}, apperror.NewValidation("invalid carrier id").
				WithDetail("field", "carrierId")
		}
		req.CarrierID = &carrierID
	}

	req.Lines = make([]fulfillment.RequestLine, 0, len(r.Lines))
	for i, line := range r.Lines {
		productID, err := id.Parse(line.ProductID)
		if err != nil {
			return fulfillment.PlaceOrderRequest{}, apperror.NewValidation("invalid product id").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		req.Lines = append(req.Lines, fulfillment.RequestLine{
			ProductID: productID,
			Quantity:  line.Quantity,
		})
	}

	return req, nil
}

// TransitionRequest moves a document to a new status.
type TransitionRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

// CancelRequest carries the optional cancellation note.
type CancelRequest struct {
	Note string `json:"note"`
}

// --- Response DTOs ---

// PlacementResponse reports what order placement achieved.
type PlacementResponse struct {
	Order         *orders.Order         `json:"order"`
	Shipments     []*shipments.Shipment `json:"shipments,omitempty"`
	Payment       *payments.Record      `json:"payment,omitempty"`
	PaymentFailed bool                  `json:"paymentFailed"`
	Warnings      []string              `json:"warnings,omitempty"`
}

// FromPlacementResult creates response DTO from the orchestrator result.
func FromPlacementResult(res *fulfillment.PlacementResult) *PlacementResponse {
	return &PlacementResponse{
		Order:         res.Order,
		Shipments:     res.Shipments,
		Payment:       res.Payment,
		PaymentFailed: res.PaymentFailed,
		Warnings:      res.Warnings,
	}
}

// ShipResponse reports an order dispatch.
type ShipResponse struct {
	Order     *orders.Order         `json:"order"`
	Shipments []*shipments.Shipment `json:"shipments,omitempty"`
	Warnings  []string              `json:"warnings,omitempty"`
}

// FromShipResult creates response DTO from the orchestrator result.
func FromShipResult(res *fulfillment.ShipResult) *ShipResponse {
	return &ShipResponse{
		Order:     res.Order,
		Shipments: res.Shipments,
		Warnings:  res.Warnings,
	}
}
