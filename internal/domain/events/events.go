// Package events defines the domain events emitted through the
// transactional outbox and fanned out to subscribers by the relay worker.
package events

import (
	"context"

	"stockpilot/internal/core/id"
	"stockpilot/internal/core/types"
)

// Event type names.
const (
	TypeOrderConfirmed     = "OrderConfirmed"
	TypeOrderStatusChanged = "OrderStatusChanged"
	TypeInventoryChanged   = "InventoryChanged"
	TypePaymentFailed      = "PaymentFailed"
	TypeShipmentCreated    = "ShipmentCreated"
)

// Event is a domain event awaiting publication.
type Event struct {
	// AggregateType names the source document kind, e.g. "order"
	AggregateType string

	// AggregateID is the source document ID
	AggregateID id.ID

	// EventType is one of the Type* constants
	EventType string

	// Payload is JSON-marshalled into the outbox row
	Payload any
}

// Emitter stages events for publication. The outbox implementation writes
// them inside the caller's transaction, so an event exists if and only if
// the business change committed. Delivery to subscribers is best-effort
// and asynchronous; the core never depends on it.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
	EmitBatch(ctx context.Context, events []Event) error
}

// --- Payloads ---

// OrderConfirmedPayload announces a successfully placed order.
type OrderConfirmedPayload struct {
	OrderID    id.ID       `json:"orderId"`
	Number     string      `json:"number"`
	CustomerID id.ID       `json:"customerId"`
	Total      types.Money `json:"total"`
}

// OrderStatusChangedPayload announces any order transition.
type OrderStatusChangedPayload struct {
	OrderID id.ID  `json:"orderId"`
	From    string `json:"from"`
	To      string `json:"to"`
	Actor   string `json:"actor,omitempty"`
}

// InventoryChangedPayload announces a ledger balance change.
type InventoryChangedPayload struct {
	ProductID    id.ID          `json:"productId"`
	WarehouseID  id.ID          `json:"warehouseId"`
	Delta        types.Quantity `json:"delta"`
	MovementType string         `json:"movementType"`
}

// PaymentFailedPayload announces a capture failure needing attention.
type PaymentFailedPayload struct {
	OrderID   id.ID  `json:"orderId"`
	PaymentID id.ID  `json:"paymentId"`
	Reason    string `json:"reason"`
}

// ShipmentCreatedPayload announces a new shipment.
type ShipmentCreatedPayload struct {
	ShipmentID     id.ID  `json:"shipmentId"`
	OrderID        id.ID  `json:"orderId"`
	WarehouseID    id.ID  `json:"warehouseId"`
	TrackingNumber string `json:"trackingNumber"`
}
