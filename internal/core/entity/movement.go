// Package entity provides core domain entities.
package entity

import (
	"time"

	"stockpilot/internal/core/id"
	"stockpilot/internal/core/types"
)

// MovementType classifies inventory ledger movements.
type MovementType string

const (
	// MovementTypeIn increases stock (purchase receipt, return restock)
	MovementTypeIn MovementType = "in"
	// MovementTypeOut decreases stock (order reservation, shipment)
	MovementTypeOut MovementType = "out"
	// MovementTypeTransfer moves stock between warehouses
	MovementTypeTransfer MovementType = "transfer"
	// MovementTypeAdjustment is a manual correction to an exact level
	MovementTypeAdjustment MovementType = "adjustment"
)

// StockMovement is one line of the append-only inventory ledger.
// Movements are immutable - they are never updated or deleted.
// The running sum of QuantityDelta per (product, warehouse) must equal
// the cached balance in InventoryRecord.
type StockMovement struct {
	// LineID is unique identifier for this movement line (UUIDv7)
	LineID id.ID `db:"line_id" json:"lineId"`

	// Dimensions
	ProductID   id.ID `db:"product_id" json:"productId"`
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`

	// MovementType: in, out, transfer or adjustment
	MovementType MovementType `db:"movement_type" json:"movementType"`

	// QuantityDelta is the signed change: positive increases stock
	QuantityDelta types.Quantity `db:"quantity_delta" json:"quantityDelta"`

	// ReferenceType is the document type that caused this movement
	// (e.g. "order", "purchase_order", "return", "adjustment")
	ReferenceType string `db:"reference_type" json:"referenceType"`

	// ReferenceID is the causing document ID
	ReferenceID id.ID `db:"reference_id" json:"referenceId"`

	// Actor is the user who triggered the movement
	Actor string `db:"actor" json:"actor,omitempty"`

	// OccurredAt is when the movement was recorded
	OccurredAt time.Time `db:"occurred_at" json:"occurredAt"`
}

// NewStockMovement creates a movement line with generated LineID.
func NewStockMovement(
	productID, warehouseID id.ID,
	movementType MovementType,
	delta types.Quantity,
	referenceType string,
	referenceID id.ID,
	actor string,
) StockMovement {
	return StockMovement{
		LineID:        id.New(),
		ProductID:     productID,
		WarehouseID:   warehouseID,
		MovementType:  movementType,
		QuantityDelta: delta,
		ReferenceType: referenceType,
		ReferenceID:   referenceID,
		Actor:         actor,
		OccurredAt:    time.Now().UTC(),
	}
}

// InventoryRecord is the cached stock balance per (product, warehouse).
// It is derived state: Σ movement deltas must reconcile with Quantity.
type InventoryRecord struct {
	// Dimensions
	ProductID   id.ID `db:"product_id" json:"productId"`
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`

	// Quantity is the current on-hand stock, never negative
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	// Metadata
	LastMovementAt time.Time `db:"last_movement_at" json:"lastMovementAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}
