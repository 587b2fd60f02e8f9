// Package inventory provides the stock ledger: cached balances plus an
// append-only movement journal that must always reconcile.
package inventory

import (
	"context"
	"time"

	"stockpilot/internal/core/entity"
	"stockpilot/internal/core/id"
	"stockpilot/internal/core/types"
)

// Repository defines storage operations for the inventory ledger.
//
// Balance mutations must be atomic single-statement conditional updates
// checked by affected-row count. Implementations never read a balance and
// write it back in separate statements.
type Repository interface {
	// Balance mutations

	// ReserveStock decrements the balance if and only if enough stock is
	// available. Returns apperror.CodeInsufficientStock (with the current
	// available quantity in details) when the conditional update matches
	// no row.
	ReserveStock(ctx context.Context, productID, warehouseID id.ID, qty types.Quantity) error

	// ReleaseStock increments the balance, creating the row if absent.
	ReleaseStock(ctx context.Context, productID, warehouseID id.ID, qty types.Quantity) error

	// SetExactStock overwrites the balance and returns the previous value
	// so the caller can journal the signed delta.
	SetExactStock(ctx context.Context, productID, warehouseID id.ID, qty types.Quantity) (previous types.Quantity, err error)

	// Balance queries

	// GetBalance returns current balance for product+warehouse.
	// Missing rows read as zero stock, not as an error.
	GetBalance(ctx context.Context, productID, warehouseID id.ID) (entity.InventoryRecord, error)

	// GetBalancesByProduct returns balances across all warehouses for a product.
	GetBalancesByProduct(ctx context.Context, productID id.ID) ([]entity.InventoryRecord, error)

	// GetBalancesByWarehouse returns all non-zero balances for a warehouse.
	GetBalancesByWarehouse(ctx context.Context, warehouseID id.ID) ([]entity.InventoryRecord, error)

	// Movement journal

	// CreateMovements batch inserts movement lines. Movements are immutable.
	CreateMovements(ctx context.Context, movements []entity.StockMovement) error

	// GetMovementHistory returns movement lines for a product, newest first.
	GetMovementHistory(ctx context.Context, productID id.ID, filter MovementFilter) ([]entity.StockMovement, error)

	// SumMovements returns Σ quantity_delta for product+warehouse.
	// Used by reconciliation to verify the cached balance.
	SumMovements(ctx context.Context, productID, warehouseID id.ID) (types.Quantity, error)
}

// MovementFilter for filtering movement history.
type MovementFilter struct {
	WarehouseID  *id.ID
	MovementType *entity.MovementType
	FromDate     *time.Time
	ToDate       *time.Time
	Limit        int
	Offset       int
}

// WarehouseStock is one warehouse's share of a product's availability.
type WarehouseStock struct {
	WarehouseID id.ID          `json:"warehouseId"`
	Quantity    types.Quantity `json:"quantity"`
}

// Availability is the aggregate stock picture for a product.
type Availability struct {
	ProductID  id.ID            `json:"productId"`
	Total      types.Quantity   `json:"total"`
	Warehouses []WarehouseStock `json:"warehouses"`
}

// ReconcileReport compares the cached balance with the movement sum.
type ReconcileReport struct {
	ProductID   id.ID          `json:"productId"`
	WarehouseID id.ID          `json:"warehouseId"`
	Balance     types.Quantity `json:"balance"`
	MovementSum types.Quantity `json:"movementSum"`
	Drift       types.Quantity `json:"drift"`
}

// InBalance returns true when the journal and the cached balance agree.
func (r ReconcileReport) InBalance() bool {
	return r.Drift.IsZero()
}
