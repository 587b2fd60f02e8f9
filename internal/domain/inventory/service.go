package inventory

import (
	"context"
	"fmt"
	"sort"

	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/entity"
	"stockpilot/internal/core/id"
	"stockpilot/internal/core/tx"
	"stockpilot/internal/core/types"
	"stockpilot/pkg/logger"
)

// ReservationLine is one product/quantity pair to reserve or release.
type ReservationLine struct {
	ProductID   id.ID
	WarehouseID id.ID
	Quantity    types.Quantity
}

// Reference identifies the document that caused a ledger change.
type Reference struct {
	Type  string
	ID    id.ID
	Actor string
}

// Ledger provides the inventory operations: reserve, release, adjust and
// query. Every balance change writes a movement line in the same transaction,
// so the journal always explains the cached balances.
type Ledger struct {
	repo      Repository
	txManager tx.Manager
}

// NewLedger creates a new inventory ledger service.
func NewLedger(repo Repository, txManager tx.Manager) *Ledger {
	return &Ledger{
		repo:      repo,
		txManager: txManager,
	}
}

// Reserve atomically decrements stock for one line and journals an `out`
// movement. Fails with InsufficientStock when not enough is available,
// leaving the balance untouched.
func (l *Ledger) Reserve(ctx context.Context, line ReservationLine, ref Reference) error {
	if !line.Quantity.IsPositive() {
		return apperror.NewValidation("reserve quantity must be positive").
			WithDetail("product_id", line.ProductID.String())
	}

	return l.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := l.repo.ReserveStock(ctx, line.ProductID, line.WarehouseID, line.Quantity); err != nil {
			return err
		}

		movement := entity.NewStockMovement(
			line.ProductID, line.WarehouseID,
			entity.MovementTypeOut, line.Quantity.Neg(),
			ref.Type, ref.ID, ref.Actor,
		)
		if err := l.repo.CreateMovements(ctx, []entity.StockMovement{movement}); err != nil {
			return fmt.Errorf("journal reserve movement: %w", err)
		}
		return nil
	})
}

// Release returns stock to the ledger and journals an `in` movement.
// Used for cancellations, compensation and return restocking.
func (l *Ledger) Release(ctx context.Context, line ReservationLine, ref Reference) error {
	if !line.Quantity.IsPositive() {
		return apperror.NewValidation("release quantity must be positive").
			WithDetail("product_id", line.ProductID.String())
	}

	return l.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := l.repo.ReleaseStock(ctx, line.ProductID, line.WarehouseID, line.Quantity); err != nil {
			return fmt.Errorf("release stock: %w", err)
		}

		movement := entity.NewStockMovement(
			line.ProductID, line.WarehouseID,
			entity.MovementTypeIn, line.Quantity,
			ref.Type, ref.ID, ref.Actor,
		)
		if err := l.repo.CreateMovements(ctx, []entity.StockMovement{movement}); err != nil {
			return fmt.Errorf("journal release movement: %w", err)
		}
		return nil
	})
}

// ReserveAll reserves every line or none. Lines are processed in ProductID
// order so concurrent multi-line reservations cannot deadlock each other.
// On the first failure all previously acquired lines are released in
// reverse order and the original error is returned.
func (l *Ledger) ReserveAll(ctx context.Context, lines []ReservationLine, ref Reference) error {
	if len(lines) == 0 {
		return apperror.NewValidation("no reservation lines")
	}

	sorted := make([]ReservationLine, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.ProductID != b.ProductID {
			return a.ProductID.String() < b.ProductID.String()
		}
		return a.WarehouseID.String() < b.WarehouseID.String()
	})

	acquired := make([]ReservationLine, 0, len(sorted))
	for _, line := range sorted {
		if err := l.Reserve(ctx, line, ref); err != nil {
			l.compensate(ctx, acquired, ref)
			return err
		}
		acquired = append(acquired, line)
	}

	return nil
}

// compensate releases acquired reservations in reverse order.
// Release failures are logged and skipped: the remaining lines must
// still be returned to stock.
func (l *Ledger) compensate(ctx context.Context, acquired []ReservationLine, ref Reference) {
	for i := len(acquired) - 1; i >= 0; i-- {
		line := acquired[i]
		if err := l.Release(ctx, line, ref); err != nil {
			logger.Error(ctx, "compensating release failed",
				"product_id", line.ProductID,
				"warehouse_id", line.WarehouseID,
				"quantity", line.Quantity,
				"error", err,
			)
		}
	}
}

// SetExact overwrites a balance to an exact level (manual adjustment) and
// journals the signed difference as an `adjustment` movement.
func (l *Ledger) SetExact(ctx context.Context, productID, warehouseID id.ID, qty types.Quantity, ref Reference) error {
	if qty.IsNegative() {
		return apperror.NewValidation("stock level cannot be negative").
			WithDetail("product_id", productID.String())
	}

	return l.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		previous, err := l.repo.SetExactStock(ctx, productID, warehouseID, qty)
		if err != nil {
			return fmt.Errorf("set stock: %w", err)
		}

		delta := qty - previous
		if delta.IsZero() {
			return nil
		}

		movement := entity.NewStockMovement(
			productID, warehouseID,
			entity.MovementTypeAdjustment, delta,
			ref.Type, ref.ID, ref.Actor,
		)
		if err := l.repo.CreateMovements(ctx, []entity.StockMovement{movement}); err != nil {
			return fmt.Errorf("journal adjustment movement: %w", err)
		}

		logger.Info(ctx, "stock adjusted",
			"product_id", productID,
			"warehouse_id", warehouseID,
			"previous", previous,
			"new", qty,
			"actor", ref.Actor,
		)
		return nil
	})
}

// Transfer moves stock between warehouses: conditional decrement at the
// source, increment at the destination, two `transfer` movement lines.
func (l *Ledger) Transfer(ctx context.Context, productID, fromWarehouse, toWarehouse id.ID, qty types.Quantity, ref Reference) error {
	if !qty.IsPositive() {
		return apperror.NewValidation("transfer quantity must be positive")
	}
	if fromWarehouse == toWarehouse {
		return apperror.NewValidation("source and destination warehouses must differ")
	}

	return l.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := l.repo.ReserveStock(ctx, productID, fromWarehouse, qty); err != nil {
			return err
		}
		if err := l.repo.ReleaseStock(ctx, productID, toWarehouse, qty); err != nil {
			return fmt.Errorf("transfer in: %w", err)
		}

		movements := []entity.StockMovement{
			entity.NewStockMovement(productID, fromWarehouse, entity.MovementTypeTransfer, qty.Neg(), ref.Type, ref.ID, ref.Actor),
			entity.NewStockMovement(productID, toWarehouse, entity.MovementTypeTransfer, qty, ref.Type, ref.ID, ref.Actor),
		}
		if err := l.repo.CreateMovements(ctx, movements); err != nil {
			return fmt.Errorf("journal transfer movements: %w", err)
		}
		return nil
	})
}

// Availability returns the total and per-warehouse stock for a product.
func (l *Ledger) Availability(ctx context.Context, productID id.ID) (Availability, error) {
	balances, err := l.repo.GetBalancesByProduct(ctx, productID)
	if err != nil {
		return Availability{}, fmt.Errorf("get balances: %w", err)
	}

	result := Availability{ProductID: productID}
	for _, b := range balances {
		result.Total += b.Quantity
		result.Warehouses = append(result.Warehouses, WarehouseStock{
			WarehouseID: b.WarehouseID,
			Quantity:    b.Quantity,
		})
	}

	return result, nil
}

// StockByWarehouse returns all non-zero balances in a warehouse.
func (l *Ledger) StockByWarehouse(ctx context.Context, warehouseID id.ID) ([]entity.InventoryRecord, error) {
	return l.repo.GetBalancesByWarehouse(ctx, warehouseID)
}

// Movements returns the movement history for a product.
func (l *Ledger) Movements(ctx context.Context, productID id.ID, filter MovementFilter) ([]entity.StockMovement, error) {
	return l.repo.GetMovementHistory(ctx, productID, filter)
}

// Reconcile verifies that the movement journal explains the cached balance
// for product+warehouse. A non-zero drift means the ledger was corrupted
// by an out-of-band write.
func (l *Ledger) Reconcile(ctx context.Context, productID, warehouseID id.ID) (ReconcileReport, error) {
	balance, err := l.repo.GetBalance(ctx, productID, warehouseID)
	if err != nil {
		return ReconcileReport{}, fmt.Errorf("get balance: %w", err)
	}

	sum, err := l.repo.SumMovements(ctx, productID, warehouseID)
	if err != nil {
		return ReconcileReport{}, fmt.Errorf("sum movements: %w", err)
	}

	report := ReconcileReport{
		ProductID:   productID,
		WarehouseID: warehouseID,
		Balance:     balance.Quantity,
		MovementSum: sum,
		Drift:       balance.Quantity - sum,
	}

	if !report.InBalance() {
		logger.Warn(ctx, "inventory drift detected",
			"product_id", productID,
			"warehouse_id", warehouseID,
			"balance", report.Balance,
			"movement_sum", report.MovementSum,
		)
	}

	return report, nil
}
