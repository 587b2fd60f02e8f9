// Package inventory_repo provides the PostgreSQL implementation of the
// inventory ledger: cached balances plus the append-only movement journal.
package inventory_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/entity"
	"stockpilot/internal/core/id"
	"stockpilot/internal/core/types"
	"stockpilot/internal/domain/inventory"
	"stockpilot/internal/infrastructure/storage/postgres"
)

const (
	balancesTable  = "inv_balances"
	movementsTable = "inv_movements"
)

// Compile-time check that LedgerRepo implements inventory.Repository.
var _ inventory.Repository = (*LedgerRepo)(nil)

// LedgerRepo implements inventory.Repository.
//
// Balance mutations are single-statement conditional updates checked by
// affected-row count. The database enforces `quantity >= 0`, so two
// concurrent reservations can never drive a balance negative: one of the
// conditional updates simply matches no row.
type LedgerRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewLedgerRepo creates a new inventory ledger repository.
func NewLedgerRepo(txManager *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// ReserveStock decrements the balance if and only if enough is available.
func (r *LedgerRepo) ReserveStock(ctx context.Context, productID, warehouseID id.ID, qty types.Quantity) error {
	querier := r.txManager.GetQuerier(ctx)

	result, err := querier.Exec(ctx, `
		UPDATE inv_balances
		SET quantity = quantity - $3,
		    last_movement_at = NOW(),
		    updated_at = NOW()
		WHERE product_id = $1
		  AND warehouse_id = $2
		  AND quantity >= $3
	`, productID, warehouseID, qty.Int64Scaled())
	if err != nil {
		return apperror.NewStorageUnavailable(fmt.Errorf("reserve stock: %w", err))
	}

	if result.RowsAffected() == 0 {
		// Re-read outside the failed condition to report what is available.
		available, err := r.currentQuantity(ctx, productID, warehouseID)
		if err != nil {
			return err
		}
		return apperror.NewInsufficientStock(productID.String(), qty.Float64(), available.Float64())
	}

	return nil
}

// ReleaseStock increments the balance, creating the row if absent.
func (r *LedgerRepo) ReleaseStock(ctx context.Context, productID, warehouseID id.ID, qty types.Quantity) error {
	querier := r.txManager.GetQuerier(ctx)

	_, err := querier.Exec(ctx, `
		INSERT INTO inv_balances (product_id, warehouse_id, quantity, last_movement_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (product_id, warehouse_id) DO UPDATE
		SET quantity = inv_balances.quantity + EXCLUDED.quantity,
		    last_movement_at = NOW(),
		    updated_at = NOW()
	`, productID, warehouseID, qty.Int64Scaled())
	if err != nil {
		return apperror.NewStorageUnavailable(fmt.Errorf("release stock: %w", err))
	}

	return nil
}

// SetExactStock overwrites the balance and returns the previous value so
// the caller can journal the signed delta. The read and the write happen
// in one statement, so no concurrent mutation can slip between them.
func (r *LedgerRepo) SetExactStock(ctx context.Context, productID, warehouseID id.ID, qty types.Quantity) (types.Quantity, error) {
	querier := r.txManager.GetQuerier(ctx)

	var previousScaled int64
	err := querier.QueryRow(ctx, `
		WITH old AS (
			SELECT quantity FROM inv_balances
			WHERE product_id = $1 AND warehouse_id = $2
		)
		INSERT INTO inv_balances (product_id, warehouse_id, quantity, last_movement_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (product_id, warehouse_id) DO UPDATE
		SET quantity = EXCLUDED.quantity,
		    last_movement_at = NOW(),
		    updated_at = NOW()
		RETURNING COALESCE((SELECT quantity FROM old), 0)
	`, productID, warehouseID, qty.Int64Scaled()).Scan(&previousScaled)
	if err != nil {
		return 0, apperror.NewStorageUnavailable(fmt.Errorf("set stock: %w", err))
	}

	return types.NewQuantityFromInt64Scaled(previousScaled), nil
}

// GetBalance returns the current balance. Missing rows read as zero stock.
func (r *LedgerRepo) GetBalance(ctx context.Context, productID, warehouseID id.ID) (entity.InventoryRecord, error) {
	var record entity.InventoryRecord

	q := r.builder.Select(
		"product_id", "warehouse_id", "quantity", "last_movement_at", "updated_at",
	).From(balancesTable).
		Where(squirrel.Eq{
			"product_id":   productID,
			"warehouse_id": warehouseID,
		}).Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return record, fmt.Errorf("build query: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &record, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity.InventoryRecord{
				ProductID:   productID,
				WarehouseID: warehouseID,
				Quantity:    0,
			}, nil
		}
		return record, fmt.Errorf("get balance: %w", err)
	}

	return record, nil
}

// GetBalancesByProduct returns non-zero balances across all warehouses.
func (r *LedgerRepo) GetBalancesByProduct(ctx context.Context, productID id.ID) ([]entity.InventoryRecord, error) {
	q := r.builder.Select(
		"product_id", "warehouse_id", "quantity", "last_movement_at", "updated_at",
	).From(balancesTable).
		Where(squirrel.Eq{"product_id": productID}).
		Where(squirrel.NotEq{"quantity": int64(0)}).
		OrderBy("warehouse_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var records []entity.InventoryRecord
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &records, sql, args...); err != nil {
		return nil, fmt.Errorf("select balances: %w", err)
	}

	return records, nil
}

// GetBalancesByWarehouse returns all non-zero balances in a warehouse.
func (r *LedgerRepo) GetBalancesByWarehouse(ctx context.Context, warehouseID id.ID) ([]entity.InventoryRecord, error) {
	q := r.builder.Select(
		"product_id", "warehouse_id", "quantity", "last_movement_at", "updated_at",
	).From(balancesTable).
		Where(squirrel.Eq{"warehouse_id": warehouseID}).
		Where(squirrel.NotEq{"quantity": int64(0)}).
		OrderBy("product_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var records []entity.InventoryRecord
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &records, sql, args...); err != nil {
		return nil, fmt.Errorf("select balances: %w", err)
	}

	return records, nil
}

// CreateMovements batch inserts movement lines. Movements are immutable.
func (r *LedgerRepo) CreateMovements(ctx context.Context, movements []entity.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}

	columns := []string{
		"line_id", "product_id", "warehouse_id", "movement_type",
		"quantity_delta", "reference_type", "reference_id", "actor", "occurred_at",
	}

	// Fast path: COPY when inside a transaction.
	if tx := r.txManager.GetTx(ctx); tx != nil {
		inserter := postgres.NewBatchInserter(r.txManager)
		rows := make([][]any, 0, len(movements))
		for _, m := range movements {
			rows = append(rows, []any{
				m.LineID, m.ProductID, m.WarehouseID, m.MovementType,
				m.QuantityDelta.Int64Scaled(), m.ReferenceType, m.ReferenceID, m.Actor, m.OccurredAt,
			})
		}
		if _, err := inserter.CopyFromSlice(ctx, movementsTable, columns, rows); err != nil {
			return apperror.NewStorageUnavailable(fmt.Errorf("copy movements: %w", err))
		}
		return nil
	}

	// Fallback: non-transactional insert. Prefer calling within tx.
	q := r.builder.Insert(movementsTable).Columns(columns...)
	for _, m := range movements {
		q = q.Values(
			m.LineID, m.ProductID, m.WarehouseID, m.MovementType,
			m.QuantityDelta.Int64Scaled(), m.ReferenceType, m.ReferenceID, m.Actor, m.OccurredAt,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return apperror.NewStorageUnavailable(fmt.Errorf("insert movements: %w", err))
	}

	return nil
}

// GetMovementHistory returns movement lines for a product, newest first.
func (r *LedgerRepo) GetMovementHistory(ctx context.Context, productID id.ID, filter inventory.MovementFilter) ([]entity.StockMovement, error) {
	q := r.builder.Select(
		"line_id", "product_id", "warehouse_id", "movement_type",
		"quantity_delta", "reference_type", "reference_id", "actor", "occurred_at",
	).From(movementsTable).
		Where(squirrel.Eq{"product_id": productID})

	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}

	if filter.MovementType != nil {
		q = q.Where(squirrel.Eq{"movement_type": *filter.MovementType})
	}

	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"occurred_at": *filter.FromDate})
	}

	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"occurred_at": *filter.ToDate})
	}

	q = q.OrderBy("occurred_at DESC", "line_id DESC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []entity.StockMovement
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}

	return movements, nil
}

// SumMovements returns the sum of signed deltas for product+warehouse.
func (r *LedgerRepo) SumMovements(ctx context.Context, productID, warehouseID id.ID) (types.Quantity, error) {
	var sumScaled int64

	querier := r.txManager.GetQuerier(ctx)
	err := querier.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity_delta), 0)
		FROM inv_movements
		WHERE product_id = $1 AND warehouse_id = $2
	`, productID, warehouseID).Scan(&sumScaled)
	if err != nil && err != pgx.ErrNoRows {
		return 0, fmt.Errorf("sum movements: %w", err)
	}

	return types.NewQuantityFromInt64Scaled(sumScaled), nil
}

func (r *LedgerRepo) currentQuantity(ctx context.Context, productID, warehouseID id.ID) (types.Quantity, error) {
	var scaled int64

	querier := r.txManager.GetQuerier(ctx)
	err := querier.QueryRow(ctx, `
		SELECT quantity FROM inv_balances
		WHERE product_id = $1 AND warehouse_id = $2
	`, productID, warehouseID).Scan(&scaled)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, apperror.NewStorageUnavailable(fmt.Errorf("read balance: %w", err))
	}

	return types.NewQuantityFromInt64Scaled(scaled), nil
}
