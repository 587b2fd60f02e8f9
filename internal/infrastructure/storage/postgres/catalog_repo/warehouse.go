package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockpilot/internal/domain/catalogs/warehouse"
	"stockpilot/internal/infrastructure/storage/postgres"
)

const warehouseTable = "cat_warehouses"

// Compile-time check that WarehouseRepo implements warehouse.Repository.
var _ warehouse.Repository = (*WarehouseRepo)(nil)

// WarehouseRepo implements warehouse.Repository.
type WarehouseRepo struct {
	*BaseCatalogRepo[*warehouse.Warehouse]
	txManager *postgres.TxManager
}

// NewWarehouseRepo creates a new warehouse repository.
func NewWarehouseRepo(txManager *postgres.TxManager) *WarehouseRepo {
	return &WarehouseRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txManager,
			warehouseTable,
			postgres.ExtractDBColumns[warehouse.Warehouse](),
			func() *warehouse.Warehouse { return &warehouse.Warehouse{} },
		),
		txManager: txManager,
	}
}

// ListActive retrieves operational warehouses ordered by allocation
// priority (lower wins), then name for stable ties.
func (r *WarehouseRepo) ListActive(ctx context.Context) ([]*warehouse.Warehouse, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"is_active": true}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("priority ASC", "name ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []*warehouse.Warehouse
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list active warehouses: %w", err)
	}

	return items, nil
}
