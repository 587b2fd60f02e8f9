package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockpilot/internal/core/id"
	"stockpilot/internal/domain/purchasing"
	"stockpilot/internal/infrastructure/storage/postgres"
)

const (
	purchaseOrderTable     = "doc_purchase_orders"
	purchaseOrderLineTable = "doc_purchase_order_lines"
)

var purchaseOrderLineCols = []string{
	"line_id", "line_no", "product_id", "quantity", "unit_cost",
}

// Compile-time check that PurchaseOrderRepo implements purchasing.Repository.
var _ purchasing.Repository = (*PurchaseOrderRepo)(nil)

// PurchaseOrderRepo implements purchasing.Repository.
type PurchaseOrderRepo struct {
	*BaseDocumentRepo[*purchasing.PurchaseOrder]
	txManager *postgres.TxManager
}

// NewPurchaseOrderRepo creates a new purchase order repository.
func NewPurchaseOrderRepo(txManager *postgres.TxManager) *PurchaseOrderRepo {
	return &PurchaseOrderRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			purchaseOrderTable,
			postgres.ExtractDBColumns[purchasing.PurchaseOrder](),
			func() *purchasing.PurchaseOrder { return &purchasing.PurchaseOrder{} },
		),
		txManager: txManager,
	}
}

// SaveLines replaces the table part of a purchase order.
func (r *PurchaseOrderRepo) SaveLines(ctx context.Context, poID id.ID, lines []purchasing.Line) error {
	querier := r.txManager.GetQuerier(ctx)

	delSQL, delArgs, err := r.Builder().
		Delete(purchaseOrderLineTable).
		Where(squirrel.Eq{"purchase_order_id": poID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete lines: %w", err)
	}
	if _, err := querier.Exec(ctx, delSQL, delArgs...); err != nil {
		return fmt.Errorf("delete purchase order lines: %w", err)
	}

	if len(lines) == 0 {
		return nil
	}

	q := r.Builder().
		Insert(purchaseOrderLineTable).
		Columns("line_id", "purchase_order_id", "line_no", "product_id", "quantity", "unit_cost")

	for _, line := range lines {
		q = q.Values(
			line.LineID,
			poID,
			line.LineNo,
			line.ProductID,
			line.Quantity.Int64Scaled(),
			line.UnitCost,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert lines: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert purchase order lines: %w", err)
	}

	return nil
}

// GetByID retrieves a purchase order with its lines.
func (r *PurchaseOrderRepo) GetByID(ctx context.Context, poID id.ID) (*purchasing.PurchaseOrder, error) {
	po, err := r.getHeader(ctx, "purchase_order", poID)
	if err != nil {
		return nil, err
	}

	q := r.Builder().
		Select(purchaseOrderLineCols...).
		From(purchaseOrderLineTable).
		Where(squirrel.Eq{"purchase_order_id": poID}).
		OrderBy("line_no ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}

	lines := make([]purchasing.Line, 0)
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get purchase order lines: %w", err)
	}
	po.Lines = lines

	return po, nil
}

// ListBySupplier retrieves purchase order headers for a supplier, newest first.
func (r *PurchaseOrderRepo) ListBySupplier(ctx context.Context, supplierID id.ID, limit, offset int) ([]*purchasing.PurchaseOrder, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"supplier_id": supplierID}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("date DESC", "number DESC")

	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	items := make([]*purchasing.PurchaseOrder, 0)
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list purchase orders by supplier: %w", err)
	}

	return items, nil
}

// UpdateStatus performs the conditional transition checked by affected-row count.
func (r *PurchaseOrderRepo) UpdateStatus(ctx context.Context, poID id.ID, from, to purchasing.Status) error {
	return r.updateStatus(ctx, "purchase_order", poID, string(from), string(to))
}
