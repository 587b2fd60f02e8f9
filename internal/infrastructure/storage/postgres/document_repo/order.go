package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/id"
	"stockpilot/internal/domain"
	"stockpilot/internal/domain/orders"
	"stockpilot/internal/infrastructure/storage/postgres"
)

const (
	orderTable     = "doc_orders"
	orderLineTable = "doc_order_lines"
)

var orderLineCols = []string{
	"line_id", "line_no", "product_id", "quantity",
	"unit_price_at_order", "warehouse_id", "shipment_id",
}

// Compile-time check that OrderRepo implements orders.Repository.
var _ orders.Repository = (*OrderRepo)(nil)

// OrderRepo implements orders.Repository.
type OrderRepo struct {
	*BaseDocumentRepo[*orders.Order]
	txManager *postgres.TxManager
}

// NewOrderRepo creates a new order repository.
func NewOrderRepo(txManager *postgres.TxManager) *OrderRepo {
	return &OrderRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			orderTable,
			postgres.ExtractDBColumns[orders.Order](),
			func() *orders.Order { return &orders.Order{} },
		),
		txManager: txManager,
	}
}

// SaveLines replaces the table part of an order.
// Delete-then-insert keeps re-saving a draft idempotent.
func (r *OrderRepo) SaveLines(ctx context.Context, orderID id.ID, lines []orders.Line) error {
	querier := r.txManager.GetQuerier(ctx)

	delSQL, delArgs, err := r.Builder().
		Delete(orderLineTable).
		Where(squirrel.Eq{"order_id": orderID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete lines: %w", err)
	}
	if _, err := querier.Exec(ctx, delSQL, delArgs...); err != nil {
		return fmt.Errorf("delete order lines: %w", err)
	}

	if len(lines) == 0 {
		return nil
	}

	q := r.Builder().
		Insert(orderLineTable).
		Columns("line_id", "order_id", "line_no", "product_id",
			"quantity", "unit_price_at_order", "warehouse_id", "shipment_id")

	for _, line := range lines {
		q = q.Values(
			line.LineID,
			orderID,
			line.LineNo,
			line.ProductID,
			line.Quantity.Int64Scaled(),
			line.UnitPriceAtOrder,
			line.WarehouseID,
			line.ShipmentID,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert lines: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert order lines: %w", err)
	}

	return nil
}

// GetByID retrieves an order with its lines.
func (r *OrderRepo) GetByID(ctx context.Context, orderID id.ID) (*orders.Order, error) {
	order, err := r.getHeader(ctx, "order", orderID)
	if err != nil {
		return nil, err
	}

	lines, err := r.getLines(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.Lines = lines

	return order, nil
}

func (r *OrderRepo) getLines(ctx context.Context, orderID id.ID) ([]orders.Line, error) {
	q := r.Builder().
		Select(orderLineCols...).
		From(orderLineTable).
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("line_no ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}

	lines := make([]orders.Line, 0)
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get order lines: %w", err)
	}

	return lines, nil
}

// List retrieves order headers matching the filter, newest first.
func (r *OrderRepo) List(ctx context.Context, filter orders.ListFilter) (domain.ListResult[*orders.Order], error) {
	result := domain.ListResult[*orders.Order]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect().
		Where(squirrel.Eq{"deletion_mark": false})

	if filter.CustomerID != nil {
		q = q.Where(squirrel.Eq{"customer_id": *filter.CustomerID})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": string(*filter.Status)})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"date": *filter.ToDate})
	}

	// Count total (before pagination)
	countQ := r.Builder().
		Select("COUNT(*)").
		FromSelect(q, "sub")

	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count orders: %w", err)
	}

	q = q.OrderBy("date DESC", "number DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list orders: %w", err)
	}

	return result, nil
}

// UpdateStatus performs the conditional transition checked by affected-row count.
func (r *OrderRepo) UpdateStatus(ctx context.Context, orderID id.ID, from, to orders.Status) error {
	return r.updateStatus(ctx, "order", orderID, string(from), string(to))
}

// SetPaymentState updates the payment state mirror on the header.
func (r *OrderRepo) SetPaymentState(ctx context.Context, orderID id.ID, state orders.PaymentState) error {
	return r.setFields(ctx, "order", orderID, map[string]any{
		"payment_state": string(state),
	})
}

// SetLineShipment backfills the shipment reference on a line.
func (r *OrderRepo) SetLineShipment(ctx context.Context, lineID, shipmentID id.ID) error {
	return r.setLineRef(ctx, lineID, "shipment_id", shipmentID)
}

// SetLineWarehouse records the allocation source chosen at placement.
func (r *OrderRepo) SetLineWarehouse(ctx context.Context, lineID, warehouseID id.ID) error {
	return r.setLineRef(ctx, lineID, "warehouse_id", warehouseID)
}

func (r *OrderRepo) setLineRef(ctx context.Context, lineID id.ID, column string, value id.ID) error {
	q := r.Builder().
		Update(orderLineTable).
		Set(column, value).
		Where(squirrel.Eq{"line_id": lineID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build line update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update order line: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("order_line", lineID.String())
	}

	return nil
}
