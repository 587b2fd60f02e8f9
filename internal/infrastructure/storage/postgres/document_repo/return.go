package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockpilot/internal/core/id"
	"stockpilot/internal/domain/returns"
	"stockpilot/internal/infrastructure/storage/postgres"
)

const (
	returnTable     = "doc_returns"
	returnLineTable = "doc_return_lines"
)

var returnLineCols = []string{
	"line_id", "line_no", "product_id", "quantity", "warehouse_id",
}

// Compile-time check that ReturnRepo implements returns.Repository.
var _ returns.Repository = (*ReturnRepo)(nil)

// ReturnRepo implements returns.Repository.
type ReturnRepo struct {
	*BaseDocumentRepo[*returns.Return]
	txManager *postgres.TxManager
}

// NewReturnRepo creates a new return repository.
func NewReturnRepo(txManager *postgres.TxManager) *ReturnRepo {
	return &ReturnRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			returnTable,
			postgres.ExtractDBColumns[returns.Return](),
			func() *returns.Return { return &returns.Return{} },
		),
		txManager: txManager,
	}
}

// SaveLines replaces the table part of a return.
func (r *ReturnRepo) SaveLines(ctx context.Context, returnID id.ID, lines []returns.Line) error {
	querier := r.txManager.GetQuerier(ctx)

	delSQL, delArgs, err := r.Builder().
		Delete(returnLineTable).
		Where(squirrel.Eq{"return_id": returnID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete lines: %w", err)
	}
	if _, err := querier.Exec(ctx, delSQL, delArgs...); err != nil {
		return fmt.Errorf("delete return lines: %w", err)
	}

	if len(lines) == 0 {
		return nil
	}

	q := r.Builder().
		Insert(returnLineTable).
		Columns("line_id", "return_id", "line_no", "product_id", "quantity", "warehouse_id")

	for _, line := range lines {
		q = q.Values(
			line.LineID,
			returnID,
			line.LineNo,
			line.ProductID,
			line.Quantity.Int64Scaled(),
			line.WarehouseID,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert lines: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert return lines: %w", err)
	}

	return nil
}

// GetByID retrieves a return with its lines.
func (r *ReturnRepo) GetByID(ctx context.Context, returnID id.ID) (*returns.Return, error) {
	ret, err := r.getHeader(ctx, "return", returnID)
	if err != nil {
		return nil, err
	}

	q := r.Builder().
		Select(returnLineCols...).
		From(returnLineTable).
		Where(squirrel.Eq{"return_id": returnID}).
		OrderBy("line_no ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}

	lines := make([]returns.Line, 0)
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get return lines: %w", err)
	}
	ret.Lines = lines

	return ret, nil
}

// ListByOrder retrieves return headers for an order, newest first.
func (r *ReturnRepo) ListByOrder(ctx context.Context, orderID id.ID) ([]*returns.Return, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"order_id": orderID}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("date DESC", "number DESC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	items := make([]*returns.Return, 0)
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list returns by order: %w", err)
	}

	return items, nil
}

// UpdateStatus performs the conditional transition checked by affected-row count.
func (r *ReturnRepo) UpdateStatus(ctx context.Context, returnID id.ID, from, to returns.Status) error {
	return r.updateStatus(ctx, "return", returnID, string(from), string(to))
}
