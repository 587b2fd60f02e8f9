// Package document_repo provides PostgreSQL implementations for document repositories.
package document_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/id"
	"stockpilot/internal/infrastructure/storage/postgres"
)

// BaseDocumentRepo provides common operations for document headers.
// Embed this in specific document repositories; line tables are handled
// by the embedding repository since their columns differ per document.
type BaseDocumentRepo[T any] struct {
	txManager  *postgres.TxManager
	tableName  string
	selectCols []string
	newFn      func() T
}

// NewBaseDocumentRepo creates a new base document repository.
func NewBaseDocumentRepo[T any](
	txManager *postgres.TxManager,
	tableName string,
	selectCols []string,
	newFn func() T,
) *BaseDocumentRepo[T] {
	return &BaseDocumentRepo[T]{
		txManager:  txManager,
		tableName:  tableName,
		selectCols: selectCols,
		newFn:      newFn,
	}
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r *BaseDocumentRepo[T]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Create inserts a new document header using its "db" tags.
func (r *BaseDocumentRepo[T]) Create(ctx context.Context, doc T) error {
	data := postgres.StructToMap(doc)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in document")
	}

	// Filter to only include columns that exist in DB
	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.Builder().
		Insert(r.tableName).
		SetMap(filteredData)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	_, err = querier.Exec(ctx, sql, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewDuplicate(r.tableName, "unique field", pgErr.ConstraintName).WithCause(err)
		}
		return fmt.Errorf("insert %s: %w", r.tableName, err)
	}

	return nil
}

// baseSelect creates a SELECT builder for the header table.
func (r *BaseDocumentRepo[T]) baseSelect() squirrel.SelectBuilder {
	return r.Builder().
		Select(r.selectCols...).
		From(r.tableName)
}

// getHeader retrieves the document header by ID.
func (r *BaseDocumentRepo[T]) getHeader(ctx context.Context, entityName string, docID id.ID) (T, error) {
	doc := r.newFn()

	q := r.baseSelect().
		Where(squirrel.Eq{"id": docID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return doc, fmt.Errorf("build query: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return doc, apperror.NewNotFound(entityName, docID.String())
		}
		return doc, fmt.Errorf("get %s by id: %w", r.tableName, err)
	}

	return doc, nil
}

// GetByNumber retrieves the document header by document number.
func (r *BaseDocumentRepo[T]) GetByNumber(ctx context.Context, entityName, number string) (T, error) {
	doc := r.newFn()

	q := r.baseSelect().
		Where(squirrel.Eq{"number": number}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return doc, fmt.Errorf("build query: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return doc, apperror.NewNotFound(entityName, number)
		}
		return doc, fmt.Errorf("get %s by number: %w", r.tableName, err)
	}

	return doc, nil
}

// updateStatus performs the conditional transition:
//
//	UPDATE <table> SET status = to WHERE id = $1 AND status = from
//
// The WHERE clause carries the expected source status, so two racing
// transitions cannot both succeed. Zero affected rows means this caller
// lost the race (or the document is gone) and the result is
// CodeConcurrentModification either way; callers re-read and retry.
func (r *BaseDocumentRepo[T]) updateStatus(ctx context.Context, entityName string, docID id.ID, from, to string) error {
	q := r.Builder().
		Update(r.tableName).
		Set("status", to).
		Set("updated_at", squirrel.Expr("NOW()")).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": docID}).
		Where(squirrel.Eq{"status": from})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build status update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return apperror.NewStorageUnavailable(err).
			WithDetail("operation", "update_status").
			WithDetail("table", r.tableName)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(entityName, docID).
			WithDetail("expected_status", from).
			WithDetail("requested_status", to)
	}

	return nil
}

// setFields updates arbitrary header columns by ID without a status guard.
// Used for non-lifecycle fields (payment state mirror, carrier assignment).
func (r *BaseDocumentRepo[T]) setFields(ctx context.Context, entityName string, docID id.ID, fields map[string]any) error {
	q := r.Builder().
		Update(r.tableName).
		SetMap(fields).
		Set("updated_at", squirrel.Expr("NOW()")).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": docID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", r.tableName, err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(entityName, docID.String())
	}

	return nil
}
