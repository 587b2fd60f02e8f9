package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockpilot/internal/core/id"
	"stockpilot/internal/domain/payments"
	"stockpilot/internal/infrastructure/storage/postgres"
)

const paymentTable = "doc_payments"

// Compile-time check that PaymentRepo implements payments.Repository.
var _ payments.Repository = (*PaymentRepo)(nil)

// PaymentRepo implements payments.Repository.
type PaymentRepo struct {
	*BaseDocumentRepo[*payments.Record]
	txManager *postgres.TxManager
}

// NewPaymentRepo creates a new payment repository.
func NewPaymentRepo(txManager *postgres.TxManager) *PaymentRepo {
	return &PaymentRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			paymentTable,
			postgres.ExtractDBColumns[payments.Record](),
			func() *payments.Record { return &payments.Record{} },
		),
		txManager: txManager,
	}
}

// GetByID retrieves a payment record.
func (r *PaymentRepo) GetByID(ctx context.Context, recordID id.ID) (*payments.Record, error) {
	return r.getHeader(ctx, "payment", recordID)
}

// GetByOrder retrieves all payment records for an order, newest first.
// The newest record is the authoritative one for the order's payment state.
func (r *PaymentRepo) GetByOrder(ctx context.Context, orderID id.ID) ([]*payments.Record, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("created_at DESC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	items := make([]*payments.Record, 0)
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("get payments by order: %w", err)
	}

	return items, nil
}

// UpdateStatus performs the conditional transition checked by affected-row count.
func (r *PaymentRepo) UpdateStatus(ctx context.Context, recordID id.ID, from, to payments.Status) error {
	return r.updateStatus(ctx, "payment", recordID, string(from), string(to))
}

// SetOutcome stores the capture outcome: final status plus whichever of
// provider reference and failure reason the processor produced.
func (r *PaymentRepo) SetOutcome(ctx context.Context, recordID id.ID, status payments.Status, providerRef, failureReason *string) error {
	return r.setFields(ctx, "payment", recordID, map[string]any{
		"status":         string(status),
		"provider_ref":   providerRef,
		"failure_reason": failureReason,
	})
}
