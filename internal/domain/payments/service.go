package payments

import (
	"context"
	"fmt"

	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/id"
	"stockpilot/internal/core/tx"
	"stockpilot/internal/core/types"
	"stockpilot/pkg/logger"
)

// Service records payment attempts and drives the Processor.
type Service struct {
	repo      Repository
	processor Processor
	txManager tx.Manager
}

// NewService creates a new payment service.
func NewService(repo Repository, processor Processor, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		processor: processor,
		txManager: txManager,
	}
}

// Capture attempts to capture the order amount.
//
// Outcomes:
//   - capture succeeds: record completed, nil error
//   - provider declines: record failed, CodePaymentFailed error
//   - provider unreachable: record failed with the transport reason,
//     CodePaymentFailed error wrapping the cause
//
// In every case a durable record of the attempt exists; callers decide
// whether a failed capture blocks their workflow.
func (s *Service) Capture(ctx context.Context, orderID id.ID, amount types.Money, method Method) (*Record, error) {
	record := NewRecord(orderID, amount, method)
	if err := record.Validate(ctx); err != nil {
		return nil, err
	}

	if err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, record)
	}); err != nil {
		return nil, fmt.Errorf("create payment record: %w", err)
	}

	result, err := s.processor.Capture(ctx, orderID, amount, method)
	if err != nil {
		reason := err.Error()
		record.Status = StatusFailed
		record.FailureReason = &reason
		if storeErr := s.repo.SetOutcome(ctx, record.ID, StatusFailed, nil, &reason); storeErr != nil {
			logger.Error(ctx, "failed to store payment outcome", "payment_id", record.ID, "error", storeErr)
		}
		return record, apperror.NewPaymentFailed(orderID.String(), reason).WithCause(err)
	}

	if result.Declined {
		record.Status = StatusFailed
		record.FailureReason = &result.DeclineReason
		if result.ProviderRef != "" {
			record.ProviderRef = &result.ProviderRef
		}
		if storeErr := s.repo.SetOutcome(ctx, record.ID, StatusFailed, record.ProviderRef, &result.DeclineReason); storeErr != nil {
			logger.Error(ctx, "failed to store payment outcome", "payment_id", record.ID, "error", storeErr)
		}
		return record, apperror.NewPaymentFailed(orderID.String(), result.DeclineReason)
	}

	record.Status = StatusCompleted
	record.ProviderRef = &result.ProviderRef
	if err := s.repo.SetOutcome(ctx, record.ID, StatusCompleted, record.ProviderRef, nil); err != nil {
		return record, fmt.Errorf("store payment outcome: %w", err)
	}

	logger.Info(ctx, "payment captured",
		"payment_id", record.ID,
		"order_id", orderID,
		"amount", amount,
	)
	return record, nil
}

// Refund refunds a completed payment through the processor and flips the
// record to refunded.
func (s *Service) Refund(ctx context.Context, recordID id.ID) error {
	record, err := s.repo.GetByID(ctx, recordID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return apperror.NewNotFound("payment", recordID.String())
		}
		return err
	}

	if record.Status != StatusCompleted {
		return apperror.NewInvalidTransition("payment", string(record.Status), string(StatusRefunded)).
			WithDetail("payment_id", recordID.String())
	}
	if record.ProviderRef == nil {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "payment has no provider reference").
			WithDetail("payment_id", recordID.String())
	}

	if err := s.processor.Refund(ctx, *record.ProviderRef, record.Amount); err != nil {
		return apperror.NewPaymentFailed(record.OrderID.String(), "refund failed").WithCause(err)
	}

	if err := s.repo.UpdateStatus(ctx, recordID, StatusCompleted, StatusRefunded); err != nil {
		return err
	}

	logger.Info(ctx, "payment refunded",
		"payment_id", recordID,
		"order_id", record.OrderID,
		"amount", record.Amount,
	)
	return nil
}

// LatestForOrder returns the most recent payment record for an order.
func (s *Service) LatestForOrder(ctx context.Context, orderID id.ID) (*Record, error) {
	records, err := s.repo.GetByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, apperror.NewNotFound("payment", orderID.String())
	}
	return records[0], nil
}
