package returns

import (
	"context"
	"fmt"
	"time"

	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/id"
	"stockpilot/internal/core/tx"
	"stockpilot/internal/domain/history"
	"stockpilot/internal/domain/inventory"
	"stockpilot/internal/domain/payments"
	"stockpilot/pkg/logger"
	"stockpilot/pkg/numerator"
)

// Service provides business operations for returns.
// Receiving restocks the ledger; refunding flips the original payment.
type Service struct {
	repo      Repository
	ledger    *inventory.Ledger
	payments  *payments.Service
	history   *history.Service
	numerator *numerator.Service
	txManager tx.Manager
}

// NewService creates a new returns service.
func NewService(
	repo Repository,
	ledger *inventory.Ledger,
	pay *payments.Service,
	hist *history.Service,
	num *numerator.Service,
	txManager tx.Manager,
) *Service {
	return &Service{
		repo:      repo,
		ledger:    ledger,
		payments:  pay,
		history:   hist,
		numerator: num,
		txManager: txManager,
	}
}

// Request creates a requested return.
func (s *Service) Request(ctx context.Context, ret *Return) error {
	if ret.Status == "" {
		ret.Status = StatusRequested
	}
	if ret.Status != StatusRequested {
		return apperror.NewValidation("new returns must start as requested").
			WithDetail("status", string(ret.Status))
	}
	if err := ret.Validate(ctx); err != nil {
		return err
	}

	if ret.Number == "" {
		cfg := numerator.DefaultConfig("RET")
		number, err := s.numerator.GetNextNumber(ctx, cfg, nil, time.Now())
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		ret.Number = number
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, ret); err != nil {
			return fmt.Errorf("create return: %w", err)
		}
		if err := s.repo.SaveLines(ctx, ret.ID, ret.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return s.history.Record(ctx, history.NewEntry("return", ret.ID, "", string(StatusRequested), ret.CreatedBy))
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "return requested",
		"return_id", ret.ID,
		"order_id", ret.OrderID,
		"reason", ret.Reason,
	)
	return nil
}

// GetByID retrieves a return with its lines.
func (s *Service) GetByID(ctx context.Context, returnID id.ID) (*Return, error) {
	ret, err := s.repo.GetByID(ctx, returnID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("return", returnID.String())
		}
		return nil, err
	}
	return ret, nil
}

// ListByOrder retrieves all returns filed against an order.
func (s *Service) ListByOrder(ctx context.Context, orderID id.ID) ([]*Return, error) {
	return s.repo.ListByOrder(ctx, orderID)
}

// Approve accepts a requested return: requested -> approved.
func (s *Service) Approve(ctx context.Context, returnID id.ID, actor string) (*Return, error) {
	return s.transition(ctx, returnID, StatusApproved, actor, "")
}

// Reject declines a return before receipt.
func (s *Service) Reject(ctx context.Context, returnID id.ID, actor, note string) (*Return, error) {
	return s.transition(ctx, returnID, StatusRejected, actor, note)
}

// Receive restocks the returned goods: each line releases its quantity
// into the ledger with a `return` reference, then approved -> received.
// Restock, status change and audit row commit in one transaction.
func (s *Service) Receive(ctx context.Context, returnID id.ID, actor string) (*Return, error) {
	ret, err := s.GetByID(ctx, returnID)
	if err != nil {
		return nil, err
	}

	if !CanTransition(ret.Status, StatusReceived) {
		return nil, apperror.NewInvalidTransition("return", string(ret.Status), string(StatusReceived)).
			WithDetail("return_id", returnID.String())
	}

	ref := inventory.Reference{Type: "return", ID: ret.ID, Actor: actor}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, line := range ret.Lines {
			release := inventory.ReservationLine{
				ProductID:   line.ProductID,
				WarehouseID: line.WarehouseID,
				Quantity:    line.Quantity,
			}
			if err := s.ledger.Release(ctx, release, ref); err != nil {
				return fmt.Errorf("restock line %d: %w", line.LineNo, err)
			}
		}

		if err := s.repo.UpdateStatus(ctx, returnID, ret.Status, StatusReceived); err != nil {
			return err
		}
		return s.history.Record(ctx, history.NewEntry("return", returnID, string(ret.Status), string(StatusReceived), actor))
	})
	if err != nil {
		return nil, err
	}

	ret.Status = StatusReceived
	logger.Info(ctx, "return received",
		"return_id", returnID,
		"order_id", ret.OrderID,
		"lines", len(ret.Lines),
	)
	return ret, nil
}

// Refund refunds the original order payment and finishes the return:
// received -> refunded. The refund goes through the payment processor
// first; the status only flips after the provider accepted it.
func (s *Service) Refund(ctx context.Context, returnID id.ID, actor string) (*Return, error) {
	ret, err := s.GetByID(ctx, returnID)
	if err != nil {
		return nil, err
	}

	if !CanTransition(ret.Status, StatusRefunded) {
		return nil, apperror.NewInvalidTransition("return", string(ret.Status), string(StatusRefunded)).
			WithDetail("return_id", returnID.String())
	}

	payment, err := s.payments.LatestForOrder(ctx, ret.OrderID)
	if err != nil {
		return nil, err
	}
	if err := s.payments.Refund(ctx, payment.ID); err != nil {
		return nil, err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateStatus(ctx, returnID, ret.Status, StatusRefunded); err != nil {
			return err
		}
		return s.history.Record(ctx, history.NewEntry("return", returnID, string(ret.Status), string(StatusRefunded), actor))
	})
	if err != nil {
		return nil, err
	}

	ret.Status = StatusRefunded
	logger.Info(ctx, "return refunded",
		"return_id", returnID,
		"order_id", ret.OrderID,
		"payment_id", payment.ID,
	)
	return ret, nil
}

func (s *Service) transition(ctx context.Context, returnID id.ID, to Status, actor, note string) (*Return, error) {
	ret, err := s.GetByID(ctx, returnID)
	if err != nil {
		return nil, err
	}

	from := ret.Status
	if !CanTransition(from, to) {
		return nil, apperror.NewInvalidTransition("return", string(from), string(to)).
			WithDetail("return_id", returnID.String())
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateStatus(ctx, returnID, from, to); err != nil {
			return err
		}
		entry := history.NewEntry("return", returnID, string(from), string(to), actor)
		entry.Note = note
		return s.history.Record(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	ret.Status = to
	return ret, nil
}
