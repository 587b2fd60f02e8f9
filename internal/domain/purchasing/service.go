package purchasing

import (
	"context"
	"fmt"
	"time"

	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/id"
	"stockpilot/internal/core/tx"
	"stockpilot/internal/domain/history"
	"stockpilot/internal/domain/inventory"
	"stockpilot/pkg/logger"
	"stockpilot/pkg/numerator"
)

// Service provides business operations for purchase orders.
// Receiving a purchase order releases its quantities into the ledger.
type Service struct {
	repo      Repository
	ledger    *inventory.Ledger
	history   *history.Service
	numerator *numerator.Service
	txManager tx.Manager
}

// NewService creates a new purchasing service.
func NewService(repo Repository, ledger *inventory.Ledger, hist *history.Service, num *numerator.Service, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		ledger:    ledger,
		history:   hist,
		numerator: num,
		txManager: txManager,
	}
}

// Create validates and persists a draft purchase order.
func (s *Service) Create(ctx context.Context, po *PurchaseOrder) error {
	if po.Status == "" {
		po.Status = StatusDraft
	}
	if po.Status != StatusDraft {
		return apperror.NewValidation("new purchase orders must start as draft").
			WithDetail("status", string(po.Status))
	}
	if err := po.Validate(ctx); err != nil {
		return err
	}

	if po.Number == "" {
		cfg := numerator.DefaultConfig("PO")
		number, err := s.numerator.GetNextNumber(ctx, cfg, nil, time.Now())
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		po.Number = number
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, po); err != nil {
			return fmt.Errorf("create purchase order: %w", err)
		}
		if err := s.repo.SaveLines(ctx, po.ID, po.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return s.history.Record(ctx, history.NewEntry("purchase_order", po.ID, "", string(StatusDraft), po.CreatedBy))
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "purchase order created",
		"purchase_order_id", po.ID,
		"number", po.Number,
		"supplier_id", po.SupplierID,
	)
	return nil
}

// GetByID retrieves a purchase order with its lines.
func (s *Service) GetByID(ctx context.Context, poID id.ID) (*PurchaseOrder, error) {
	po, err := s.repo.GetByID(ctx, poID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("purchase_order", poID.String())
		}
		return nil, err
	}
	return po, nil
}

// ListBySupplier retrieves purchase orders for a supplier, newest first.
func (s *Service) ListBySupplier(ctx context.Context, supplierID id.ID, limit, offset int) ([]*PurchaseOrder, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListBySupplier(ctx, supplierID, limit, offset)
}

// MarkOrdered sends a draft to the supplier: draft -> ordered.
func (s *Service) MarkOrdered(ctx context.Context, poID id.ID, actor string) (*PurchaseOrder, error) {
	return s.transition(ctx, poID, StatusOrdered, actor, "")
}

// Receive books the ordered quantities into the inventory ledger and
// transitions ordered -> received. The stock release, the status change
// and the audit row commit in one transaction.
func (s *Service) Receive(ctx context.Context, poID id.ID, actor string) (*PurchaseOrder, error) {
	po, err := s.GetByID(ctx, poID)
	if err != nil {
		return nil, err
	}

	if !CanTransition(po.Status, StatusReceived) {
		return nil, apperror.NewInvalidTransition("purchase_order", string(po.Status), string(StatusReceived)).
			WithDetail("purchase_order_id", poID.String())
	}

	ref := inventory.Reference{Type: "purchase_order", ID: po.ID, Actor: actor}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, line := range po.Lines {
			release := inventory.ReservationLine{
				ProductID:   line.ProductID,
				WarehouseID: po.WarehouseID,
				Quantity:    line.Quantity,
			}
			if err := s.ledger.Release(ctx, release, ref); err != nil {
				return fmt.Errorf("restock line %d: %w", line.LineNo, err)
			}
		}

		if err := s.repo.UpdateStatus(ctx, poID, po.Status, StatusReceived); err != nil {
			return err
		}
		return s.history.Record(ctx, history.NewEntry("purchase_order", poID, string(po.Status), string(StatusReceived), actor))
	})
	if err != nil {
		return nil, err
	}

	po.Status = StatusReceived
	logger.Info(ctx, "purchase order received",
		"purchase_order_id", poID,
		"warehouse_id", po.WarehouseID,
		"lines", len(po.Lines),
	)
	return po, nil
}

// Close finishes a received purchase order: received -> closed.
func (s *Service) Close(ctx context.Context, poID id.ID, actor string) (*PurchaseOrder, error) {
	return s.transition(ctx, poID, StatusClosed, actor, "")
}

// Cancel aborts a purchase order before receipt.
func (s *Service) Cancel(ctx context.Context, poID id.ID, actor, note string) (*PurchaseOrder, error) {
	return s.transition(ctx, poID, StatusCancelled, actor, note)
}

func (s *Service) transition(ctx context.Context, poID id.ID, to Status, actor, note string) (*PurchaseOrder, error) {
	po, err := s.GetByID(ctx, poID)
	if err != nil {
		return nil, err
	}

	from := po.Status
	if !CanTransition(from, to) {
		return nil, apperror.NewInvalidTransition("purchase_order", string(from), string(to)).
			WithDetail("purchase_order_id", poID.String())
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateStatus(ctx, poID, from, to); err != nil {
			return err
		}
		entry := history.NewEntry("purchase_order", poID, string(from), string(to), actor)
		entry.Note = note
		return s.history.Record(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	po.Status = to
	return po, nil
}
