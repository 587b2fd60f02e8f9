package orders

import (
	"context"
	"fmt"
	"time"

	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/id"
	"stockpilot/internal/core/tx"
	"stockpilot/internal/domain"
	"stockpilot/internal/domain/history"
	"stockpilot/pkg/logger"
	"stockpilot/pkg/numerator"
)

// Service provides business operations for orders.
// It owns the status machine: Transition is the only status mutator,
// and every transition writes an audit entry in the same transaction.
type Service struct {
	repo      Repository
	history   *history.Service
	numerator *numerator.Service
	txManager tx.Manager
}

// NewService creates a new order service.
func NewService(repo Repository, hist *history.Service, num *numerator.Service, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		history:   hist,
		numerator: num,
		txManager: txManager,
	}
}

// Create validates and persists a new pending order.
func (s *Service) Create(ctx context.Context, order *Order) error {
	if order.Status == "" {
		order.Status = StatusPending
	}
	if order.PaymentState == "" {
		order.PaymentState = PaymentNone
	}
	if order.Status != StatusPending {
		return apperror.NewValidation("new orders must start pending").
			WithDetail("status", string(order.Status))
	}

	if err := order.Validate(ctx); err != nil {
		return err
	}

	if order.Number == "" {
		cfg := numerator.DefaultConfig("ORD")
		number, err := s.numerator.GetNextNumber(ctx, cfg, &numerator.Options{Strategy: numerator.StrategyCached}, time.Now())
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		order.Number = number
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if err := s.repo.SaveLines(ctx, order.ID, order.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return s.history.Record(ctx, history.NewEntry("order", order.ID, "", string(StatusPending), order.CreatedBy))
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "order created",
		"order_id", order.ID,
		"number", order.Number,
		"customer_id", order.CustomerID,
		"lines", len(order.Lines),
	)
	return nil
}

// GetByID retrieves an order with lines.
func (s *Service) GetByID(ctx context.Context, orderID id.ID) (*Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("order", orderID.String())
		}
		return nil, err
	}
	return order, nil
}

// List retrieves orders matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Order], error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.repo.List(ctx, filter)
}

// Transition moves an order along a legal status edge and records the
// change. The conditional update and the history row commit atomically:
// either both happen or neither does.
func (s *Service) Transition(ctx context.Context, orderID id.ID, to Status, actor, note string) (*Order, error) {
	if !IsValidStatus(to) {
		return nil, apperror.NewValidation("unknown status").
			WithDetail("status", string(to))
	}

	order, err := s.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	from := order.Status
	if !CanTransition(from, to) {
		return nil, apperror.NewInvalidTransition("order", string(from), string(to)).
			WithDetail("order_id", orderID.String())
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateStatus(ctx, orderID, from, to); err != nil {
			return err
		}
		entry := history.NewEntry("order", orderID, string(from), string(to), actor)
		entry.Note = note
		return s.history.Record(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	order.Status = to
	logger.Info(ctx, "order transitioned",
		"order_id", orderID,
		"from", from,
		"to", to,
		"actor", actor,
	)
	return order, nil
}

// SetPaymentState updates the payment mirror on the order header.
func (s *Service) SetPaymentState(ctx context.Context, orderID id.ID, state PaymentState) error {
	return s.repo.SetPaymentState(ctx, orderID, state)
}

// AssignLineShipment backfills the shipment reference on an order line.
func (s *Service) AssignLineShipment(ctx context.Context, lineID, shipmentID id.ID) error {
	return s.repo.SetLineShipment(ctx, lineID, shipmentID)
}

// AssignLineWarehouse backfills the source warehouse on an order line.
func (s *Service) AssignLineWarehouse(ctx context.Context, lineID, warehouseID id.ID) error {
	return s.repo.SetLineWarehouse(ctx, lineID, warehouseID)
}

// History returns the order's audit trail, oldest first.
func (s *Service) History(ctx context.Context, orderID id.ID) ([]history.Entry, error) {
	return s.history.History(ctx, "order", orderID)
}
