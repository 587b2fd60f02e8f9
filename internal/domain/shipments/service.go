package shipments

import (
	"context"
	"fmt"
	"time"

	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/id"
	"stockpilot/internal/core/tx"
	"stockpilot/internal/domain/history"
	"stockpilot/pkg/logger"
	"stockpilot/pkg/numerator"
)

// Service provides business operations for shipments.
type Service struct {
	repo      Repository
	history   *history.Service
	numerator *numerator.Service
	txManager tx.Manager
}

// NewService creates a new shipment service.
func NewService(repo Repository, hist *history.Service, num *numerator.Service, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		history:   hist,
		numerator: num,
		txManager: txManager,
	}
}

// Create validates and persists a pending shipment, generating a
// tracking number if absent.
func (s *Service) Create(ctx context.Context, shipment *Shipment) error {
	if shipment.Status == "" {
		shipment.Status = StatusPending
	}
	if err := shipment.Validate(ctx); err != nil {
		return err
	}

	if shipment.TrackingNumber == "" {
		cfg := numerator.DefaultConfig("SHP")
		number, err := s.numerator.GetNextNumber(ctx, cfg, &numerator.Options{Strategy: numerator.StrategyCached}, time.Now())
		if err != nil {
			return fmt.Errorf("generate tracking number: %w", err)
		}
		shipment.TrackingNumber = number
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, shipment); err != nil {
			return fmt.Errorf("create shipment: %w", err)
		}
		return s.history.Record(ctx, history.NewEntry("shipment", shipment.ID, "", string(StatusPending), shipment.CreatedBy))
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "shipment created",
		"shipment_id", shipment.ID,
		"order_id", shipment.OrderID,
		"warehouse_id", shipment.WarehouseID,
		"tracking_number", shipment.TrackingNumber,
	)
	return nil
}

// GetByID retrieves a shipment.
func (s *Service) GetByID(ctx context.Context, shipmentID id.ID) (*Shipment, error) {
	shipment, err := s.repo.GetByID(ctx, shipmentID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("shipment", shipmentID.String())
		}
		return nil, err
	}
	return shipment, nil
}

// GetByOrder retrieves all shipments for an order.
func (s *Service) GetByOrder(ctx context.Context, orderID id.ID) ([]*Shipment, error) {
	return s.repo.GetByOrder(ctx, orderID)
}

// Transition moves a shipment along a legal status edge with audit.
func (s *Service) Transition(ctx context.Context, shipmentID id.ID, to Status, actor string) (*Shipment, error) {
	shipment, err := s.GetByID(ctx, shipmentID)
	if err != nil {
		return nil, err
	}

	from := shipment.Status
	if !CanTransition(from, to) {
		return nil, apperror.NewInvalidTransition("shipment", string(from), string(to)).
			WithDetail("shipment_id", shipmentID.String())
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateStatus(ctx, shipmentID, from, to); err != nil {
			return err
		}
		return s.history.Record(ctx, history.NewEntry("shipment", shipmentID, string(from), string(to), actor))
	})
	if err != nil {
		return nil, err
	}

	shipment.Status = to
	return shipment, nil
}

// AssignCarrier sets the delivering carrier on a pending shipment.
func (s *Service) AssignCarrier(ctx context.Context, shipmentID, carrierID id.ID) error {
	shipment, err := s.GetByID(ctx, shipmentID)
	if err != nil {
		return err
	}
	if shipment.Status != StatusPending {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "carrier can only be assigned before dispatch").
			WithDetail("shipment_id", shipmentID.String()).
			WithDetail("status", string(shipment.Status))
	}
	return s.repo.SetCarrier(ctx, shipmentID, carrierID)
}
