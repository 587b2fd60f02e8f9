// Package fulfillment orchestrates order placement: stock reservation,
// order confirmation, shipment creation and payment capture as one
// workflow with explicit compensation.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/id"
	"stockpilot/internal/core/tx"
	"stockpilot/internal/core/types"
	"stockpilot/internal/domain/catalogs/product"
	"stockpilot/internal/domain/catalogs/warehouse"
	"stockpilot/internal/domain/events"
	"stockpilot/internal/domain/inventory"
	"stockpilot/internal/domain/orders"
	"stockpilot/internal/domain/payments"
	"stockpilot/internal/domain/shipments"
	"stockpilot/pkg/logger"
)

// ProductCatalog is the slice of the product service the orchestrator needs.
type ProductCatalog interface {
	GetByID(ctx context.Context, id id.ID) (*product.Product, error)
}

// WarehouseDirectory lists allocation candidates in priority order.
type WarehouseDirectory interface {
	ListActive(ctx context.Context) ([]*warehouse.Warehouse, error)
}

// Service is the fulfillment orchestrator.
type Service struct {
	products   ProductCatalog
	warehouses WarehouseDirectory
	ledger     *inventory.Ledger
	orders     *orders.Service
	shipments  *shipments.Service
	payments   *payments.Service
	emitter    events.Emitter
	txManager  tx.Manager
}

// NewService creates a new fulfillment service.
func NewService(
	products ProductCatalog,
	warehouses WarehouseDirectory,
	ledger *inventory.Ledger,
	orderSvc *orders.Service,
	shipmentSvc *shipments.Service,
	paymentSvc *payments.Service,
	emitter events.Emitter,
	txManager tx.Manager,
) *Service {
	return &Service{
		products:   products,
		warehouses: warehouses,
		ledger:     ledger,
		orders:     orderSvc,
		shipments:  shipmentSvc,
		payments:   paymentSvc,
		emitter:    emitter,
		txManager:  txManager,
	}
}

// PlaceOrderRequest is the placement input.
type PlaceOrderRequest struct {
	CustomerID           id.ID
	Lines                []RequestLine
	CarrierID            *id.ID
	PaymentMethod        payments.Method
	ShippingAddress      string
	ExpectedDeliveryDate *time.Time
	Comment              string
	Actor                string
}

// RequestLine is one requested product/quantity pair.
type RequestLine struct {
	ProductID id.ID
	Quantity  types.Quantity
}

// PlacementResult reports what the placement achieved.
//
// A nil error with PaymentFailed false means the order is confirmed,
// shipped-to-be and paid. A nil error with PaymentFailed true means the
// order is confirmed but the capture failed: operators must follow up,
// and the Warnings explain why. A non-nil error means nothing committed.
type PlacementResult struct {
	Order         *orders.Order
	Shipments     []*shipments.Shipment
	Payment       *payments.Record
	PaymentFailed bool
	Warnings      []string
}

// allocation binds an order line to its chosen source warehouse.
type allocation struct {
	line        orders.Line
	warehouseID id.ID
}

// PlaceOrder runs the placement workflow:
//
//  1. validate the request and snapshot current prices
//  2. allocate each line to a warehouse with sufficient stock
//  3. reserve all lines or none (compensating release on failure)
//  4. persist the confirmed order, its shipments and events atomically
//  5. capture payment; a failed capture is surfaced, never swallowed
//
// Steps 1-4 are all-or-nothing. Step 5 runs after the order committed:
// payment failure marks the order's payment state and emits an event
// but does not undo the placement.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlacementResult, error) {
	order, reservations, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	ref := inventory.Reference{Type: "order", ID: order.ID, Actor: req.Actor}
	if err := s.ledger.ReserveAll(ctx, reservations, ref); err != nil {
		return nil, err
	}

	result := &PlacementResult{Order: order}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.orders.Create(ctx, order); err != nil {
			return err
		}
		if _, err := s.orders.Transition(ctx, order.ID, orders.StatusConfirmed, req.Actor, "order placed"); err != nil {
			return err
		}
		order.Status = orders.StatusConfirmed

		created, err := s.createShipments(ctx, order, req.CarrierID)
		if err != nil {
			return err
		}
		result.Shipments = created

		return s.emitPlacementEvents(ctx, order, reservations, created, req.Actor)
	})
	if err != nil {
		// The order did not commit: give the stock back.
		s.releaseAll(ctx, reservations, ref)
		return nil, err
	}

	s.capturePayment(ctx, req, order, result)

	logger.Info(ctx, "order placed",
		"order_id", order.ID,
		"number", order.Number,
		"customer_id", order.CustomerID,
		"payment_failed", result.PaymentFailed,
	)
	return result, nil
}

// prepare validates the request, snapshots prices and allocates warehouses.
func (s *Service) prepare(ctx context.Context, req PlaceOrderRequest) (*orders.Order, []inventory.ReservationLine, error) {
	if id.IsNil(req.CustomerID) {
		return nil, nil, apperror.NewValidation("customer is required")
	}
	if len(req.Lines) == 0 {
		return nil, nil, apperror.NewValidation("at least one line is required")
	}
	for i, line := range req.Lines {
		if !line.Quantity.IsPositive() {
			return nil, nil, apperror.NewValidation("quantity must be positive").
				WithDetail("lineNo", i+1)
		}
	}

	activeWarehouses, err := s.warehouses.ListActive(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list warehouses: %w", err)
	}
	if len(activeWarehouses) == 0 {
		return nil, nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "no active warehouses")
	}

	order := orders.NewOrder(req.CustomerID)
	order.ExpectedDeliveryDate = req.ExpectedDeliveryDate
	order.Comment = req.Comment
	order.CreatedBy = req.Actor
	if req.ShippingAddress != "" {
		addr := req.ShippingAddress
		order.ShippingAddress = &addr
	}

	reservations := make([]inventory.ReservationLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		prod, err := s.products.GetByID(ctx, line.ProductID)
		if err != nil {
			return nil, nil, err
		}
		if !prod.IsSellable() {
			return nil, nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "product is not sellable").
				WithDetail("product_id", prod.ID.String())
		}

		warehouseID, err := s.allocate(ctx, activeWarehouses, line.ProductID, line.Quantity)
		if err != nil {
			return nil, nil, err
		}

		order.AddLine(prod.ID, line.Quantity, prod.UnitPrice)
		whID := warehouseID
		order.Lines[len(order.Lines)-1].WarehouseID = &whID

		reservations = append(reservations, inventory.ReservationLine{
			ProductID:   prod.ID,
			WarehouseID: warehouseID,
			Quantity:    line.Quantity,
		})
	}

	return order, reservations, nil
}

// allocate picks the first warehouse (in priority order) holding the full
// line quantity. Lines are never split across warehouses; when no single
// warehouse can serve the line the total availability is reported.
func (s *Service) allocate(ctx context.Context, candidates []*warehouse.Warehouse, productID id.ID, qty types.Quantity) (id.ID, error) {
	availability, err := s.ledger.Availability(ctx, productID)
	if err != nil {
		return id.Nil(), err
	}

	byWarehouse := make(map[id.ID]types.Quantity, len(availability.Warehouses))
	for _, ws := range availability.Warehouses {
		byWarehouse[ws.WarehouseID] = ws.Quantity
	}

	for _, wh := range candidates {
		if byWarehouse[wh.ID] >= qty {
			return wh.ID, nil
		}
	}

	return id.Nil(), apperror.NewInsufficientStock(productID.String(), qty.Float64(), availability.Total.Float64())
}

// createShipments creates one shipment per distinct source warehouse and
// backfills the shipment reference on every line.
func (s *Service) createShipments(ctx context.Context, order *orders.Order, carrierID *id.ID) ([]*shipments.Shipment, error) {
	byWarehouse := make(map[id.ID]*shipments.Shipment)
	var created []*shipments.Shipment

	for i := range order.Lines {
		line := &order.Lines[i]
		if line.WarehouseID == nil {
			return nil, apperror.NewInternal(errors.New("order line missing allocation")).
				WithDetail("line_id", line.LineID.String())
		}

		shipment, ok := byWarehouse[*line.WarehouseID]
		if !ok {
			shipment = shipments.NewShipment(order.ID, *line.WarehouseID)
			shipment.CarrierID = carrierID
			shipment.CreatedBy = order.CreatedBy
			if err := s.shipments.Create(ctx, shipment); err != nil {
				return nil, err
			}
			byWarehouse[*line.WarehouseID] = shipment
			created = append(created, shipment)
		}

		if err := s.orders.AssignLineShipment(ctx, line.LineID, shipment.ID); err != nil {
			return nil, err
		}
		shipmentID := shipment.ID
		line.ShipmentID = &shipmentID
	}

	return created, nil
}

func (s *Service) emitPlacementEvents(ctx context.Context, order *orders.Order, reservations []inventory.ReservationLine, created []*shipments.Shipment, actor string) error {
	batch := []events.Event{{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     events.TypeOrderConfirmed,
		Payload: events.OrderConfirmedPayload{
			OrderID:    order.ID,
			Number:     order.Number,
			CustomerID: order.CustomerID,
			Total:      order.TotalAmount,
		},
	}}

	for _, r := range reservations {
		batch = append(batch, events.Event{
			AggregateType: "inventory",
			AggregateID:   r.ProductID,
			EventType:     events.TypeInventoryChanged,
			Payload: events.InventoryChangedPayload{
				ProductID:    r.ProductID,
				WarehouseID:  r.WarehouseID,
				Delta:        r.Quantity.Neg(),
				MovementType: "out",
			},
		})
	}

	for _, sh := range created {
		batch = append(batch, events.Event{
			AggregateType: "shipment",
			AggregateID:   sh.ID,
			EventType:     events.TypeShipmentCreated,
			Payload: events.ShipmentCreatedPayload{
				ShipmentID:     sh.ID,
				OrderID:        order.ID,
				WarehouseID:    sh.WarehouseID,
				TrackingNumber: sh.TrackingNumber,
			},
		})
	}

	return s.emitter.EmitBatch(ctx, batch)
}

// capturePayment runs after the order committed. Failure flips the
// payment state and emits an event; the order itself stays confirmed.
func (s *Service) capturePayment(ctx context.Context, req PlaceOrderRequest, order *orders.Order, result *PlacementResult) {
	method := req.PaymentMethod
	if method == "" {
		method = payments.MethodCard
	}

	record, err := s.payments.Capture(ctx, order.ID, order.TotalAmount, method)
	result.Payment = record
	if err == nil {
		order.PaymentState = orders.PaymentCompleted
		if stateErr := s.orders.SetPaymentState(ctx, order.ID, orders.PaymentCompleted); stateErr != nil {
			logger.Error(ctx, "failed to store payment state", "order_id", order.ID, "error", stateErr)
		}
		return
	}

	result.PaymentFailed = true
	result.Warnings = append(result.Warnings, fmt.Sprintf("payment capture failed: %v", err))
	order.PaymentState = orders.PaymentFailed

	failErr := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.orders.SetPaymentState(ctx, order.ID, orders.PaymentFailed); err != nil {
			return err
		}
		var paymentID id.ID
		if record != nil {
			paymentID = record.ID
		}
		reason := err.Error()
		if appErr, ok := apperror.AsAppError(err); ok {
			if r, ok := appErr.Details["reason"].(string); ok {
				reason = r
			}
		}
		return s.emitter.Emit(ctx, events.Event{
			AggregateType: "order",
			AggregateID:   order.ID,
			EventType:     events.TypePaymentFailed,
			Payload: events.PaymentFailedPayload{
				OrderID:   order.ID,
				PaymentID: paymentID,
				Reason:    reason,
			},
		})
	})
	if failErr != nil {
		logger.Error(ctx, "failed to record payment failure", "order_id", order.ID, "error", failErr)
	}

	logger.Warn(ctx, "order placed without payment",
		"order_id", order.ID,
		"error", err,
	)
}

// releaseAll compensates reservations after a failed placement commit.
func (s *Service) releaseAll(ctx context.Context, reservations []inventory.ReservationLine, ref inventory.Reference) {
	for i := len(reservations) - 1; i >= 0; i-- {
		if err := s.ledger.Release(ctx, reservations[i], ref); err != nil {
			logger.Error(ctx, "compensating release failed",
				"product_id", reservations[i].ProductID,
				"warehouse_id", reservations[i].WarehouseID,
				"error", err,
			)
		}
	}
}

// ConfirmFulfillment moves a pending order to confirmed. Orders created
// outside PlaceOrder have no reservations yet; their lines are allocated
// and reserved here before the transition.
func (s *Service) ConfirmFulfillment(ctx context.Context, orderID id.ID, actor string) (*orders.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != orders.StatusPending {
		return nil, apperror.NewInvalidTransition("order", string(order.Status), string(orders.StatusConfirmed)).
			WithDetail("order_id", orderID.String())
	}

	if err := s.reserveUnallocated(ctx, order, actor); err != nil {
		return nil, err
	}

	updated, err := s.orders.Transition(ctx, orderID, orders.StatusConfirmed, actor, "fulfillment confirmed")
	if err != nil {
		return nil, err
	}

	if err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.emitter.Emit(ctx, events.Event{
			AggregateType: "order",
			AggregateID:   orderID,
			EventType:     events.TypeOrderConfirmed,
			Payload: events.OrderConfirmedPayload{
				OrderID:    orderID,
				Number:     updated.Number,
				CustomerID: updated.CustomerID,
				Total:      updated.TotalAmount,
			},
		})
	}); err != nil {
		logger.Error(ctx, "failed to emit confirmation event", "order_id", orderID, "error", err)
	}

	return updated, nil
}

// reserveUnallocated allocates and reserves any line without a warehouse.
func (s *Service) reserveUnallocated(ctx context.Context, order *orders.Order, actor string) error {
	var pending []inventory.ReservationLine
	var lineIdx []int

	activeWarehouses, err := s.warehouses.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list warehouses: %w", err)
	}

	for i := range order.Lines {
		if order.Lines[i].WarehouseID != nil {
			continue
		}
		warehouseID, err := s.allocate(ctx, activeWarehouses, order.Lines[i].ProductID, order.Lines[i].Quantity)
		if err != nil {
			return err
		}
		pending = append(pending, inventory.ReservationLine{
			ProductID:   order.Lines[i].ProductID,
			WarehouseID: warehouseID,
			Quantity:    order.Lines[i].Quantity,
		})
		lineIdx = append(lineIdx, i)
	}

	if len(pending) == 0 {
		return nil
	}

	ref := inventory.Reference{Type: "order", ID: order.ID, Actor: actor}
	if err := s.ledger.ReserveAll(ctx, pending, ref); err != nil {
		return err
	}

	for n, i := range lineIdx {
		whID := pending[n].WarehouseID
		order.Lines[i].WarehouseID = &whID
		if err := s.orders.AssignLineWarehouse(ctx, order.Lines[i].LineID, whID); err != nil {
			logger.Error(ctx, "failed to store line allocation", "line_id", order.Lines[i].LineID, "error", err)
		}
	}
	return nil
}

// ShipResult reports what MarkShippable did.
type ShipResult struct {
	Order     *orders.Order
	Shipments []*shipments.Shipment
	Warnings  []string
}

// MarkShippable moves a confirmed or processing order to shipped and
// dispatches its shipments. An order without shipments gets a fallback
// shipment with a warning rather than failing the dispatch.
func (s *Service) MarkShippable(ctx context.Context, orderID id.ID, actor string) (*ShipResult, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !orders.CanTransition(order.Status, orders.StatusShipped) {
		return nil, apperror.NewInvalidTransition("order", string(order.Status), string(orders.StatusShipped)).
			WithDetail("order_id", orderID.String())
	}

	result := &ShipResult{}

	orderShipments, err := s.shipments.GetByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if len(orderShipments) == 0 {
		fallback, err := s.createFallbackShipment(ctx, order, actor)
		if err != nil {
			return nil, err
		}
		orderShipments = []*shipments.Shipment{fallback}
		result.Warnings = append(result.Warnings,
			"order had no shipment; a fallback shipment was created at dispatch")
		logger.Warn(ctx, "created fallback shipment at dispatch",
			"order_id", orderID,
			"shipment_id", fallback.ID,
		)
	}

	// The order transition and every shipment dispatch commit together:
	// a failed dispatch must not leave a shipped order with pending
	// shipments.
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		updated, err := s.orders.Transition(ctx, orderID, orders.StatusShipped, actor, "")
		if err != nil {
			return err
		}
		result.Order = updated

		result.Shipments = result.Shipments[:0]
		for _, sh := range orderShipments {
			if sh.Status != shipments.StatusPending {
				result.Shipments = append(result.Shipments, sh)
				continue
			}
			dispatched, err := s.shipments.Transition(ctx, sh.ID, shipments.StatusInTransit, actor)
			if err != nil {
				return err
			}
			result.Shipments = append(result.Shipments, dispatched)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// createFallbackShipment builds a shipment for orders that reached
// dispatch without one (legacy rows, manual interventions).
func (s *Service) createFallbackShipment(ctx context.Context, order *orders.Order, actor string) (*shipments.Shipment, error) {
	var warehouseID id.ID
	for _, line := range order.Lines {
		if line.WarehouseID != nil {
			warehouseID = *line.WarehouseID
			break
		}
	}
	if id.IsNil(warehouseID) {
		activeWarehouses, err := s.warehouses.ListActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("list warehouses: %w", err)
		}
		if len(activeWarehouses) == 0 {
			return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "no warehouse available for fallback shipment")
		}
		warehouseID = activeWarehouses[0].ID
	}

	shipment := shipments.NewShipment(order.ID, warehouseID)
	shipment.CreatedBy = actor
	if err := s.shipments.Create(ctx, shipment); err != nil {
		return nil, err
	}
	return shipment, nil
}

// CancelOrder cancels an order while cancellation is still legal and
// returns its reserved stock to the ledger.
func (s *Service) CancelOrder(ctx context.Context, orderID id.ID, actor, note string) (*orders.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.CanCancel() {
		return nil, apperror.NewInvalidTransition("order", string(order.Status), string(orders.StatusCancelled)).
			WithDetail("order_id", orderID.String())
	}

	holdsStock := order.InventoryCommitted()
	ref := inventory.Reference{Type: "order", ID: order.ID, Actor: actor}

	var updated *orders.Order
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		updated, err = s.orders.Transition(ctx, orderID, orders.StatusCancelled, actor, note)
		if err != nil {
			return err
		}

		if holdsStock {
			for _, line := range order.Lines {
				if line.WarehouseID == nil {
					continue
				}
				release := inventory.ReservationLine{
					ProductID:   line.ProductID,
					WarehouseID: *line.WarehouseID,
					Quantity:    line.Quantity,
				}
				if err := s.ledger.Release(ctx, release, ref); err != nil {
					return fmt.Errorf("release line %d: %w", line.LineNo, err)
				}
			}
		}

		return s.emitter.Emit(ctx, events.Event{
			AggregateType: "order",
			AggregateID:   orderID,
			EventType:     events.TypeOrderStatusChanged,
			Payload: events.OrderStatusChangedPayload{
				OrderID: orderID,
				From:    string(order.Status),
				To:      string(orders.StatusCancelled),
				Actor:   actor,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "order cancelled",
		"order_id", orderID,
		"actor", actor,
		"stock_released", holdsStock,
	)
	return updated, nil
}
