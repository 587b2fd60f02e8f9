package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockpilot/internal/core/id"
	"stockpilot/internal/domain/shipments"
	"stockpilot/internal/infrastructure/storage/postgres"
)

const shipmentTable = "doc_shipments"

// Compile-time check that ShipmentRepo implements shipments.Repository.
var _ shipments.Repository = (*ShipmentRepo)(nil)

// ShipmentRepo implements shipments.Repository.
type ShipmentRepo struct {
	*BaseDocumentRepo[*shipments.Shipment]
	txManager *postgres.TxManager
}

// NewShipmentRepo creates a new shipment repository.
func NewShipmentRepo(txManager *postgres.TxManager) *ShipmentRepo {
	return &ShipmentRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			shipmentTable,
			postgres.ExtractDBColumns[shipments.Shipment](),
			func() *shipments.Shipment { return &shipments.Shipment{} },
		),
		txManager: txManager,
	}
}

// GetByID retrieves a shipment.
func (r *ShipmentRepo) GetByID(ctx context.Context, shipmentID id.ID) (*shipments.Shipment, error) {
	return r.getHeader(ctx, "shipment", shipmentID)
}

// GetByOrder retrieves all shipments for an order, oldest first.
func (r *ShipmentRepo) GetByOrder(ctx context.Context, orderID id.ID) ([]*shipments.Shipment, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("created_at ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	items := make([]*shipments.Shipment, 0)
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("get shipments by order: %w", err)
	}

	return items, nil
}

// UpdateStatus performs the conditional transition checked by affected-row count.
func (r *ShipmentRepo) UpdateStatus(ctx context.Context, shipmentID id.ID, from, to shipments.Status) error {
	return r.updateStatus(ctx, "shipment", shipmentID, string(from), string(to))
}

// SetCarrier assigns a carrier before dispatch.
func (r *ShipmentRepo) SetCarrier(ctx context.Context, shipmentID, carrierID id.ID) error {
	return r.setFields(ctx, "shipment", shipmentID, map[string]any{
		"carrier_id": carrierID,
	})
}
