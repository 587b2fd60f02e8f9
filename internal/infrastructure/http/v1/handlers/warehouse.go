package handlers

import (
	"stockpilot/internal/domain"
	"stockpilot/internal/domain/catalogs/warehouse"
	"stockpilot/internal/infrastructure/http/v1/dto"
)

// WarehouseHandler handles warehouse catalog endpoints.
type WarehouseHandler = CatalogHandler[*warehouse.Warehouse, dto.CreateWarehouseRequest, dto.UpdateWarehouseRequest]

// NewWarehouseHandler creates a warehouse handler.
func NewWarehouseHandler(base *BaseHandler, service *domain.CatalogService[*warehouse.Warehouse]) *WarehouseHandler {
	return NewCatalogHandler(base, CatalogHandlerConfig[*warehouse.Warehouse, dto.CreateWarehouseRequest, dto.UpdateWarehouseRequest]{
		Service:    service,
		EntityName: "warehouse",
		MapCreateDTO: func(d dto.CreateWarehouseRequest) *warehouse.Warehouse {
			return d.ToEntity()
		},
		MapUpdateDTO: func(d dto.UpdateWarehouseRequest, existing *warehouse.Warehouse) *warehouse.Warehouse {
			d.ApplyTo(existing)
			return existing
		},
		MapToDTO: func(wh *warehouse.Warehouse) any {
			return dto.FromWarehouse(wh)
		},
	})
}
