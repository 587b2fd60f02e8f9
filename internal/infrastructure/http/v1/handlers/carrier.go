package handlers

import (
	"stockpilot/internal/domain"
	"stockpilot/internal/domain/catalogs/carrier"
	"stockpilot/internal/infrastructure/http/v1/dto"
)

// CarrierHandler handles carrier catalog endpoints.
type CarrierHandler = CatalogHandler[*carrier.Carrier, dto.CreateCarrierRequest, dto.UpdateCarrierRequest]

// NewCarrierHandler creates a carrier handler.
func NewCarrierHandler(base *BaseHandler, service *domain.CatalogService[*carrier.Carrier]) *CarrierHandler {
	return NewCatalogHandler(base, CatalogHandlerConfig[*carrier.Carrier, dto.CreateCarrierRequest, dto.UpdateCarrierRequest]{
		Service:    service,
		EntityName: "carrier",
		MapCreateDTO: func(d dto.CreateCarrierRequest) *carrier.Carrier {
			return d.ToEntity()
		},
		MapUpdateDTO: func(d dto.UpdateCarrierRequest, existing *carrier.Carrier) *carrier.Carrier {
			d.ApplyTo(existing)
			return existing
		},
		MapToDTO: func(cr *carrier.Carrier) any {
			return dto.FromCarrier(cr)
		},
	})
}
