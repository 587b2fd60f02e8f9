package handlers

import (
	"stockpilot/internal/domain"
	"stockpilot/internal/domain/catalogs/product"
	"stockpilot/internal/infrastructure/http/v1/dto"
)

// ProductHandler handles product catalog endpoints.
type ProductHandler = CatalogHandler[*product.Product, dto.CreateProductRequest, dto.UpdateProductRequest]

// NewProductHandler creates a product handler.
func NewProductHandler(base *BaseHandler, service *domain.CatalogService[*product.Product]) *ProductHandler {
	return NewCatalogHandler(base, CatalogHandlerConfig[*product.Product, dto.CreateProductRequest, dto.UpdateProductRequest]{
		Service:    service,
		EntityName: "product",
		MapCreateDTO: func(d dto.CreateProductRequest) *product.Product {
			return d.ToEntity()
		},
		MapUpdateDTO: func(d dto.UpdateProductRequest, existing *product.Product) *product.Product {
			d.ApplyTo(existing)
			return existing
		},
		MapToDTO: func(p *product.Product) any {
			return dto.FromProduct(p)
		},
	})
}
