package catalog_repo

import (
	"stockpilot/internal/domain/catalogs/carrier"
	"stockpilot/internal/infrastructure/storage/postgres"
)

const carrierTable = "cat_carriers"

// Compile-time check that CarrierRepo implements carrier.Repository.
var _ carrier.Repository = (*CarrierRepo)(nil)

// CarrierRepo implements carrier.Repository.
type CarrierRepo struct {
	*BaseCatalogRepo[*carrier.Carrier]
}

// NewCarrierRepo creates a new carrier repository.
func NewCarrierRepo(txManager *postgres.TxManager) *CarrierRepo {
	return &CarrierRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txManager,
			carrierTable,
			postgres.ExtractDBColumns[carrier.Carrier](),
			func() *carrier.Carrier { return &carrier.Carrier{} },
		),
	}
}
