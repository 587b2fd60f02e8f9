package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"stockpilot/internal/core/apperror"
	"stockpilot/internal/domain/catalogs/product"
	"stockpilot/internal/infrastructure/storage/postgres"
)

const productTable = "cat_products"

// Compile-time check that ProductRepo implements product.Repository.
var _ product.Repository = (*ProductRepo)(nil)

// ProductRepo implements product.Repository.
type ProductRepo struct {
	*BaseCatalogRepo[*product.Product]
}

// NewProductRepo creates a new product repository.
func NewProductRepo(txManager *postgres.TxManager) *ProductRepo {
	return &ProductRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txManager,
			productTable,
			postgres.ExtractDBColumns[product.Product](),
			func() *product.Product { return &product.Product{} },
		),
	}
}

// FindBySKU retrieves a product by SKU.
func (r *ProductRepo) FindBySKU(ctx context.Context, sku string) (*product.Product, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"sku": sku}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1)

	item, err := r.FindOne(ctx, q)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("product", sku)
		}
		return nil, err
	}
	return item, nil
}
