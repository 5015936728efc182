package iproductrepo

import (
	"context"

	"github.com/dijistore/storefront/internal/service/models/product"
)

// IProductRepository is the narrow catalog lookup the cart consumes.
type IProductRepository interface {
	Find(ctx context.Context, productID int64) (*product.Product, error)
}
