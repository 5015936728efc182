package product

import (
	"github.com/dijistore/storefront/internal/service/models/money"
	"github.com/shopspring/decimal"
)

// Product is the catalog read model consumed by the cart. The catalog
// itself (admin CRUD, stock management) lives outside the core.
type Product struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Currency money.Currency  `json:"currency"`
	InStock  bool            `json:"inStock"`
}
