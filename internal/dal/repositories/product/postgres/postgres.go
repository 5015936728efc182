package postgresrepo

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/dijistore/storefront/internal/dal/postgres"
	"github.com/dijistore/storefront/internal/service/models/money"
	"github.com/dijistore/storefront/internal/service/models/product"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ErrProductNotFound is returned when no product matches the given id.
var ErrProductNotFound = errors.New("product not found")

// PostgresProductRepository is the catalog lookup used by the cart.
// Catalog management itself lives outside the core.
type PostgresProductRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewPostgresProductRepository creates a new Postgres product repository.
func NewPostgresProductRepository(conn postgres.GenericConn) *PostgresProductRepository {
	return &PostgresProductRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Find resolves a product id to price, currency and stock status.
func (r *PostgresProductRepository) Find(ctx context.Context, productID int64) (*product.Product, error) {
	sql, args, err := r.sb.
		Select("id", "name", "price::text", "currency", "in_stock").
		From("products").
		Where(sq.Eq{"id": productID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var (
		p           product.Product
		priceStr    string
		currencyStr string
	)
	err = r.conn.QueryRow(ctx, sql, args...).Scan(&p.ID, &p.Name, &priceStr, &currencyStr, &p.InStock)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}

	p.Price, err = decimal.NewFromString(priceStr)
	if err != nil {
		return nil, fmt.Errorf("invalid product price %q: %w", priceStr, err)
	}

	p.Currency, err = money.ParseCurrency(currencyStr)
	if err != nil {
		return nil, err
	}

	return &p, nil
}
