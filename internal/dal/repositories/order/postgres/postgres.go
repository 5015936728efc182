package postgresrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/dijistore/storefront/internal/dal/postgres"
	"github.com/dijistore/storefront/internal/service/models/money"
	"github.com/dijistore/storefront/internal/service/models/order"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// OrderDal represents order data access layer model. Monetary columns
// travel as strings to keep numeric precision across the wire.
type OrderDal struct {
	Id                int64     `db:"id"`
	ProductId         int64     `db:"product_id"`
	UserId            int64     `db:"user_id"`
	Quantity          int       `db:"quantity"`
	UnitPrice         string    `db:"unit_price"`
	LineTotal         string    `db:"line_total"`
	Currency          string    `db:"currency"`
	Status            string    `db:"status"`
	SourceChannel     string    `db:"source_channel"`
	ExternalReference string    `db:"external_reference"`
	Metadata          []byte    `db:"metadata"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// ToModel converts OrderDal to service layer Order model.
func (o *OrderDal) ToModel() (*order.Order, error) {
	cur, err := money.ParseCurrency(o.Currency)
	if err != nil {
		return nil, err
	}

	unitPrice, err := decimal.NewFromString(o.UnitPrice)
	if err != nil {
		return nil, fmt.Errorf("invalid unit price %q: %w", o.UnitPrice, err)
	}

	lineTotal, err := decimal.NewFromString(o.LineTotal)
	if err != nil {
		return nil, fmt.Errorf("invalid line total %q: %w", o.LineTotal, err)
	}

	var meta order.Metadata
	if len(o.Metadata) > 0 {
		if err := json.Unmarshal(o.Metadata, &meta); err != nil {
			return nil, fmt.Errorf("invalid order metadata: %w", err)
		}
	}

	return &order.Order{
		ID:                o.Id,
		ProductID:         o.ProductId,
		UserID:            o.UserId,
		Quantity:          o.Quantity,
		UnitPrice:         unitPrice,
		LineTotal:         lineTotal,
		Currency:          cur,
		Status:            order.Status(o.Status),
		SourceChannel:     o.SourceChannel,
		ExternalReference: o.ExternalReference,
		Metadata:          meta,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}, nil
}

// PostgresOrderRepository represents a Postgres order repository.
type PostgresOrderRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewPostgresOrderRepository creates a new Postgres order repository.
func NewPostgresOrderRepository(conn postgres.GenericConn) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

var orderColumns = []string{
	"id",
	"product_id",
	"user_id",
	"quantity",
	"unit_price::text",
	"line_total::text",
	"currency",
	"status",
	"source_channel",
	"external_reference",
	"metadata",
	"created_at",
	"updated_at",
}

// BulkInsert inserts all lines of a checkout attempt and returns them
// with generated ids, in insertion order.
func (r *PostgresOrderRepository) BulkInsert(
	ctx context.Context,
	orders []order.Order,
) ([]order.Order, error) {
	if len(orders) == 0 {
		return []order.Order{}, nil
	}

	builder := r.sb.Insert("orders").
		Columns(
			"product_id",
			"user_id",
			"quantity",
			"unit_price",
			"line_total",
			"currency",
			"status",
			"source_channel",
			"external_reference",
			"metadata",
			"created_at",
			"updated_at",
		)

	for _, o := range orders {
		meta, err := json.Marshal(o.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal order metadata: %w", err)
		}

		builder = builder.Values(
			o.ProductID,
			o.UserID,
			o.Quantity,
			o.UnitPrice.String(),
			o.LineTotal.String(),
			o.Currency.String(),
			string(o.Status),
			o.SourceChannel,
			o.ExternalReference,
			meta,
			pgtype.Timestamptz{Time: o.CreatedAt, Valid: true},
			pgtype.Timestamptz{Time: o.UpdatedAt, Valid: true},
		)
	}

	sql, args, err := builder.
		Suffix("RETURNING " + joinColumns(orderColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk insert orders: %w", err)
	}
	defer rows.Close()

	var result []order.Order
	for rows.Next() {
		model, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *model)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// Query retrieves orders based on filter criteria.
func (r *PostgresOrderRepository) Query(
	ctx context.Context,
	filter *order.QueryOrdersModel,
) ([]order.Order, error) {
	query := r.sb.
		Select(orderColumns...).
		From("orders").
		OrderBy("id ASC")

	if len(filter.Ids) > 0 {
		query = query.Where(sq.Eq{"id": filter.Ids})
	}

	if len(filter.UserIds) > 0 {
		query = query.Where(sq.Eq{"user_id": filter.UserIds})
	}

	if len(filter.References) > 0 {
		query = query.Where(sq.Eq{"external_reference": filter.References})
	}

	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}

	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var result []order.Order
	for rows.Next() {
		model, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *model)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

func scanOrder(scan func(dest ...any) error) (*order.Order, error) {
	var dal OrderDal
	var createdAt, updatedAt pgtype.Timestamptz

	err := scan(
		&dal.Id,
		&dal.ProductId,
		&dal.UserId,
		&dal.Quantity,
		&dal.UnitPrice,
		&dal.LineTotal,
		&dal.Currency,
		&dal.Status,
		&dal.SourceChannel,
		&dal.ExternalReference,
		&dal.Metadata,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	dal.CreatedAt = createdAt.Time
	dal.UpdatedAt = updatedAt.Time

	model, err := dal.ToModel()
	if err != nil {
		return nil, fmt.Errorf("failed to convert order dal to model: %w", err)
	}

	return model, nil
}

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}
