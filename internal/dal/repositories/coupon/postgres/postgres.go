package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/dijistore/storefront/internal/dal/postgres"
	"github.com/dijistore/storefront/internal/service/models/coupon"
	"github.com/dijistore/storefront/internal/service/models/money"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// ErrCouponNotFound is returned when no coupon matches the given code.
var ErrCouponNotFound = errors.New("coupon not found")

// ErrUsageLimitReached is returned when a concurrent checkout consumed
// the last allowed use between validation and recording.
var ErrUsageLimitReached = errors.New("coupon usage limit reached")

const uniqueViolationCode = "23505"

// CouponDal represents coupon data access layer model.
type CouponDal struct {
	Id             int64      `db:"id"`
	Code           string     `db:"code"`
	DiscountType   string     `db:"discount_type"`
	DiscountValue  string     `db:"discount_value"`
	Currency       string     `db:"currency"`
	MinOrderAmount string     `db:"min_order_amount"`
	MaxUses        *int       `db:"max_uses"`
	UsagePerUser   *int       `db:"usage_per_user"`
	StartsAt       *time.Time `db:"starts_at"`
	ExpiresAt      *time.Time `db:"expires_at"`
	Status         string     `db:"status"`
}

// ToModel converts CouponDal to service layer Coupon model.
func (c *CouponDal) ToModel() (*coupon.Coupon, error) {
	cur, err := money.ParseCurrency(c.Currency)
	if err != nil {
		return nil, err
	}

	value, err := decimal.NewFromString(c.DiscountValue)
	if err != nil {
		return nil, fmt.Errorf("invalid discount value %q: %w", c.DiscountValue, err)
	}

	minOrder, err := decimal.NewFromString(c.MinOrderAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid min order amount %q: %w", c.MinOrderAmount, err)
	}

	return &coupon.Coupon{
		ID:             c.Id,
		Code:           c.Code,
		DiscountType:   coupon.DiscountType(c.DiscountType),
		DiscountValue:  value,
		Currency:       cur,
		MinOrderAmount: minOrder,
		MaxUses:        c.MaxUses,
		UsagePerUser:   c.UsagePerUser,
		StartsAt:       c.StartsAt,
		ExpiresAt:      c.ExpiresAt,
		Status:         coupon.Status(c.Status),
	}, nil
}

// PostgresCouponRepository represents a Postgres coupon repository.
type PostgresCouponRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewPostgresCouponRepository creates a new Postgres coupon repository.
func NewPostgresCouponRepository(conn postgres.GenericConn) *PostgresCouponRepository {
	return &PostgresCouponRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// GetByCode looks a coupon up by its case-insensitive code.
func (r *PostgresCouponRepository) GetByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	sql, args, err := r.sb.
		Select(
			"id",
			"code",
			"discount_type",
			"discount_value::text",
			"currency",
			"min_order_amount::text",
			"max_uses",
			"usage_per_user",
			"starts_at",
			"expires_at",
			"status",
		).
		From("coupons").
		Where(sq.Expr("lower(code) = lower(?)", code)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var dal CouponDal
	err = r.conn.QueryRow(ctx, sql, args...).Scan(
		&dal.Id,
		&dal.Code,
		&dal.DiscountType,
		&dal.DiscountValue,
		&dal.Currency,
		&dal.MinOrderAmount,
		&dal.MaxUses,
		&dal.UsagePerUser,
		&dal.StartsAt,
		&dal.ExpiresAt,
		&dal.Status,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCouponNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query coupon: %w", err)
	}

	return dal.ToModel()
}

// CountUsage returns the number of usage records for a coupon.
func (r *PostgresCouponRepository) CountUsage(ctx context.Context, couponID int64) (int, error) {
	return r.countUsage(ctx, sq.Eq{"coupon_id": couponID})
}

// CountUsageByUser returns the number of usage records one user created
// for a coupon.
func (r *PostgresCouponRepository) CountUsageByUser(ctx context.Context, couponID, userID int64) (int, error) {
	return r.countUsage(ctx, sq.Eq{"coupon_id": couponID, "user_id": userID})
}

func (r *PostgresCouponRepository) countUsage(ctx context.Context, where sq.Eq) (int, error) {
	sql, args, err := r.sb.
		Select("count(*)").
		From("coupon_usages").
		Where(where).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}

	var count int
	if err := r.conn.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count coupon usage: %w", err)
	}

	return count, nil
}

// RecordUsage inserts exactly one usage record for a checkout attempt.
// The coupon row is locked first so that the limit re-check and the
// insert cannot interleave with a concurrent checkout; a unique index
// on (coupon_id, user_id) backs the usage_per_user = 1 case.
func (r *PostgresCouponRepository) RecordUsage(
	ctx context.Context,
	usage coupon.Usage,
	maxUses, usagePerUser *int,
) (coupon.Usage, error) {
	var lockedID int64
	err := r.conn.QueryRow(ctx,
		`SELECT id FROM coupons WHERE id = $1 FOR UPDATE`,
		usage.CouponID,
	).Scan(&lockedID)
	if err != nil {
		return coupon.Usage{}, fmt.Errorf("failed to lock coupon row: %w", err)
	}

	if maxUses != nil {
		count, err := r.CountUsage(ctx, usage.CouponID)
		if err != nil {
			return coupon.Usage{}, err
		}
		if count >= *maxUses {
			return coupon.Usage{}, ErrUsageLimitReached
		}
	}

	if usagePerUser != nil {
		count, err := r.CountUsageByUser(ctx, usage.CouponID, usage.UserID)
		if err != nil {
			return coupon.Usage{}, err
		}
		if count >= *usagePerUser {
			return coupon.Usage{}, ErrUsageLimitReached
		}
	}

	// single_use rows are additionally guarded by a partial unique
	// index on (coupon_id, user_id).
	singleUse := usagePerUser != nil && *usagePerUser == 1

	sql, args, err := r.sb.
		Insert("coupon_usages").
		Columns(
			"coupon_id",
			"user_id",
			"order_reference",
			"order_id",
			"discount_amount",
			"currency",
			"single_use",
			"used_at",
		).
		Values(
			usage.CouponID,
			usage.UserID,
			usage.OrderReference,
			usage.OrderID,
			usage.DiscountAmount.String(),
			usage.Currency.String(),
			singleUse,
			pgtype.Timestamptz{Time: usage.UsedAt, Valid: true},
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return coupon.Usage{}, fmt.Errorf("failed to build insert query: %w", err)
	}

	if err := r.conn.QueryRow(ctx, sql, args...).Scan(&usage.ID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return coupon.Usage{}, ErrUsageLimitReached
		}

		return coupon.Usage{}, fmt.Errorf("failed to insert coupon usage: %w", err)
	}

	return usage, nil
}
