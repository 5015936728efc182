package uow

import (
	"context"

	"github.com/dijistore/storefront/internal/dal/interfaces/ibalancerepo"
	"github.com/dijistore/storefront/internal/dal/interfaces/icouponrepo"
	"github.com/dijistore/storefront/internal/dal/interfaces/iorderrepo"
	"github.com/dijistore/storefront/internal/dal/interfaces/ioutboxrepo"
	"github.com/dijistore/storefront/internal/dal/postgres"
	balancerepo "github.com/dijistore/storefront/internal/dal/repositories/balance/postgres"
	couponrepo "github.com/dijistore/storefront/internal/dal/repositories/coupon/postgres"
	orderrepo "github.com/dijistore/storefront/internal/dal/repositories/order/postgres"
	outboxrepo "github.com/dijistore/storefront/internal/dal/repositories/outbox/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UnitOfWork groups the repositories touched by one checkout attempt
// behind a single database transaction. Until Begin is called the
// repositories run against the pool directly.
type UnitOfWork struct {
	pool *pgxpool.Pool
	tx   pgx.Tx

	orderRepo   iorderrepo.IOrderRepository
	couponRepo  icouponrepo.ICouponRepository
	balanceRepo ibalancerepo.IBalanceRepository
	outboxRepo  ioutboxrepo.IOutboxRepository
}

// NewUnitOfWork creates a unit of work bound to the connection pool.
func NewUnitOfWork(client *postgres.Client) *UnitOfWork {
	u := &UnitOfWork{pool: client.Pool()}
	u.bind(client.Pool())

	return u
}

func (u *UnitOfWork) bind(conn postgres.GenericConn) {
	u.orderRepo = orderrepo.NewPostgresOrderRepository(conn)
	u.couponRepo = couponrepo.NewPostgresCouponRepository(conn)
	u.balanceRepo = balancerepo.NewPostgresBalanceRepository(conn)
	u.outboxRepo = outboxrepo.NewPostgresOutboxRepository(conn)
}

func (u *UnitOfWork) OrderRepository() iorderrepo.IOrderRepository {
	return u.orderRepo
}

func (u *UnitOfWork) CouponRepository() icouponrepo.ICouponRepository {
	return u.couponRepo
}

func (u *UnitOfWork) BalanceRepository() ibalancerepo.IBalanceRepository {
	return u.balanceRepo
}

func (u *UnitOfWork) OutboxRepository() ioutboxrepo.IOutboxRepository {
	return u.outboxRepo
}

// Begin opens a transaction and rebinds all repositories to it.
func (u *UnitOfWork) Begin(ctx context.Context) error {
	tx, err := u.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}

	u.tx = tx
	u.bind(tx)

	return nil
}

func (u *UnitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Commit(ctx)
	u.tx = nil

	return err
}

// Rollback is a no-op after Commit, so it is safe to defer.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Rollback(ctx)
	u.tx = nil

	return err
}
