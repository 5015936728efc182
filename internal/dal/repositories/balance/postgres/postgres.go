package postgresrepo

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/dijistore/storefront/internal/dal/postgres"
	"github.com/dijistore/storefront/internal/service/models/balance"
	"github.com/dijistore/storefront/internal/service/models/money"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// ErrUserNotFound is returned when the user row does not exist.
var ErrUserNotFound = errors.New("user not found")

// PostgresBalanceRepository represents a Postgres balance repository.
type PostgresBalanceRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewPostgresBalanceRepository creates a new Postgres balance repository.
func NewPostgresBalanceRepository(conn postgres.GenericConn) *PostgresBalanceRepository {
	return &PostgresBalanceRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// BalanceForUpdate reads the user's cached balance under FOR UPDATE.
// Concurrent balance checkouts of the same user serialize on this row
// lock across all server processes.
func (r *PostgresBalanceRepository) BalanceForUpdate(
	ctx context.Context,
	userID int64,
) (decimal.Decimal, money.Currency, error) {
	var amountStr, currencyStr string
	err := r.conn.QueryRow(ctx,
		`SELECT balance::text, balance_currency FROM users WHERE id = $1 FOR UPDATE`,
		userID,
	).Scan(&amountStr, &currencyStr)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, "", ErrUserNotFound
	}
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("failed to lock user balance: %w", err)
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("invalid balance %q: %w", amountStr, err)
	}

	cur, err := money.ParseCurrency(currencyStr)
	if err != nil {
		return decimal.Zero, "", err
	}

	return amount, cur, nil
}

// Debit appends a ledger entry and decrements the cached balance. Both
// statements must run inside the same checkout transaction so the
// ledger and the cached total never diverge.
func (r *PostgresBalanceRepository) Debit(ctx context.Context, entry balance.Transaction) error {
	sql, args, err := r.sb.
		Insert("balance_transactions").
		Columns("user_id", "amount", "currency", "type", "description", "created_at").
		Values(
			entry.UserID,
			entry.Amount.String(),
			entry.Currency.String(),
			string(balance.TypeDebit),
			entry.Description,
			pgtype.Timestamptz{Time: entry.CreatedAt, Valid: true},
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	tag, err := r.conn.Exec(ctx,
		`UPDATE users SET balance = balance - $2 WHERE id = $1`,
		entry.UserID,
		entry.Amount.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to decrement balance: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return ErrUserNotFound
	}

	return nil
}
