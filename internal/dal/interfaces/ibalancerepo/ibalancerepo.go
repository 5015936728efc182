package ibalancerepo

import (
	"context"

	"github.com/dijistore/storefront/internal/service/models/balance"
	"github.com/dijistore/storefront/internal/service/models/money"
	"github.com/shopspring/decimal"
)

// IBalanceRepository is an interface for user balance postgres repository.
type IBalanceRepository interface {
	// BalanceForUpdate reads the user's cached balance under a row
	// lock, serializing concurrent balance checkouts of the same user.
	BalanceForUpdate(ctx context.Context, userID int64) (decimal.Decimal, money.Currency, error)

	// Debit appends a ledger entry and decrements the cached balance
	// in one statement pair; must run inside the checkout transaction.
	Debit(ctx context.Context, entry balance.Transaction) error
}
