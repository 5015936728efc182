package balance

import (
	"time"

	"github.com/dijistore/storefront/internal/service/models/money"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TypeCredit TransactionType = "credit"
	TypeDebit  TransactionType = "debit"
)

// Transaction is an append-only ledger entry. The balance column on the
// user row is a cached running total kept consistent with this ledger
// inside the same database transaction.
type Transaction struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"userId"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    money.Currency  `json:"currency"`
	Type        TransactionType `json:"type"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"createdAt"`
}
