package order

import (
	"time"

	"github.com/dijistore/storefront/internal/service/models/money"
	"github.com/shopspring/decimal"
)

type Status string

const (
	// StatusPending marks orders awaiting deferred settlement
	// (card, eft, crypto).
	StatusPending Status = "pending"
	// StatusPaid marks orders settled from the user balance.
	StatusPaid      Status = "paid"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Metadata is the audit snapshot persisted with every order line. It is
// written once at checkout commit and is not re-derivable later from
// mutable catalog or coupon state.
type Metadata struct {
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Quantity   int             `json:"quantity"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	Total      decimal.Decimal `json:"total"`
	CouponCode string          `json:"couponCode,omitempty"`
}

// Order is one persisted cart line of a checkout attempt. All lines of
// one attempt share the same ExternalReference. Immutable after commit
// except for status transitions.
type Order struct {
	ID                int64           `json:"id"`
	ProductID         int64           `json:"productId"`
	UserID            int64           `json:"userId"`
	Quantity          int             `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unitPrice"`
	LineTotal         decimal.Decimal `json:"lineTotal"`
	Currency          money.Currency  `json:"currency"`
	Status            Status          `json:"status"`
	SourceChannel     string          `json:"sourceChannel"`
	ExternalReference string          `json:"externalReference"`
	Metadata          Metadata        `json:"metadata"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}
