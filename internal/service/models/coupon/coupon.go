package coupon

import (
	"time"

	"github.com/dijistore/storefront/internal/service/models/money"
	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountFixed   DiscountType = "fixed"
	DiscountPercent DiscountType = "percent"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Coupon is an admin-managed discount rule. Checkout treats it as
// read-only; only usage records are ever written by the core.
type Coupon struct {
	ID             int64           `json:"id"`
	Code           string          `json:"code"`
	DiscountType   DiscountType    `json:"discountType"`
	DiscountValue  decimal.Decimal `json:"discountValue"`
	Currency       money.Currency  `json:"currency"`
	MinOrderAmount decimal.Decimal `json:"minOrderAmount"`
	MaxUses        *int            `json:"maxUses,omitempty"`
	UsagePerUser   *int            `json:"usagePerUser,omitempty"`
	StartsAt       *time.Time      `json:"startsAt,omitempty"`
	ExpiresAt      *time.Time      `json:"expiresAt,omitempty"`
	Status         Status          `json:"status"`
}

// Usage is the durable proof that a coupon was consumed once by a
// checkout attempt. One row per attempt, never per line.
type Usage struct {
	ID             int64           `json:"id"`
	CouponID       int64           `json:"couponId"`
	UserID         int64           `json:"userId"`
	OrderReference string          `json:"orderReference"`
	OrderID        *int64          `json:"orderId,omitempty"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	Currency       money.Currency  `json:"currency"`
	UsedAt         time.Time       `json:"usedAt"`
}
