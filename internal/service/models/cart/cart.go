package cart

import (
	"time"

	"github.com/dijistore/storefront/internal/service/models/money"
	"github.com/shopspring/decimal"
)

// Item is one product line in a session cart. UnitPrice keeps the
// product's native currency; LineTotal is always recomputed in the
// cart's active currency and never persisted.
type Item struct {
	ProductID int64       `json:"productId"`
	Name      string      `json:"name"`
	UnitPrice money.Money `json:"unitPrice"`
	Quantity  int         `json:"quantity"`
	LineTotal money.Money `json:"lineTotal"`
}

// CouponState binds an applied coupon to the session and the user who
// applied it. A coupon applied by one user is never honored for another.
type CouponState struct {
	CouponID  int64     `json:"couponId"`
	Code      string    `json:"code"`
	UserID    int64     `json:"userId"`
	AppliedAt time.Time `json:"appliedAt"`
}

// State is the mutable per-session cart. It is an ephemeral session
// resource: lost on session expiry, never the source of order data.
type State struct {
	SessionID string         `json:"sessionId"`
	Currency  money.Currency `json:"currency"`
	Items     []Item         `json:"items"`
	Coupon    *CouponState   `json:"coupon,omitempty"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// FindItem returns the index of the line for productID, or -1.
func (s *State) FindItem(productID int64) int {
	for i := range s.Items {
		if s.Items[i].ProductID == productID {
			return i
		}
	}

	return -1
}

// Totals is the computed money view of a cart.
type Totals struct {
	Currency      money.Currency  `json:"currency"`
	TotalItems    int             `json:"totalItems"`
	TotalQuantity int             `json:"totalQuantity"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	GrandTotal    decimal.Decimal `json:"grandTotal"`
	AppliedCoupon string          `json:"appliedCoupon,omitempty"`
}

// Snapshot is a fully priced view of a cart: items with line totals in
// the active currency, aggregate totals after coupon evaluation, and
// the per-line discount split used at checkout.
type Snapshot struct {
	Items         []Item            `json:"items"`
	Totals        Totals            `json:"totals"`
	LineDiscounts []decimal.Decimal `json:"-"`
	Coupon        *CouponState      `json:"-"`
}
