package couponsvc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dijistore/storefront/internal/dal/interfaces/icouponrepo"
	couponrepo "github.com/dijistore/storefront/internal/dal/repositories/coupon/postgres"
	"github.com/dijistore/storefront/internal/service/models/cart"
	"github.com/dijistore/storefront/internal/service/models/coupon"
	"github.com/dijistore/storefront/internal/service/models/money"
	"github.com/shopspring/decimal"
)

// ErrSessionMismatch is returned in strict mode when the coupon in the
// session was applied by a different user.
var ErrSessionMismatch = errors.New("coupon was applied by a different user")

// ValidationError carries the user-facing rejection message for an
// invalid coupon. Messages are localized the way the storefront shows
// them.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

const (
	msgInvalidCode  = "Geçersiz kupon kodu."
	msgNotStarted   = "Kupon henüz aktif değil."
	msgExpired      = "Kupon süresi doldu."
	msgMaxUses      = "Kupon kullanım limitine ulaştı."
	msgPerUserLimit = "Bu kuponu daha fazla kullanamazsınız."
	msgMinOrder     = "Bu kupon en az %s tutarındaki sepetler için geçerlidir."
	msgNoDiscount   = "Kupon bu sepete indirim sağlamıyor."
)

// converter is the currency dependency of the engine.
type converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to money.Currency) decimal.Decimal
	Format(amount decimal.Decimal, currency money.Currency) string
}

// Service validates coupons against schedule, usage and minimum-order
// rules, computes the discount and distributes it across cart lines.
type Service struct {
	coupons  icouponrepo.ICouponRepository
	currency converter
	now      func() time.Time
}

// option is a function that configures the Service.
type option func(*Service)

// MustNewService creates a new coupon Service.
func MustNewService(opts ...option) *Service {
	s := &Service{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// WithCouponRepository sets the coupon repository.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithCouponRepository(coupons icouponrepo.ICouponRepository) option {
	return func(s *Service) {
		s.coupons = coupons
	}
}

// WithCurrencyConverter sets the currency converter.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithCurrencyConverter(currency converter) option {
	return func(s *Service) {
		s.currency = currency
	}
}

// WithClock overrides the time source, used by tests.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(now func() time.Time) option {
	return func(s *Service) {
		s.now = now
	}
}

// Result is the outcome of re-evaluating a cart against its coupon.
type Result struct {
	Totals        cart.Totals
	Coupon        *coupon.Coupon
	Discount      decimal.Decimal
	LineTotals    []decimal.Decimal
	LineDiscounts []decimal.Decimal
	// Cleared reports that a previously applied coupon was dropped by
	// the non-strict self-healing path.
	Cleared bool
}

// ApplyCode validates a coupon code against the current cart and
// returns the coupon with its computed discount. Strict: any failing
// rule is returned as a ValidationError.
func (s *Service) ApplyCode(
	ctx context.Context,
	code string,
	userID int64,
	items []cart.Item,
	currency money.Currency,
) (*coupon.Coupon, decimal.Decimal, error) {
	c, err := s.coupons.GetByCode(ctx, code)
	if errors.Is(err, couponrepo.ErrCouponNotFound) {
		return nil, decimal.Zero, &ValidationError{Message: msgInvalidCode}
	}
	if err != nil {
		return nil, decimal.Zero, err
	}

	subtotal := sumSubtotal(items)

	if err := s.validate(ctx, c, userID, subtotal, currency); err != nil {
		return nil, decimal.Zero, err
	}

	discount := s.computeDiscount(ctx, c, subtotal, currency)
	if !discount.IsPositive() {
		return nil, decimal.Zero, &ValidationError{Message: msgNoDiscount}
	}

	return c, discount, nil
}

// Recalculate re-evaluates the cart's applied coupon against fresh line
// totals. In strict mode (checkout) any failure is surfaced and must
// abort the attempt; in non-strict mode (every cart read) an invalid
// coupon is cleared and the cart continues undiscounted.
func (s *Service) Recalculate(
	ctx context.Context,
	items []cart.Item,
	currency money.Currency,
	state *cart.CouponState,
	userID int64,
	strict bool,
) (Result, error) {
	result := baseResult(items, currency)

	if state == nil {
		return result, nil
	}

	if state.UserID != userID {
		if strict {
			return Result{}, ErrSessionMismatch
		}
		result.Cleared = true

		return result, nil
	}

	c, err := s.coupons.GetByCode(ctx, state.Code)
	if err != nil || c.ID != state.CouponID {
		if err != nil && !errors.Is(err, couponrepo.ErrCouponNotFound) {
			return Result{}, err
		}
		if strict {
			return Result{}, &ValidationError{Message: msgInvalidCode}
		}
		result.Cleared = true

		return result, nil
	}

	subtotal := result.Totals.Subtotal

	if err := s.validate(ctx, c, userID, subtotal, currency); err != nil {
		var vErr *ValidationError
		if !strict && errors.As(err, &vErr) {
			result.Cleared = true

			return result, nil
		}

		return Result{}, err
	}

	discount := s.computeDiscount(ctx, c, subtotal, currency)
	if !discount.IsPositive() {
		if strict {
			return Result{}, &ValidationError{Message: msgNoDiscount}
		}
		result.Cleared = true

		return result, nil
	}

	result.Coupon = c
	result.Discount = discount
	result.LineDiscounts = Distribute(result.LineTotals, subtotal, discount)
	for i := range result.LineTotals {
		result.LineTotals[i] = result.LineTotals[i].Sub(result.LineDiscounts[i])
	}

	result.Totals.Discount = discount
	result.Totals.GrandTotal = grandTotal(subtotal, discount)
	result.Totals.AppliedCoupon = c.Code

	return result, nil
}

// validate runs the eligibility rules in order; the first failing rule
// short-circuits with its specific message.
func (s *Service) validate(
	ctx context.Context,
	c *coupon.Coupon,
	userID int64,
	subtotal decimal.Decimal,
	currency money.Currency,
) error {
	if c.Status != coupon.StatusActive {
		return &ValidationError{Message: msgInvalidCode}
	}

	now := s.now()

	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return &ValidationError{Message: msgNotStarted}
	}

	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return &ValidationError{Message: msgExpired}
	}

	if c.MaxUses != nil {
		count, err := s.coupons.CountUsage(ctx, c.ID)
		if err != nil {
			return err
		}
		if count >= *c.MaxUses {
			return &ValidationError{Message: msgMaxUses}
		}
	}

	if c.UsagePerUser != nil {
		count, err := s.coupons.CountUsageByUser(ctx, c.ID, userID)
		if err != nil {
			return err
		}
		if count >= *c.UsagePerUser {
			return &ValidationError{Message: msgPerUserLimit}
		}
	}

	if c.MinOrderAmount.IsPositive() {
		subtotalInCouponCurrency := s.currency.Convert(ctx, subtotal, currency, c.Currency)
		if !money.GTE(subtotalInCouponCurrency, c.MinOrderAmount) {
			return &ValidationError{
				Message: fmt.Sprintf(msgMinOrder, s.currency.Format(c.MinOrderAmount, c.Currency)),
			}
		}
	}

	return nil
}

// computeDiscount returns the discount in the cart currency, rounded
// to two decimals. Fixed coupons clamp to the subtotal; percent
// coupons clamp the rate to [0,100].
func (s *Service) computeDiscount(
	ctx context.Context,
	c *coupon.Coupon,
	subtotal decimal.Decimal,
	currency money.Currency,
) decimal.Decimal {
	switch c.DiscountType {
	case coupon.DiscountFixed:
		value := s.currency.Convert(ctx, c.DiscountValue, c.Currency, currency)
		if value.GreaterThan(subtotal) {
			value = subtotal
		}

		return money.Round2(value)
	case coupon.DiscountPercent:
		rate := c.DiscountValue
		if rate.IsNegative() {
			rate = decimal.Zero
		}
		if rate.GreaterThan(decimal.NewFromInt(100)) {
			rate = decimal.NewFromInt(100)
		}

		return money.Round2(subtotal.Mul(rate).Div(decimal.NewFromInt(100)))
	default:
		return decimal.Zero
	}
}

// Distribute allocates a total discount across lines proportionally to
// their subtotals. Each share is rounded to two decimals; the last
// nonzero line absorbs the rounding remainder so the shares sum to the
// total exactly. Zero-subtotal lines receive zero.
func Distribute(lineSubtotals []decimal.Decimal, subtotal, discount decimal.Decimal) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(lineSubtotals))
	for i := range shares {
		shares[i] = decimal.Zero
	}

	if !subtotal.IsPositive() || !discount.IsPositive() {
		return shares
	}

	last := -1
	for i, ls := range lineSubtotals {
		if ls.IsPositive() {
			last = i
		}
	}
	if last == -1 {
		return shares
	}

	allocated := decimal.Zero
	for i, ls := range lineSubtotals {
		if !ls.IsPositive() {
			continue
		}
		if i == last {
			shares[i] = discount.Sub(allocated)

			continue
		}

		share := money.Round2(discount.Mul(ls).Div(subtotal))
		shares[i] = share
		allocated = allocated.Add(share)
	}

	return shares
}

func sumSubtotal(items []cart.Item) decimal.Decimal {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal.Amount)
	}

	return subtotal
}

func grandTotal(subtotal, discount decimal.Decimal) decimal.Decimal {
	total := subtotal.Sub(discount)
	if total.IsNegative() {
		return decimal.Zero
	}

	return total
}

func baseResult(items []cart.Item, currency money.Currency) Result {
	subtotal := decimal.Zero
	quantity := 0
	lineTotals := make([]decimal.Decimal, len(items))

	for i, item := range items {
		lineTotals[i] = item.LineTotal.Amount
		subtotal = subtotal.Add(item.LineTotal.Amount)
		quantity += item.Quantity
	}

	lineDiscounts := make([]decimal.Decimal, len(items))
	for i := range lineDiscounts {
		lineDiscounts[i] = decimal.Zero
	}

	return Result{
		Totals: cart.Totals{
			Currency:      currency,
			TotalItems:    len(items),
			TotalQuantity: quantity,
			Subtotal:      subtotal,
			Discount:      decimal.Zero,
			GrandTotal:    subtotal,
		},
		Discount:      decimal.Zero,
		LineTotals:    lineTotals,
		LineDiscounts: lineDiscounts,
	}
}
