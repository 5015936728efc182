package cartsvc

import (
	"context"
	"errors"
	"time"

	"github.com/dijistore/storefront/internal/dal/interfaces/icartstore"
	"github.com/dijistore/storefront/internal/dal/interfaces/iproductrepo"
	cartrepo "github.com/dijistore/storefront/internal/dal/repositories/cartstate/redis"
	productrepo "github.com/dijistore/storefront/internal/dal/repositories/product/postgres"
	"github.com/dijistore/storefront/internal/service/models/cart"
	"github.com/dijistore/storefront/internal/service/models/coupon"
	"github.com/dijistore/storefront/internal/service/models/money"
	"github.com/dijistore/storefront/internal/service/services/couponsvc"
	"github.com/shopspring/decimal"
)

// ErrProductNotFound is returned when the product id is unknown.
var ErrProductNotFound = errors.New("product not found")

// ErrOutOfStock is returned when the product is not orderable.
var ErrOutOfStock = errors.New("product is out of stock")

// ErrEmptyCart is returned when an operation needs a non-empty cart.
var ErrEmptyCart = errors.New("cart is empty")

// converter is the currency dependency of the cart.
type converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to money.Currency) decimal.Decimal
}

// couponEngine re-evaluates coupons on every snapshot.
type couponEngine interface {
	ApplyCode(ctx context.Context, code string, userID int64, items []cart.Item, currency money.Currency) (*coupon.Coupon, decimal.Decimal, error)
	Recalculate(ctx context.Context, items []cart.Item, currency money.Currency, state *cart.CouponState, userID int64, strict bool) (couponsvc.Result, error)
}

// Service is the per-session cart. Every mutation fully recomputes line
// totals in the cart's active currency; totals are never patched
// incrementally, so a currency or rate change between requests cannot
// leave stale line math behind.
type Service struct {
	store           icartstore.ICartStore
	products        iproductrepo.IProductRepository
	currency        converter
	coupons         couponEngine
	defaultCurrency money.Currency
	now             func() time.Time
}

// option is a function that configures the Service.
type option func(*Service)

// MustNewService creates a new cart Service.
func MustNewService(opts ...option) *Service {
	s := &Service{
		defaultCurrency: money.CurrencyTRY,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// WithCartStore sets the session cart state store.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithCartStore(store icartstore.ICartStore) option {
	return func(s *Service) {
		s.store = store
	}
}

// WithProductRepository sets the catalog lookup.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithProductRepository(products iproductrepo.IProductRepository) option {
	return func(s *Service) {
		s.products = products
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

// WithCouponEngine sets the coupon engine.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithCouponEngine(coupons couponEngine) option {
	return func(s *Service) {
		s.coupons = coupons
	}
}

// WithDefaultCurrency sets the active currency for new carts.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithDefaultCurrency(currency money.Currency) option {
	return func(s *Service) {
		s.defaultCurrency = currency
	}
}

// Add merges qty into an existing line or creates a new one. Quantity
// floors at 1.
func (s *Service) Add(
	ctx context.Context,
	sessionID string,
	userID int64,
	productID int64,
	qty int,
) (cart.Snapshot, error) {
	if qty < 1 {
		qty = 1
	}

	p, err := s.products.Find(ctx, productID)
	if errors.Is(err, productrepo.ErrProductNotFound) {
		return cart.Snapshot{}, ErrProductNotFound
	}
	if err != nil {
		return cart.Snapshot{}, err
	}
	if !p.InStock {
		return cart.Snapshot{}, ErrOutOfStock
	}

	state, err := s.loadOrCreate(ctx, sessionID)
	if err != nil {
		return cart.Snapshot{}, err
	}

	if i := state.FindItem(productID); i >= 0 {
		state.Items[i].Quantity += qty
	} else {
		state.Items = append(state.Items, cart.Item{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: money.New(p.Price, p.Currency),
			Quantity:  qty,
		})
	}

	return s.finalize(ctx, state, userID)
}

// Update replaces a line's quantity; qty <= 0 removes the line.
func (s *Service) Update(
	ctx context.Context,
	sessionID string,
	userID int64,
	productID int64,
	qty int,
) (cart.Snapshot, error) {
	state, err := s.loadOrCreate(ctx, sessionID)
	if err != nil {
		return cart.Snapshot{}, err
	}

	i := state.FindItem(productID)
	if i < 0 {
		return cart.Snapshot{}, ErrProductNotFound
	}

	if qty <= 0 {
		state.Items = append(state.Items[:i], state.Items[i+1:]...)
	} else {
		state.Items[i].Quantity = qty
	}

	return s.finalize(ctx, state, userID)
}

// Remove drops a line from the cart.
func (s *Service) Remove(
	ctx context.Context,
	sessionID string,
	userID int64,
	productID int64,
) (cart.Snapshot, error) {
	state, err := s.loadOrCreate(ctx, sessionID)
	if err != nil {
		return cart.Snapshot{}, err
	}

	if i := state.FindItem(productID); i >= 0 {
		state.Items = append(state.Items[:i], state.Items[i+1:]...)
	}

	return s.finalize(ctx, state, userID)
}

// Clear drops the whole cart, coupon included.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	return s.store.Delete(ctx, sessionID)
}

// Snapshot returns a fresh recalculation of the cart: line totals in
// the active currency and totals after re-evaluating any applied
// coupon. An invalid coupon is cleared, never surfaced, so a cart view
// cannot fail because a coupon expired in the meantime.
func (s *Service) Snapshot(ctx context.Context, sessionID string, userID int64) (cart.Snapshot, error) {
	state, err := s.loadOrCreate(ctx, sessionID)
	if err != nil {
		return cart.Snapshot{}, err
	}

	return s.finalize(ctx, state, userID)
}

// ApplyCoupon validates the code against the current cart and binds it
// to the session and user.
func (s *Service) ApplyCoupon(
	ctx context.Context,
	sessionID string,
	userID int64,
	code string,
) (cart.Snapshot, error) {
	state, err := s.loadOrCreate(ctx, sessionID)
	if err != nil {
		return cart.Snapshot{}, err
	}
	if len(state.Items) == 0 {
		return cart.Snapshot{}, ErrEmptyCart
	}

	s.recompute(ctx, state)

	c, _, err := s.coupons.ApplyCode(ctx, code, userID, state.Items, state.Currency)
	if err != nil {
		return cart.Snapshot{}, err
	}

	state.Coupon = &cart.CouponState{
		CouponID:  c.ID,
		Code:      c.Code,
		UserID:    userID,
		AppliedAt: s.now(),
	}

	return s.finalize(ctx, state, userID)
}

// RemoveCoupon drops the applied coupon from the session.
func (s *Service) RemoveCoupon(ctx context.Context, sessionID string, userID int64) (cart.Snapshot, error) {
	state, err := s.loadOrCreate(ctx, sessionID)
	if err != nil {
		return cart.Snapshot{}, err
	}

	state.Coupon = nil

	return s.finalize(ctx, state, userID)
}

func (s *Service) loadOrCreate(ctx context.Context, sessionID string) (*cart.State, error) {
	state, err := s.store.Get(ctx, sessionID)
	if errors.Is(err, cartrepo.ErrCartNotFound) {
		return &cart.State{
			SessionID: sessionID,
			Currency:  s.defaultCurrency,
			Items:     []cart.Item{},
		}, nil
	}
	if err != nil {
		return nil, err
	}

	return state, nil
}

// recompute rebuilds every line total in the active currency from the
// item's native unit price.
func (s *Service) recompute(ctx context.Context, state *cart.State) {
	for i := range state.Items {
		item := &state.Items[i]
		if item.Quantity < 1 {
			item.Quantity = 1
		}

		unit := s.currency.Convert(ctx, item.UnitPrice.Amount, item.UnitPrice.Currency, state.Currency)
		item.LineTotal = money.New(
			money.Round2(unit.Mul(decimal.NewFromInt(int64(item.Quantity)))),
			state.Currency,
		)
	}
}

// finalize recomputes, re-evaluates the coupon (self-healing), persists
// the state and builds the snapshot.
func (s *Service) finalize(ctx context.Context, state *cart.State, userID int64) (cart.Snapshot, error) {
	s.recompute(ctx, state)

	result, err := s.coupons.Recalculate(ctx, state.Items, state.Currency, state.Coupon, userID, false)
	if err != nil {
		return cart.Snapshot{}, err
	}
	if result.Cleared {
		state.Coupon = nil
	}

	state.UpdatedAt = s.now()
	if err := s.store.Set(ctx, state); err != nil {
		return cart.Snapshot{}, err
	}

	return cart.Snapshot{
		Items:         state.Items,
		Totals:        result.Totals,
		LineDiscounts: result.LineDiscounts,
		Coupon:        state.Coupon,
	}, nil
}
