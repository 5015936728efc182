package checkoutsvc

import (
	"context"
	"testing"
	"time"

	"github.com/dijistore/storefront/internal/dal/interfaces/ibalancerepo"
	"github.com/dijistore/storefront/internal/dal/interfaces/icouponrepo"
	"github.com/dijistore/storefront/internal/dal/interfaces/iorderrepo"
	"github.com/dijistore/storefront/internal/dal/interfaces/ioutboxrepo"
	couponrepo "github.com/dijistore/storefront/internal/dal/repositories/coupon/postgres"
	"github.com/dijistore/storefront/internal/service/models/balance"
	"github.com/dijistore/storefront/internal/service/models/cart"
	"github.com/dijistore/storefront/internal/service/models/coupon"
	"github.com/dijistore/storefront/internal/service/models/money"
	"github.com/dijistore/storefront/internal/service/models/order"
	"github.com/dijistore/storefront/internal/service/models/outbox"
	"github.com/dijistore/storefront/internal/service/services/couponsvc"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

type fakeCart struct {
	snap    cart.Snapshot
	err     error
	cleared bool
}

func (f *fakeCart) Snapshot(_ context.Context, _ string, _ int64) (cart.Snapshot, error) {
	return f.snap, f.err
}

func (f *fakeCart) Clear(_ context.Context, _ string) error {
	f.cleared = true

	return nil
}

type fakeCoupons struct {
	result couponsvc.Result
	err    error
}

func (f *fakeCoupons) Recalculate(
	_ context.Context,
	_ []cart.Item,
	_ money.Currency,
	_ *cart.CouponState,
	_ int64,
	strict bool,
) (couponsvc.Result, error) {
	if !strict {
		panic("checkout must recalculate in strict mode")
	}

	return f.result, f.err
}

type fakeOrderRepo struct {
	inserted []order.Order
	err      error
}

func (f *fakeOrderRepo) BulkInsert(_ context.Context, orders []order.Order) ([]order.Order, error) {
	if f.err != nil {
		return nil, f.err
	}

	out := make([]order.Order, len(orders))
	for i, o := range orders {
		o.ID = int64(101 + i)
		out[i] = o
	}
	f.inserted = append(f.inserted, out...)

	return out, nil
}

func (f *fakeOrderRepo) Query(_ context.Context, _ *order.QueryOrdersModel) ([]order.Order, error) {
	return nil, nil
}

type fakeCouponRepo struct {
	usages []coupon.Usage
	err    error
}

func (f *fakeCouponRepo) GetByCode(_ context.Context, _ string) (*coupon.Coupon, error) {
	return nil, couponrepo.ErrCouponNotFound
}

func (f *fakeCouponRepo) CountUsage(_ context.Context, _ int64) (int, error) {
	return 0, nil
}

func (f *fakeCouponRepo) CountUsageByUser(_ context.Context, _, _ int64) (int, error) {
	return 0, nil
}

func (f *fakeCouponRepo) RecordUsage(_ context.Context, usage coupon.Usage, _, _ *int) (coupon.Usage, error) {
	if f.err != nil {
		return coupon.Usage{}, f.err
	}

	usage.ID = int64(len(f.usages) + 1)
	f.usages = append(f.usages, usage)

	return usage, nil
}

type fakeBalanceRepo struct {
	available decimal.Decimal
	currency  money.Currency
	locked    bool
	debits    []balance.Transaction
}

func (f *fakeBalanceRepo) BalanceForUpdate(_ context.Context, _ int64) (decimal.Decimal, money.Currency, error) {
	f.locked = true

	return f.available, f.currency, nil
}

func (f *fakeBalanceRepo) Debit(_ context.Context, entry balance.Transaction) error {
	f.debits = append(f.debits, entry)

	return nil
}

type fakeOutboxRepo struct {
	messages []outbox.Message
}

func (f *fakeOutboxRepo) Insert(_ context.Context, msg outbox.Message) error {
	f.messages = append(f.messages, msg)

	return nil
}

func (f *fakeOutboxRepo) GetPendingMessages(_ context.Context, _ int) ([]outbox.Message, error) {
	return nil, nil
}

func (f *fakeOutboxRepo) Delete(_ context.Context, _ int64) error {
	return nil
}

func (f *fakeOutboxRepo) UpdateRetry(_ context.Context, _ int64, _ int, _ string, _ time.Time) error {
	return nil
}

type fakeUOW struct {
	orders   *fakeOrderRepo
	coupons  *fakeCouponRepo
	balances *fakeBalanceRepo
	outbox   *fakeOutboxRepo

	begun      bool
	committed  bool
	rolledBack bool
}

func newFakeUOW() *fakeUOW {
	return &fakeUOW{
		orders:   &fakeOrderRepo{},
		coupons:  &fakeCouponRepo{},
		balances: &fakeBalanceRepo{available: decimal.RequireFromString("1000"), currency: money.CurrencyTRY},
		outbox:   &fakeOutboxRepo{},
	}
}

func (f *fakeUOW) Begin(_ context.Context) error {
	f.begun = true

	return nil
}

func (f *fakeUOW) Commit(_ context.Context) error {
	f.committed = true

	return nil
}

func (f *fakeUOW) Rollback(_ context.Context) error {
	f.rolledBack = true

	return nil
}

func (f *fakeUOW) OrderRepository() iorderrepo.IOrderRepository       { return f.orders }
func (f *fakeUOW) CouponRepository() icouponrepo.ICouponRepository    { return f.coupons }
func (f *fakeUOW) BalanceRepository() ibalancerepo.IBalanceRepository { return f.balances }
func (f *fakeUOW) OutboxRepository() ioutboxrepo.IOutboxRepository    { return f.outbox }

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testSnapshot() cart.Snapshot {
	return cart.Snapshot{
		Items: []cart.Item{
			{
				ProductID: 1,
				Name:      "Oyun Kodu",
				UnitPrice: money.New(dec("50.00"), money.CurrencyTRY),
				Quantity:  1,
				LineTotal: money.New(dec("50.00"), money.CurrencyTRY),
			},
			{
				ProductID: 2,
				Name:      "Hediye Kartı",
				UnitPrice: money.New(dec("25.00"), money.CurrencyTRY),
				Quantity:  2,
				LineTotal: money.New(dec("50.00"), money.CurrencyTRY),
			},
		},
		Totals: cart.Totals{
			Currency:      money.CurrencyTRY,
			TotalItems:    2,
			TotalQuantity: 3,
			Subtotal:      dec("100.00"),
			GrandTotal:    dec("100.00"),
		},
	}
}

func discountedResult() couponsvc.Result {
	return couponsvc.Result{
		Totals: cart.Totals{
			Currency:      money.CurrencyTRY,
			TotalItems:    2,
			TotalQuantity: 3,
			Subtotal:      dec("100.00"),
			Discount:      dec("10.00"),
			GrandTotal:    dec("90.00"),
			AppliedCoupon: "SAVE10",
		},
		Coupon: &coupon.Coupon{
			ID:            1,
			Code:          "SAVE10",
			DiscountType:  coupon.DiscountPercent,
			DiscountValue: dec("10"),
			Currency:      money.CurrencyTRY,
			Status:        coupon.StatusActive,
		},
		Discount:      dec("10.00"),
		LineTotals:    []decimal.Decimal{dec("45.00"), dec("45.00")},
		LineDiscounts: []decimal.Decimal{dec("5.00"), dec("5.00")},
	}
}

func plainResult() couponsvc.Result {
	return couponsvc.Result{
		Totals: cart.Totals{
			Currency:      money.CurrencyTRY,
			TotalItems:    2,
			TotalQuantity: 3,
			Subtotal:      dec("100.00"),
			GrandTotal:    dec("100.00"),
		},
		LineTotals:    []decimal.Decimal{dec("50.00"), dec("50.00")},
		LineDiscounts: []decimal.Decimal{decimal.Zero, decimal.Zero},
	}
}

func newService(carts *fakeCart, coupons *fakeCoupons, work *fakeUOW) *Service {
	svc := MustNewService(
		WithCartService(carts),
		WithCouponEngine(coupons),
		WithReferenceGenerator(func() string { return "ref-123" }),
		WithClock(func() time.Time { return testNow }),
	)
	svc.uowFactory = func() unitOfWork { return work }

	return svc
}

func TestParsePaymentMethod(t *testing.T) {
	for _, valid := range []string{"balance", "card", "eft", "crypto"} {
		method, err := ParsePaymentMethod(valid)
		require.NoError(t, err)
		assert.Equal(t, valid, string(method))
	}

	_, err := ParsePaymentMethod("cash")
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)
}

func TestCheckout_BalanceSuccess(t *testing.T) {
	carts := &fakeCart{snap: testSnapshot()}
	work := newFakeUOW()
	work.balances.available = dec("100.00")
	svc := newService(carts, &fakeCoupons{result: discountedResult()}, work)

	receipt, err := svc.Checkout(context.Background(), "s1", 7, MethodBalance)
	require.NoError(t, err)

	assert.Equal(t, "ref-123", receipt.Reference)
	assert.Equal(t, []int64{101, 102}, receipt.OrderIDs)
	assert.True(t, receipt.GrandTotal.Equal(dec("90.00")))
	assert.Equal(t, "SAVE10", receipt.CouponCode)
	assert.Contains(t, receipt.RedirectURL, "reference=ref-123")
	assert.Contains(t, receipt.RedirectURL, "coupon=SAVE10")
	assert.Contains(t, receipt.RedirectURL, "method=balance")

	require.Len(t, work.orders.inserted, 2)
	for _, o := range work.orders.inserted {
		assert.Equal(t, order.StatusPaid, o.Status)
		assert.Equal(t, "ref-123", o.ExternalReference)
		assert.Equal(t, "SAVE10", o.Metadata.CouponCode)
	}
	assert.True(t, work.orders.inserted[0].LineTotal.Equal(dec("45.00")))
	assert.True(t, work.orders.inserted[0].Metadata.Discount.Equal(dec("5.00")))

	require.Len(t, work.coupons.usages, 1)
	usage := work.coupons.usages[0]
	assert.True(t, usage.DiscountAmount.Equal(dec("10.00")))
	assert.Equal(t, "ref-123", usage.OrderReference)
	require.NotNil(t, usage.OrderID)
	assert.Equal(t, int64(101), *usage.OrderID)

	require.Len(t, work.balances.debits, 1)
	debit := work.balances.debits[0]
	assert.True(t, debit.Amount.Equal(dec("90.00")))
	assert.Equal(t, balance.TypeDebit, debit.Type)
	assert.Equal(t, "Sipariş ödemesi ref-123", debit.Description)

	require.Len(t, work.outbox.messages, 1)
	assert.Equal(t, "storefront.order.created", work.outbox.messages[0].QueueName)

	assert.True(t, work.committed)
	assert.True(t, carts.cleared)
}

func TestCheckout_InsufficientFunds(t *testing.T) {
	carts := &fakeCart{snap: testSnapshot()}
	work := newFakeUOW()
	work.balances.available = dec("50.00")
	svc := newService(carts, &fakeCoupons{result: discountedResult()}, work)

	_, err := svc.Checkout(context.Background(), "s1", 7, MethodBalance)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	assert.True(t, work.balances.locked)
	assert.Empty(t, work.orders.inserted)
	assert.Empty(t, work.coupons.usages)
	assert.Empty(t, work.balances.debits)
	assert.False(t, work.committed)
	assert.True(t, work.rolledBack)
	assert.False(t, carts.cleared)
}

func TestCheckout_ExternalMethodDefersPayment(t *testing.T) {
	carts := &fakeCart{snap: testSnapshot()}
	work := newFakeUOW()
	svc := newService(carts, &fakeCoupons{result: plainResult()}, work)

	receipt, err := svc.Checkout(context.Background(), "s1", 7, MethodCard)
	require.NoError(t, err)

	// No balance is touched for card payments; orders stay pending
	// until the provider callback settles them.
	assert.False(t, work.balances.locked)
	assert.Empty(t, work.balances.debits)
	for _, o := range work.orders.inserted {
		assert.Equal(t, order.StatusPending, o.Status)
	}
	assert.True(t, work.committed)
	assert.True(t, carts.cleared)
	assert.True(t, receipt.GrandTotal.Equal(dec("100.00")))
}

func TestCheckout_NoCouponSkipsUsage(t *testing.T) {
	carts := &fakeCart{snap: testSnapshot()}
	work := newFakeUOW()
	svc := newService(carts, &fakeCoupons{result: plainResult()}, work)

	_, err := svc.Checkout(context.Background(), "s1", 7, MethodBalance)
	require.NoError(t, err)
	assert.Empty(t, work.coupons.usages)
}

func TestCheckout_UsageLimitRaceAborts(t *testing.T) {
	carts := &fakeCart{snap: testSnapshot()}
	work := newFakeUOW()
	work.coupons.err = couponrepo.ErrUsageLimitReached
	svc := newService(carts, &fakeCoupons{result: discountedResult()}, work)

	_, err := svc.Checkout(context.Background(), "s1", 7, MethodBalance)

	var vErr *couponsvc.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "Kupon kullanım limitine ulaştı.", vErr.Message)

	assert.False(t, work.committed)
	assert.True(t, work.rolledBack)
	assert.Empty(t, work.balances.debits)
	assert.False(t, carts.cleared)
}

func TestCheckout_EmptyCart(t *testing.T) {
	carts := &fakeCart{snap: cart.Snapshot{}}
	work := newFakeUOW()
	svc := newService(carts, &fakeCoupons{result: plainResult()}, work)

	_, err := svc.Checkout(context.Background(), "s1", 7, MethodBalance)
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.False(t, work.begun)
}

func TestCheckout_StrictRecalcFailurePropagates(t *testing.T) {
	carts := &fakeCart{snap: testSnapshot()}
	work := newFakeUOW()
	coupons := &fakeCoupons{err: &couponsvc.ValidationError{Message: "Kupon süresi doldu."}}
	svc := newService(carts, coupons, work)

	_, err := svc.Checkout(context.Background(), "s1", 7, MethodBalance)

	var vErr *couponsvc.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "Kupon süresi doldu.", vErr.Message)
	assert.False(t, work.begun)
	assert.False(t, carts.cleared)
}

func TestCheckout_InsertFailureRollsBack(t *testing.T) {
	carts := &fakeCart{snap: testSnapshot()}
	work := newFakeUOW()
	work.orders.err = assert.AnError
	svc := newService(carts, &fakeCoupons{result: plainResult()}, work)

	_, err := svc.Checkout(context.Background(), "s1", 7, MethodBalance)
	assert.ErrorIs(t, err, ErrSettlementFailed)

	assert.False(t, work.committed)
	assert.True(t, work.rolledBack)
	assert.Empty(t, work.coupons.usages)
	assert.Empty(t, work.balances.debits)
	assert.False(t, carts.cleared)
}
