package checkoutsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dijistore/storefront/internal/dal/interfaces/ibalancerepo"
	"github.com/dijistore/storefront/internal/dal/interfaces/icouponrepo"
	"github.com/dijistore/storefront/internal/dal/interfaces/iorderrepo"
	"github.com/dijistore/storefront/internal/dal/interfaces/ioutboxrepo"
	"github.com/dijistore/storefront/internal/dal/postgres"
	couponrepo "github.com/dijistore/storefront/internal/dal/repositories/coupon/postgres"
	"github.com/dijistore/storefront/internal/dal/uow"
	"github.com/dijistore/storefront/internal/service/models/balance"
	"github.com/dijistore/storefront/internal/service/models/cart"
	"github.com/dijistore/storefront/internal/service/models/coupon"
	"github.com/dijistore/storefront/internal/service/models/money"
	"github.com/dijistore/storefront/internal/service/models/order"
	"github.com/dijistore/storefront/internal/service/models/outbox"
	"github.com/dijistore/storefront/internal/service/services/couponsvc"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type PaymentMethod string

const (
	MethodBalance PaymentMethod = "balance"
	MethodCard    PaymentMethod = "card"
	MethodEFT     PaymentMethod = "eft"
	MethodCrypto  PaymentMethod = "crypto"
)

var ErrInvalidPaymentMethod = errors.New("invalid payment method")

// ErrEmptyCart is returned when checkout is attempted with no items.
var ErrEmptyCart = errors.New("cart is empty")

// ErrInsufficientFunds is returned when the locked balance does not
// cover the grand total.
var ErrInsufficientFunds = errors.New("insufficient balance")

// ErrSettlementFailed wraps unexpected transactional failures; nothing
// was committed when it is returned.
var ErrSettlementFailed = errors.New("settlement failed")

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case MethodBalance, MethodCard, MethodEFT, MethodCrypto:
		return PaymentMethod(s), nil
	default:
		return "", ErrInvalidPaymentMethod
	}
}

// cartProvider is the cart dependency of checkout.
type cartProvider interface {
	Snapshot(ctx context.Context, sessionID string, userID int64) (cart.Snapshot, error)
	Clear(ctx context.Context, sessionID string) error
}

// couponEngine re-runs coupon evaluation in strict mode; a client can
// never smuggle in a stale discount.
type couponEngine interface {
	Recalculate(ctx context.Context, items []cart.Item, currency money.Currency, state *cart.CouponState, userID int64, strict bool) (couponsvc.Result, error)
}

// unitOfWork is the transactional boundary of one checkout attempt.
type unitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	OrderRepository() iorderrepo.IOrderRepository
	CouponRepository() icouponrepo.ICouponRepository
	BalanceRepository() ibalancerepo.IBalanceRepository
	OutboxRepository() ioutboxrepo.IOutboxRepository
}

// Receipt is the outcome of a committed checkout attempt.
type Receipt struct {
	OrderIDs    []int64
	Reference   string
	RedirectURL string
	CouponCode  string
	Discount    decimal.Decimal
	GrandTotal  decimal.Decimal
	Currency    money.Currency
}

// Service converts a priced cart snapshot into persisted orders and
// settles payment exactly once per attempt. Every failure before commit
// rolls the whole attempt back: no partial orders, no partial debit.
type Service struct {
	carts         cartProvider
	coupons       couponEngine
	pgClient      *postgres.Client
	uowFactory    func() unitOfWork
	newReference  func() string
	now           func() time.Time
	sourceChannel string
}

func (s *Service) newUOW() unitOfWork {
	if s.uowFactory != nil {
		return s.uowFactory()
	}

	return uow.NewUnitOfWork(s.pgClient)
}

// option is a function that configures the Service.
type option func(*Service)

// MustNewService creates a new checkout Service.
func MustNewService(opts ...option) *Service {
	s := &Service{
		newReference:  func() string { return uuid.NewString() },
		now:           time.Now,
		sourceChannel: "web",
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// WithCartService sets the cart dependency.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithCartService(carts cartProvider) option {
	return func(s *Service) {
		s.carts = carts
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

// WithPostgresClient sets the Postgres client backing the unit of work.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) option {
	return func(s *Service) {
		s.pgClient = pgClient
	}
}

// WithReferenceGenerator overrides order reference generation, used by
// tests.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithReferenceGenerator(gen func() string) option {
	return func(s *Service) {
		s.newReference = gen
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

// Checkout runs one checkout attempt for a session. On success all
// order lines share one generated reference, coupon usage is recorded
// once, and for the balance method the debit committed atomically with
// the orders. The cart is cleared only after a successful commit.
func (s *Service) Checkout(
	ctx context.Context,
	sessionID string,
	userID int64,
	method PaymentMethod,
) (*Receipt, error) {
	snap, err := s.carts.Snapshot(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if len(snap.Items) == 0 {
		return nil, ErrEmptyCart
	}

	// Strict re-evaluation: this is the single point where cart totals
	// become the amount actually charged.
	result, err := s.coupons.Recalculate(ctx, snap.Items, snap.Totals.Currency, snap.Coupon, userID, true)
	if err != nil {
		return nil, err
	}

	reference := s.newReference()

	receipt, err := s.settle(ctx, snap, result, reference, userID, method)
	if err != nil {
		return nil, err
	}

	// Clear only after commit; a failed clear leaves a harmless stale
	// cart, never a lost order.
	if err := s.carts.Clear(ctx, sessionID); err != nil {
		slog.Warn("failed to clear cart after checkout",
			"session_id", sessionID,
			"reference", reference,
			"error", err,
		)
	}

	return receipt, nil
}

func (s *Service) settle(
	ctx context.Context,
	snap cart.Snapshot,
	result couponsvc.Result,
	reference string,
	userID int64,
	method PaymentMethod,
) (*Receipt, error) {
	now := s.now()
	currency := snap.Totals.Currency
	grand := result.Totals.GrandTotal

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSettlementFailed, err)
	}
	defer func() {
		_ = work.Rollback(ctx)
	}()

	if method == MethodBalance {
		available, _, err := work.BalanceRepository().BalanceForUpdate(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSettlementFailed, err)
		}
		if !money.GTE(available, grand) {
			return nil, ErrInsufficientFunds
		}
	}

	orders := s.buildOrders(snap, result, reference, userID, method, now)

	inserted, err := work.OrderRepository().BulkInsert(ctx, orders)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSettlementFailed, err)
	}

	if result.Coupon != nil {
		// One usage row per attempt referencing the first order line.
		usage := coupon.Usage{
			CouponID:       result.Coupon.ID,
			UserID:         userID,
			OrderReference: reference,
			OrderID:        &inserted[0].ID,
			DiscountAmount: result.Discount,
			Currency:       currency,
			UsedAt:         now,
		}

		if _, err := work.CouponRepository().RecordUsage(ctx, usage, result.Coupon.MaxUses, result.Coupon.UsagePerUser); err != nil {
			if errors.Is(err, couponrepo.ErrUsageLimitReached) {
				return nil, &couponsvc.ValidationError{Message: "Kupon kullanım limitine ulaştı."}
			}

			return nil, fmt.Errorf("%w: %v", ErrSettlementFailed, err)
		}
	}

	if method == MethodBalance {
		err := work.BalanceRepository().Debit(ctx, balance.Transaction{
			UserID:      userID,
			Amount:      grand,
			Currency:    currency,
			Type:        balance.TypeDebit,
			Description: "Sipariş ödemesi " + reference,
			CreatedAt:   now,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSettlementFailed, err)
		}
	}

	if err := s.enqueueNotification(ctx, work.OutboxRepository(), inserted, result, reference, userID, method, now); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSettlementFailed, err)
	}

	if err := work.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSettlementFailed, err)
	}

	orderIDs := make([]int64, len(inserted))
	for i, o := range inserted {
		orderIDs[i] = o.ID
	}

	receipt := &Receipt{
		OrderIDs:   orderIDs,
		Reference:  reference,
		GrandTotal: grand,
		Discount:   result.Discount,
		Currency:   currency,
	}
	if result.Coupon != nil {
		receipt.CouponCode = result.Coupon.Code
	}
	receipt.RedirectURL = buildRedirectURL(method, receipt)

	return receipt, nil
}

func (s *Service) buildOrders(
	snap cart.Snapshot,
	result couponsvc.Result,
	reference string,
	userID int64,
	method PaymentMethod,
	now time.Time,
) []order.Order {
	status := order.StatusPending
	if method == MethodBalance {
		status = order.StatusPaid
	}

	currency := snap.Totals.Currency
	couponCode := ""
	if result.Coupon != nil {
		couponCode = result.Coupon.Code
	}

	orders := make([]order.Order, len(snap.Items))
	for i, item := range snap.Items {
		lineSubtotal := item.LineTotal.Amount
		lineDiscount := result.LineDiscounts[i]
		lineTotal := result.LineTotals[i]

		orders[i] = order.Order{
			ProductID:         item.ProductID,
			UserID:            userID,
			Quantity:          item.Quantity,
			UnitPrice:         item.UnitPrice.Amount,
			LineTotal:         lineTotal,
			Currency:          currency,
			Status:            status,
			SourceChannel:     s.sourceChannel,
			ExternalReference: reference,
			Metadata: order.Metadata{
				UnitPrice:  item.UnitPrice.Amount,
				Quantity:   item.Quantity,
				Subtotal:   lineSubtotal,
				Discount:   lineDiscount,
				Total:      lineTotal,
				CouponCode: couponCode,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	return orders
}

type orderCreatedEvent struct {
	Reference  string          `json:"reference"`
	OrderIDs   []int64         `json:"orderIds"`
	UserID     int64           `json:"userId"`
	Method     string          `json:"method"`
	GrandTotal decimal.Decimal `json:"grandTotal"`
	Currency   string          `json:"currency"`
	CouponCode string          `json:"couponCode,omitempty"`
	Discount   decimal.Decimal `json:"discount"`
}

func (s *Service) enqueueNotification(
	ctx context.Context,
	outboxRepo ioutboxrepo.IOutboxRepository,
	inserted []order.Order,
	result couponsvc.Result,
	reference string,
	userID int64,
	method PaymentMethod,
	now time.Time,
) error {
	orderIDs := make([]int64, len(inserted))
	for i, o := range inserted {
		orderIDs[i] = o.ID
	}

	event := orderCreatedEvent{
		Reference:  reference,
		OrderIDs:   orderIDs,
		UserID:     userID,
		Method:     string(method),
		GrandTotal: result.Totals.GrandTotal,
		Currency:   result.Totals.Currency.String(),
		Discount:   result.Discount,
	}
	if result.Coupon != nil {
		event.CouponCode = result.Coupon.Code
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return outboxRepo.Insert(ctx, outbox.Message{
		QueueName:   "storefront.order.created",
		RoutingKey:  "storefront.order.created",
		Payload:     payload,
		ContentType: "application/json",
		MaxRetries:  5,
		CreatedAt:   now,
		UpdatedAt:   now,
		NextRetryAt: now,
	})
}

func buildRedirectURL(method PaymentMethod, receipt *Receipt) string {
	base := viper.GetString("checkout.redirect_path")
	if base == "" {
		base = "/checkout/success"
	}

	ids := make([]string, len(receipt.OrderIDs))
	for i, id := range receipt.OrderIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}

	params := url.Values{}
	params.Set("method", string(method))
	params.Set("orders", strings.Join(ids, ","))
	params.Set("reference", receipt.Reference)
	if receipt.CouponCode != "" {
		params.Set("coupon", receipt.CouponCode)
		params.Set("discount", receipt.Discount.StringFixed(2))
	}

	return base + "?" + params.Encode()
}
