package currencysvc

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dijistore/storefront/internal/dal/interfaces/isettingsrepo"
	"github.com/dijistore/storefront/internal/service/models/money"
	"github.com/shopspring/decimal"
)

// RateProvider fetches a live FX rate from an external source.
type RateProvider interface {
	Name() string
	FetchRate(ctx context.Context, from, to money.Currency) (decimal.Decimal, error)
}

type cachedRate struct {
	rate      decimal.Decimal
	fetchedAt time.Time
}

// Service converts and formats money. Rate resolution order: in-memory
// cache, persisted settings cache (age < TTL), live providers in order,
// last persisted value, identity. GetRate and Convert never fail; the
// worst case is an identity rate.
type Service struct {
	settings  isettingsrepo.ISettingsRepository
	providers []RateProvider
	ttl       time.Duration
	now       func() time.Time

	mu     sync.RWMutex
	memory map[string]cachedRate
}

// option is a function that configures the Service.
type option func(*Service)

// MustNewService creates a new currency Service.
func MustNewService(opts ...option) *Service {
	s := &Service{
		ttl:    time.Hour,
		now:    time.Now,
		memory: make(map[string]cachedRate),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// WithSettingsRepository sets the persisted rate cache backend.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithSettingsRepository(settings isettingsrepo.ISettingsRepository) option {
	return func(s *Service) {
		s.settings = settings
	}
}

// WithProviders sets the ordered list of live rate providers.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithProviders(providers ...RateProvider) option {
	return func(s *Service) {
		s.providers = providers
	}
}

// WithTTL overrides the rate cache TTL.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithTTL(ttl time.Duration) option {
	return func(s *Service) {
		s.ttl = ttl
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

func pairKey(from, to money.Currency) string {
	return from.String() + "-" + to.String()
}

func settingKey(pair string) string {
	return "currency.rate." + pair
}

// GetRate resolves the FX rate from one currency to another.
func (s *Service) GetRate(ctx context.Context, from, to money.Currency) decimal.Decimal {
	if from == to {
		return decimal.NewFromInt(1)
	}

	pair := pairKey(from, to)

	s.mu.RLock()
	cached, ok := s.memory[pair]
	s.mu.RUnlock()
	if ok && s.now().Sub(cached.fetchedAt) < s.ttl {
		return cached.rate
	}

	if rate, fetchedAt, err := s.persistedRate(ctx, pair); err == nil {
		if s.now().Sub(fetchedAt) < s.ttl {
			s.remember(pair, rate, fetchedAt)

			return rate
		}
	}

	for _, provider := range s.providers {
		rate, err := provider.FetchRate(ctx, from, to)
		if err != nil || !rate.IsPositive() {
			slog.Warn("rate provider failed",
				"provider", provider.Name(),
				"pair", pair,
				"error", err,
			)

			continue
		}

		s.persist(ctx, pair, rate)
		s.remember(pair, rate, s.now())

		return rate
	}

	// All providers down: a stale persisted rate beats no rate.
	if rate, _, err := s.persistedRate(ctx, pair); err == nil {
		return rate
	}

	return decimal.NewFromInt(1)
}

// Convert converts an amount between currencies. Same-currency
// conversion is identity, with no rate lookup.
func (s *Service) Convert(ctx context.Context, amount decimal.Decimal, from, to money.Currency) decimal.Decimal {
	if from == to {
		return amount
	}

	return amount.Mul(s.GetRate(ctx, from, to))
}

// Format renders an amount with its currency symbol.
func (s *Service) Format(amount decimal.Decimal, currency money.Currency) string {
	return money.Format(amount, currency)
}

func (s *Service) remember(pair string, rate decimal.Decimal, fetchedAt time.Time) {
	s.mu.Lock()
	s.memory[pair] = cachedRate{rate: rate, fetchedAt: fetchedAt}
	s.mu.Unlock()
}

func (s *Service) persistedRate(ctx context.Context, pair string) (decimal.Decimal, time.Time, error) {
	if s.settings == nil {
		return decimal.Zero, time.Time{}, errors.New("no settings repository")
	}

	rateStr, err := s.settings.Get(ctx, settingKey(pair))
	if err != nil {
		return decimal.Zero, time.Time{}, err
	}

	rate, err := decimal.NewFromString(rateStr)
	if err != nil {
		return decimal.Zero, time.Time{}, err
	}

	fetchedAtStr, err := s.settings.Get(ctx, settingKey(pair)+".fetched_at")
	if err != nil {
		return decimal.Zero, time.Time{}, err
	}

	fetchedAt, err := time.Parse(time.RFC3339, fetchedAtStr)
	if err != nil {
		return decimal.Zero, time.Time{}, err
	}

	return rate, fetchedAt, nil
}

func (s *Service) persist(ctx context.Context, pair string, rate decimal.Decimal) {
	if s.settings == nil {
		return
	}

	if err := s.settings.Set(ctx, settingKey(pair), rate.String()); err != nil {
		slog.Error("failed to persist rate", "pair", pair, "error", err)

		return
	}

	if err := s.settings.Set(ctx, settingKey(pair)+".fetched_at", s.now().Format(time.RFC3339)); err != nil {
		slog.Error("failed to persist rate timestamp", "pair", pair, "error", err)
	}
}
