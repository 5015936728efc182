package currencysvc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dijistore/storefront/internal/service/models/money"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type settingsStub struct {
	values map[string]string
}

func newSettingsStub() *settingsStub {
	return &settingsStub{values: map[string]string{}}
}

func (s *settingsStub) Get(_ context.Context, key string) (string, error) {
	v, ok := s.values[key]
	if !ok {
		return "", errors.New("setting not found")
	}

	return v, nil
}

func (s *settingsStub) Set(_ context.Context, key, value string) error {
	s.values[key] = value

	return nil
}

type providerStub struct {
	name  string
	rate  decimal.Decimal
	err   error
	calls int
}

func (p *providerStub) Name() string {
	return p.name
}

func (p *providerStub) FetchRate(_ context.Context, _, _ money.Currency) (decimal.Decimal, error) {
	p.calls++

	return p.rate, p.err
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestGetRate_SameCurrency(t *testing.T) {
	provider := &providerStub{name: "p", rate: dec("40")}
	svc := MustNewService(WithProviders(provider))

	rate := svc.GetRate(context.Background(), money.CurrencyTRY, money.CurrencyTRY)

	assert.True(t, rate.Equal(dec("1")))
	assert.Zero(t, provider.calls)
}

func TestGetRate_FetchesPersistsAndCaches(t *testing.T) {
	settings := newSettingsStub()
	provider := &providerStub{name: "p", rate: dec("40.5")}
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	svc := MustNewService(
		WithSettingsRepository(settings),
		WithProviders(provider),
		WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	rate := svc.GetRate(ctx, money.CurrencyUSD, money.CurrencyTRY)
	require.True(t, rate.Equal(dec("40.5")))
	assert.Equal(t, 1, provider.calls)

	assert.Equal(t, "40.5", settings.values["currency.rate.USD-TRY"])
	assert.Equal(t, now.Format(time.RFC3339), settings.values["currency.rate.USD-TRY.fetched_at"])

	// Second lookup is served from memory.
	rate = svc.GetRate(ctx, money.CurrencyUSD, money.CurrencyTRY)
	assert.True(t, rate.Equal(dec("40.5")))
	assert.Equal(t, 1, provider.calls)
}

func TestGetRate_FallsBackToSecondProvider(t *testing.T) {
	first := &providerStub{name: "first", err: errors.New("down")}
	second := &providerStub{name: "second", rate: dec("41")}
	svc := MustNewService(WithProviders(first, second))

	rate := svc.GetRate(context.Background(), money.CurrencyUSD, money.CurrencyTRY)

	assert.True(t, rate.Equal(dec("41")))
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestGetRate_NonPositiveRateSkipped(t *testing.T) {
	first := &providerStub{name: "first", rate: decimal.Zero}
	second := &providerStub{name: "second", rate: dec("41")}
	svc := MustNewService(WithProviders(first, second))

	rate := svc.GetRate(context.Background(), money.CurrencyUSD, money.CurrencyTRY)

	assert.True(t, rate.Equal(dec("41")))
}

func TestGetRate_FreshPersistedRateSkipsProviders(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	settings := newSettingsStub()
	settings.values["currency.rate.USD-TRY"] = "39"
	settings.values["currency.rate.USD-TRY.fetched_at"] = now.Add(-30 * time.Minute).Format(time.RFC3339)

	provider := &providerStub{name: "p", rate: dec("40")}
	svc := MustNewService(
		WithSettingsRepository(settings),
		WithProviders(provider),
		WithTTL(time.Hour),
		WithClock(func() time.Time { return now }),
	)

	rate := svc.GetRate(context.Background(), money.CurrencyUSD, money.CurrencyTRY)

	assert.True(t, rate.Equal(dec("39")))
	assert.Zero(t, provider.calls)
}

func TestGetRate_StalePersistedRateWhenProvidersDown(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	settings := newSettingsStub()
	settings.values["currency.rate.USD-TRY"] = "39"
	settings.values["currency.rate.USD-TRY.fetched_at"] = now.Add(-2 * time.Hour).Format(time.RFC3339)

	provider := &providerStub{name: "p", err: errors.New("down")}
	svc := MustNewService(
		WithSettingsRepository(settings),
		WithProviders(provider),
		WithTTL(time.Hour),
		WithClock(func() time.Time { return now }),
	)

	rate := svc.GetRate(context.Background(), money.CurrencyUSD, money.CurrencyTRY)

	assert.True(t, rate.Equal(dec("39")))
	assert.Equal(t, 1, provider.calls)
}

func TestGetRate_IdentityWhenNothingAvailable(t *testing.T) {
	provider := &providerStub{name: "p", err: errors.New("down")}
	svc := MustNewService(WithProviders(provider))

	rate := svc.GetRate(context.Background(), money.CurrencyUSD, money.CurrencyTRY)

	assert.True(t, rate.Equal(dec("1")))
}

func TestGetRate_MemoryExpiresAfterTTL(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	provider := &providerStub{name: "p", rate: dec("40")}
	svc := MustNewService(
		WithSettingsRepository(newSettingsStub()),
		WithProviders(provider),
		WithTTL(time.Hour),
		WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	require.True(t, svc.GetRate(ctx, money.CurrencyUSD, money.CurrencyTRY).Equal(dec("40")))
	require.Equal(t, 1, provider.calls)

	now = now.Add(2 * time.Hour)
	provider.rate = dec("42")

	rate := svc.GetRate(ctx, money.CurrencyUSD, money.CurrencyTRY)
	assert.True(t, rate.Equal(dec("42")))
	assert.Equal(t, 2, provider.calls)
}

func TestConvert(t *testing.T) {
	provider := &providerStub{name: "p", rate: dec("40")}
	svc := MustNewService(WithProviders(provider))
	ctx := context.Background()

	// Same-currency conversion never touches a provider.
	out := svc.Convert(ctx, dec("12.34"), money.CurrencyTRY, money.CurrencyTRY)
	assert.True(t, out.Equal(dec("12.34")))
	assert.Zero(t, provider.calls)

	out = svc.Convert(ctx, dec("2.5"), money.CurrencyUSD, money.CurrencyTRY)
	assert.True(t, out.Equal(dec("100")))
}

func TestFormat(t *testing.T) {
	svc := MustNewService()

	assert.Equal(t, "₺149.90", svc.Format(dec("149.9"), money.CurrencyTRY))
}
