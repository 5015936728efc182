package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dijistore/storefront/internal/dal/postgres"
	"github.com/dijistore/storefront/internal/dal/rabbitmq"
	redisclient "github.com/dijistore/storefront/internal/dal/redis"
	cartrepo "github.com/dijistore/storefront/internal/dal/repositories/cartstate/redis"
	couponrepo "github.com/dijistore/storefront/internal/dal/repositories/coupon/postgres"
	outboxrepo "github.com/dijistore/storefront/internal/dal/repositories/outbox/postgres"
	productrepo "github.com/dijistore/storefront/internal/dal/repositories/product/postgres"
	settingsrepo "github.com/dijistore/storefront/internal/dal/repositories/settings/postgres"
	otelcontroller "github.com/dijistore/storefront/internal/otel"
	"github.com/dijistore/storefront/internal/service/models/money"
	"github.com/dijistore/storefront/internal/service/services/cartsvc"
	"github.com/dijistore/storefront/internal/service/services/checkoutsvc"
	"github.com/dijistore/storefront/internal/service/services/couponsvc"
	"github.com/dijistore/storefront/internal/service/services/currencysvc"
	httptransport "github.com/dijistore/storefront/internal/transport/http"
	outboxworker "github.com/dijistore/storefront/internal/worker/outbox"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// App represents the application.
type App struct {
	transport      *httptransport.HTTPTransport
	outboxWorker   *outboxworker.Worker
	postgresClient *postgres.Client
	redisClient    *redis.Client
	rabbitClient   *rabbitmq.Client
	otelController *otelcontroller.OtelController
	workerCancel   context.CancelFunc
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	otelController := otelcontroller.MustInitOtel()

	postgresClient := postgres.MustNewClient()
	redisClient := redisclient.MustNewClient()
	rabbitClient := rabbitmq.MustNewClient()

	if _, err := rabbitClient.DeclareQueue(rabbitmq.DeclareQueueConfig{
		Name:    "storefront.order.created",
		Durable: true,
	}); err != nil {
		panic(err)
	}

	pool := postgresClient.Pool()

	fetchTimeout := time.Duration(viper.GetInt("currency.fetch_timeout_seconds")) * time.Second
	httpClient := currencysvc.NewHTTPClient(fetchTimeout)

	rateTTL := time.Duration(viper.GetInt("currency.cache_ttl_minutes")) * time.Minute
	if rateTTL <= 0 {
		rateTTL = time.Hour
	}

	currencySvc := currencysvc.MustNewService(
		currencysvc.WithSettingsRepository(settingsrepo.NewPostgresSettingsRepository(pool)),
		currencysvc.WithProviders(
			currencysvc.NewFrankfurterProvider(httpClient),
			currencysvc.NewOpenERAPIProvider(httpClient),
		),
		currencysvc.WithTTL(rateTTL),
	)

	couponSvc := couponsvc.MustNewService(
		couponsvc.WithCouponRepository(couponrepo.NewPostgresCouponRepository(pool)),
		couponsvc.WithCurrencyConverter(currencySvc),
	)

	defaultCurrency, err := money.ParseCurrency(viper.GetString("currency.default"))
	if err != nil {
		defaultCurrency = money.CurrencyTRY
	}

	cartSvc := cartsvc.MustNewService(
		cartsvc.WithCartStore(cartrepo.NewRedisCartStore(redisClient)),
		cartsvc.WithProductRepository(productrepo.NewPostgresProductRepository(pool)),
		cartsvc.WithCurrencyConverter(currencySvc),
		cartsvc.WithCouponEngine(couponSvc),
		cartsvc.WithDefaultCurrency(defaultCurrency),
	)

	checkoutSvc := checkoutsvc.MustNewService(
		checkoutsvc.WithCartService(cartSvc),
		checkoutsvc.WithCouponEngine(couponSvc),
		checkoutsvc.WithPostgresClient(postgresClient),
	)

	worker := outboxworker.NewWorker(
		outboxrepo.NewPostgresOutboxRepository(pool),
		rabbitClient,
	)

	transport := httptransport.NewHTTPTransport(cartSvc, checkoutSvc)
	transport.RegisterRoutes()

	return &App{
		transport:      transport,
		outboxWorker:   worker,
		postgresClient: postgresClient,
		redisClient:    redisClient,
		rabbitClient:   rabbitClient,
		otelController: otelController,
	}
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	workerCtx, cancel := context.WithCancel(context.Background())
	a.workerCancel = cancel
	go a.outboxWorker.Start(workerCtx)

	go func() {
		slog.Info("Starting HTTP server")
		if err := a.transport.Run(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	<-stop
	slog.Info("Shutdown signal received")

	ctx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := a.transport.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped gracefully")
	}

	a.workerCancel()

	if err := a.rabbitClient.Close(); err != nil {
		slog.Error("RabbitMQ connection close error", "error", err)
	}

	if err := a.redisClient.Close(); err != nil {
		slog.Error("Redis connection close error", "error", err)
	}

	if err := a.otelController.Shutdown(); err != nil {
		slog.Error("Trace provider shutdown error", "error", err)
	}

	a.postgresClient.Close()
	slog.Info("Application shutdown complete")
}
