package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	authhttp "github.com/Skotchmaster/storefront/internal/auth/httpserver"
	authmodels "github.com/Skotchmaster/storefront/internal/auth/models"
	authrepo "github.com/Skotchmaster/storefront/internal/auth/repo"
	authservice "github.com/Skotchmaster/storefront/internal/auth/service"
	"github.com/Skotchmaster/storefront/internal/cache"
	"github.com/Skotchmaster/storefront/internal/cart"
	carthttp "github.com/Skotchmaster/storefront/internal/cart/httpserver"
	cataloghttp "github.com/Skotchmaster/storefront/internal/catalog/httpserver"
	catalogmodels "github.com/Skotchmaster/storefront/internal/catalog/models"
	catalogrepo "github.com/Skotchmaster/storefront/internal/catalog/repo"
	"github.com/Skotchmaster/storefront/internal/catalog/search"
	catalogservice "github.com/Skotchmaster/storefront/internal/catalog/service"
	"github.com/Skotchmaster/storefront/internal/checkout"
	checkouthttp "github.com/Skotchmaster/storefront/internal/checkout/httpserver"
	"github.com/Skotchmaster/storefront/internal/notify"
	"github.com/Skotchmaster/storefront/internal/order/events"
	orderhttp "github.com/Skotchmaster/storefront/internal/order/httpserver"
	"github.com/Skotchmaster/storefront/internal/order/invoice"
	ordermodels "github.com/Skotchmaster/storefront/internal/order/models"
	orderrepo "github.com/Skotchmaster/storefront/internal/order/repo"
	orderservice "github.com/Skotchmaster/storefront/internal/order/service"
	stripeprovider "github.com/Skotchmaster/storefront/internal/payment/stripe"
	"github.com/Skotchmaster/storefront/internal/server"
	"github.com/Skotchmaster/storefront/pkg/config"
	"github.com/Skotchmaster/storefront/pkg/db"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/metrics"
	middleware "github.com/Skotchmaster/storefront/pkg/middleware/auth"
	"github.com/Skotchmaster/storefront/pkg/middleware/csrf"
	"github.com/Skotchmaster/storefront/pkg/mykafka"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}
	cfg := config.MustLoad()

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.IntoContext(ctx, logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("storefront_exit", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	gdb, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(gdb); err != nil {
			logger.Error("db_close_error", "error", err)
		}
	}()
	if err := gdb.WithContext(ctx).AutoMigrate(
		&authmodels.User{},
		&authmodels.RefreshToken{},
		&catalogmodels.Product{},
		&ordermodels.WebhookEvent{},
	); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	mdb, err := db.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.CloseMongo(closeCtx, mdb); err != nil {
			logger.Error("mongo_close_error", "error", err)
		}
	}()

	rdb, err := db.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		return err
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("redis_close_error", "error", err)
		}
	}()

	m := metrics.New("storefront")

	orders := orderrepo.NewMongoRepo(mdb)
	if err := orders.EnsureIndexes(ctx); err != nil {
		return err
	}

	authSvc := &authservice.AuthService{
		Repo:          &authrepo.GormRepo{DB: gdb},
		JWTSecret:     cfg.JWTAccessSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
	}
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if err := authSvc.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
	}

	tagCache := cache.NewTagCache(rdb, 5*time.Minute)
	catalogSvc := &catalogservice.CatalogService{
		Repo:  &catalogrepo.GormRepo{DB: gdb},
		Cache: tagCache,
	}
	if cfg.ESURL != "" {
		es, err := search.NewClient(cfg.ESURL, cfg.ESUser, cfg.ESPassword)
		if err != nil {
			return err
		}
		catalogSvc.Index = &search.Index{ES: es, Name: cfg.ESIndex}
	} else {
		logger.Warn("search_disabled", "reason", "ES_URL not set")
	}

	cartSvc := &cart.CartService{Store: cart.NewRedisStore(rdb), Catalog: catalogSvc, Metrics: m}

	notifier := &notify.Notifier{
		Sender: &notify.SMTPSender{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		},
		ShopName:  cfg.ShopName,
		PublicURL: cfg.PublicURL,
		Metrics:   m,
	}

	var publisher orderservice.Publisher = notify.Inline{Notifier: notifier}
	if len(cfg.KafkaBrokers) > 0 {
		producer := mykafka.NewProducer(cfg.KafkaBrokers)
		defer func() {
			if err := producer.Close(); err != nil {
				logger.Error("kafka_close_error", "error", err)
			}
		}()
		publisher = producer

		consumer := mykafka.NewConsumer(cfg.KafkaBrokers, events.TopicOrderPaid, cfg.ServiceName+"-notify")
		defer func() {
			if err := consumer.Close(); err != nil {
				logger.Error("kafka_close_error", "error", err)
			}
		}()
		go func() {
			if err := consumer.Consume(ctx, notifier.HandleOrderPaid); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("order_paid_consumer_stopped", "error", err)
			}
		}()
	} else {
		logger.Warn("kafka_disabled", "reason", "KAFKA_BROKERS not set; confirmations are sent inline")
	}

	provider := stripeprovider.NewProvider(cfg.StripeSecretKey, cfg.StripeWebhookSecret, nil)

	checkoutSvc := &checkout.CheckoutService{
		Carts:      cartSvc.Store,
		Catalog:    catalogSvc,
		Provider:   provider,
		Orders:     orders,
		Metrics:    m,
		Currency:   cfg.Currency,
		SuccessURL: cfg.PublicURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  cfg.PublicURL + "/cart",
	}

	webhookSvc := &orderservice.WebhookService{
		Provider: provider,
		Orders:   orders,
		Ledger:   &orderrepo.LedgerRepo{DB: gdb},
		Carts:    cartSvc,
		Events:   publisher,
		Metrics:  m,
	}

	csrfCfg := csrf.DefaultConfig()
	csrfCfg.Secure = cfg.CookieSecure

	deps := &server.Deps{
		Logger:      logger,
		Metrics:     m,
		AuthMW:      middleware.NewAutoRefreshMiddleware(cfg.JWTAccessSecret, authSvc, cfg.AdminLoginPath),
		Auth:        &authhttp.AuthHTTP{Svc: authSvc},
		Catalog:     &cataloghttp.CatalogHTTP{Svc: catalogSvc},
		Cart:        &carthttp.CartHTTP{Svc: cartSvc},
		Checkout:    &checkouthttp.CheckoutHTTP{Svc: checkoutSvc},
		Orders:      &orderhttp.OrderHTTP{Svc: &orderservice.OrderService{Repo: orders, Seller: invoice.Seller{Name: cfg.ShopName, Address: cfg.ShopAddress}}},
		Webhook:     &orderhttp.WebhookHTTP{Svc: webhookSvc},
		Revalidate:  &cache.RevalidateHTTP{Cache: tagCache, Token: cfg.RevalidateToken},
		Cache:       tagCache,
		CSRF:        csrfCfg,
		CORSOrigins: cfg.CORSOrigins,
		SiteConfig: server.SiteConfig{
			AnalyticsID:    cfg.AnalyticsID,
			PublishableKey: cfg.StripePublishableKey,
			Currency:       cfg.Currency,
		},
		Ready: map[string]server.Check{
			"postgres": func(ctx context.Context) error {
				sqlDB, err := gdb.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
			"mongo": func(ctx context.Context) error { return mdb.Client().Ping(ctx, readpref.Primary()) },
			"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
	}

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.Server.IdleTimeout = 60 * time.Second
	server.Register(e, deps)

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.ServerPort)
		logger.Info("http_listen", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	logger.Info("shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_shutdown_error", "error", err)
	}
	return nil
}
