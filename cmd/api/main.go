package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/tiendas-backend/api/routes"
	"github.com/angelmondragon/tiendas-backend/internal/audit"
	"github.com/angelmondragon/tiendas-backend/internal/auth"
	"github.com/angelmondragon/tiendas-backend/internal/catalog"
	checkoutsvc "github.com/angelmondragon/tiendas-backend/internal/checkout"
	"github.com/angelmondragon/tiendas-backend/internal/customers"
	"github.com/angelmondragon/tiendas-backend/internal/sales"
	"github.com/angelmondragon/tiendas-backend/internal/tenants"
	"github.com/angelmondragon/tiendas-backend/internal/users"
	stripewebhook "github.com/angelmondragon/tiendas-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/tiendas-backend/pkg/auth/session"
	"github.com/angelmondragon/tiendas-backend/pkg/config"
	"github.com/angelmondragon/tiendas-backend/pkg/db"
	"github.com/angelmondragon/tiendas-backend/pkg/logger"
	"github.com/angelmondragon/tiendas-backend/pkg/metrics"
	"github.com/angelmondragon/tiendas-backend/pkg/migrate"
	"github.com/angelmondragon/tiendas-backend/pkg/outbox"
	"github.com/angelmondragon/tiendas-backend/pkg/redis"
	"github.com/angelmondragon/tiendas-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx := context.Background()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return err
	}

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	gormDB := dbClient.DB()
	usersRepo := users.NewRepository(gormDB)
	customersRepo := customers.NewRepository(gormDB)
	tenantsRepo := tenants.NewRepository(gormDB)
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)

	auditService, err := audit.NewService(audit.NewRepository(gormDB), logg)
	if err != nil {
		return err
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       usersRepo,
		SessionManager: sessionManager,
		Audit:          auditService,
		Logger:         logg,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return err
	}

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return err
	}

	customerService, err := customers.NewService(customersRepo, usersRepo)
	if err != nil {
		return err
	}

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		DB:        dbClient,
		Repo:      checkoutsvc.NewRepository(gormDB),
		Customers: customerService,
		Ledger:    customersRepo,
		Gateway:   stripeClient,
		Outbox:    outboxService,
		Audit:     auditService,
		Metrics:   metrics.NewCheckoutMetrics(promRegistry),
		Logger:    logg,
		Config:    cfg.Checkout,
	})
	if err != nil {
		return err
	}

	salesService, err := sales.NewService(sales.NewRepository(gormDB), dbClient, outboxService, auditService, logg)
	if err != nil {
		return err
	}

	catalogService, err := catalog.NewService(catalog.NewRepository(gormDB), dbClient, outboxService, auditService, logg)
	if err != nil {
		return err
	}

	tenantService, err := tenants.NewService(tenants.ServiceParams{
		Repo:           tenantsRepo,
		Tx:             dbClient,
		Outbox:         outboxService,
		Audit:          auditService,
		Logger:         logg,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return err
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Checkout: checkoutService,
		Logger:   logg,
	})
	if err != nil {
		return err
	}
	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Checkout.WebhookIdempotentTTL)
	if err != nil {
		return err
	}

	router := routes.NewRouter(routes.Params{
		Config:             cfg,
		Logger:             logg,
		Registry:           promRegistry,
		DB:                 dbClient,
		Redis:              redisClient,
		Sessions:           sessionManager,
		Tenants:            tenantsRepo,
		Auth:               authService,
		Register:           registerService,
		Checkout:           checkoutService,
		Sales:              salesService,
		Catalog:            catalogService,
		Audit:              auditService,
		Customers:          customerService,
		Provision:          tenantService,
		StripeVerifier:     stripeClient,
		StripeWebhook:      webhookService,
		StripeWebhookGuard: webhookGuard,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	instance := os.Getenv("DYNO")
	if instance == "" {
		instance = "local"
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	logCtx := logg.WithFields(sigCtx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"instance":   instance,
		"stripe_env": stripeClient.Environment(),
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-sigCtx.Done():
	}

	logg.Info(logCtx, "api server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
