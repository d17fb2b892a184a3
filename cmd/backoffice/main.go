package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KretovDmitry/backoffice/internal/application/services"
	"github.com/KretovDmitry/backoffice/internal/config"
	"github.com/KretovDmitry/backoffice/internal/infrastructure/db/postgres"
	"github.com/KretovDmitry/backoffice/internal/infrastructure/featuregate"
	"github.com/KretovDmitry/backoffice/internal/infrastructure/gateway"
	"github.com/KretovDmitry/backoffice/internal/infrastructure/identity"
	"github.com/KretovDmitry/backoffice/internal/infrastructure/notifier"
	rest "github.com/KretovDmitry/backoffice/internal/interface/api/rest/chi"
	"github.com/KretovDmitry/backoffice/internal/interface/api/rest/middleware"
	"github.com/KretovDmitry/backoffice/pkg/logger"
	"github.com/KretovDmitry/backoffice/pkg/metrics"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	trmcontext "github.com/avito-tech/go-transaction-manager/trm/v2/context"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
)

// Version indicates the current version of the application.
var Version = "1.0.0"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Server run context.
	serverCtx, serverStopCtx := context.WithCancel(context.Background())
	defer serverStopCtx()

	// Load application configurations.
	cfg := config.MustLoad()

	// Create root logger tagged with server version.
	logger := logger.New(cfg).With(serverCtx, "version", Version)

	// Open the database with every query logged.
	db, err := postgres.Connect(serverCtx, cfg, logger)
	if err != nil {
		return err
	}

	// Close connection.
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error(err)
		}
		_ = logger.Sync()
	}()

	if err = postgres.Migrate(serverCtx, db); err != nil {
		return fmt.Errorf("failed to migrate the database: %w", err)
	}

	// Create default transaction manager for database/sql package.
	trManager := manager.Must(
		trmsql.NewDefaultFactory(db),
		manager.WithCtxManager(trmcontext.DefaultManager),
	)

	orderRepo, err := postgres.NewOrderRepository(db, trmsql.DefaultCtxGetter, logger)
	if err != nil {
		return fmt.Errorf("failed to init order repository: %w", err)
	}

	discountRepo, err := postgres.NewDiscountRepository(db, trmsql.DefaultCtxGetter, logger)
	if err != nil {
		return fmt.Errorf("failed to init discount repository: %w", err)
	}

	// External collaborators.
	identityService, err := identity.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to init identity: %w", err)
	}

	gate, err := featuregate.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to init feature gate: %w", err)
	}

	paymentGateway, err := gateway.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to init payment gateway: %w", err)
	}

	orderNotifier, err := notifier.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to init notifier: %w", err)
	}
	defer func() {
		if err = orderNotifier.Close(); err != nil {
			logger.Errorf("close notifier: %s", err)
		}
	}()

	appMetrics := metrics.New()

	// Application services.
	reconciliationService, err := services.NewReconciliationService(
		orderRepo, discountRepo, trManager, appMetrics, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to init reconciliation service: %w", err)
	}

	discountService, err := services.NewDiscountService(discountRepo, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to init discount service: %w", err)
	}

	checkoutService, err := services.NewCheckoutService(
		orderRepo, discountRepo, discountService, trManager, identityService,
		gate, reconciliationService, appMetrics, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to init checkout service: %w", err)
	}

	paymentService, err := services.NewPaymentService(
		orderRepo, paymentGateway, trManager, orderNotifier,
		reconciliationService, appMetrics, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to init payment service: %w", err)
	}

	orderService, err := services.NewOrderService(
		orderRepo, paymentGateway, trManager, orderNotifier, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to init order service: %w", err)
	}

	// Start background reconciliation.
	if err = reconciliationService.Run(); err != nil {
		return fmt.Errorf("failed to start reconciliation: %w", err)
	}
	// Do not lose orders being reconciled.
	defer reconciliationService.Stop()

	// Create root router.
	router := rest.InitChi(cfg, appMetrics, logger)

	authenticated := rest.ChiServerOptions{
		BaseRouter:  router,
		Middlewares: []rest.MiddlewareFunc{middleware.Middleware(identityService)},
	}

	rest.NewCheckoutController(checkoutService, middleware.Optional(identityService), logger, authenticated)
	rest.NewOrderController(orderService, reconciliationService, identityService, logger, authenticated)
	rest.NewDiscountController(discountService, identityService, logger, authenticated)
	rest.NewWebhookController(paymentService, logger, rest.ChiServerOptions{BaseRouter: router})

	// Build HTTP server.
	hs := &http.Server{
		Addr:              cfg.HTTPServer.Address,
		ReadHeaderTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:       cfg.HTTPServer.IdleTimeout,
		Handler:           router,
	}

	// Graceful shutdown.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT,
			syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)

		signal := <-sig

		logger.With(serverCtx, "signal", signal.String()).
			Infof("Shutting down server with %s timeout",
				cfg.HTTPServer.ShutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(serverCtx, cfg.HTTPServer.ShutdownTimeout)
		defer cancel()

		if err := hs.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("graceful shutdown failed: %s", err)
		}
		serverStopCtx()
	}()

	// Start the HTTP server with graceful shutdown.
	logger.Infof("Server %v is running at %v", Version, cfg.HTTPServer.Address)
	if err = hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("run server failed: %w", err)
	}

	// Wait for server context to be stopped.
	select {
	case <-serverCtx.Done():
	case <-time.After(cfg.HTTPServer.ShutdownTimeout):
		return errors.New("graceful shutdown timed out.. forcing exit")
	}

	return nil
}
