// Package main is the entry point for the StockPilot API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockpilot/internal/core/types"
	"stockpilot/internal/domain/auth"
	"stockpilot/internal/domain/catalogs/carrier"
	"stockpilot/internal/domain/catalogs/product"
	"stockpilot/internal/domain/catalogs/warehouse"
	"stockpilot/internal/domain/fulfillment"
	"stockpilot/internal/domain/history"
	"stockpilot/internal/domain/inventory"
	"stockpilot/internal/domain/orders"
	"stockpilot/internal/domain/payments"
	"stockpilot/internal/domain/purchasing"
	"stockpilot/internal/domain/returns"
	"stockpilot/internal/domain/shipments"
	v1 "stockpilot/internal/infrastructure/http/v1"
	"stockpilot/internal/infrastructure/payment"
	"stockpilot/internal/infrastructure/storage/postgres"
	"stockpilot/internal/infrastructure/storage/postgres/catalog_repo"
	"stockpilot/internal/infrastructure/storage/postgres/document_repo"
	"stockpilot/internal/infrastructure/storage/postgres/history_repo"
	"stockpilot/internal/infrastructure/storage/postgres/inventory_repo"
	"stockpilot/pkg/logger"
	"stockpilot/pkg/numerator"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting stockpilot server")

	// --- Database ---
	dsn := mustEnv("DATABASE_URL")
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dsn))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Shared services ---
	numeratorService := numerator.New(pool.Unwrap())
	emitter := postgres.NewOutboxPublisher(txManager)

	historyRepo, err := history_repo.NewHistoryRepo(txManager)
	if err != nil {
		log.Fatalw("failed to initialize history storage", "error", err)
	}
	historyService := history.NewService(historyRepo)

	// --- Catalogs ---
	productService := product.NewService(catalog_repo.NewProductRepo(txManager), txManager, numeratorService)
	warehouseService := warehouse.NewService(catalog_repo.NewWarehouseRepo(txManager), txManager, numeratorService)
	carrierService := carrier.NewService(catalog_repo.NewCarrierRepo(txManager), txManager, numeratorService)

	// --- Inventory ledger ---
	ledger := inventory.NewLedger(inventory_repo.NewLedgerRepo(txManager), txManager)

	// --- Payments ---
	sandboxCfg := payment.NoLimit()
	if limit := getEnv("PAYMENT_SANDBOX_DECLINE_ABOVE", ""); limit != "" {
		declineAbove, err := types.NewMoneyFromString(limit)
		if err != nil {
			log.Fatalw("invalid PAYMENT_SANDBOX_DECLINE_ABOVE", "error", err)
		}
		sandboxCfg.DeclineAbove = declineAbove
	}
	processor := payment.NewSandboxProcessor(sandboxCfg)
	paymentService := payments.NewService(document_repo.NewPaymentRepo(txManager), processor, txManager)

	// --- Documents ---
	orderService := orders.NewService(document_repo.NewOrderRepo(txManager), historyService, numeratorService, txManager)
	shipmentService := shipments.NewService(document_repo.NewShipmentRepo(txManager), historyService, numeratorService, txManager)
	purchasingService := purchasing.NewService(document_repo.NewPurchaseOrderRepo(txManager), ledger, historyService, numeratorService, txManager)
	returnService := returns.NewService(document_repo.NewReturnRepo(txManager), ledger, paymentService, historyService, numeratorService, txManager)

	// --- Fulfillment orchestrator ---
	fulfillmentService := fulfillment.NewService(
		productService,
		warehouseService,
		ledger,
		orderService,
		shipmentService,
		paymentService,
		emitter,
		txManager,
	)

	// --- JWT ---
	jwtSecret := getEnv("JWT_SECRET", "change-me-in-production")
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(jwtSecret))

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:         pool,
		Logger:       log,
		JWTValidator: jwtService,
		Products:     productService,
		Warehouses:   warehouseService,
		Carriers:     carrierService,
		Fulfillment:  fulfillmentService,
		Orders:       orderService,
		Ledger:       ledger,
		Shipments:    shipmentService,
		Payments:     paymentService,
		Purchasing:   purchasingService,
		Returns:      returnService,
		History:      historyService,
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}
