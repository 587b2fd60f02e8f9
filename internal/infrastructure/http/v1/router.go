package v1

import (
	"github.com/gin-gonic/gin"

	appctx "stockpilot/internal/core/context"
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
	"stockpilot/internal/infrastructure/http/v1/handlers"
	"stockpilot/internal/infrastructure/http/v1/middleware"
	"stockpilot/internal/infrastructure/storage/postgres"
	"stockpilot/pkg/logger"
)

// RouterConfig holds everything the HTTP layer needs. Services are built
// once at startup; handlers hold no state of their own.
type RouterConfig struct {
	// Pool for health checks
	Pool *postgres.Pool

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// Catalog services
	Products   *product.Service
	Warehouses *warehouse.Service
	Carriers   *carrier.Service

	// Domain services
	Fulfillment *fulfillment.Service
	Orders      *orders.Service
	Ledger      *inventory.Ledger
	Shipments   *shipments.Service
	Payments    *payments.Service
	Purchasing  *purchasing.Service
	Returns     *returns.Service
	History     *history.Service
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// API v1 - everything below requires a valid token
	api := router.Group("/api/v1")
	api.Use(middleware.Auth(cfg.JWTValidator))

	registerCatalogRoutes(api, cfg)
	registerOrderRoutes(api, cfg)
	registerInventoryRoutes(api, cfg)
	registerShipmentRoutes(api, cfg)
	registerPaymentRoutes(api, cfg)
	registerPurchasingRoutes(api, cfg)
	registerReturnRoutes(api, cfg)
	registerHistoryRoutes(api, cfg)

	return router
}

// registerCatalogRoutes wires the catalog CRUD endpoints.
func registerCatalogRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	catalogs := rg.Group("/catalog")
	baseHandler := handlers.NewBaseHandler()

	// Suppliers maintain their own products; warehouses and carriers are
	// admin-managed.
	RegisterCatalogRoutes(
		catalogs.Group("/products"),
		handlers.NewProductHandler(baseHandler, cfg.Products.CatalogService),
		appctx.RoleSupplier,
	)
	RegisterCatalogRoutes(
		catalogs.Group("/warehouses"),
		handlers.NewWarehouseHandler(baseHandler, cfg.Warehouses.CatalogService),
		appctx.RoleAdmin,
	)
	RegisterCatalogRoutes(
		catalogs.Group("/carriers"),
		handlers.NewCarrierHandler(baseHandler, cfg.Carriers.CatalogService),
		appctx.RoleAdmin,
	)
}

// registerOrderRoutes wires order placement and lifecycle endpoints.
func registerOrderRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	orderHandler := handlers.NewOrderHandler(baseHandler, cfg.Fulfillment, cfg.Orders)
	shipmentHandler := handlers.NewShipmentHandler(baseHandler, cfg.Shipments)
	paymentHandler := handlers.NewPaymentHandler(baseHandler, cfg.Payments)
	returnHandler := handlers.NewReturnHandler(baseHandler, cfg.Returns)

	fulfil := middleware.RequireRole(appctx.RoleWarehouse)

	group := rg.Group("/orders")
	{
		group.POST("", middleware.RequireRole(appctx.RoleCustomer), orderHandler.Place)
		group.GET("", orderHandler.List)
		group.GET("/:id", orderHandler.Get)
		group.GET("/:id/history", orderHandler.History)
		group.GET("/:id/shipments", shipmentHandler.ListByOrder)
		group.GET("/:id/payment", paymentHandler.LatestForOrder)
		group.GET("/:id/returns", returnHandler.ListByOrder)

		group.POST("/:id/confirm", fulfil, orderHandler.Confirm)
		group.POST("/:id/ship", fulfil, orderHandler.Ship)
		group.POST("/:id/transition", middleware.RequireRole(appctx.RoleAdmin), orderHandler.Transition)
		group.POST("/:id/cancel", middleware.RequireRole(appctx.RoleCustomer, appctx.RoleWarehouse), orderHandler.Cancel)
	}
}

// registerInventoryRoutes wires the stock ledger endpoints.
func registerInventoryRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewInventoryHandler(baseHandler, cfg.Ledger)

	ops := middleware.RequireRole(appctx.RoleWarehouse)

	group := rg.Group("/inventory")
	{
		group.GET("/availability/:productId", handler.Availability)
		group.GET("/warehouses/:warehouseId", ops, handler.WarehouseStock)
		group.GET("/movements/:productId", ops, handler.Movements)
		group.GET("/reconcile", ops, handler.Reconcile)
		// manual stock override is an administrative action
		group.POST("/adjust", middleware.RequireRole(appctx.RoleAdmin), handler.Adjust)
		group.POST("/transfer", ops, handler.Transfer)
	}
}

// registerShipmentRoutes wires shipment endpoints.
func registerShipmentRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewShipmentHandler(baseHandler, cfg.Shipments)

	group := rg.Group("/shipments")
	{
		group.GET("/:id", handler.Get)
		group.POST("/:id/transition", middleware.RequireRole(appctx.RoleCarrier, appctx.RoleWarehouse), handler.Transition)
		group.POST("/:id/carrier", middleware.RequireRole(appctx.RoleWarehouse), handler.AssignCarrier)
	}
}

// registerPaymentRoutes wires payment endpoints.
func registerPaymentRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewPaymentHandler(baseHandler, cfg.Payments)

	group := rg.Group("/payments")
	{
		group.POST("/:id/refund", middleware.RequireRole(appctx.RoleAdmin), handler.Refund)
	}
}

// registerPurchasingRoutes wires purchase order endpoints.
func registerPurchasingRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewPurchaseOrderHandler(baseHandler, cfg.Purchasing)

	supply := middleware.RequireRole(appctx.RoleSupplier, appctx.RoleWarehouse)
	receive := middleware.RequireRole(appctx.RoleWarehouse)

	group := rg.Group("/purchase-orders")
	{
		group.POST("", supply, handler.Create)
		group.GET("", supply, handler.ListBySupplier)
		group.GET("/:id", supply, handler.Get)
		group.POST("/:id/order", supply, handler.MarkOrdered)
		group.POST("/:id/receive", receive, handler.Receive)
		group.POST("/:id/close", receive, handler.Close)
		group.POST("/:id/cancel", supply, handler.Cancel)
	}
}

// registerReturnRoutes wires return endpoints.
func registerReturnRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewReturnHandler(baseHandler, cfg.Returns)

	ops := middleware.RequireRole(appctx.RoleWarehouse)

	group := rg.Group("/returns")
	{
		group.POST("", middleware.RequireRole(appctx.RoleCustomer), handler.Request)
		group.GET("/:id", handler.Get)
		group.POST("/:id/approve", ops, handler.Approve)
		group.POST("/:id/reject", ops, handler.Reject)
		group.POST("/:id/receive", ops, handler.Receive)
		group.POST("/:id/refund", middleware.RequireRole(appctx.RoleAdmin), handler.Refund)
	}
}

// registerHistoryRoutes wires the status change log endpoint.
func registerHistoryRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	handler := handlers.NewHistoryHandler(handlers.NewBaseHandler(), cfg.History)

	rg.GET("/history/:entityType/:id", middleware.RequireRole(appctx.RoleWarehouse), handler.List)
}
