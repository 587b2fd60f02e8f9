package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/entity"
	"stockpilot/internal/core/id"
	"stockpilot/internal/domain/inventory"
	"stockpilot/internal/infrastructure/http/v1/dto"
)

// InventoryHandler handles stock ledger endpoints.
type InventoryHandler struct {
	*BaseHandler
	ledger *inventory.Ledger
}

// NewInventoryHandler creates an inventory handler.
func NewInventoryHandler(base *BaseHandler, ledger *inventory.Ledger) *InventoryHandler {
	return &InventoryHandler{
		BaseHandler: base,
		ledger:      ledger,
	}
}

// Availability handles GET /inventory/availability/:productId.
func (h *InventoryHandler) Availability(c *gin.Context) {
	ctx := c.Request.Context()

	productID, ok := h.ParseID(c, "productId")
	if !ok {
		return
	}

	availability, err := h.ledger.Availability(ctx, productID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, availability)
}

// WarehouseStock handles GET /inventory/warehouses/:warehouseId.
func (h *InventoryHandler) WarehouseStock(c *gin.Context) {
	ctx := c.Request.Context()

	warehouseID, ok := h.ParseID(c, "warehouseId")
	if !ok {
		return
	}

	balances, err := h.ledger.StockByWarehouse(ctx, warehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": balances})
}

// Adjust handles POST /inventory/adjust - set a balance to an exact level.
func (h *InventoryHandler) Adjust(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.AdjustStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	productID, warehouseID, err := req.Parse()
	if err != nil {
		h.Error(c, err)
		return
	}

	actor := h.GetUserID(c)
	ref := inventory.Reference{Type: "adjustment", ID: id.New(), Actor: actor}

	if err := h.ledger.SetExact(ctx, productID, warehouseID, req.Quantity, ref); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "stock adjusted")
}

// Transfer handles POST /inventory/transfer - move stock between warehouses.
func (h *InventoryHandler) Transfer(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.TransferStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	productID, from, to, err := req.Parse()
	if err != nil {
		h.Error(c, err)
		return
	}

	actor := h.GetUserID(c)
	ref := inventory.Reference{Type: "transfer", ID: id.New(), Actor: actor}

	if err := h.ledger.Transfer(ctx, productID, from, to, req.Quantity, ref); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "stock transferred")
}

// Movements handles GET /inventory/movements/:productId.
func (h *InventoryHandler) Movements(c *gin.Context) {
	ctx := c.Request.Context()

	productID, ok := h.ParseID(c, "productId")
	if !ok {
		return
	}

	filter := inventory.MovementFilter{
		Limit:  h.ParseIntQuery(c, "limit", 100),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	if whStr := c.Query("warehouseId"); whStr != "" {
		warehouseID, err := id.Parse(whStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid warehouse id").WithDetail("param", "warehouseId"))
			return
		}
		filter.WarehouseID = &warehouseID
	}

	if typeStr := c.Query("type"); typeStr != "" {
		movementType := entity.MovementType(typeStr)
		filter.MovementType = &movementType
	}

	if fromStr := c.Query("from"); fromStr != "" {
		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid from date (RFC3339 expected)").WithDetail("param", "from"))
			return
		}
		filter.FromDate = &from
	}
	if toStr := c.Query("to"); toStr != "" {
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid to date (RFC3339 expected)").WithDetail("param", "to"))
			return
		}
		filter.ToDate = &to
	}

	movements, err := h.ledger.Movements(ctx, productID, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": movements})
}

// Reconcile handles GET /inventory/reconcile - verify that the movement
// journal explains the cached balance.
func (h *InventoryHandler) Reconcile(c *gin.Context) {
	ctx := c.Request.Context()

	productID, err := id.Parse(c.Query("productId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid product id").WithDetail("param", "productId"))
		return
	}
	warehouseID, err := id.Parse(c.Query("warehouseId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid warehouse id").WithDetail("param", "warehouseId"))
		return
	}

	report, err := h.ledger.Reconcile(ctx, productID, warehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
