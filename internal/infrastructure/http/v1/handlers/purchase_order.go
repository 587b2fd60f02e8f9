package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/id"
	"stockpilot/internal/domain/purchasing"
	"stockpilot/internal/infrastructure/http/v1/dto"
)

// PurchaseOrderHandler handles purchase order endpoints.
type PurchaseOrderHandler struct {
	*BaseHandler
	purchasing *purchasing.Service
}

// NewPurchaseOrderHandler creates a purchase order handler.
func NewPurchaseOrderHandler(base *BaseHandler, svc *purchasing.Service) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{
		BaseHandler: base,
		purchasing:  svc,
	}
}

// Create handles POST /purchase-orders.
func (h *PurchaseOrderHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreatePurchaseOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	po, err := req.ToEntity()
	if err != nil {
		h.Error(c, err)
		return
	}
	po.CreatedBy = h.GetUserID(c)

	if err := h.purchasing.Create(ctx, po); err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, po)
}

// Get handles GET /purchase-orders/:id.
func (h *PurchaseOrderHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	poID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	po, err := h.purchasing.GetByID(ctx, poID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, po)
}

// ListBySupplier handles GET /purchase-orders?supplierId=...
func (h *PurchaseOrderHandler) ListBySupplier(c *gin.Context) {
	ctx := c.Request.Context()

	supplierID, err := id.Parse(c.Query("supplierId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid supplier id").WithDetail("param", "supplierId"))
		return
	}

	limit := h.ParseIntQuery(c, "limit", 50)
	offset := h.ParseIntQuery(c, "offset", 0)

	items, err := h.purchasing.ListBySupplier(ctx, supplierID, limit, offset)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// MarkOrdered handles POST /purchase-orders/:id/order - draft -> ordered.
func (h *PurchaseOrderHandler) MarkOrdered(c *gin.Context) {
	h.transition(c, h.purchasing.MarkOrdered)
}

// Receive handles POST /purchase-orders/:id/receive - book stock in.
func (h *PurchaseOrderHandler) Receive(c *gin.Context) {
	h.transition(c, h.purchasing.Receive)
}

// Close handles POST /purchase-orders/:id/close - received -> closed.
func (h *PurchaseOrderHandler) Close(c *gin.Context) {
	h.transition(c, h.purchasing.Close)
}

// Cancel handles POST /purchase-orders/:id/cancel.
func (h *PurchaseOrderHandler) Cancel(c *gin.Context) {
	ctx := c.Request.Context()

	poID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.CancelRequest
	if c.Request.ContentLength > 0 && !h.BindJSON(c, &req) {
		return
	}

	po, err := h.purchasing.Cancel(ctx, poID, h.GetUserID(c), req.Note)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, po)
}

func (h *PurchaseOrderHandler) transition(
	c *gin.Context,
	op func(ctx context.Context, poID id.ID, actor string) (*purchasing.PurchaseOrder, error),
) {
	ctx := c.Request.Context()

	poID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	po, err := op(ctx, poID, h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, po)
}
