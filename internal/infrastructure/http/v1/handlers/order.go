package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/id"
	"stockpilot/internal/domain/fulfillment"
	"stockpilot/internal/domain/orders"
	"stockpilot/internal/infrastructure/http/v1/dto"
)

// OrderHandler handles order and fulfillment endpoints.
type OrderHandler struct {
	*BaseHandler
	fulfillment *fulfillment.Service
	orders      *orders.Service
}

// NewOrderHandler creates an order handler.
func NewOrderHandler(base *BaseHandler, ffl *fulfillment.Service, orderSvc *orders.Service) *OrderHandler {
	return &OrderHandler{
		BaseHandler: base,
		fulfillment: ffl,
		orders:      orderSvc,
	}
}

// Place handles POST /orders - the full placement workflow.
func (h *OrderHandler) Place(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.PlaceOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	svcReq, err := req.ToServiceRequest(h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.fulfillment.PlaceOrder(ctx, svcReq)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromPlacementResult(result))
}

// List handles GET /orders with filtering and pagination.
func (h *OrderHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := orders.ListFilter{
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	if customerStr := c.Query("customerId"); customerStr != "" {
		customerID, err := id.Parse(customerStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid customer id").WithDetail("param", "customerId"))
			return
		}
		filter.CustomerID = &customerID
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := orders.Status(statusStr)
		if !orders.IsValidStatus(status) {
			h.Error(c, apperror.NewValidation("unknown status").WithDetail("param", "status"))
			return
		}
		filter.Status = &status
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

	result, err := h.orders.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      result.Items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Get handles GET /orders/:id.
func (h *OrderHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	order, err := h.orders.GetByID(ctx, orderID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// Confirm handles POST /orders/:id/confirm - pending -> confirmed with
// reservation of any unallocated lines.
func (h *OrderHandler) Confirm(c *gin.Context) {
	ctx := c.Request.Context()

	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	order, err := h.fulfillment.ConfirmFulfillment(ctx, orderID, h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// Ship handles POST /orders/:id/ship - dispatch the order.
func (h *OrderHandler) Ship(c *gin.Context) {
	ctx := c.Request.Context()

	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	result, err := h.fulfillment.MarkShippable(ctx, orderID, h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromShipResult(result))
}

// Cancel handles POST /orders/:id/cancel - cancel and release stock.
func (h *OrderHandler) Cancel(c *gin.Context) {
	ctx := c.Request.Context()

	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.CancelRequest
	if c.Request.ContentLength > 0 && !h.BindJSON(c, &req) {
		return
	}

	order, err := h.fulfillment.CancelOrder(ctx, orderID, h.GetUserID(c), req.Note)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// Transition handles POST /orders/:id/transition - generic status move
// (e.g. shipped -> delivered).
func (h *OrderHandler) Transition(c *gin.Context) {
	ctx := c.Request.Context()

	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.TransitionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	order, err := h.orders.Transition(ctx, orderID, orders.Status(req.Status), h.GetUserID(c), req.Note)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// History handles GET /orders/:id/history - the status audit trail.
func (h *OrderHandler) History(c *gin.Context) {
	ctx := c.Request.Context()

	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	entries, err := h.orders.History(ctx, orderID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": entries})
}
