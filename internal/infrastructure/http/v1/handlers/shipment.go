package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/id"
	"stockpilot/internal/domain/shipments"
	"stockpilot/internal/infrastructure/http/v1/dto"
)

// ShipmentHandler handles shipment endpoints.
type ShipmentHandler struct {
	*BaseHandler
	shipments *shipments.Service
}

// NewShipmentHandler creates a shipment handler.
func NewShipmentHandler(base *BaseHandler, svc *shipments.Service) *ShipmentHandler {
	return &ShipmentHandler{
		BaseHandler: base,
		shipments:   svc,
	}
}

// Get handles GET /shipments/:id.
func (h *ShipmentHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	shipmentID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	shipment, err := h.shipments.GetByID(ctx, shipmentID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, shipment)
}

// ListByOrder handles GET /orders/:id/shipments.
func (h *ShipmentHandler) ListByOrder(c *gin.Context) {
	ctx := c.Request.Context()

	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	items, err := h.shipments.GetByOrder(ctx, orderID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Transition handles POST /shipments/:id/transition.
func (h *ShipmentHandler) Transition(c *gin.Context) {
	ctx := c.Request.Context()

	shipmentID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.TransitionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	shipment, err := h.shipments.Transition(ctx, shipmentID, shipments.Status(req.Status), h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, shipment)
}

// AssignCarrier handles POST /shipments/:id/carrier.
func (h *ShipmentHandler) AssignCarrier(c *gin.Context) {
	ctx := c.Request.Context()

	shipmentID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.AssignCarrierRequest
	if !h.BindJSON(c, &req) {
		return
	}

	carrierID, err := id.Parse(req.CarrierID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid carrier id").WithDetail("field", "carrierId"))
		return
	}

	if err := h.shipments.AssignCarrier(ctx, shipmentID, carrierID); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "carrier assigned")
}
