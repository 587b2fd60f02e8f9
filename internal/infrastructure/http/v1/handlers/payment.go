package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stockpilot/internal/domain/payments"
)

// PaymentHandler handles payment endpoints.
type PaymentHandler struct {
	*BaseHandler
	payments *payments.Service
}

// NewPaymentHandler creates a payment handler.
func NewPaymentHandler(base *BaseHandler, svc *payments.Service) *PaymentHandler {
	return &PaymentHandler{
		BaseHandler: base,
		payments:    svc,
	}
}

// LatestForOrder handles GET /orders/:id/payment - newest payment record.
func (h *PaymentHandler) LatestForOrder(c *gin.Context) {
	ctx := c.Request.Context()

	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	record, err := h.payments.LatestForOrder(ctx, orderID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// Refund handles POST /payments/:id/refund.
func (h *PaymentHandler) Refund(c *gin.Context) {
	ctx := c.Request.Context()

	paymentID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.payments.Refund(ctx, paymentID); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "payment refunded")
}
