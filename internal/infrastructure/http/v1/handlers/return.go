package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockpilot/internal/core/id"
	"stockpilot/internal/domain/returns"
	"stockpilot/internal/infrastructure/http/v1/dto"
)

// ReturnHandler handles return endpoints.
type ReturnHandler struct {
	*BaseHandler
	returns *returns.Service
}

// NewReturnHandler creates a return handler.
func NewReturnHandler(base *BaseHandler, svc *returns.Service) *ReturnHandler {
	return &ReturnHandler{
		BaseHandler: base,
		returns:     svc,
	}
}

// Request handles POST /returns.
func (h *ReturnHandler) Request(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateReturnRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ret, err := req.ToEntity()
	if err != nil {
		h.Error(c, err)
		return
	}
	ret.CreatedBy = h.GetUserID(c)

	if err := h.returns.Request(ctx, ret); err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, ret)
}

// Get handles GET /returns/:id.
func (h *ReturnHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	returnID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	ret, err := h.returns.GetByID(ctx, returnID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, ret)
}

// ListByOrder handles GET /orders/:id/returns.
func (h *ReturnHandler) ListByOrder(c *gin.Context) {
	ctx := c.Request.Context()

	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	items, err := h.returns.ListByOrder(ctx, orderID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Approve handles POST /returns/:id/approve.
func (h *ReturnHandler) Approve(c *gin.Context) {
	h.transition(c, h.returns.Approve)
}

// Receive handles POST /returns/:id/receive - restock returned goods.
func (h *ReturnHandler) Receive(c *gin.Context) {
	h.transition(c, h.returns.Receive)
}

// Refund handles POST /returns/:id/refund - refund the original payment.
func (h *ReturnHandler) Refund(c *gin.Context) {
	h.transition(c, h.returns.Refund)
}

// Reject handles POST /returns/:id/reject.
func (h *ReturnHandler) Reject(c *gin.Context) {
	ctx := c.Request.Context()

	returnID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.RejectReturnRequest
	if c.Request.ContentLength > 0 && !h.BindJSON(c, &req) {
		return
	}

	ret, err := h.returns.Reject(ctx, returnID, h.GetUserID(c), req.Note)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, ret)
}

func (h *ReturnHandler) transition(
	c *gin.Context,
	op func(ctx context.Context, returnID id.ID, actor string) (*returns.Return, error),
) {
	ctx := c.Request.Context()

	returnID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	ret, err := op(ctx, returnID, h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, ret)
}
