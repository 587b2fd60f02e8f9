package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stockpilot/internal/core/apperror"
	"stockpilot/internal/domain/history"
)

// HistoryHandler serves the status change log for any tracked entity.
type HistoryHandler struct {
	*BaseHandler
	history *history.Service
}

// NewHistoryHandler creates a history handler.
func NewHistoryHandler(base *BaseHandler, svc *history.Service) *HistoryHandler {
	return &HistoryHandler{BaseHandler: base, history: svc}
}

var trackedEntityTypes = map[string]bool{
	"order":          true,
	"shipment":       true,
	"purchase_order": true,
	"return":         true,
}

// List handles GET /history/:entityType/:id
func (h *HistoryHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	entityType := c.Param("entityType")
	if !trackedEntityTypes[entityType] {
		h.Error(c, apperror.NewValidation("unknown entity type").
			WithDetail("entityType", entityType))
		return
	}

	entityID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	entries, err := h.history.History(ctx, entityType, entityID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": entries})
}
