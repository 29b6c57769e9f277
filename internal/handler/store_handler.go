package handler

import (
	"log/slog"
	"net/http"

	"heliactyl/internal/middleware"
	"heliactyl/internal/service"

	"github.com/gin-gonic/gin"
)

type StoreHandler struct {
	svc    *service.StoreService
	logger *slog.Logger
}

func NewStoreHandler(svc *service.StoreService, logger *slog.Logger) *StoreHandler {
	return &StoreHandler{svc: svc, logger: logger}
}

func (h *StoreHandler) Config(c *gin.Context) {
	view, err := h.svc.Config(middleware.GetUserID(c))
	if err != nil {
		writeServiceError(c, h.logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *StoreHandler) Buy(c *gin.Context) {
	var req struct {
		ResourceType string `json:"resourceType" binding:"required"`
		Amount       int64  `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "resourceType and amount are required"})
		return
	}
	u, err := h.svc.Buy(c.Request.Context(), middleware.GetUserID(c), req.ResourceType, req.Amount)
	if err != nil {
		writeServiceError(c, h.logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"resources": gin.H{
			"ram":     u.ExtraRAM,
			"disk":    u.ExtraDisk,
			"cpu":     u.ExtraCPU,
			"servers": u.ExtraServers,
		},
	})
}
