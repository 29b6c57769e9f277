package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"heliactyl/internal/middleware"
	"heliactyl/internal/models"
	"heliactyl/internal/service"

	"github.com/gin-gonic/gin"
)

type BoostHandler struct {
	svc    *service.BoostService
	logger *slog.Logger
}

func NewBoostHandler(svc *service.BoostService, logger *slog.Logger) *BoostHandler {
	return &BoostHandler{svc: svc, logger: logger}
}

// Types returns the boost catalog keyed by type id.
func (h *BoostHandler) Types(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Catalog().Types())
}

func (h *BoostHandler) Active(c *gin.Context) {
	active, err := h.svc.Active(middleware.GetUserID(c))
	if err != nil {
		writeServiceError(c, h.logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, active)
}

func (h *BoostHandler) Scheduled(c *gin.Context) {
	list, err := h.svc.Scheduled(middleware.GetUserID(c))
	if err != nil {
		writeServiceError(c, h.logger, err, nil)
		return
	}
	if list == nil {
		list = []models.Boost{}
	}
	c.JSON(http.StatusOK, list)
}

func (h *BoostHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := h.svc.History(middleware.GetUserID(c), limit)
	if err != nil {
		writeServiceError(c, h.logger, err, nil)
		return
	}
	if list == nil {
		list = []models.BoostHistory{}
	}
	c.JSON(http.StatusOK, list)
}

type applyRequest struct {
	ServerID  string `json:"serverId" binding:"required"`
	BoostType string `json:"boostType" binding:"required"`
	Duration  string `json:"duration" binding:"required"`
}

func (h *BoostHandler) Apply(c *gin.Context) {
	var req applyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "serverId, boostType and duration are required"})
		return
	}
	b, err := h.svc.Apply(c.Request.Context(), middleware.GetUserID(c), service.ApplyInput{
		ServerID:  req.ServerID,
		BoostType: req.BoostType,
		Duration:  req.Duration,
	})
	if err != nil {
		writeServiceError(c, h.logger, err, nil)
		return
	}
	c.JSON(http.StatusCreated, b)
}

type scheduleRequest struct {
	applyRequest
	ScheduledTime int64 `json:"scheduledTime" binding:"required"` // epoch ms
}

func (h *BoostHandler) Schedule(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "serverId, boostType, duration and scheduledTime are required"})
		return
	}
	b, err := h.svc.Schedule(c.Request.Context(), middleware.GetUserID(c), service.ScheduleInput{
		ApplyInput: service.ApplyInput{
			ServerID:  req.ServerID,
			BoostType: req.BoostType,
			Duration:  req.Duration,
		},
		ScheduledTime: time.UnixMilli(req.ScheduledTime),
	})
	if err != nil {
		writeServiceError(c, h.logger, err, nil)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *BoostHandler) Cancel(c *gin.Context) {
	var req struct {
		ServerID string `json:"serverId" binding:"required"`
		BoostID  string `json:"boostId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "serverId and boostId are required"})
		return
	}
	refund, err := h.svc.Cancel(c.Request.Context(), middleware.GetUserID(c), req.ServerID, req.BoostID)
	if err != nil {
		var extra gin.H
		if refund > 0 {
			extra = gin.H{"refundAmount": refund}
		}
		writeServiceError(c, h.logger, err, extra)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refundAmount": refund})
}

func (h *BoostHandler) CancelScheduled(c *gin.Context) {
	var req struct {
		ScheduledBoostID string `json:"scheduledBoostId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scheduledBoostId is required"})
		return
	}
	refund, err := h.svc.CancelScheduled(c.Request.Context(), middleware.GetUserID(c), req.ScheduledBoostID)
	if err != nil {
		writeServiceError(c, h.logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refundAmount": refund})
}

func (h *BoostHandler) Extend(c *gin.Context) {
	var req struct {
		ServerID           string `json:"serverId" binding:"required"`
		BoostID            string `json:"boostId" binding:"required"`
		AdditionalDuration string `json:"additionalDuration" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "serverId, boostId and additionalDuration are required"})
		return
	}
	b, err := h.svc.Extend(c.Request.Context(), middleware.GetUserID(c), service.ExtendInput{
		ServerID:           req.ServerID,
		BoostID:            req.BoostID,
		AdditionalDuration: req.AdditionalDuration,
	})
	if err != nil {
		writeServiceError(c, h.logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, b)
}
