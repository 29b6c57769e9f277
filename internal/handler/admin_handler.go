package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"heliactyl/internal/middleware"
	"heliactyl/internal/models"
	"heliactyl/internal/scheduler"
	"heliactyl/internal/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type AdminHandler struct {
	db      *gorm.DB
	boosts  *service.BoostService
	sweeper *scheduler.Sweeper
	logger  *slog.Logger
}

func NewAdminHandler(db *gorm.DB, boosts *service.BoostService, sweeper *scheduler.Sweeper, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{db: db, boosts: boosts, sweeper: sweeper, logger: logger}
}

// CreditCoins handles POST /api/admin/users/:id/coins.
func (h *AdminHandler) CreditCoins(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || userID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	var req struct {
		Amount int64  `json:"amount" binding:"required"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount is required"})
		return
	}
	ref := fmt.Sprintf("admin:%d", middleware.GetUserID(c))
	if req.Reason != "" {
		ref += ":" + req.Reason
	}
	if len(ref) > 128 {
		ref = ref[:128]
	}
	if err := service.CreditCoins(h.db, uint(userID), req.Amount, ref); err != nil {
		writeServiceError(c, h.logger, err, nil)
		return
	}
	h.logger.Info("admin coin credit", "admin_id", middleware.GetUserID(c), "user_id", userID, "amount", req.Amount)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListReconcile handles GET /api/admin/boosts/reconcile.
func (h *AdminHandler) ListReconcile(c *gin.Context) {
	list, err := h.boosts.ListReconcile()
	if err != nil {
		writeServiceError(c, h.logger, err, nil)
		return
	}
	if list == nil {
		list = []models.Boost{}
	}
	c.JSON(http.StatusOK, list)
}

// Sweep handles POST /api/admin/boosts/sweep.
func (h *AdminHandler) Sweep(c *gin.Context) {
	res, err := h.sweeper.RunOnce(c.Request.Context())
	if err != nil {
		writeServiceError(c, h.logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, res)
}
