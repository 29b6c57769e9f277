package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"heliactyl/internal/middleware"
	"heliactyl/internal/repository"
	"heliactyl/internal/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type MeHandler struct {
	userRepo   *repository.UserRepository
	walletRepo *repository.WalletRepository
	logger     *slog.Logger
}

func NewMeHandler(userRepo *repository.UserRepository, walletRepo *repository.WalletRepository, logger *slog.Logger) *MeHandler {
	return &MeHandler{userRepo: userRepo, walletRepo: walletRepo, logger: logger}
}

// Get returns the caller's profile, coin balance and purchased resources.
func (h *MeHandler) Get(c *gin.Context) {
	userID := middleware.GetUserID(c)
	u, err := h.userRepo.GetByID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeServiceError(c, h.logger, service.ErrUserNotFound, nil)
		return
	}
	if err != nil {
		writeServiceError(c, h.logger, err, nil)
		return
	}
	coins, err := h.walletRepo.Balance(userID)
	if err != nil {
		writeServiceError(c, h.logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":          u.ID,
		"username":    u.Username,
		"email":       u.Email,
		"role":        u.Role,
		"panelUserId": u.PanelUserID,
		"coins":       coins,
		"resources": gin.H{
			"ram":     u.ExtraRAM,
			"disk":    u.ExtraDisk,
			"cpu":     u.ExtraCPU,
			"servers": u.ExtraServers,
		},
	})
}
