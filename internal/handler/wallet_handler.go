package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"heliactyl/internal/middleware"
	"heliactyl/internal/repository"

	"github.com/gin-gonic/gin"
)

type WalletHandler struct {
	walletRepo *repository.WalletRepository
	logger     *slog.Logger
}

func NewWalletHandler(walletRepo *repository.WalletRepository, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{walletRepo: walletRepo, logger: logger}
}

// Transactions lists the caller's coin movements, newest first.
func (h *WalletHandler) Transactions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	list, err := h.walletRepo.ListTransactions(middleware.GetUserID(c), limit, offset)
	if err != nil {
		writeServiceError(c, h.logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": list})
}
