package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"heliactyl/internal/middleware"
	"heliactyl/internal/models"
	"heliactyl/internal/repository"

	"github.com/gin-gonic/gin"
)

const (
	defaultNotificationPage = 20
	maxNotificationPage     = 100
)

type NotificationHandler struct {
	repo   *repository.NotificationRepository
	logger *slog.Logger
}

func NewNotificationHandler(repo *repository.NotificationRepository, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{repo: repo, logger: logger}
}

// List handles GET /api/notifications?unread=true&limit=&offset=.
func (h *NotificationHandler) List(c *gin.Context) {
	userID := middleware.GetUserID(c)
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultNotificationPage)))
	if err != nil || limit <= 0 || limit > maxNotificationPage {
		limit = defaultNotificationPage
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	unreadOnly, _ := strconv.ParseBool(c.Query("unread"))

	list, err := h.repo.ListForUser(userID, repository.NotificationFilter{UnreadOnly: unreadOnly, Limit: limit, Offset: offset})
	if err != nil {
		writeServiceError(c, h.logger, err, nil)
		return
	}
	unread, err := h.repo.CountUnread(userID)
	if err != nil {
		writeServiceError(c, h.logger, err, nil)
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list, "unread": unread})
}

// MarkRead handles PUT /api/notifications/:id/read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}
	if err := h.repo.MarkRead(uint(id), middleware.GetUserID(c)); err != nil {
		writeServiceError(c, h.logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// MarkAllRead handles PUT /api/notifications/read-all.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	n, err := h.repo.MarkAllRead(middleware.GetUserID(c))
	if err != nil {
		writeServiceError(c, h.logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": n})
}
