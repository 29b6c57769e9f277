package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"heliactyl/internal/repository"
	"heliactyl/internal/scheduler"
	"heliactyl/internal/service"

	"github.com/gin-gonic/gin"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{service.ErrInvalidBoostType, http.StatusBadRequest},
	{service.ErrInvalidDuration, http.StatusBadRequest},
	{service.ErrScheduledTimeNotInFuture, http.StatusBadRequest},
	{service.ErrInsufficientBalance, http.StatusBadRequest},
	{service.ErrInvalidResourceType, http.StatusBadRequest},
	{service.ErrInvalidQuantity, http.StatusBadRequest},
	{service.ErrStoreLimitReached, http.StatusBadRequest},
	{repository.ErrInvalidAmount, http.StatusBadRequest},
	{service.ErrServerNotFound, http.StatusNotFound},
	{service.ErrUserNotFound, http.StatusNotFound},
	{service.ErrBoostNotFound, http.StatusNotFound},
	{service.ErrScheduledBoostNotFound, http.StatusNotFound},
	{repository.ErrNotificationNotFound, http.StatusNotFound},
	{service.ErrBoostAlreadyActive, http.StatusConflict},
	{service.ErrAlreadyProcessed, http.StatusConflict},
	{service.ErrReconciliationPending, http.StatusConflict},
	{scheduler.ErrSweepInProgress, http.StatusConflict},
}

// writeServiceError maps domain errors to a status and their message. Panel
// failures and unknown errors get a generic message; the detail goes to the log.
func writeServiceError(c *gin.Context, logger *slog.Logger, err error, extra gin.H) {
	body := gin.H{}
	for k, v := range extra {
		body[k] = v
	}
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			body["error"] = e.err.Error()
			c.JSON(e.status, body)
			return
		}
	}
	if errors.Is(err, service.ErrPanelUnavailable) {
		logger.Error("panel request failed", "path", c.FullPath(), "error", err)
		body["error"] = "the hosting panel could not be updated, the change will be retried automatically"
		c.JSON(http.StatusBadGateway, body)
		return
	}
	logger.Error("request failed", "path", c.FullPath(), "error", err)
	body["error"] = "internal server error"
	c.JSON(http.StatusInternalServerError, body)
}
