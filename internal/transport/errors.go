package transport

import (
	"errors"
	"net/http"

	"github.com/ds124wfegd/task-reminder/internal/entity"

	"github.com/gin-gonic/gin"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrTaskNotFound),
		errors.Is(err, entity.ErrUserNotFound),
		errors.Is(err, entity.ErrSettingsNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrInvalidInput),
		errors.Is(err, entity.ErrInvalidSettings):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrSchedulerNotRunning):
		return http.StatusConflict
	case errors.Is(err, entity.ErrQueueFull):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
