package httpt

import (
	"errors"
	"net/http"

	"bandonotifier/internal/entity"

	"github.com/gin-gonic/gin"
)

func (h *Handler) handleServiceError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, entity.ErrDataNotFound),
		errors.Is(err, entity.ErrEventRefNotFound):
		h.log.Warnw("resource not found", "op", op, "error", err)
		h.respondError(c, http.StatusNotFound, "not_found", "Resource not found", err)

	case errors.Is(err, entity.ErrInvalidData):
		h.log.Warnw("invalid data", "op", op, "error", err)
		h.respondError(c, http.StatusBadRequest, "invalid_data", "Invalid input data", err)

	case errors.Is(err, entity.ErrConflictingData):
		h.log.Warnw("conflicting data", "op", op, "error", err)
		h.respondError(c, http.StatusConflict, "conflict", "Data conflict occurred", err)

	case errors.Is(err, entity.ErrSchedulerRunning):
		h.log.Warnw("scheduler lease held", "op", op, "error", err)
		h.respondError(c, http.StatusConflict, "scheduler_running",
			"Another scheduler instance holds the lease", err)

	case errors.Is(err, entity.ErrSchedulerStopped):
		h.log.Warnw("scheduler stopped", "op", op, "error", err)
		h.respondError(c, http.StatusConflict, "scheduler_stopped",
			"Scheduler is not running", err)

	default:
		h.log.Errorw("internal server error", "op", op, "error", err)
		h.respondError(c, http.StatusInternalServerError, "internal_error",
			"Internal server error occurred", err)
	}
}

func (h *Handler) respondError(c *gin.Context, status int, code, msg string, err error) {
	resp := ErrorResponse{Error: msg, Code: code}
	if err != nil && status != http.StatusInternalServerError {
		resp.Details = err.Error()
	}
	c.AbortWithStatusJSON(status, resp)
}

func (h *Handler) handleBindError(c *gin.Context, op string, err error) {
	h.log.Warnw("request binding failed", "op", op, "error", err)
	h.respondError(c, http.StatusBadRequest, "invalid_request", "Malformed request body", err)
}
